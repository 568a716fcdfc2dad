package pageview

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

// TimeLayout is a timestamp without zone, e.g. 2024-04-08T16:58:47.908116.
const TimeLayout = "2006-01-02T15:04:05.999999999"

// PageView is one page load.
type PageView struct {
	PageName  string
	UserID    int32
	CreatedAt time.Time
}

// PageEvent is a UI interaction on a page.
type PageEvent struct {
	EventName string
	UserID    int32
	CreatedAt time.Time
}

type pageViewWire struct {
	PageName  *string `json:"page_name"`
	UserID    *int32  `json:"user_id"`
	CreatedAt *string `json:"created_at"`
}

type pageEventWire struct {
	EventName *string `json:"event_name"`
	UserID    *int32  `json:"user_id"`
	CreatedAt *string `json:"created_at"`
}

func (v PageView) MarshalJSON() ([]byte, error) {
	createdAt := formatTime(v.CreatedAt)
	return sonic.ConfigStd.Marshal(pageViewWire{PageName: &v.PageName, UserID: &v.UserID, CreatedAt: &createdAt})
}

func (e PageEvent) MarshalJSON() ([]byte, error) {
	createdAt := formatTime(e.CreatedAt)
	return sonic.ConfigStd.Marshal(pageEventWire{EventName: &e.EventName, UserID: &e.UserID, CreatedAt: &createdAt})
}

// DecodePageView requires page_name, user_id and created_at.
func DecodePageView(payload []byte) (PageView, error) {
	var w pageViewWire
	if err := sonic.ConfigStd.Unmarshal(payload, &w); err != nil {
		return PageView{}, exception.ErrNotPageView
	}
	if w.PageName == nil || w.UserID == nil || w.CreatedAt == nil {
		return PageView{}, exception.ErrNotPageView
	}
	createdAt, err := parseTime(*w.CreatedAt)
	if err != nil {
		return PageView{}, exception.ErrNotPageView
	}
	return PageView{PageName: *w.PageName, UserID: *w.UserID, CreatedAt: createdAt}, nil
}

// DecodePageEvent requires event_name, user_id and created_at.
func DecodePageEvent(payload []byte) (PageEvent, error) {
	var w pageEventWire
	if err := sonic.ConfigStd.Unmarshal(payload, &w); err != nil {
		return PageEvent{}, err
	}
	if w.EventName == nil || w.UserID == nil || w.CreatedAt == nil {
		return PageEvent{}, errors.New("not a page event")
	}
	createdAt, err := parseTime(*w.CreatedAt)
	if err != nil {
		return PageEvent{}, err
	}
	return PageEvent{EventName: *w.EventName, UserID: *w.UserID, CreatedAt: createdAt}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// parseTime accepts zoneless timestamps as UTC as well as RFC 3339.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid created_at %q", s)
	}
	return t.UTC(), nil
}
