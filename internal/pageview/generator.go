package pageview

import (
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/bytedance/sonic"
)

const (
	defaultUserID    = 3
	defaultPageName  = "index.html"
	defaultEventName = "ButtonHover:cta-main"
)

// Generator produces synthetic traffic, alternating page views and page
// events starting with a view.
type Generator struct {
	UserID    int32
	PageName  string
	EventName string
	Clock     clock.Clock

	n atomic.Uint64
}

func NewGenerator(c clock.Clock) *Generator {
	if c == nil {
		c = clock.New()
	}
	return &Generator{
		UserID:    defaultUserID,
		PageName:  defaultPageName,
		EventName: defaultEventName,
		Clock:     c,
	}
}

// Next returns the next encoded message.
func (g *Generator) Next() ([]byte, error) {
	i := g.n.Add(1) - 1
	now := g.Clock.Now()
	if i%2 == 0 {
		return sonic.ConfigStd.Marshal(PageView{PageName: g.PageName, UserID: g.UserID, CreatedAt: now})
	}
	return sonic.ConfigStd.Marshal(PageEvent{EventName: g.EventName, UserID: g.UserID, CreatedAt: now})
}
