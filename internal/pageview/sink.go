package pageview

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/broker"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/obs"
	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

// Inserter stores decoded page views.
type Inserter interface {
	Insert(ctx context.Context, v PageView) error
}

// DeadLetter receives records the sink does not store. *broker.Writer
// satisfies it.
type DeadLetter interface {
	Append(ctx context.Context, key, value []byte) error
}

// Sink stores page views and routes everything else to dead letter topics.
type Sink struct {
	store   Inserter
	events  DeadLetter
	invalid DeadLetter
	metrics *obs.Metrics
}

type SinkOption func(*Sink)

// WithEventDeadLetter routes page events.
func WithEventDeadLetter(d DeadLetter) SinkOption {
	return func(s *Sink) { s.events = d }
}

// WithInvalidDeadLetter routes payloads that are neither views nor events.
func WithInvalidDeadLetter(d DeadLetter) SinkOption {
	return func(s *Sink) { s.invalid = d }
}

func WithMetrics(m *obs.Metrics) SinkOption {
	return func(s *Sink) { s.metrics = m }
}

func NewSink(store Inserter, opts ...SinkOption) (*Sink, error) {
	if store == nil {
		return nil, exception.ErrNilStore
	}
	s := &Sink{store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Handle stores one record. Records that are not page views are dropped or
// dead-lettered and return nil; storage failures are returned.
func (s *Sink) Handle(ctx context.Context, rec broker.Record) error {
	view, err := DecodePageView(rec.Value)
	if err == nil {
		if err := s.store.Insert(ctx, view); err != nil {
			s.metrics.IncWriteFailure()
			return err
		}
		s.metrics.IncStored()
		return nil
	}

	s.metrics.IncDrop(obs.DropNotPageView)
	target, name := s.invalid, "invalid"
	if _, evErr := DecodePageEvent(rec.Value); evErr == nil {
		target, name = s.events, "page event"
	}
	if target == nil {
		logs.Infof("pageview: dropped %s record at offset %d", name, rec.Offset)
		return nil
	}
	if err := target.Append(ctx, rec.Key, append([]byte(nil), rec.Value...)); err != nil {
		return errors.Wrap(err, "dead letter").With("offset", rec.Offset)
	}
	return nil
}
