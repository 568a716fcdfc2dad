package broker

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

const defaultPollInterval = 100 * time.Millisecond

// ConsumerOptions controls how a topic is read.
type ConsumerOptions struct {
	// StartOffset is the first offset delivered to the handler.
	StartOffset uint64
	// Follow keeps tailing the newest segment instead of returning at its end.
	Follow       bool
	PollInterval time.Duration
	// Speed paces delivery by record timestamps; 0 delivers as fast as possible.
	Speed           float64
	DisableChecksum bool
	MaxValueSize    int
	Clock           clock.Clock
}

func (o ConsumerOptions) withDefaults() ConsumerOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

// Handler receives records in offset order.
// Key and Value are only valid during the call; use Record.Clone to retain them.
type Handler func(ctx context.Context, rec Record) error

// Consumer reads a topic directory from a start offset.
type Consumer struct {
	dir  string
	opts ConsumerOptions
}

// NewConsumer creates a consumer over a topic directory.
func NewConsumer(dir string, opts ConsumerOptions) *Consumer {
	return &Consumer{dir: dir, opts: opts.withDefaults()}
}

// Run delivers records until the topic is exhausted, or until ctx is done in
// follow mode. A handler error stops the consumer and is returned as is.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return exception.ErrNilHandler
	}
	if _, err := os.Stat(c.dir); err != nil {
		return exception.ErrTopicNotFound
	}

	offset := c.opts.StartOffset
	var (
		current *segmentFile
		prevTS  int64
	)
	for {
		next, err := c.nextSegment(current, offset)
		if err != nil {
			return err
		}
		if next == nil {
			if !c.opts.Follow {
				return nil
			}
			if err := sleep(ctx, c.opts.Clock, c.opts.PollInterval); err != nil {
				return err
			}
			continue
		}
		current = next

		if err := c.consumeSegment(ctx, *current, &offset, &prevTS, handler); err != nil {
			return err
		}
	}
}

// nextSegment picks the segment holding offset on the first call, and the
// segment after current afterwards.
func (c *Consumer) nextSegment(current *segmentFile, offset uint64) (*segmentFile, error) {
	segments, err := listSegments(c.dir)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, nil
	}
	if current == nil {
		idx := 0
		for i, s := range segments {
			if s.base <= offset {
				idx = i
			}
		}
		return &segments[idx], nil
	}
	for i := range segments {
		if segments[i].base > current.base {
			return &segments[i], nil
		}
	}
	return nil, nil
}

func (c *Consumer) hasNewer(base uint64) (bool, error) {
	segments, err := listSegments(c.dir)
	if err != nil {
		return false, err
	}
	return len(segments) > 0 && segments[len(segments)-1].base > base, nil
}

func (c *Consumer) consumeSegment(ctx context.Context, seg segmentFile, offset *uint64, prevTS *int64, handler Handler) error {
	file, err := os.Open(seg.path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: c.opts.DisableChecksum,
		MaxValueSize:    c.opts.MaxValueSize,
	})

	finalPass := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := reader.Next()
		if err == nil {
			if rec.Offset < *offset {
				continue
			}
			if err := c.pace(ctx, rec.Timestamp, prevTS); err != nil {
				return err
			}
			if err := handler(ctx, rec); err != nil {
				return err
			}
			*offset = rec.Offset + 1
			continue
		}
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			return err
		}

		// the writer finishes a segment before creating the next one, so one
		// more pass after a newer segment shows up sees everything
		newer, err := c.hasNewer(seg.base)
		if err != nil {
			return err
		}
		switch {
		case newer && finalPass:
			return nil
		case newer:
			finalPass = true
		case !c.opts.Follow:
			return nil
		default:
			if err := sleep(ctx, c.opts.Clock, c.opts.PollInterval); err != nil {
				return err
			}
		}
		if _, err := file.Seek(reader.Pos(), io.SeekStart); err != nil {
			return err
		}
		reader.Reset(file, reader.Pos())
	}
}

func (c *Consumer) pace(ctx context.Context, current int64, prevTS *int64) error {
	if c.opts.Speed <= 0 || current <= 0 {
		return nil
	}
	if *prevTS > 0 {
		if delta := current - *prevTS; delta > 0 {
			d := time.Duration(float64(delta) * float64(time.Millisecond) / c.opts.Speed)
			if err := sleep(ctx, c.opts.Clock, d); err != nil {
				return err
			}
		}
	}
	*prevTS = current
	return nil
}

func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
