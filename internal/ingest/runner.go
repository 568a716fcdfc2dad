package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

// Publisher receives every data frame read from a feed. The payload is not
// reused by the runner. A publisher error stops the runner.
type Publisher func(ctx context.Context, payload []byte) error

// RetryConfig controls reconnects.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// MaxRetries bounds consecutive failed sessions; 0 retries forever.
	MaxRetries uint64
	Jitter     bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Jitter:       true,
	}
}

// Runner keeps one feed connected and forwards its frames.
type Runner struct {
	feed   *Feed
	dialer *websocket.Dialer
	clock  clock.Clock
	retry  RetryConfig

	sessions atomic.Uint64
	frames   atomic.Uint64
}

type RunnerOption func(*Runner)

func WithDialer(d *websocket.Dialer) RunnerOption {
	return func(r *Runner) {
		if d != nil {
			r.dialer = d
		}
	}
}

func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

func WithRetry(cfg RetryConfig) RunnerOption {
	return func(r *Runner) { r.retry = cfg }
}

func NewRunner(feed *Feed, opts ...RunnerOption) (*Runner, error) {
	if err := feed.validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		feed: feed,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: 10 * time.Second,
		},
		clock: clock.New(),
		retry: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Sessions returns how many connections were established.
func (r *Runner) Sessions() uint64 {
	return r.sessions.Load()
}

// Frames returns how many data frames were published.
func (r *Runner) Frames() uint64 {
	return r.frames.Load()
}

// Run streams the feed until ctx is done, the publisher fails, or retries
// are exhausted. It returns ctx.Err() after a cancellation.
func (r *Runner) Run(ctx context.Context, publish Publisher) error {
	if publish == nil {
		return exception.ErrNilPublisher
	}

	b := r.newBackOff()
	operation := func() error {
		healthy, err := r.session(ctx, publish)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if healthy {
			b.Reset()
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logs.Errorf("%s: session ended: %+v, reconnecting in %s", r.feed.Exchange, err, wait)
	}

	return backoff.RetryNotifyWithTimer(operation, backoff.WithContext(b, ctx), notify, &clockTimer{clock: r.clock})
}

func (r *Runner) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.retry.InitialDelay
	exp.MaxInterval = r.retry.MaxDelay
	exp.MaxElapsedTime = 0
	exp.Clock = r.clock
	if !r.retry.Jitter {
		exp.RandomizationFactor = 0
	}
	exp.Reset()
	if r.retry.MaxRetries > 0 {
		return backoff.WithMaxRetries(exp, r.retry.MaxRetries)
	}
	return exp
}

// session runs one connection. healthy reports whether any data frame was
// published before it ended.
func (r *Runner) session(ctx context.Context, publish Publisher) (healthy bool, err error) {
	conn, _, err := r.dialer.DialContext(ctx, r.feed.URL, nil)
	if err != nil {
		return false, errors.Wrap(err, "dial").With("url", r.feed.URL)
	}
	r.sessions.Add(1)
	logs.Infof("%s: connected to %s", r.feed.Exchange, r.feed.URL)

	sessionCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = conn.Close()
		wg.Wait()
	}()

	var writeMu sync.Mutex
	write := func(payload []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, payload)
	}

	for _, frame := range r.feed.Handshake {
		if err := write(frame); err != nil {
			return false, errors.Wrap(err, "write subscribe payload").With("payload", string(frame))
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-sessionCtx.Done()
		writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		writeMu.Unlock()
		_ = conn.Close()
	}()

	if r.feed.Poll != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.poll(sessionCtx, write); err != nil {
				logs.Errorf("%s: poll stopped: %+v", r.feed.Exchange, err)
				cancel()
			}
		}()
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return healthy, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return healthy, exception.ErrFeedClosed
			}
			return healthy, errors.Wrap(err, "read message")
		}
		if r.feed.isControl(payload) {
			continue
		}
		if err := publish(ctx, payload); err != nil {
			return healthy, backoff.Permanent(errors.Wrap(err, "publish"))
		}
		r.frames.Add(1)
		healthy = true
	}
}

func (r *Runner) poll(ctx context.Context, write func([]byte) error) error {
	ticker := r.clock.Ticker(r.feed.PollInterval)
	defer ticker.Stop()

	var seq uint64
	for {
		seq++
		req, err := r.feed.Poll(seq)
		if err != nil {
			return errors.Wrap(err, "build poll request")
		}
		if err := write(req); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "write poll request")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// clockTimer drives backoff waits from the injected clock.
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.Timer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
