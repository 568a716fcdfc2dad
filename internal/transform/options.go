package transform

import (
	"github.com/benbjohnson/clock"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/obs"
)

type options struct {
	policy      TimestampPolicy
	symbol      string
	clock       clock.Clock
	diagnostics Diagnostics
	metrics     *obs.Metrics
	formats     []Format
}

// Option configures a Transformer.
type Option func(*options)

// WithBinanceTimestamp selects the Binance timestamp source.
func WithBinanceTimestamp(p TimestampPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithBinanceSymbol overrides the symbol stamped on Binance candles.
func WithBinanceSymbol(symbol string) Option {
	return func(o *options) {
		if symbol != "" {
			o.symbol = symbol
		}
	}
}

// WithClock sets the clock used by TimestampObserved.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithDiagnostics(d Diagnostics) Option {
	return func(o *options) {
		if d != nil {
			o.diagnostics = d
		}
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithFormats replaces the classifier order. The Binance options are ignored
// when this is set.
func WithFormats(formats ...Format) Option {
	return func(o *options) { o.formats = formats }
}
