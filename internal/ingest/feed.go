package ingest

import (
	"time"

	"github.com/yanun0323/errors"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

// Exchange names a supported market data source.
type Exchange string

const (
	Binance  Exchange = "binance"
	Coinbase Exchange = "coinbase"
	Okx      Exchange = "okx"
)

// Config describes one exchange connection.
type Config struct {
	URL          string
	Instrument   string
	Interval     string
	PollInterval time.Duration
}

// Feed is everything a Runner needs to stream one exchange.
type Feed struct {
	Exchange Exchange
	URL      string
	// Handshake frames are written once after every successful dial.
	Handshake [][]byte
	// Poll builds a request written every PollInterval; nil for push feeds.
	Poll         func(seq uint64) ([]byte, error)
	PollInterval time.Duration
	// IsControl reports frames that carry no market data.
	IsControl func(payload []byte) bool
}

// New builds the feed of the given exchange.
func New(exchange Exchange, cfg Config) (*Feed, error) {
	switch exchange {
	case Binance:
		return NewBinance(cfg)
	case Coinbase:
		return NewCoinbase(cfg)
	case Okx:
		return NewOkx(cfg)
	default:
		return nil, exception.ErrUnsupportedExchange
	}
}

func (f *Feed) validate() error {
	if f == nil {
		return exception.ErrNilInstance
	}
	if f.URL == "" {
		return exception.ErrEmptyFeedURL
	}
	if f.Poll != nil && f.PollInterval <= 0 {
		return errors.Errorf("%s: poll interval must be > 0", f.Exchange)
	}
	return nil
}

func (f *Feed) isControl(payload []byte) bool {
	return f.IsControl != nil && f.IsControl(payload)
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
