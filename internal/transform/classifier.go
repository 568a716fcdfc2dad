package transform

import (
	"strings"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

// Attempt records why one format rejected a payload.
type Attempt struct {
	Format string
	Err    error
}

// UnknownFormatError is returned when no format matches a payload.
type UnknownFormatError struct {
	Attempts []Attempt
}

func (e *UnknownFormatError) Error() string {
	var sb strings.Builder
	sb.WriteString(exception.ErrUnknownFormat.Error())
	for i, a := range e.Attempts {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		sb.WriteString(a.Format)
		sb.WriteString(": ")
		sb.WriteString(a.Err.Error())
	}
	return sb.String()
}

func (e *UnknownFormatError) Unwrap() error {
	return exception.ErrUnknownFormat
}

// Classifier tries formats in order and commits to the first one that decodes.
type Classifier struct {
	formats []Format
}

// DefaultFormats returns Binance, Coinbase, OKX in priority order.
func DefaultFormats(binance *BinanceFormat) []Format {
	if binance == nil {
		binance = NewBinanceFormat()
	}
	return []Format{binance, CoinbaseFormat{}, OkxFormat{}}
}

// NewClassifier keeps the given order. Nil entries are skipped.
func NewClassifier(formats ...Format) *Classifier {
	c := &Classifier{formats: make([]Format, 0, len(formats))}
	for _, f := range formats {
		if f != nil {
			c.formats = append(c.formats, f)
		}
	}
	return c
}

// Formats returns a copy of the configured order.
func (c *Classifier) Formats() []Format {
	out := make([]Format, len(c.formats))
	copy(out, c.formats)
	return out
}

// Classify decodes payload with the first matching format. Once a format
// matches, later formats are never tried, even if building the candle fails.
func (c *Classifier) Classify(payload []byte) (Message, Format, error) {
	attempts := make([]Attempt, 0, len(c.formats))
	for _, f := range c.formats {
		msg, err := f.Decode(payload)
		if err == nil {
			return msg, f, nil
		}
		attempts = append(attempts, Attempt{Format: f.Source().String(), Err: err})
	}
	return nil, nil, &UnknownFormatError{Attempts: attempts}
}
