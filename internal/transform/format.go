package transform

import (
	"github.com/CallistoLabsNYC/rp-transform-study/internal/candle"
	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

// Format decodes one exchange payload shape.
//
// Decode succeeds when the payload carries the format's required fields with
// the expected JSON types. It says nothing about whether the values make sense.
type Format interface {
	Source() candle.Source
	Decode(payload []byte) (Message, error)
}

// Message is a decoded exchange payload that can build a candle.
// ErrMissingData is the only error Candle returns.
type Message interface {
	Candle() (candle.Candle, error)
}

// firstRow returns the first row when it holds at least min fields.
func firstRow[T any](rows [][]T, min int) ([]T, error) {
	if len(rows) == 0 || len(rows[0]) == 0 || len(rows[0]) < min {
		return nil, exception.ErrMissingData
	}
	return rows[0], nil
}
