package exception

import "github.com/yanun0323/errors"

// Transform errors
var (
	// ErrUnknownFormat is returned when no registered payload format matches.
	ErrUnknownFormat = errors.New("transform: unknown payload format")
	// ErrMissingData is returned when a matched payload carries no usable row.
	ErrMissingData = errors.New("transform: missing data")
	// ErrCandleEncode is returned when a candle breaks the finite-value invariant.
	ErrCandleEncode = errors.New("transform: encode candle")
	ErrNilWriter    = errors.New("transform: nil record writer")
)
