package exception

import "github.com/yanun0323/errors"

// Ingest errors
var (
	ErrUnsupportedExchange = errors.New("ingest: unsupported exchange")
	ErrEmptyFeedURL        = errors.New("ingest: empty feed url")
	ErrNilPublisher        = errors.New("ingest: nil publisher")
	ErrFeedClosed          = errors.New("ingest: feed closed by remote")
)
