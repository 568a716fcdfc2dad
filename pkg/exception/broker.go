package exception

import "github.com/yanun0323/errors"

// Broker errors
var (
	ErrEmptyTopic        = errors.New("broker: empty topic name")
	ErrInvalidTopic      = errors.New("broker: invalid topic name")
	ErrTopicNotFound     = errors.New("broker: topic not found")
	ErrQueueFull         = errors.New("broker: queue full")
	ErrWriterClosed      = errors.New("broker: writer closed")
	ErrWriterNotStarted  = errors.New("broker: writer not started")
	ErrWriterStarted     = errors.New("broker: writer already started")
	ErrRecordTooLarge    = errors.New("broker: record too large")
	ErrChecksumMismatch  = errors.New("broker: checksum mismatch")
	ErrInvalidMagic      = errors.New("broker: invalid magic")
	ErrUnsupportedFormat = errors.New("broker: unsupported record version")
	ErrInvalidHeaderSize = errors.New("broker: invalid header size")
	ErrNilHandler        = errors.New("broker: nil handler")
)
