package broker

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/yanun0323/errors"
)

const (
	defaultSegmentMaxBytes int64 = 64 << 20
	defaultQueueSize             = 4096
	defaultBufferSize            = 64 * 1024
	segmentSuffix                = ".log"
)

var defaultSegmentMaxDuration = time.Hour

// Config controls topic writer behavior.
type Config struct {
	// Dir is the topic directory, as returned by Admin.TopicDir.
	Dir                string
	SegmentMaxBytes    int64
	SegmentMaxDuration time.Duration
	QueueSize          int
	BufferSize         int
	FlushInterval      time.Duration
	SyncInterval       time.Duration
	CopyPayload        bool
	Clock              clock.Clock
}

// DefaultConfig returns a baseline configuration for a topic writer.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                dir,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("invalid broker config: Dir is empty")
	}
	if c.SegmentMaxBytes <= 0 {
		return errors.New("invalid broker config: SegmentMaxBytes must be > 0")
	}
	if c.QueueSize <= 0 {
		return errors.New("invalid broker config: QueueSize must be > 0")
	}
	if c.BufferSize <= 0 {
		return errors.New("invalid broker config: BufferSize must be > 0")
	}
	if c.FlushInterval < 0 {
		return errors.New("invalid broker config: FlushInterval must be >= 0")
	}
	if c.SyncInterval < 0 {
		return errors.New("invalid broker config: SyncInterval must be >= 0")
	}
	return nil
}
