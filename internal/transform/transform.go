package transform

import (
	"errors"

	"github.com/benbjohnson/clock"
	yerrors "github.com/yanun0323/errors"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/candle"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/obs"
	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

// Record is one output record.
type Record struct {
	Key   []byte
	Value []byte
}

// RecordWriter accepts transform output. The slices are owned by the callee.
type RecordWriter interface {
	WriteRecord(r Record) error
}

// RecordWriterFunc adapts a function to RecordWriter.
type RecordWriterFunc func(r Record) error

func (f RecordWriterFunc) WriteRecord(r Record) error {
	return f(r)
}

// Transformer turns raw exchange payloads into canonical candle records.
// It holds no per-message state and is safe for concurrent use.
type Transformer struct {
	classifier  *Classifier
	diagnostics Diagnostics
	metrics     *obs.Metrics
	clock       clock.Clock
}

func New(opts ...Option) *Transformer {
	o := options{
		policy:      TimestampKline,
		symbol:      DefaultBinanceSymbol,
		clock:       clock.New(),
		diagnostics: LogDiagnostics{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	formats := o.formats
	if len(formats) == 0 {
		formats = DefaultFormats(&BinanceFormat{
			Policy: o.policy,
			Clock:  o.clock,
			Symbol: o.symbol,
		})
	}

	return &Transformer{
		classifier:  NewClassifier(formats...),
		diagnostics: o.diagnostics,
		metrics:     o.metrics,
		clock:       o.clock,
	}
}

// Convert classifies the payload and builds its candle.
// Errors wrap exception.ErrUnknownFormat or exception.ErrMissingData.
func (t *Transformer) Convert(payload []byte) (candle.Candle, error) {
	msg, _, err := t.classifier.Classify(payload)
	if err != nil {
		return candle.Candle{}, err
	}
	return msg.Candle()
}

// Transform writes exactly one record for a recognised payload and nothing
// otherwise. Dropped messages return nil; encode and write failures are
// returned to the caller.
func (t *Transformer) Transform(value []byte, w RecordWriter) error {
	if w == nil {
		return exception.ErrNilWriter
	}

	start := t.clock.Now()
	c, err := t.Convert(value)
	t.metrics.ObserveConvert(t.clock.Since(start))
	if err != nil {
		reason := dropReason(err)
		t.metrics.IncDrop(reason)
		t.diagnostics.Dropped(reason, value, err)
		return nil
	}

	encoded, err := c.Encode(nil)
	if err != nil {
		return err
	}

	if err := w.WriteRecord(Record{Key: c.Key(), Value: encoded}); err != nil {
		t.metrics.IncWriteFailure()
		return yerrors.Wrap(err, "write candle record").With("source", c.Source)
	}
	t.metrics.IncAccepted(c.Source)
	return nil
}

func dropReason(err error) obs.DropReason {
	switch {
	case errors.Is(err, exception.ErrUnknownFormat):
		return obs.DropUnknownFormat
	case errors.Is(err, exception.ErrMissingData):
		return obs.DropMissingData
	default:
		return obs.DropUnknown
	}
}
