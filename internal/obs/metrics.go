package obs

import (
	"sync/atomic"
	"time"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/candle"
)

// DropReason classifies why an inbound record produced no output.
type DropReason uint8

const (
	DropUnknown DropReason = iota
	DropUnknownFormat
	DropMissingData
	DropNotPageView
)

const maxDropReason = int(DropNotPageView)

func (r DropReason) String() string {
	switch r {
	case DropUnknownFormat:
		return "unknown_format"
	case DropMissingData:
		return "missing_data"
	case DropNotPageView:
		return "not_page_view"
	default:
		return "unknown"
	}
}

var sources = [...]candle.Source{candle.SourceBinance, candle.SourceCoinbase, candle.SourceOkx}

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	accepted      [len(sources) + 1]uint64
	drops         [maxDropReason + 1]uint64
	stored        uint64
	writeFailures uint64
	queueDrops    uint64
	queueClosed   uint64

	convertLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Accepted       map[candle.Source]uint64
	Drops          map[DropReason]uint64
	Stored         uint64
	WriteFailures  uint64
	QueueDrops     uint64
	QueueClosed    uint64
	ConvertLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncAccepted counts a record that produced a candle.
func (m *Metrics) IncAccepted(source candle.Source) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.accepted[sourceIndex(source)], 1)
}

// IncDrop counts a record that was dropped.
func (m *Metrics) IncDrop(reason DropReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx < 0 || idx >= len(m.drops) {
		idx = int(DropUnknown)
	}
	atomic.AddUint64(&m.drops[idx], 1)
}

// IncStored counts a record persisted by a sink.
func (m *Metrics) IncStored() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.stored, 1)
}

// IncWriteFailure records a failed downstream write.
func (m *Metrics) IncWriteFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.writeFailures, 1)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObserveConvert measures classification plus conversion latency.
func (m *Metrics) ObserveConvert(d time.Duration) {
	if m == nil {
		return
	}
	m.convertLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	accepted := make(map[candle.Source]uint64)
	for i := range m.accepted {
		v := atomic.LoadUint64(&m.accepted[i])
		if v == 0 {
			continue
		}
		if i < len(sources) {
			accepted[sources[i]] = v
		} else {
			accepted[""] = v
		}
	}
	drops := make(map[DropReason]uint64)
	for i := range m.drops {
		if v := atomic.LoadUint64(&m.drops[i]); v > 0 {
			drops[DropReason(i)] = v
		}
	}
	return Snapshot{
		Accepted:       accepted,
		Drops:          drops,
		Stored:         atomic.LoadUint64(&m.stored),
		WriteFailures:  atomic.LoadUint64(&m.writeFailures),
		QueueDrops:     atomic.LoadUint64(&m.queueDrops),
		QueueClosed:    atomic.LoadUint64(&m.queueClosed),
		ConvertLatency: m.convertLatency.Snapshot(),
	}
}

func sourceIndex(source candle.Source) int {
	for i, s := range sources {
		if s == source {
			return i
		}
	}
	return len(sources)
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
