package obs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/candle"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.IncAccepted(candle.SourceBinance)
	m.IncAccepted(candle.SourceBinance)
	m.IncAccepted(candle.SourceOkx)
	m.IncAccepted("Kraken")
	m.IncDrop(DropUnknownFormat)
	m.IncDrop(DropMissingData)
	m.IncDrop(DropReason(200))
	m.IncWriteFailure()
	m.IncQueueDrop()
	m.IncStored()

	s := m.Snapshot()
	assert.Equal(t, map[candle.Source]uint64{
		candle.SourceBinance: 2,
		candle.SourceOkx:     1,
		"":                   1,
	}, s.Accepted)
	assert.Equal(t, map[DropReason]uint64{
		DropUnknown:       1,
		DropUnknownFormat: 1,
		DropMissingData:   1,
	}, s.Drops)
	assert.EqualValues(t, 1, s.WriteFailures)
	assert.EqualValues(t, 1, s.QueueDrops)
	assert.EqualValues(t, 1, s.Stored)
	assert.EqualValues(t, 0, s.QueueClosed)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncAccepted(candle.SourceOkx)
	m.IncDrop(DropMissingData)
	m.ObserveConvert(time.Millisecond)
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestLatencyStatsConcurrent(t *testing.T) {
	var l LatencyStats
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(d time.Duration) {
			defer wg.Done()
			l.Observe(d)
		}(time.Duration(i) * time.Microsecond)
	}
	wg.Wait()
	l.Observe(-time.Second)

	s := l.Snapshot()
	assert.EqualValues(t, 100, s.Count)
	assert.Equal(t, time.Microsecond, s.Min)
	assert.Equal(t, 100*time.Microsecond, s.Max)
	assert.Equal(t, 50500*time.Nanosecond, s.Avg)
}
