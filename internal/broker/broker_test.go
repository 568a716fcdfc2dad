package broker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

func newTopic(t *testing.T, name string) (*Admin, string) {
	t.Helper()
	admin := NewAdmin(t.TempDir())
	require.NoError(t, admin.CreateTopics(name))
	dir, err := admin.TopicDir(name)
	require.NoError(t, err)
	return admin, dir
}

func writeRecords(t *testing.T, cfg Config, n int, start int) {
	t.Helper()
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	for i := start; i < start+n; i++ {
		require.NoError(t, w.Append(context.Background(), []byte("k"), []byte(fmt.Sprintf("value-%d", i))))
	}
	require.NoError(t, w.Close())
}

func readAll(t *testing.T, dir string, opts ConsumerOptions) []Record {
	t.Helper()
	var out []Record
	err := NewConsumer(dir, opts).Run(context.Background(), func(_ context.Context, rec Record) error {
		out = append(out, rec.Clone())
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestWriterConsumerRoundTrip(t *testing.T) {
	_, dir := newTopic(t, "crypto-raw")
	writeRecords(t, DefaultConfig(dir), 5, 0)

	records := readAll(t, dir, ConsumerOptions{})
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, uint64(i), rec.Offset)
		assert.Equal(t, []byte("k"), rec.Key)
		assert.Equal(t, fmt.Sprintf("value-%d", i), string(rec.Value))
		assert.NotZero(t, rec.Timestamp)
	}
}

func TestWriterResumesOffsets(t *testing.T) {
	_, dir := newTopic(t, "crypto-raw")
	writeRecords(t, DefaultConfig(dir), 3, 0)

	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), w.NextOffset())
	require.NoError(t, w.Close())

	writeRecords(t, DefaultConfig(dir), 2, 3)

	records := readAll(t, dir, ConsumerOptions{StartOffset: 3})
	require.Len(t, records, 2)
	assert.Equal(t, uint64(3), records[0].Offset)
	assert.Equal(t, "value-4", string(records[1].Value))
}

func TestWriterRotatesSegments(t *testing.T) {
	_, dir := newTopic(t, "crypto-raw")
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxBytes = 100
	writeRecords(t, cfg, 5, 0)

	segments, err := listSegments(dir)
	require.NoError(t, err)
	require.Len(t, segments, 5)
	for i, s := range segments {
		assert.Equal(t, uint64(i), s.base)
	}

	records := readAll(t, dir, ConsumerOptions{StartOffset: 2})
	require.Len(t, records, 3)
	assert.Equal(t, uint64(2), records[0].Offset)
	assert.Equal(t, uint64(4), records[2].Offset)
}

func TestWriterTruncatesTornTail(t *testing.T) {
	_, dir := newTopic(t, "crypto-raw")
	writeRecords(t, DefaultConfig(dir), 2, 0)

	segments, err := listSegments(dir)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	f, err := os.OpenFile(segments[0].path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("TOP1 partial"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	writeRecords(t, DefaultConfig(dir), 1, 2)

	records := readAll(t, dir, ConsumerOptions{})
	require.Len(t, records, 3)
	assert.Equal(t, uint64(2), records[2].Offset)
	assert.Equal(t, "value-2", string(records[2].Value))
}

func TestReaderDetectsCorruption(t *testing.T) {
	_, dir := newTopic(t, "crypto-raw")
	writeRecords(t, DefaultConfig(dir), 1, 0)

	segments, err := listSegments(dir)
	require.NoError(t, err)
	data, err := os.ReadFile(segments[0].path)
	require.NoError(t, err)
	data[recordHeaderSize+2] ^= 0xff
	require.NoError(t, os.WriteFile(segments[0].path, data, 0o644))

	err = NewConsumer(dir, ConsumerOptions{}).Run(context.Background(), func(context.Context, Record) error {
		return nil
	})
	require.ErrorIs(t, err, exception.ErrChecksumMismatch)
}

func TestWriterLifecycleErrors(t *testing.T) {
	_, dir := newTopic(t, "crypto-raw")
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)

	assert.ErrorIs(t, w.TryAppend(nil, []byte("x")), exception.ErrWriterNotStarted)
	require.NoError(t, w.Start(context.Background()))
	assert.ErrorIs(t, w.Start(context.Background()), exception.ErrWriterStarted)
	assert.ErrorIs(t, w.TryAppend(make([]byte, maxKeyLen+1), nil), exception.ErrRecordTooLarge)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.TryAppend(nil, []byte("x")), exception.ErrWriterClosed)
}

func TestConsumerFollow(t *testing.T) {
	_, dir := newTopic(t, "crypto-raw")
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Record, 8)
	var wg sync.WaitGroup
	var runErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer := NewConsumer(dir, ConsumerOptions{Follow: true, PollInterval: 5 * time.Millisecond})
		runErr = consumer.Run(ctx, func(_ context.Context, rec Record) error {
			got <- rec.Clone()
			return nil
		})
	}()

	for i := 0; i < 3; i++ {
		require.NoError(t, w.TryAppend([]byte("Okx"), []byte(fmt.Sprintf("%d", i))))
	}
	for i := 0; i < 3; i++ {
		select {
		case rec := <-got:
			assert.Equal(t, uint64(i), rec.Offset)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for record %d", i)
		}
	}

	cancel()
	wg.Wait()
	assert.ErrorIs(t, runErr, context.Canceled)
}

func TestConsumerHandlerError(t *testing.T) {
	_, dir := newTopic(t, "crypto-raw")
	writeRecords(t, DefaultConfig(dir), 3, 0)

	stop := fmt.Errorf("stop")
	calls := 0
	err := NewConsumer(dir, ConsumerOptions{}).Run(context.Background(), func(context.Context, Record) error {
		calls++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, NewConsumer(dir, ConsumerOptions{}).Run(context.Background(), nil), exception.ErrNilHandler)
}

func TestCheckpoint(t *testing.T) {
	admin, _ := newTopic(t, "crypto-raw")
	cp, err := admin.Checkpoint("crypto-raw", "candle-transform")
	require.NoError(t, err)

	_, ok, err := cp.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cp.Commit(42))
	offset, ok, err := cp.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), offset)

	_, err = admin.Checkpoint("crypto-raw", "bad/group")
	assert.Error(t, err)
}

func TestAdminTopics(t *testing.T) {
	admin := NewAdmin(t.TempDir())
	require.NoError(t, admin.CreateTopics("crypto-raw", "crypto-candles"))
	require.NoError(t, admin.CreateTopics("crypto-raw"))

	topics, err := admin.ListTopics()
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "crypto-candles", topics[0].Name)
	assert.Equal(t, "crypto-raw", topics[1].Name)
	assert.Equal(t, 1, topics[1].Partitions)

	_, err = admin.TopicDir("missing")
	assert.ErrorIs(t, err, exception.ErrTopicNotFound)
	assert.ErrorIs(t, NewConsumer(filepath.Join(admin.Root, "missing"), ConsumerOptions{}).
		Run(context.Background(), func(context.Context, Record) error { return nil }), exception.ErrTopicNotFound)
	_, err = os.Stat(filepath.Join(admin.Root, "missing"))
	assert.True(t, os.IsNotExist(err))
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"crypto-raw", "page_view.dlq", "Q1"} {
		assert.NoError(t, ValidateName(name), name)
	}
	assert.ErrorIs(t, ValidateName(""), exception.ErrEmptyTopic)
	for _, name := range []string{".", "..", "a/b", "a b", string(make([]byte, maxTopicLength+1))} {
		assert.ErrorIs(t, ValidateName(name), exception.ErrInvalidTopic, name)
	}
}

func TestCommitterBatches(t *testing.T) {
	admin, _ := newTopic(t, "queue")
	cp, err := admin.Checkpoint("queue", "page-view-sink")
	require.NoError(t, err)

	c := NewCommitter(cp, 3)
	require.NoError(t, c.Mark(0))
	require.NoError(t, c.Mark(1))
	_, ok, err := cp.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Mark(2))
	offset, ok, err := cp.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), offset)

	require.NoError(t, c.Mark(3))
	require.NoError(t, c.Flush())
	offset, _, err = cp.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), offset)
	require.NoError(t, c.Flush())
}

func TestCommitterSyncsOutputsBeforeCommit(t *testing.T) {
	admin := NewAdmin(t.TempDir())
	require.NoError(t, admin.CreateTopics("crypto-raw", "crypto-candles"))
	cp, err := admin.Checkpoint("crypto-raw", "candle-transform")
	require.NoError(t, err)
	out, err := admin.NewWriter("crypto-candles", DefaultConfig(""))
	require.NoError(t, err)
	require.NoError(t, out.Start(context.Background()))
	defer out.Close()

	c := NewCommitter(cp, 100, out)
	for i := 0; i < 100; i++ {
		require.NoError(t, out.Append(context.Background(), []byte("Okx"), []byte(fmt.Sprintf("candle-%d", i))))
		require.NoError(t, c.Mark(uint64(i)))
	}

	offset, ok, err := cp.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(100), offset)

	dir, err := admin.TopicDir("crypto-candles")
	require.NoError(t, err)
	assert.Len(t, readAll(t, dir, ConsumerOptions{}), 100)
}

type failingBarrier struct{ err error }

func (b failingBarrier) Sync(context.Context) error { return b.err }

func TestCommitterKeepsOffsetWhenSyncFails(t *testing.T) {
	admin, _ := newTopic(t, "queue")
	cp, err := admin.Checkpoint("queue", "page-view-sink")
	require.NoError(t, err)

	disk := fmt.Errorf("disk full")
	c := NewCommitter(cp, 1, failingBarrier{err: disk})
	assert.ErrorIs(t, c.Mark(7), disk)

	_, ok, err := cp.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriterSync(t *testing.T) {
	_, dir := newTopic(t, "crypto-candles")
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	assert.ErrorIs(t, w.Sync(context.Background()), exception.ErrWriterNotStarted)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Sync(context.Background()))
	require.NoError(t, w.Append(context.Background(), nil, []byte("a")))
	require.NoError(t, w.Sync(context.Background()))
	assert.Len(t, readAll(t, dir, ConsumerOptions{}), 1)
	assert.Equal(t, uint64(1), w.NextOffset())

	require.NoError(t, w.Close())
	assert.NoError(t, w.Sync(context.Background()))
}
