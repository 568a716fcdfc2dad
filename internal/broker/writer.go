package broker

import (
	"bufio"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

// Writer appends records to a topic from a buffered queue.
//
// Offsets are assigned by the writer loop in queue order and continue from
// the last record already on disk.
type Writer struct {
	cfg Config
	ch   chan appendRequest
	done chan struct{}
	wg   sync.WaitGroup
	err atomic.Value
	mu  sync.RWMutex

	nextOffset uint64
	started    uint32
	closed     bool

	// newest existing segment, appended to before rotating
	resume     *segmentFile
	resumeSize int64
}

// NewWriter creates a topic writer and recovers the next offset from disk.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	w := &Writer{
		cfg:  cfg,
		ch:   make(chan appendRequest, cfg.QueueSize),
		done: make(chan struct{}),
	}
	if err := w.recover(); err != nil {
		return nil, errors.Wrap(err, "recover topic").With("dir", cfg.Dir)
	}
	return w, nil
}

func (w *Writer) recover() error {
	segments, err := listSegments(w.cfg.Dir)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return nil
	}
	last := segments[len(segments)-1]
	next, validLen, err := recoverSegment(last.path, last.base)
	if err != nil {
		return err
	}
	info, err := os.Stat(last.path)
	if err != nil {
		return err
	}
	if info.Size() != validLen {
		logs.Infof("broker: truncating torn tail of %s from %d to %d bytes", last.path, info.Size(), validLen)
		if err := os.Truncate(last.path, validLen); err != nil {
			return err
		}
	}
	w.nextOffset = next
	w.resume = &last
	w.resumeSize = validLen
	return nil
}

// NextOffset returns the offset the next written record will receive.
func (w *Writer) NextOffset() uint64 {
	return atomic.LoadUint64(&w.nextOffset)
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return exception.ErrWriterStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.done)
		w.run(ctx)
	}()
	return nil
}

// Close stops accepting records, drains the queue and flushes to disk.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// TryAppend enqueues a record without blocking.
func (w *Writer) TryAppend(key, value []byte) error {
	req, err := w.prepare(key, value)
	if err != nil {
		return err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return exception.ErrWriterClosed
	}
	select {
	case w.ch <- req:
		return nil
	default:
		return exception.ErrQueueFull
	}
}

// Append enqueues a record, waiting for queue space until ctx is done.
func (w *Writer) Append(ctx context.Context, key, value []byte) error {
	req, err := w.prepare(key, value)
	if err != nil {
		return err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return exception.ErrWriterClosed
	}
	select {
	case w.ch <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync returns once every record appended before the call is flushed and
// fsynced. After Close it reports the final writer error.
func (w *Writer) Sync(ctx context.Context) error {
	if atomic.LoadUint32(&w.started) == 0 {
		return exception.ErrWriterNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}

	req := appendRequest{synced: make(chan error, 1)}
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		<-w.done
		return w.Err()
	}
	select {
	case w.ch <- req:
	case <-w.done:
		w.mu.RUnlock()
		if err := w.Err(); err != nil {
			return err
		}
		return exception.ErrWriterClosed
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case err := <-req.synced:
		return err
	case <-w.done:
		// the loop drains the queue before exiting unless it failed
		select {
		case err := <-req.synced:
			return err
		default:
		}
		if err := w.Err(); err != nil {
			return err
		}
		return exception.ErrWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) prepare(key, value []byte) (appendRequest, error) {
	if atomic.LoadUint32(&w.started) == 0 {
		return appendRequest{}, exception.ErrWriterNotStarted
	}
	if err := w.Err(); err != nil {
		return appendRequest{}, err
	}
	if err := checkSize(len(key), len(value)); err != nil {
		return appendRequest{}, err
	}
	if w.cfg.CopyPayload {
		key = append([]byte(nil), key...)
		value = append([]byte(nil), value...)
	}
	return appendRequest{key: key, value: value}, nil
}

func (w *Writer) run(ctx context.Context) {
	var (
		seg         *segmentWriter
		headerBuf   = make([]byte, recordHeaderSize)
		checksumBuf [recordChecksumSize]byte
		flushC      <-chan time.Time
		syncC       <-chan time.Time
		flushTicker *clock.Ticker
		syncTicker  *clock.Ticker
	)

	if w.cfg.FlushInterval > 0 {
		flushTicker = w.cfg.Clock.Ticker(w.cfg.FlushInterval)
		flushC = flushTicker.C
	}
	if w.cfg.SyncInterval > 0 {
		syncTicker = w.cfg.Clock.Ticker(w.cfg.SyncInterval)
		syncC = syncTicker.C
	}

	defer func() {
		if flushTicker != nil {
			flushTicker.Stop()
		}
		if syncTicker != nil {
			syncTicker.Stop()
		}
		if err := closeSegment(seg); err != nil {
			w.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.drainNonBlocking(&seg, headerBuf, &checksumBuf)
			return
		case req, ok := <-w.ch:
			if !ok {
				return
			}
			if req.synced != nil {
				err := syncSegment(seg)
				req.synced <- err
				if err != nil {
					w.setErr(err)
					return
				}
				continue
			}
			if err := w.writeRecord(&seg, headerBuf, &checksumBuf, req); err != nil {
				w.setErr(err)
				return
			}
			// flush once the burst is written so followers see it
			if len(w.ch) == 0 {
				if err := flushSegment(seg); err != nil {
					w.setErr(err)
					return
				}
			}
		case <-flushC:
			if err := flushSegment(seg); err != nil {
				w.setErr(err)
				return
			}
		case <-syncC:
			if err := syncSegment(seg); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

func (w *Writer) drainNonBlocking(seg **segmentWriter, headerBuf []byte, checksumBuf *[recordChecksumSize]byte) {
	for {
		select {
		case req, ok := <-w.ch:
			if !ok {
				return
			}
			if req.synced != nil {
				req.synced <- syncSegment(*seg)
				continue
			}
			if err := w.writeRecord(seg, headerBuf, checksumBuf, req); err != nil {
				w.setErr(err)
				return
			}
		default:
			return
		}
	}
}

func (w *Writer) writeRecord(seg **segmentWriter, headerBuf []byte, checksumBuf *[recordChecksumSize]byte, req appendRequest) error {
	now := w.cfg.Clock.Now()
	size := recordSize(len(req.key), len(req.value))
	offset := atomic.LoadUint64(&w.nextOffset)

	if *seg == nil && w.resume != nil {
		opened, err := w.reopenSegment(now)
		if err != nil {
			return err
		}
		*seg = opened
	}
	if w.shouldRotate(*seg, now, size) {
		if err := closeSegment(*seg); err != nil {
			return err
		}
		*seg = nil
		opened, err := w.openSegment(offset, now)
		if err != nil {
			return err
		}
		*seg = opened
	}

	encodeHeader(headerBuf, offset, now.UnixMilli(), len(req.key), len(req.value))
	binary.LittleEndian.PutUint32(checksumBuf[:], checksum(headerBuf, req.key, req.value))

	for _, part := range [][]byte{headerBuf, req.key, req.value, checksumBuf[:]} {
		if len(part) == 0 {
			continue
		}
		if _, err := (*seg).buf.Write(part); err != nil {
			return err
		}
	}

	(*seg).size += size
	atomic.StoreUint64(&w.nextOffset, offset+1)
	return nil
}

func (w *Writer) shouldRotate(seg *segmentWriter, now time.Time, nextSize int64) bool {
	if seg == nil {
		return true
	}
	if seg.size == 0 {
		return false
	}
	if w.cfg.SegmentMaxBytes > 0 && seg.size+nextSize > w.cfg.SegmentMaxBytes {
		return true
	}
	if w.cfg.SegmentMaxDuration > 0 && now.Sub(seg.openedAt) >= w.cfg.SegmentMaxDuration {
		return true
	}
	return false
}

func (w *Writer) openSegment(base uint64, now time.Time) (*segmentWriter, error) {
	path := filepath.Join(w.cfg.Dir, segmentName(base))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open segment").With("path", path)
	}
	return &segmentWriter{
		file:     file,
		buf:      bufio.NewWriterSize(file, w.cfg.BufferSize),
		openedAt: now,
	}, nil
}

func (w *Writer) reopenSegment(now time.Time) (*segmentWriter, error) {
	resume := w.resume
	w.resume = nil
	file, err := os.OpenFile(resume.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "reopen segment").With("path", resume.path)
	}
	openedAt := now
	if info, err := file.Stat(); err == nil {
		openedAt = info.ModTime()
	}
	return &segmentWriter{
		file:     file,
		buf:      bufio.NewWriterSize(file, w.cfg.BufferSize),
		size:     w.resumeSize,
		openedAt: openedAt,
	}, nil
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	if w.err.Load() != nil {
		return
	}
	w.err.Store(err)
}

func flushSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	return seg.buf.Flush()
}

func syncSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	if err := seg.buf.Flush(); err != nil {
		return err
	}
	return seg.file.Sync()
}

func closeSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	if err := seg.buf.Flush(); err != nil {
		_ = seg.file.Close()
		return err
	}
	if err := seg.file.Sync(); err != nil {
		_ = seg.file.Close()
		return err
	}
	return seg.file.Close()
}

// appendRequest carries one record, or a sync barrier when synced is set.
type appendRequest struct {
	key    []byte
	value  []byte
	synced chan error
}

type segmentWriter struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}
