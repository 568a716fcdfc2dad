package broker

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxValueSize    int
}

// Reader decodes topic records sequentially.
type Reader struct {
	r         *bufio.Reader
	opts      ReaderOptions
	headerBuf []byte
	body      []byte
	pos       int64
}

// NewReader wraps an io.Reader with record decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:         bufio.NewReader(r),
		opts:      opts,
		headerBuf: make([]byte, recordHeaderSize),
	}
}

// Reset discards buffered data and continues from r at byte position pos.
func (r *Reader) Reset(src io.Reader, pos int64) {
	r.r.Reset(src)
	r.pos = pos
}

// Pos returns the byte position just after the last complete record.
func (r *Reader) Pos() int64 {
	return r.pos
}

// Next returns the next record.
// Key and Value are only valid until the next call to Next.
// A record cut short by the end of input returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (Record, error) {
	n, err := io.ReadFull(r.r, r.headerBuf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return Record{}, io.EOF
		}
		return Record{}, shortRead(err)
	}

	h, err := decodeHeader(r.headerBuf)
	if err != nil {
		return Record{}, err
	}
	if r.opts.MaxValueSize > 0 && h.valueLen > uint32(r.opts.MaxValueSize) {
		return Record{}, exception.ErrRecordTooLarge
	}

	bodyLen := h.keyLen + int(h.valueLen) + recordChecksumSize
	if cap(r.body) < bodyLen {
		r.body = make([]byte, bodyLen)
	}
	r.body = r.body[:bodyLen]
	if _, err := io.ReadFull(r.r, r.body); err != nil {
		return Record{}, shortRead(err)
	}

	key := r.body[:h.keyLen]
	value := r.body[h.keyLen : h.keyLen+int(h.valueLen)]
	if !r.opts.DisableChecksum {
		expected := binary.LittleEndian.Uint32(r.body[bodyLen-recordChecksumSize:])
		if checksum(r.headerBuf, key, value) != expected {
			return Record{}, exception.ErrChecksumMismatch
		}
	}

	r.pos += int64(recordHeaderSize + bodyLen)
	return Record{
		Offset:    h.offset,
		Timestamp: h.timestamp,
		Key:       key,
		Value:     value,
	}, nil
}

func shortRead(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
