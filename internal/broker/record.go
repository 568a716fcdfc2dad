package broker

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 40
	recordChecksumSize        = 4

	maxKeyLen   = int(^uint16(0))
	maxValueLen = uint64(^uint32(0))
)

var (
	recordMagic = [4]byte{'T', 'O', 'P', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

// Record is one entry of a topic log.
type Record struct {
	Offset    uint64
	Timestamp int64 // epoch millis at append time
	Key       []byte
	Value     []byte
}

// Clone returns a copy that does not alias reader buffers.
func (r Record) Clone() Record {
	out := r
	out.Key = append([]byte(nil), r.Key...)
	out.Value = append([]byte(nil), r.Value...)
	return out
}

func recordSize(keyLen, valueLen int) int64 {
	return int64(recordHeaderSize + keyLen + valueLen + recordChecksumSize)
}

func checkSize(keyLen, valueLen int) error {
	if keyLen > maxKeyLen || uint64(valueLen) > maxValueLen {
		return exception.ErrRecordTooLarge
	}
	return nil
}

// Layout, little endian:
//
//	[0:4]   magic
//	[4:6]   version
//	[6:8]   header size
//	[8:10]  flags
//	[10:12] key length
//	[12:16] value length
//	[16:24] offset
//	[24:32] timestamp
//	[32:40] reserved
func encodeHeader(dst []byte, offset uint64, timestamp int64, keyLen, valueLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint16(dst[8:10], 0)
	binary.LittleEndian.PutUint16(dst[10:12], uint16(keyLen))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(valueLen))
	binary.LittleEndian.PutUint64(dst[16:24], offset)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(timestamp))
	binary.LittleEndian.PutUint64(dst[32:40], 0)
}

type recordHeader struct {
	offset    uint64
	timestamp int64
	keyLen    int
	valueLen  uint32
}

func decodeHeader(src []byte) (recordHeader, error) {
	if len(src) < recordHeaderSize {
		return recordHeader{}, exception.ErrInvalidHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return recordHeader{}, exception.ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return recordHeader{}, exception.ErrUnsupportedFormat
	}
	if size := binary.LittleEndian.Uint16(src[6:8]); size != recordHeaderSize {
		return recordHeader{}, exception.ErrInvalidHeaderSize
	}
	return recordHeader{
		keyLen:    int(binary.LittleEndian.Uint16(src[10:12])),
		valueLen:  binary.LittleEndian.Uint32(src[12:16]),
		offset:    binary.LittleEndian.Uint64(src[16:24]),
		timestamp: int64(binary.LittleEndian.Uint64(src[24:32])),
	}, nil
}

func checksum(header, key, value []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	crc = crc32.Update(crc, crcTable, key)
	return crc32.Update(crc, crcTable, value)
}
