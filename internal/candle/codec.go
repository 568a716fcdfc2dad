package candle

import (
	"math"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

const hexDigits = "0123456789abcdef"

// Encode appends the canonical JSON form of c to dst.
// Field order is fixed so equal candles always encode to equal bytes.
func (c Candle) Encode(dst []byte) ([]byte, error) {
	fields := [...]struct {
		name  string
		value float64
	}{
		{"open", c.Open},
		{"high", c.High},
		{"low", c.Low},
		{"close", c.Close},
		{"volume", c.Volume},
		{"timestamp", c.Timestamp},
	}

	dst = append(dst, '{')
	for i, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return nil, exception.ErrCandleEncode
		}
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '"')
		dst = append(dst, f.name...)
		dst = append(dst, '"', ':')
		dst = appendFloat(dst, f.value)
	}

	dst = append(dst, `,"source":`...)
	dst = appendString(dst, string(c.Source))
	if c.Symbol != "" {
		dst = append(dst, `,"symbol":`...)
		dst = appendString(dst, c.Symbol)
	}
	dst = append(dst, '}')
	return dst, nil
}

// Decode parses a candle previously produced by Encode.
func Decode(data []byte) (Candle, error) {
	var c Candle
	if err := sonic.ConfigStd.Unmarshal(data, &c); err != nil {
		return Candle{}, errors.Wrap(err, "unmarshal candle")
	}
	return c, nil
}

// appendFloat writes v as a JSON number that always reads as a float literal.
func appendFloat(dst []byte, v float64) []byte {
	start := len(dst)
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.AppendFloat(dst, v, 'e', -1, 64)
	}
	dst = strconv.AppendFloat(dst, v, 'f', -1, 64)
	for _, b := range dst[start:] {
		if b == '.' {
			return dst
		}
	}
	return append(dst, '.', '0')
}

func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '"' || b == '\\':
			dst = append(dst, '\\', b)
		case b == '\n':
			dst = append(dst, '\\', 'n')
		case b == '\r':
			dst = append(dst, '\\', 'r')
		case b == '\t':
			dst = append(dst, '\\', 't')
		case b < 0x20:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[b>>4], hexDigits[b&0xf])
		default:
			dst = append(dst, b)
		}
	}
	return append(dst, '"')
}
