package transform

import (
	"math"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

var errNotNumber = errors.New("value is neither a string nor a number")

// Number is a JSON scalar that arrives either as text or as a number.
// It never leaves the adapters; candles only carry plain floats.
type Number struct {
	text    string
	value   float64
	numeric bool
}

// Text builds the textual variant.
func Text(s string) Number {
	return Number{text: s}
}

// Numeric builds the numeric variant.
func Numeric(v float64) Number {
	return Number{value: v, numeric: true}
}

// UnmarshalJSON accepts a JSON string or a JSON number and rejects every
// other token, null included.
func (n *Number) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return errNotNumber
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := sonic.ConfigStd.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Text(s)
		return nil
	case c == '-' || (c >= '0' && c <= '9'):
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return errors.Wrap(err, "parse json number")
		}
		*n = Numeric(v)
		return nil
	default:
		return errNotNumber
	}
}

// Float64 coerces the value: numbers pass through, text is parsed and
// falls back to zero when it is not a finite decimal literal.
func (n Number) Float64() float64 {
	if n.numeric {
		return finite(n.value)
	}
	return ParseFloat(n.text)
}

// maxMagnitude bounds the decimal exponent handed to Float64, which
// allocates 10^|exponent|. float64 spans roughly 1e-324 to 1e308.
const maxMagnitude = 400

// ParseFloat parses a decimal literal, returning 0 on any failure.
// Literals beyond the float64 range also become 0.
func ParseFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsZero() {
		return 0
	}
	magnitude := int64(d.Exponent()) + int64(d.NumDigits())
	if magnitude < -maxMagnitude || magnitude > maxMagnitude {
		return 0
	}
	f, _ := d.Float64()
	return finite(f)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
