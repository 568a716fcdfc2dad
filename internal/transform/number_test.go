package transform

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFloat(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"0.01086000", 0.01086},
		{"71338.4", 71338.4},
		{"-12.5", -12.5},
		{"1655971200000", 1655971200000},
		{"1e3", 1000},
		{"0", 0},
		{"", 0},
		{"abc", 0},
		{"12abc", 0},
		{" 1.5", 0},
		{"NaN", 0},
		{"inf", 0},
	}
	for _, c := range cases {
		if got := ParseFloat(c.in); got != c.want {
			t.Fatalf("ParseFloat(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseFloatOutOfRange(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1e-99999999", 0},
		{"-1e-2147483648", 0},
		{"1e99999999", 0},
		{"1e2147483647", 0},
		{"1e400", 0},
		{"1e-400", 0},
		{"1e308", 1e308},
		{"2.5e-300", 2.5e-300},
	}
	for _, c := range cases {
		start := time.Now()
		got := ParseFloat(c.in)
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Fatalf("ParseFloat(%q) took %s", c.in, elapsed)
		}
		if got != c.want {
			t.Fatalf("ParseFloat(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNumberCoercionSymmetry(t *testing.T) {
	values := []float64{0, 1.5, 0.01086, 2290.538, 1655971200000, -3.25}
	for _, v := range values {
		text := Text(sonicFloat(t, v))
		assert.Equal(t, Numeric(v).Float64(), text.Float64(), "value %v", v)
	}
}

func TestNumberUnmarshal(t *testing.T) {
	var row []Number
	require.NoError(t, sonic.ConfigStd.Unmarshal([]byte(`["1.25", 1.25, "x", -7]`), &row))
	require.Len(t, row, 4)
	assert.Equal(t, 1.25, row[0].Float64())
	assert.Equal(t, 1.25, row[1].Float64())
	assert.Equal(t, 0.0, row[2].Float64())
	assert.Equal(t, -7.0, row[3].Float64())

	for _, lit := range []string{`1e999`, `-1e999`, `1e-999`} {
		var n Number
		require.NoError(t, n.UnmarshalJSON([]byte(lit)), lit)
		assert.Equal(t, 0.0, n.Float64(), lit)
	}

	for _, bad := range []string{`[null]`, `[true]`, `[{}]`, `[[1]]`} {
		var r []Number
		assert.Error(t, sonic.ConfigStd.Unmarshal([]byte(bad), &r), bad)
	}
}

func sonicFloat(t *testing.T, v float64) string {
	t.Helper()
	b, err := sonic.ConfigStd.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
