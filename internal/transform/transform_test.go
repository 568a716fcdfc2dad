package transform

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/candle"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/obs"
	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

type recordSink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (s *recordSink) WriteRecord(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

type dropLog struct {
	mu      sync.Mutex
	reasons []obs.DropReason
	errs    []error
}

func (d *dropLog) Dropped(reason obs.DropReason, _ []byte, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
	d.errs = append(d.errs, err)
}

func loadSample(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func newTestTransformer(opts ...Option) (*Transformer, *dropLog, *obs.Metrics) {
	drops := &dropLog{}
	metrics := obs.NewMetrics()
	opts = append([]Option{WithDiagnostics(drops), WithMetrics(metrics)}, opts...)
	return New(opts...), drops, metrics
}

func TestConvertSamples(t *testing.T) {
	tr, _, _ := newTestTransformer()

	cases := []struct {
		file string
		want candle.Candle
	}{
		{
			file: "binance_klines.json",
			want: candle.Candle{
				Open: 0.01086, High: 0.010866, Low: 0.010836, Close: 0.010838,
				Volume: 2290.538, Timestamp: 1655971200000,
				Source: candle.SourceBinance, Symbol: DefaultBinanceSymbol,
			},
		},
		{
			file: "coinbase_ticker.json",
			want: candle.Candle{
				Open: 3395.8, High: 3671.07, Low: 3369.06, Close: 0,
				Volume: 94855.97317284, Timestamp: 3659.37,
				Source: candle.SourceCoinbase,
			},
		},
		{
			file: "okx_candle.json",
			want: candle.Candle{
				Open: 71338.4, High: 71338.8, Low: 71338.1, Close: 71338.8,
				Volume: 0, Timestamp: 1712597400000,
				Source: candle.SourceOkx,
			},
		},
	}

	for _, c := range cases {
		t.Run(c.file, func(t *testing.T) {
			got, err := tr.Convert(loadSample(t, c.file))
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestTransformWritesOneRecord(t *testing.T) {
	tr, drops, metrics := newTestTransformer()
	sink := &recordSink{}

	require.NoError(t, tr.Transform(loadSample(t, "okx_candle.json"), sink))
	require.Len(t, sink.records, 1)
	assert.Equal(t, []byte("Okx"), sink.records[0].Key)
	assert.Equal(t,
		`{"open":71338.4,"high":71338.8,"low":71338.1,"close":71338.8,"volume":0.0,"timestamp":1712597400000.0,"source":"Okx"}`,
		string(sink.records[0].Value))
	assert.Empty(t, drops.reasons)
	assert.Equal(t, uint64(1), metrics.Snapshot().Accepted["Okx"])
}

func TestTransformBinanceNumericAndTextRows(t *testing.T) {
	tr, _, _ := newTestTransformer()
	text := []byte(`{"result":[["1655971200000","1.5","2.5","0.5","2","10"]]}`)
	numeric := []byte(`{"result":[[1655971200000,1.5,2.5,0.5,2,10]]}`)

	a, err := tr.Convert(text)
	require.NoError(t, err)
	b, err := tr.Convert(numeric)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1655971200000.0, a.Timestamp)
}

func TestTransformUnparseableFieldsBecomeZero(t *testing.T) {
	tr, _, _ := newTestTransformer()
	got, err := tr.Convert([]byte(`{"data":[["ts","abc","1.0","","2.0"]]}`))
	require.NoError(t, err)
	assert.Equal(t, candle.Candle{High: 1, Close: 2, Source: candle.SourceOkx}, got)
}

func TestTransformHugeExponentIsFast(t *testing.T) {
	tr, _, _ := newTestTransformer()
	start := time.Now()
	got, err := tr.Convert([]byte(`{"data":[["1","1e-99999999","1","1","1"]]}`))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, candle.Candle{Timestamp: 1, High: 1, Low: 1, Close: 1, Source: candle.SourceOkx}, got)
}

func TestTransformDrops(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		reason  obs.DropReason
	}{
		{"binance empty outer", `{"result":[]}`, obs.DropMissingData},
		{"binance empty inner", `{"result":[[]]}`, obs.DropMissingData},
		{"binance short row", `{"result":[[1,"1","2","3","4"]]}`, obs.DropMissingData},
		{"okx empty outer", `{"data":[]}`, obs.DropMissingData},
		{"okx empty inner", `{"data":[[]]}`, obs.DropMissingData},
		{"okx short row", `{"data":[["1","2","3","4"]]}`, obs.DropMissingData},
		{"unrelated object", `{"hello":"world"}`, obs.DropUnknownFormat},
		{"array", `[1,2,3]`, obs.DropUnknownFormat},
		{"null", `null`, obs.DropUnknownFormat},
		{"not json", `not json at all`, obs.DropUnknownFormat},
		{"empty", ``, obs.DropUnknownFormat},
		{"coinbase numeric price", `{"price":1,"open_24h":"1","volume_24h":"1","low_24h":"1","high_24h":"1"}`, obs.DropUnknownFormat},
		{"coinbase missing high", `{"price":"1","open_24h":"1","volume_24h":"1","low_24h":"1"}`, obs.DropUnknownFormat},
		{"okx numeric row", `{"data":[[1,2,3,4,5]]}`, obs.DropUnknownFormat},
		{"binance null result", `{"result":null}`, obs.DropUnknownFormat},
		{"binance null cell", `{"result":[[null,"1","2","3","4","5"]]}`, obs.DropUnknownFormat},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr, drops, metrics := newTestTransformer()
			sink := &recordSink{}

			require.NotPanics(t, func() {
				require.NoError(t, tr.Transform([]byte(c.payload), sink))
			})
			assert.Empty(t, sink.records)
			require.Equal(t, []obs.DropReason{c.reason}, drops.reasons)
			assert.Equal(t, uint64(1), metrics.Snapshot().Drops[c.reason])
		})
	}
}

func TestUnknownFormatCarriesAttempts(t *testing.T) {
	tr, _, _ := newTestTransformer()
	_, err := tr.Convert([]byte(`{"hello":"world"}`))
	require.Error(t, err)
	require.ErrorIs(t, err, exception.ErrUnknownFormat)

	var unknown *UnknownFormatError
	require.True(t, errors.As(err, &unknown))
	require.Len(t, unknown.Attempts, 3)
	assert.Equal(t, "Binance", unknown.Attempts[0].Format)
	assert.Equal(t, "Coinbase", unknown.Attempts[1].Format)
	assert.Equal(t, "Okx", unknown.Attempts[2].Format)
	assert.Contains(t, err.Error(), `required field "price" is missing`)
}

func TestTransformIdempotent(t *testing.T) {
	tr, _, _ := newTestTransformer()
	for _, file := range []string{"binance_klines.json", "coinbase_ticker.json", "okx_candle.json"} {
		payload := loadSample(t, file)
		first, second := &recordSink{}, &recordSink{}
		require.NoError(t, tr.Transform(payload, first))
		require.NoError(t, tr.Transform(payload, second))
		assert.Equal(t, first.records, second.records, file)
	}
}

func TestClassifierPriority(t *testing.T) {
	// satisfies both the Binance and the Coinbase shape
	both := []byte(`{"result":[[1,"1","2","3","4","5"]],"price":"9","open_24h":"9","volume_24h":"9","low_24h":"9","high_24h":"9"}`)

	tr, _, _ := newTestTransformer()
	for i := 0; i < 10; i++ {
		got, err := tr.Convert(both)
		require.NoError(t, err)
		assert.Equal(t, candle.SourceBinance, got.Source)
	}

	reordered, _, _ := newTestTransformer(WithFormats(CoinbaseFormat{}, NewBinanceFormat(), OkxFormat{}))
	got, err := reordered.Convert(both)
	require.NoError(t, err)
	assert.Equal(t, candle.SourceCoinbase, got.Source)
}

func TestClassifierNoFallThroughAfterCommit(t *testing.T) {
	// Binance matches structurally but has no rows; the valid OKX part is never tried.
	payload := []byte(`{"result":[],"data":[["1","2","3","4","5"]]}`)

	tr, drops, _ := newTestTransformer()
	sink := &recordSink{}
	require.NoError(t, tr.Transform(payload, sink))
	assert.Empty(t, sink.records)
	require.Len(t, drops.errs, 1)
	assert.ErrorIs(t, drops.errs[0], exception.ErrMissingData)
}

func TestBinanceObservedTimestamp(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1712597400123))

	tr, _, _ := newTestTransformer(
		WithClock(mock),
		WithBinanceTimestamp(TimestampObserved),
		WithBinanceSymbol("ETHBTC"),
	)
	got, err := tr.Convert(loadSample(t, "binance_klines.json"))
	require.NoError(t, err)
	assert.Equal(t, 1712597400123.0, got.Timestamp)
	assert.Equal(t, "ETHBTC", got.Symbol)

	mock.Add(time.Second)
	got, err = tr.Convert(loadSample(t, "binance_klines.json"))
	require.NoError(t, err)
	assert.Equal(t, 1712597401123.0, got.Timestamp)
}

func TestParseTimestampPolicy(t *testing.T) {
	p, err := ParseTimestampPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TimestampKline, p)

	p, err = ParseTimestampPolicy("observed")
	require.NoError(t, err)
	assert.Equal(t, TimestampObserved, p)
	assert.Equal(t, "observed", p.String())

	_, err = ParseTimestampPolicy("exchange")
	assert.Error(t, err)
}

func TestTransformWriterFailure(t *testing.T) {
	tr, drops, metrics := newTestTransformer()
	boom := errors.New("broker unavailable")

	err := tr.Transform(loadSample(t, "okx_candle.json"), &recordSink{err: boom})
	require.Error(t, err)
	assert.Empty(t, drops.reasons)
	assert.Equal(t, uint64(1), metrics.Snapshot().WriteFailures)
}

func TestTransformNilWriter(t *testing.T) {
	tr, _, _ := newTestTransformer()
	assert.ErrorIs(t, tr.Transform([]byte(`{}`), nil), exception.ErrNilWriter)
}

func TestTransformConcurrent(t *testing.T) {
	tr, drops, metrics := newTestTransformer()
	sink := &recordSink{}
	payloads := [][]byte{
		loadSample(t, "binance_klines.json"),
		loadSample(t, "coinbase_ticker.json"),
		loadSample(t, "okx_candle.json"),
		[]byte(`{"nope":true}`),
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(p []byte) {
			defer wg.Done()
			_ = tr.Transform(p, RecordWriterFunc(sink.WriteRecord))
		}(payloads[i%len(payloads)])
	}
	wg.Wait()

	assert.Len(t, sink.records, 30)
	assert.Len(t, drops.reasons, 10)
	snap := metrics.Snapshot()
	assert.Equal(t, uint64(10), snap.Accepted["Binance"])
	assert.Equal(t, uint64(10), snap.Accepted["Coinbase"])
	assert.Equal(t, uint64(10), snap.Accepted["Okx"])
}
