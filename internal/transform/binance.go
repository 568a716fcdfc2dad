package transform

import (
	"github.com/benbjohnson/clock"
	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/candle"
)

/*
Binance ws-api klines response:

	{
	  "id": "1dbbeb56-8eea-466a-8f6e-86bdcfa2fc0b",
	  "status": 200,
	  "result": [
	    [
	      1655971200000,      // kline open time
	      "0.01086000",       // open
	      "0.01086600",       // high
	      "0.01083600",       // low
	      "0.01083800",       // close
	      "2290.53800000",    // volume
	      1655974799999,      // kline close time
	      "24.85074442",      // quote asset volume
	      2283,               // number of trades
	      "1171.64000000",    // taker buy base asset volume
	      "12.71225884",      // taker buy quote asset volume
	      "0"                 // unused
	    ]
	  ],
	  "rateLimits": [...]
	}
*/

// DefaultBinanceSymbol is used because the klines response does not echo the symbol.
const DefaultBinanceSymbol = "BNBBTC"

const binanceMinFields = 6

// TimestampPolicy selects where a Binance candle takes its timestamp from.
type TimestampPolicy uint8

const (
	// TimestampKline uses the kline open time carried in the payload.
	TimestampKline TimestampPolicy = iota
	// TimestampObserved uses the wall clock at conversion time.
	TimestampObserved
)

// ParseTimestampPolicy maps a config value to a policy.
func ParseTimestampPolicy(s string) (TimestampPolicy, error) {
	switch s {
	case "", "kline":
		return TimestampKline, nil
	case "observed":
		return TimestampObserved, nil
	default:
		return TimestampKline, errors.Errorf("unknown timestamp policy: %s", s)
	}
}

func (p TimestampPolicy) String() string {
	if p == TimestampObserved {
		return "observed"
	}
	return "kline"
}

// BinanceMessage mirrors the klines response.
type BinanceMessage struct {
	Result *[][]Number `json:"result"`

	policy TimestampPolicy
	clock  clock.Clock
	symbol string
}

// Candle maps row[0..5] onto open time, open, high, low, close, volume.
func (m *BinanceMessage) Candle() (candle.Candle, error) {
	var rows [][]Number
	if m.Result != nil {
		rows = *m.Result
	}
	row, err := firstRow(rows, binanceMinFields)
	if err != nil {
		return candle.Candle{}, err
	}

	timestamp := row[0].Float64()
	if m.policy == TimestampObserved && m.clock != nil {
		timestamp = float64(m.clock.Now().UnixMilli())
	}

	return candle.Candle{
		Open:      row[1].Float64(),
		High:      row[2].Float64(),
		Low:       row[3].Float64(),
		Close:     row[4].Float64(),
		Volume:    row[5].Float64(),
		Timestamp: timestamp,
		Source:    candle.SourceBinance,
		Symbol:    m.symbol,
	}, nil
}

// BinanceFormat decodes Binance kline responses.
type BinanceFormat struct {
	Policy TimestampPolicy
	Clock  clock.Clock
	Symbol string
}

// NewBinanceFormat creates the format with the default symbol and kline timestamps.
func NewBinanceFormat() *BinanceFormat {
	return &BinanceFormat{
		Policy: TimestampKline,
		Clock:  clock.New(),
		Symbol: DefaultBinanceSymbol,
	}
}

func (f *BinanceFormat) Source() candle.Source {
	return candle.SourceBinance
}

func (f *BinanceFormat) Decode(payload []byte) (Message, error) {
	var m BinanceMessage
	if err := sonic.ConfigStd.Unmarshal(payload, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal binance payload")
	}
	if m.Result == nil {
		return nil, errMissingField("result")
	}
	m.policy = f.Policy
	m.clock = f.Clock
	m.symbol = f.Symbol
	return &m, nil
}

func errMissingField(name string) error {
	return errors.Errorf("required field %q is missing", name)
}
