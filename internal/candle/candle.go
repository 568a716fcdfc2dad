package candle

// Source names the exchange a candle was normalized from.
type Source string

const (
	SourceBinance  Source = "Binance"
	SourceCoinbase Source = "Coinbase"
	SourceOkx      Source = "Okx"
)

func (s Source) String() string {
	return string(s)
}

// Candle is the canonical OHLCV record emitted by the transform.
//
// Timestamp is epoch millis carried as a float to match the wire format.
// Symbol is empty when the originating payload cannot provide one.
type Candle struct {
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Timestamp float64 `json:"timestamp"`
	Source    Source  `json:"source"`
	Symbol    string  `json:"symbol,omitempty"`
}

// Key returns the outbound record key.
func (c Candle) Key() []byte {
	return []byte(c.Source)
}
