package transform

import (
	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/candle"
)

/*
Coinbase ticker channel:

	{
	    "type": "ticker",
	    "sequence": 58303904263,
	    "product_id": "ETH-USD",
	    "price": "3659.37",
	    "open_24h": "3395.8",
	    "volume_24h": "94855.97317284",
	    "low_24h": "3369.06",
	    "high_24h": "3671.07",
	    "volume_30d": "3689477.67843382",
	    "best_bid": "3659.36",
	    ...
	    "time": "2024-04-08T16:58:47.908116Z",
	    "trade_id": 512218036,
	    "last_size": "0.05642456"
	}
*/

// CoinbaseMessage mirrors the ticker fields the candle is built from.
type CoinbaseMessage struct {
	Price     *string `json:"price"`
	Open24h   *string `json:"open_24h"`
	Volume24h *string `json:"volume_24h"`
	Low24h    *string `json:"low_24h"`
	High24h   *string `json:"high_24h"`
}

// Candle maps the 24h ticker window. The ticker has no close, so close is 0,
// and the last trade price is carried in the timestamp field.
func (m *CoinbaseMessage) Candle() (candle.Candle, error) {
	return candle.Candle{
		Open:      ParseFloat(deref(m.Open24h)),
		High:      ParseFloat(deref(m.High24h)),
		Low:       ParseFloat(deref(m.Low24h)),
		Close:     0,
		Volume:    ParseFloat(deref(m.Volume24h)),
		Timestamp: ParseFloat(deref(m.Price)),
		Source:    candle.SourceCoinbase,
	}, nil
}

// CoinbaseFormat decodes Coinbase ticker messages.
type CoinbaseFormat struct{}

func (CoinbaseFormat) Source() candle.Source {
	return candle.SourceCoinbase
}

func (CoinbaseFormat) Decode(payload []byte) (Message, error) {
	var m CoinbaseMessage
	if err := sonic.ConfigStd.Unmarshal(payload, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal coinbase payload")
	}
	required := [...]struct {
		name  string
		value *string
	}{
		{"price", m.Price},
		{"open_24h", m.Open24h},
		{"volume_24h", m.Volume24h},
		{"low_24h", m.Low24h},
		{"high_24h", m.High24h},
	}
	for _, field := range required {
		if field.value == nil {
			return nil, errMissingField(field.name)
		}
	}
	return &m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
