package ingest

import (
	"bytes"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/scanner"
)

const (
	_coinbaseWsUrl     = "wss://ws-feed.exchange.coinbase.com"
	_coinbaseProductID = "ETH-USD"
)

var _typeKey = []byte(`"type"`)

type CoinbaseSubscribeRequest struct {
	Type       string            `json:"type"`
	ProductIDs []string          `json:"product_ids"`
	Channels   []CoinbaseChannel `json:"channels"`
}

type CoinbaseChannel struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

// NewCoinbase subscribes to the ticker channel of one product.
func NewCoinbase(cfg Config) (*Feed, error) {
	product := withDefault(cfg.Instrument, _coinbaseProductID)
	sub, err := sonic.ConfigStd.Marshal(CoinbaseSubscribeRequest{
		Type:       "subscribe",
		ProductIDs: []string{product},
		Channels: []CoinbaseChannel{
			{Name: "ticker", ProductIDs: []string{product}},
		},
	})
	if err != nil {
		return nil, err
	}

	f := &Feed{
		Exchange:  Coinbase,
		URL:       withDefault(cfg.URL, _coinbaseWsUrl),
		Handshake: [][]byte{sub},
		IsControl: isCoinbaseControl,
	}
	return f, f.validate()
}

func isCoinbaseControl(payload []byte) bool {
	typ, ok := scanner.ScanStringField(payload, _typeKey)
	if !ok {
		return false
	}
	switch {
	case bytes.Equal(typ, []byte("subscriptions")), bytes.Equal(typ, []byte("heartbeat")):
		return true
	case bytes.Equal(typ, []byte("error")):
		logs.Errorf("coinbase: error frame: %s", payload)
		return true
	default:
		return false
	}
}
