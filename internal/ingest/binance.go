package ingest

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/scanner"
)

const (
	_binanceWsApiUrl     = "wss://testnet.binance.vision/ws-api/v3"
	_binanceSymbol       = "BNBBTC"
	_binanceInterval     = "1s"
	_binancePollInterval = time.Second
)

var _statusKey = []byte(`"status"`)

type BinanceKlinesRequest struct {
	ID     string              `json:"id"`
	Method string              `json:"method"`
	Params BinanceKlinesParams `json:"params"`
}

type BinanceKlinesParams struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Limit    int    `json:"limit"`
}

// NewBinance polls the latest kline over the ws-api. The stream is
// request/response, so there is no subscription handshake.
func NewBinance(cfg Config) (*Feed, error) {
	symbol := withDefault(cfg.Instrument, _binanceSymbol)
	interval := withDefault(cfg.Interval, _binanceInterval)
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = _binancePollInterval
	}

	f := &Feed{
		Exchange: Binance,
		URL:      withDefault(cfg.URL, _binanceWsApiUrl),
		Poll: func(seq uint64) ([]byte, error) {
			return sonic.ConfigStd.Marshal(BinanceKlinesRequest{
				ID:     fmt.Sprintf("klines-%d", seq),
				Method: "klines",
				Params: BinanceKlinesParams{Symbol: symbol, Interval: interval, Limit: 1},
			})
		},
		PollInterval: poll,
		IsControl:    isBinanceControl,
	}
	return f, f.validate()
}

// isBinanceControl skips ws-api error responses.
func isBinanceControl(payload []byte) bool {
	status, ok := scanner.ScanUintField(payload, _statusKey)
	if ok && status != 200 {
		logs.Errorf("binance: request failed with status %d: %s", status, payload)
		return true
	}
	return false
}
