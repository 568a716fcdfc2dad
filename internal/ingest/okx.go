package ingest

import (
	"bytes"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/scanner"
)

const (
	_okxWsBusinessUrl = "wss://ws.okx.com:8443/ws/v5/business"
	_okxInstrumentID  = "BTC-USD-SWAP"
	_okxChannel       = "mark-price-candle1m"
)

var (
	_eventKey = []byte(`"event"`)
	_pong     = []byte("pong")
)

type OkxSubscribeRequest struct {
	Op   string   `json:"op"`
	Args []OkxArg `json:"args"`
}

type OkxArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// NewOkx subscribes to the one minute mark-price candle of one instrument.
// Interval selects another candle channel, e.g. "mark-price-candle5m".
func NewOkx(cfg Config) (*Feed, error) {
	sub, err := sonic.ConfigStd.Marshal(OkxSubscribeRequest{
		Op: "subscribe",
		Args: []OkxArg{
			{Channel: withDefault(cfg.Interval, _okxChannel), InstID: withDefault(cfg.Instrument, _okxInstrumentID)},
		},
	})
	if err != nil {
		return nil, err
	}

	f := &Feed{
		Exchange:  Okx,
		URL:       withDefault(cfg.URL, _okxWsBusinessUrl),
		Handshake: [][]byte{sub},
		IsControl: isOkxControl,
	}
	return f, f.validate()
}

// isOkxControl skips subscribe acks, errors and keepalive replies.
func isOkxControl(payload []byte) bool {
	if scanner.IsBareWord(payload, _pong) {
		return true
	}
	event, ok := scanner.ScanStringField(payload, _eventKey)
	if !ok {
		return false
	}
	if bytes.Equal(event, []byte("error")) {
		logs.Errorf("okx: error frame: %s", payload)
	}
	return true
}
