package transform

import (
	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/candle"
)

/*
OKX mark-price candle push:

	{
	    "arg": {
	        "channel": "mark-price-candle1m",
	        "instId": "BTC-USD-SWAP"
	    },
	    "data": [[
	        "1712597400000",   // ts, open time in ms
	        "71338.4",         // o
	        "71338.8",         // h
	        "71338.1",         // l
	        "71338.8",         // c
	        "0"                // confirm
	    ]]
	}
*/

const okxMinFields = 5

// OkxMessage mirrors the candle push.
type OkxMessage struct {
	Data *[][]string `json:"data"`
}

// Candle maps row[0..4] onto ts, open, high, low, close. Mark-price candles
// carry no volume, so volume is 0.
func (m *OkxMessage) Candle() (candle.Candle, error) {
	var rows [][]string
	if m.Data != nil {
		rows = *m.Data
	}
	row, err := firstRow(rows, okxMinFields)
	if err != nil {
		return candle.Candle{}, err
	}

	return candle.Candle{
		Open:      ParseFloat(row[1]),
		High:      ParseFloat(row[2]),
		Low:       ParseFloat(row[3]),
		Close:     ParseFloat(row[4]),
		Volume:    0,
		Timestamp: ParseFloat(row[0]),
		Source:    candle.SourceOkx,
	}, nil
}

// OkxFormat decodes OKX candle pushes.
type OkxFormat struct{}

func (OkxFormat) Source() candle.Source {
	return candle.SourceOkx
}

func (OkxFormat) Decode(payload []byte) (Message, error) {
	var m OkxMessage
	if err := sonic.ConfigStd.Unmarshal(payload, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal okx payload")
	}
	if m.Data == nil {
		return nil, errMissingField("data")
	}
	return &m, nil
}
