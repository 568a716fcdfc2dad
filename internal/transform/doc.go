/*
Transform normalizes exchange messages into candles.

# Module
  - classifier: tries Binance, Coinbase and OKX shapes in order, first match wins
  - formats: per exchange decoding and field mapping
  - transformer: encodes accepted candles and drops everything else

# Source
  - raw records from the crypto raw topic

# Produce
  - candle records keyed by source

# Sharded
  - none
*/
package transform
