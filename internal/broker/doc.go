/*
Broker stores topics as append-only segment logs on the local disk.

# Module
  - writer: assigns offsets and appends records, single goroutine per topic
  - consumer: reads from an offset, optionally tailing new segments
  - admin: creates and lists topics, opens consumer group checkpoints

# Source
  - raw exchange frames from loader
  - candles from transform
  - page views from produce
  - dead letters from pageview

# Produce
  - ordered records to any consumer group

# Sharded
  - topic (one partition each)
*/
package broker
