package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/broker"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/candle"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/ops"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/pageview"
)

func main() {
	configPath := flag.String("config", "", "JSON config file (default: built-in defaults)")
	topic := flag.String("topic", "", "Topic to replay (default: candles topic)")
	from := flag.Uint64("from", 0, "First offset to print")
	follow := flag.Bool("follow", false, "Keep tailing after the last record")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxValue := flag.Int("max-value", 0, "Max value size in bytes (0=unlimited)")
	decode := flag.Bool("decode", false, "Decode candle and page view values")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *topic == "" {
		*topic = cfg.Topics.Candles
	}

	consumer, err := broker.NewAdmin(cfg.BrokerDir).NewConsumer(*topic, broker.ConsumerOptions{
		StartOffset:     *from,
		Follow:          *follow,
		PollInterval:    cfg.PollInterval,
		Speed:           *speed,
		DisableChecksum: *noChecksum,
		MaxValueSize:    *maxValue,
	})
	if err != nil {
		log.Fatalf("consumer init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = consumer.Run(ctx, func(_ context.Context, rec broker.Record) error {
		ts := time.UnixMilli(rec.Timestamp).UTC().Format(time.RFC3339Nano)
		fmt.Printf("%06d ts=%s key=%q len=%d\n", rec.Offset, ts, rec.Key, len(rec.Value))
		if *decode {
			printDecoded(rec.Value)
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		log.Fatalf("replay failed: %v", err)
	}
}

func printDecoded(value []byte) {
	if view, err := pageview.DecodePageView(value); err == nil {
		fmt.Printf("  view page=%s user=%d created=%s\n", view.PageName, view.UserID, view.CreatedAt.Format(pageview.TimeLayout))
		return
	}
	if event, err := pageview.DecodePageEvent(value); err == nil {
		fmt.Printf("  event name=%s user=%d created=%s\n", event.EventName, event.UserID, event.CreatedAt.Format(pageview.TimeLayout))
		return
	}
	c, err := candle.Decode(value)
	if err != nil || c.Source == "" {
		fmt.Printf("  raw %s\n", value)
		return
	}
	fmt.Printf("  candle source=%s symbol=%s ts=%.0f o=%g h=%g l=%g c=%g v=%g\n",
		c.Source, c.Symbol, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume)
}
