package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/broker"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/bus"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/ingest"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/obs"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/ops"
	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("loader: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "JSON config file (default: built-in defaults)")
	exchangeFlag := flag.String("exchange", "", "exchange to stream: binance, coinbase or okx")
	flag.Parse()

	exchange := ingest.Exchange(strings.ToLower(strings.TrimSpace(*exchangeFlag)))
	if exchange == "" {
		return fmt.Errorf("%w: missing -exchange", exception.ErrInvalidArgument)
	}

	cfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}
	feed, err := ingest.New(exchange, cfg.Exchanges[exchange])
	if err != nil {
		return err
	}
	runner, err := ingest.NewRunner(feed)
	if err != nil {
		return err
	}

	admin := broker.NewAdmin(cfg.BrokerDir)
	writer, err := admin.NewWriter(cfg.Topics.Raw, cfg.Writer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			cancel()
		case <-ctx.Done():
		}
	}()

	// closed after the queue drains, not on shutdown
	if err := writer.Start(context.Background()); err != nil {
		return err
	}

	metrics := obs.NewMetrics()
	queue := bus.NewQueue(cfg.Writer.QueueSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Run(context.Background(), func(r broker.Record) {
			if err := writer.TryAppend(r.Key, r.Value); err != nil {
				metrics.IncWriteFailure()
				logs.Errorf("loader: append to %s: %+v", cfg.Topics.Raw, err)
			}
		})
	}()

	logs.Infof("loader: streaming %s into %s", exchange, cfg.Topics.Raw)
	runErr := runner.Run(ctx, func(_ context.Context, payload []byte) error {
		err := queue.TryPublish(broker.Record{Value: payload})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bus.ErrQueueFull):
			metrics.IncQueueDrop()
			return nil
		default:
			metrics.IncQueueClosed()
			return err
		}
	})

	queue.Close()
	wg.Wait()
	closeErr := writer.Close()

	snap := metrics.Snapshot()
	logs.Infof("loader: stopped after %d sessions, frames=%d queue_drops=%d write_failures=%d",
		runner.Sessions(), runner.Frames(), snap.QueueDrops, snap.WriteFailures)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return closeErr
}
