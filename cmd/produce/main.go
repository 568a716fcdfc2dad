package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/broker"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/ops"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/pageview"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("produce: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "JSON config file (default: built-in defaults)")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between messages (0=as fast as possible)")
	count := flag.Int("count", 0, "messages to produce (0=until interrupted)")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin := broker.NewAdmin(cfg.BrokerDir)
	writer, err := admin.NewWriter(cfg.Topics.PageViews, cfg.Writer)
	if err != nil {
		return err
	}
	if err := writer.Start(context.Background()); err != nil {
		return err
	}

	clk := clock.New()
	gen := pageview.NewGenerator(clk)
	var tick <-chan time.Time
	if *interval > 0 {
		ticker := clk.Ticker(*interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	produced := 0
	runErr := func() error {
		for *count == 0 || produced < *count {
			payload, err := gen.Next()
			if err != nil {
				return err
			}
			if err := writer.Append(ctx, nil, payload); err != nil {
				return err
			}
			produced++

			if tick == nil {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}
		return nil
	}()

	closeErr := writer.Close()
	logs.Infof("produce: wrote %d messages to %s", produced, cfg.Topics.PageViews)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return closeErr
}
