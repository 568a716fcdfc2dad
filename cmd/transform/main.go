package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/broker"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/obs"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/ops"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/transform"
)

const commitEvery = 100

func main() {
	if err := run(); err != nil {
		logs.Errorf("transform: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "JSON config file (default: built-in defaults)")
	follow := flag.Bool("follow", true, "keep tailing the raw topic")
	fromBeginning := flag.Bool("from-beginning", false, "ignore the committed offset")
	profile := flag.Bool("pyroscope", false, "push profiles to a pyroscope server")
	profileAddr := flag.String("pyroscope-addr", "http://localhost:4040", "pyroscope server address")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	if *profile {
		stop, err := obs.StartProfiler(obs.ProfileConfig{
			ApplicationName: "crypto-transform",
			ServerAddress:   *profileAddr,
			Tags:            map[string]string{"topic": cfg.Topics.Raw},
		})
		if err != nil {
			return err
		}
		defer stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin := broker.NewAdmin(cfg.BrokerDir)
	checkpoint, err := admin.Checkpoint(cfg.Topics.Raw, cfg.Transform.Group)
	if err != nil {
		return err
	}
	var start uint64
	if !*fromBeginning {
		if committed, ok, err := checkpoint.Load(); err != nil {
			return err
		} else if ok {
			start = committed
		}
	}

	consumer, err := admin.NewConsumer(cfg.Topics.Raw, broker.ConsumerOptions{
		StartOffset:  start,
		Follow:       *follow,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return err
	}
	writer, err := admin.NewWriter(cfg.Topics.Candles, cfg.Writer)
	if err != nil {
		return err
	}
	if err := writer.Start(context.Background()); err != nil {
		return err
	}

	metrics := obs.NewMetrics()
	tr := transform.New(
		transform.WithBinanceTimestamp(cfg.Transform.BinanceTimestamp),
		transform.WithBinanceSymbol(cfg.Transform.BinanceSymbol),
		transform.WithMetrics(metrics),
		transform.WithDiagnostics(transform.LogDiagnostics{}),
	)
	out := transform.RecordWriterFunc(func(r transform.Record) error {
		return writer.Append(ctx, r.Key, r.Value)
	})
	committer := broker.NewCommitter(checkpoint, commitEvery, writer)

	logs.Infof("transform: %s -> %s from offset %d", cfg.Topics.Raw, cfg.Topics.Candles, start)
	runErr := consumer.Run(ctx, func(_ context.Context, rec broker.Record) error {
		if err := tr.Transform(rec.Value, out); err != nil {
			return err
		}
		return committer.Mark(rec.Offset)
	})

	// candles must be on disk before their inputs are committed
	closeErr := writer.Close()
	if closeErr == nil {
		closeErr = committer.Flush()
	}
	printMetrics(metrics.Snapshot())

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return closeErr
}

func printMetrics(s obs.Snapshot) {
	for source, n := range s.Accepted {
		logs.Infof("transform: accepted %s=%d", source, n)
	}
	for reason, n := range s.Drops {
		logs.Infof("transform: dropped %s=%d", reason, n)
	}
	logs.Infof("transform: write_failures=%d convert count=%d min=%s avg=%s max=%s",
		s.WriteFailures, s.ConvertLatency.Count, s.ConvertLatency.Min, s.ConvertLatency.Avg, s.ConvertLatency.Max)
}
