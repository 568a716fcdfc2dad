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
	"github.com/CallistoLabsNYC/rp-transform-study/internal/pageview"
	"github.com/CallistoLabsNYC/rp-transform-study/pkg/conn"
)

const commitEvery = 50

func main() {
	if err := run(); err != nil {
		logs.Errorf("pageview: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "JSON config file (default: built-in defaults)")
	migrate := flag.Bool("migrate", true, "create the page_view table when missing")
	follow := flag.Bool("follow", true, "keep tailing the page view topic")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := conn.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Ping(ctx); err != nil {
		return err
	}

	store, err := pageview.NewStore(client.DB())
	if err != nil {
		return err
	}
	if *migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	admin := broker.NewAdmin(cfg.BrokerDir)
	invalid, err := admin.NewWriter(cfg.Topics.PageViewDLQ, cfg.Writer)
	if err != nil {
		return err
	}
	events, err := admin.NewWriter(cfg.Topics.PageEventDLQ, cfg.Writer)
	if err != nil {
		return err
	}
	for _, w := range []*broker.Writer{invalid, events} {
		if err := w.Start(context.Background()); err != nil {
			return err
		}
	}

	metrics := obs.NewMetrics()
	sink, err := pageview.NewSink(store,
		pageview.WithEventDeadLetter(events),
		pageview.WithInvalidDeadLetter(invalid),
		pageview.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	checkpoint, err := admin.Checkpoint(cfg.Topics.PageViews, cfg.PageViewGroup)
	if err != nil {
		return err
	}
	start, _, err := checkpoint.Load()
	if err != nil {
		return err
	}
	consumer, err := admin.NewConsumer(cfg.Topics.PageViews, broker.ConsumerOptions{
		StartOffset:  start,
		Follow:       *follow,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return err
	}
	committer := broker.NewCommitter(checkpoint, commitEvery, invalid, events)

	logs.Infof("pageview: consuming %s from offset %d", cfg.Topics.PageViews, start)
	runErr := consumer.Run(ctx, func(ctx context.Context, rec broker.Record) error {
		if err := sink.Handle(ctx, rec); err != nil {
			return err
		}
		return committer.Mark(rec.Offset)
	})

	closeErr := errors.Join(invalid.Close(), events.Close())
	if closeErr == nil {
		closeErr = committer.Flush()
	}

	snap := metrics.Snapshot()
	logs.Infof("pageview: stored=%d dropped=%d write_failures=%d", snap.Stored, snap.Drops[obs.DropNotPageView], snap.WriteFailures)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return closeErr
}
