package main

import (
	"flag"
	"os"

	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/broker"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/ops"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("setup: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "JSON config file (default: built-in defaults)")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	admin := broker.NewAdmin(cfg.BrokerDir)
	if err := admin.CreateTopics(
		cfg.Topics.Raw,
		cfg.Topics.Candles,
		cfg.Topics.PageViews,
		cfg.Topics.PageViewDLQ,
		cfg.Topics.PageEventDLQ,
	); err != nil {
		return err
	}

	topics, err := admin.ListTopics()
	if err != nil {
		return err
	}
	for _, t := range topics {
		logs.Infof("topic %s partitions=%d created=%s", t.Name, t.Partitions, t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
