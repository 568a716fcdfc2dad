package ops

import (
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/broker"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/ingest"
	"github.com/CallistoLabsNYC/rp-transform-study/internal/transform"
	"github.com/CallistoLabsNYC/rp-transform-study/pkg/conn"
)

// DatabaseURLEnv overrides the postgres connection string.
const DatabaseURLEnv = "DATABASE_URL"

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Broker    BrokerConfig              `json:"broker"`
	Topics    TopicsConfig              `json:"topics"`
	Transform TransformConfig           `json:"transform"`
	Exchanges map[string]ExchangeConfig `json:"exchanges"`
	PageView  PageViewConfig            `json:"pageView"`
	Postgres  PostgresConfig            `json:"postgres"`
}

// PageViewConfig tunes the page view sink.
type PageViewConfig struct {
	Group string `json:"group"`
}

// BrokerConfig controls the topic log.
type BrokerConfig struct {
	Dir                string `json:"dir"`
	SegmentMaxBytes    int64  `json:"segmentMaxBytes"`
	SegmentMaxDuration string `json:"segmentMaxDuration"`
	QueueSize          int    `json:"queueSize"`
	FlushInterval      string `json:"flushInterval"`
	SyncInterval       string `json:"syncInterval"`
	PollInterval       string `json:"pollInterval"`
}

// TopicsConfig names the topics each command reads and writes.
type TopicsConfig struct {
	Raw          string `json:"raw"`
	Candles      string `json:"candles"`
	PageViews    string `json:"pageViews"`
	PageViewDLQ  string `json:"pageViewDlq"`
	PageEventDLQ string `json:"pageEventDlq"`
}

// TransformConfig tunes the candle transform.
type TransformConfig struct {
	BinanceTimestamp string `json:"binanceTimestamp"`
	BinanceSymbol    string `json:"binanceSymbol"`
	Group            string `json:"group"`
}

// ExchangeConfig describes one exchange feed.
type ExchangeConfig struct {
	URL          string `json:"url"`
	Instrument   string `json:"instrument"`
	Interval     string `json:"interval"`
	PollInterval string `json:"pollInterval"`
}

// PostgresConfig mirrors conn.Option.
type PostgresConfig struct {
	Host            string            `json:"host"`
	Port            int               `json:"port"`
	User            string            `json:"user"`
	Password        string            `json:"password"`
	Database        string            `json:"database"`
	SSLMode         string            `json:"sslMode"`
	Params          map[string]string `json:"params"`
	ConnString      string            `json:"connString"`
	MaxOpenConns    int               `json:"maxOpenConns"`
	MaxIdleConns    int               `json:"maxIdleConns"`
	ConnMaxLifetime string            `json:"connMaxLifetime"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	BrokerDir     string
	Writer        broker.Config
	PollInterval  time.Duration
	Topics        TopicsConfig
	Transform     TransformSpec
	Exchanges     map[ingest.Exchange]ingest.Config
	Postgres      conn.Option
	PageViewGroup string
}

// TransformSpec is the resolved transform configuration.
type TransformSpec struct {
	BinanceTimestamp transform.TimestampPolicy
	BinanceSymbol    string
	Group            string
}

// Default returns the configuration used when no file is given.
func Default() FileConfig {
	return FileConfig{
		Broker: BrokerConfig{
			Dir:           "data",
			FlushInterval: "200ms",
			PollInterval:  "100ms",
		},
		Topics: TopicsConfig{
			Raw:          "crypto-raw",
			Candles:      "crypto-candles",
			PageViews:    "queue",
			PageViewDLQ:  "page-view-dlq",
			PageEventDLQ: "page-event-dlq",
		},
		Transform: TransformConfig{
			BinanceTimestamp: transform.TimestampKline.String(),
			BinanceSymbol:    transform.DefaultBinanceSymbol,
			Group:            "candle-transform",
		},
		PageView: PageViewConfig{
			Group: "page-view-sink",
		},
	}
}

// Load reads a JSON config file on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (Loaded, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, err
		}
		if err := sonic.ConfigStd.Unmarshal(data, &cfg); err != nil {
			return Loaded{}, errors.Wrap(err, "decode config").With("path", path)
		}
	}
	return Resolve(cfg)
}

// Resolve validates cfg and converts it into runtime types.
func Resolve(cfg FileConfig) (Loaded, error) {
	var out Loaded
	var err error

	out.BrokerDir = cfg.Broker.Dir
	if out.BrokerDir == "" {
		return Loaded{}, errors.New("broker.dir is empty")
	}
	out.Writer = broker.DefaultConfig("")
	if cfg.Broker.SegmentMaxBytes > 0 {
		out.Writer.SegmentMaxBytes = cfg.Broker.SegmentMaxBytes
	}
	if cfg.Broker.QueueSize > 0 {
		out.Writer.QueueSize = cfg.Broker.QueueSize
	}
	if out.Writer.SegmentMaxDuration, err = duration("broker.segmentMaxDuration", cfg.Broker.SegmentMaxDuration, out.Writer.SegmentMaxDuration); err != nil {
		return Loaded{}, err
	}
	if out.Writer.FlushInterval, err = duration("broker.flushInterval", cfg.Broker.FlushInterval, 0); err != nil {
		return Loaded{}, err
	}
	if out.Writer.SyncInterval, err = duration("broker.syncInterval", cfg.Broker.SyncInterval, 0); err != nil {
		return Loaded{}, err
	}
	if out.PollInterval, err = duration("broker.pollInterval", cfg.Broker.PollInterval, 0); err != nil {
		return Loaded{}, err
	}

	for name, topic := range map[string]string{
		"topics.raw":          cfg.Topics.Raw,
		"topics.candles":      cfg.Topics.Candles,
		"topics.pageViews":    cfg.Topics.PageViews,
		"topics.pageViewDlq":  cfg.Topics.PageViewDLQ,
		"topics.pageEventDlq": cfg.Topics.PageEventDLQ,
	} {
		if err := broker.ValidateName(topic); err != nil {
			return Loaded{}, errors.Wrap(err, name)
		}
	}
	out.Topics = cfg.Topics

	policy, err := transform.ParseTimestampPolicy(cfg.Transform.BinanceTimestamp)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "transform.binanceTimestamp")
	}
	out.Transform = TransformSpec{
		BinanceTimestamp: policy,
		BinanceSymbol:    cfg.Transform.BinanceSymbol,
		Group:            cfg.Transform.Group,
	}
	for name, group := range map[string]string{
		"transform.group": cfg.Transform.Group,
		"pageView.group":  cfg.PageView.Group,
	} {
		if err := broker.ValidateName(group); err != nil {
			return Loaded{}, errors.Wrap(err, name)
		}
	}

	out.Exchanges = make(map[ingest.Exchange]ingest.Config, len(cfg.Exchanges))
	for name, ex := range cfg.Exchanges {
		exchange := ingest.Exchange(name)
		switch exchange {
		case ingest.Binance, ingest.Coinbase, ingest.Okx:
		default:
			return Loaded{}, errors.Errorf("exchanges: unsupported exchange %q", name)
		}
		poll, err := duration("exchanges."+name+".pollInterval", ex.PollInterval, 0)
		if err != nil {
			return Loaded{}, err
		}
		out.Exchanges[exchange] = ingest.Config{
			URL:          ex.URL,
			Instrument:   ex.Instrument,
			Interval:     ex.Interval,
			PollInterval: poll,
		}
	}

	lifetime, err := duration("postgres.connMaxLifetime", cfg.Postgres.ConnMaxLifetime, 0)
	if err != nil {
		return Loaded{}, err
	}
	out.Postgres = conn.Option{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		Database:        cfg.Postgres.Database,
		SSLMode:         cfg.Postgres.SSLMode,
		Params:          cfg.Postgres.Params,
		ConnString:      cfg.Postgres.ConnString,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: lifetime,
	}
	if dsn := os.Getenv(DatabaseURLEnv); dsn != "" {
		out.Postgres.ConnString = dsn
	}
	out.PageViewGroup = cfg.PageView.Group

	return out, nil
}

func duration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrap(err, "invalid duration").With("field", name)
	}
	if d < 0 {
		return 0, errors.Errorf("%s must be >= 0", name)
	}
	return d, nil
}
