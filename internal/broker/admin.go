package broker

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

const (
	topicMetaFile  = "topic.json"
	maxTopicLength = 249
)

// TopicMeta is persisted as topic.json in every topic directory.
type TopicMeta struct {
	Name       string    `json:"name"`
	Partitions int       `json:"partitions"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Admin manages topics under a root directory.
type Admin struct {
	Root  string
	Clock clock.Clock
}

func NewAdmin(root string) *Admin {
	return &Admin{Root: root, Clock: clock.New()}
}

// CreateTopics creates every missing topic. Existing topics are left untouched.
func (a *Admin) CreateTopics(names ...string) error {
	for _, name := range names {
		dir, err := a.topicPath(name)
		if err != nil {
			return err
		}
		metaPath := filepath.Join(dir, topicMetaFile)
		if _, err := os.Stat(metaPath); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create topic dir").With("topic", name)
		}
		meta := TopicMeta{Name: name, Partitions: 1, CreatedAt: a.now().UTC()}
		data, err := sonic.ConfigStd.MarshalIndent(meta, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshal topic meta").With("topic", name)
		}
		if err := writeFileAtomic(metaPath, data); err != nil {
			return errors.Wrap(err, "write topic meta").With("topic", name)
		}
		logs.Infof("broker: created topic %s", name)
	}
	return nil
}

// ListTopics returns every topic ordered by name.
func (a *Admin) ListTopics() ([]TopicMeta, error) {
	entries, err := os.ReadDir(a.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []TopicMeta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.Root, entry.Name(), topicMetaFile))
		if err != nil {
			continue
		}
		var meta TopicMeta
		if err := sonic.ConfigStd.Unmarshal(data, &meta); err != nil {
			return nil, errors.Wrap(err, "decode topic meta").With("topic", entry.Name())
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// TopicDir returns the directory of an existing topic.
func (a *Admin) TopicDir(name string) (string, error) {
	dir, err := a.topicPath(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(dir, topicMetaFile)); err != nil {
		return "", exception.ErrTopicNotFound
	}
	return dir, nil
}

// NewWriter opens a writer on an existing topic. cfg.Dir is overwritten.
func (a *Admin) NewWriter(topic string, cfg Config) (*Writer, error) {
	dir, err := a.TopicDir(topic)
	if err != nil {
		return nil, err
	}
	cfg.Dir = dir
	return NewWriter(cfg)
}

// NewConsumer opens a consumer on an existing topic.
func (a *Admin) NewConsumer(topic string, opts ConsumerOptions) (*Consumer, error) {
	dir, err := a.TopicDir(topic)
	if err != nil {
		return nil, err
	}
	return NewConsumer(dir, opts), nil
}

// Checkpoint opens the committed offset of a consumer group on a topic.
func (a *Admin) Checkpoint(topic, group string) (*Checkpoint, error) {
	dir, err := a.TopicDir(topic)
	if err != nil {
		return nil, err
	}
	return NewCheckpoint(dir, group)
}

func (a *Admin) topicPath(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(a.Root, name), nil
}

func (a *Admin) now() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock.Now()
}

// ValidateName accepts the topic and group names a Kafka broker accepts:
// ASCII letters, digits, '.', '_' and '-'.
func ValidateName(name string) error {
	if name == "" {
		return exception.ErrEmptyTopic
	}
	if name == "." || name == ".." || len(name) > maxTopicLength {
		return exception.ErrInvalidTopic
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return exception.ErrInvalidTopic
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
