package broker

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

const offsetsDir = ".offsets"

type checkpointFile struct {
	Group  string `json:"group"`
	Offset uint64 `json:"offset"`
}

// Checkpoint stores the next offset a consumer group should read.
type Checkpoint struct {
	group string
	path  string
}

// NewCheckpoint opens the checkpoint of group under a topic directory.
func NewCheckpoint(topicDir, group string) (*Checkpoint, error) {
	if err := ValidateName(group); err != nil {
		return nil, errors.Wrap(err, "invalid consumer group")
	}
	dir := filepath.Join(topicDir, offsetsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Checkpoint{group: group, path: filepath.Join(dir, group)}, nil
}

// Load returns the committed offset, or ok=false when nothing was committed.
func (c *Checkpoint) Load() (offset uint64, ok bool, err error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	var f checkpointFile
	if err := sonic.ConfigStd.Unmarshal(data, &f); err != nil {
		return 0, false, errors.Wrap(err, "decode checkpoint").With("group", c.group)
	}
	return f.Offset, true, nil
}

// Commit records offset as the next one to read.
func (c *Checkpoint) Commit(offset uint64) error {
	data, err := sonic.ConfigStd.Marshal(checkpointFile{Group: c.group, Offset: offset})
	if err != nil {
		return err
	}
	return writeFileAtomic(c.path, data)
}

// Barrier makes everything written so far durable. *Writer satisfies it.
type Barrier interface {
	Sync(ctx context.Context) error
}

// Committer batches checkpoint commits for a consumer loop.
//
// Before each commit it syncs the barriers, so a committed input offset
// never runs ahead of the outputs produced from it.
type Committer struct {
	cp       *Checkpoint
	barriers []Barrier
	every    int
	pending  int
	next     uint64
	dirty    bool
}

// NewCommitter commits after every n marked records; n <= 0 means 1.
func NewCommitter(cp *Checkpoint, n int, barriers ...Barrier) *Committer {
	if n <= 0 {
		n = 1
	}
	return &Committer{cp: cp, barriers: barriers, every: n}
}

// Mark records that offset was fully processed.
func (c *Committer) Mark(offset uint64) error {
	c.next = offset + 1
	c.dirty = true
	c.pending++
	if c.pending < c.every {
		return nil
	}
	return c.Flush()
}

// Flush commits the latest marked offset, if any.
func (c *Committer) Flush() error {
	if !c.dirty {
		return nil
	}
	for _, b := range c.barriers {
		if err := b.Sync(context.Background()); err != nil {
			return errors.Wrap(err, "sync outputs before commit").With("offset", c.next)
		}
	}
	if err := c.cp.Commit(c.next); err != nil {
		return err
	}
	c.dirty = false
	c.pending = 0
	return nil
}
