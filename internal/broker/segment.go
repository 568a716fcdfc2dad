package broker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type segmentFile struct {
	base uint64
	path string
}

func segmentName(base uint64) string {
	return fmt.Sprintf("%020d%s", base, segmentSuffix)
}

// listSegments returns the segments of a topic directory ordered by base offset.
func listSegments(dir string) ([]segmentFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []segmentFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		base, err := strconv.ParseUint(strings.TrimSuffix(name, segmentSuffix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, segmentFile{base: base, path: filepath.Join(dir, name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].base < out[j].base })
	return out, nil
}

// recoverSegment scans a segment and returns the next offset and the byte
// length of its valid prefix. A torn tail is reported through validLen.
func recoverSegment(path string, base uint64) (next uint64, validLen int64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	next = base
	reader := NewReader(file, ReaderOptions{})
	for {
		rec, err := reader.Next()
		if err != nil {
			// io.EOF or a torn tail; either way the valid prefix ends here
			return next, reader.Pos(), nil
		}
		next = rec.Offset + 1
	}
}
