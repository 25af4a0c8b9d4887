// Package jsonfile serves source records from JSON, JSON Lines and YAML files.
package jsonfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/source"
)

// Config holds configuration for a flat-file adapter.
type Config struct {
	// Pattern is a file path or a doublestar glob ("data/**/*.jsonl").
	Pattern string

	// IDField is the object key holding each record's identifier.
	IDField string
}

// Adapter indexes every matching file and serves lookups from that index.
// Each call re-matches the pattern and re-reads the files when the set of
// files, a size or a modification time has changed.
type Adapter struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]source.Record
	stamp   []fileStamp
}

// fileStamp identifies one version of an indexed file.
type fileStamp struct {
	path    string
	size    int64
	modTime time.Time
}

// NewAdapter creates a flat-file adapter.
func NewAdapter(c Config, logger *slog.Logger) (*Adapter, error) {
	if c.Pattern == "" {
		return nil, errors.New("jsonfile: path pattern is required")
	}
	if !doublestar.ValidatePathPattern(c.Pattern) {
		return nil, fmt.Errorf("jsonfile: invalid path pattern %q", c.Pattern)
	}
	if c.IDField == "" {
		c.IDField = "id"
	}
	return &Adapter{cfg: c, logger: logger}, nil
}

// BulkGet returns the records that exist among ids.
func (a *Adapter) BulkGet(ctx context.Context, ids []string) (map[string]source.Record, error) {
	index, err := a.index(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]source.Record, len(ids))
	for _, id := range ids {
		if r, ok := index[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

// ListIdentifiers returns every identifier found in the files, sorted.
func (a *Adapter) ListIdentifiers(ctx context.Context) ([]string, error) {
	index, err := a.index(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *Adapter) index(ctx context.Context) (map[string]source.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	files, err := doublestar.FilepathGlob(a.cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("jsonfile: matching %q: %w", a.cfg.Pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("jsonfile: no files match %q", a.cfg.Pattern)
	}
	sort.Strings(files)

	stamp := make([]fileStamp, 0, len(files))
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("jsonfile: stat %s: %w", path, err)
		}
		stamp = append(stamp, fileStamp{path: path, size: info.Size(), modTime: info.ModTime()})
	}

	if a.records != nil && slices.Equal(stamp, a.stamp) {
		return a.records, nil
	}

	records := make(map[string]source.Record)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		objects, err := readFile(path)
		if err != nil {
			return nil, err
		}

		skipped := 0
		for _, obj := range objects {
			id := embedding.FormatIdentifier(obj[a.cfg.IDField])
			if id == "" {
				skipped++
				continue
			}
			// first file wins on duplicate ids
			if _, ok := records[id]; ok {
				continue
			}
			records[id] = source.Record{ID: id, Fields: obj}
		}

		a.logger.Debug("indexed source file",
			"path", path,
			"records", len(objects),
			"skipped", skipped,
		)
	}

	a.records = records
	a.stamp = stamp
	return records, nil
}

func readFile(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jsonfile: reading %s: %w", path, err)
	}

	var objects []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		objects, err = decodeJSONLines(data)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &objects)
	default:
		objects, err = decodeJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: decoding %s: %w", path, err)
	}
	return objects, nil
}

// decodeJSON accepts either an array of objects or a single object.
func decodeJSON(data []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		return []map[string]any{obj}, nil
	}

	var objects []map[string]any
	if err := json.Unmarshal(trimmed, &objects); err != nil {
		return nil, err
	}
	return objects, nil
}

func decodeJSONLines(data []byte) ([]map[string]any, error) {
	var objects []map[string]any

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal(text, &obj); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		objects = append(objects, obj)
	}
	return objects, scanner.Err()
}
