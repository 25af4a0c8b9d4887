// Package inmemory provides a map-backed source.Adapter for tests and demos.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/splice/pkg/source"
)

// Adapter serves source records from memory.
type Adapter struct {
	mu      sync.RWMutex
	records map[string]source.Record
}

// NewAdapter creates an adapter holding records.
func NewAdapter(records ...source.Record) *Adapter {
	a := &Adapter{records: make(map[string]source.Record, len(records))}
	a.Put(records...)
	return a
}

// Put adds or replaces records.
func (a *Adapter) Put(records ...source.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range records {
		a.records[r.ID] = r
	}
}

// BulkGet returns the records that exist among ids.
func (a *Adapter) BulkGet(ctx context.Context, ids []string) (map[string]source.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]source.Record, len(ids))
	for _, id := range ids {
		if r, ok := a.records[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

// ListIdentifiers returns every identifier in sorted order.
func (a *Adapter) ListIdentifiers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.records))
	for id := range a.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
