// Package inmemory provides a map-backed vector.Driver for tests and demos.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/splice/pkg/vector"
)

// Driver implements vector.Driver using in-memory maps.
type Driver struct {
	// mu guards collections
	mu sync.RWMutex

	// collections maps a collection name to its documents keyed by ID
	collections map[string]map[string]vector.Document
}

// NewDriver creates an empty in-memory vector store.
func NewDriver() *Driver {
	return &Driver{
		collections: make(map[string]map[string]vector.Document),
	}
}

// Add stores documents, replacing any with the same ID.
func (d *Driver) Add(_ context.Context, collection string, docs []vector.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	coll, ok := d.collections[collection]
	if !ok {
		coll = make(map[string]vector.Document)
		d.collections[collection] = coll
	}
	for _, doc := range docs {
		coll[doc.ID] = doc
	}
	return nil
}

// Page returns documents ordered by ID. The cursor is the last ID of the
// previous page, so pages stay stable across retries.
func (d *Driver) Page(_ context.Context, collection string, cursor string, limit int) (vector.Page, error) {
	if limit <= 0 {
		return vector.Page{}, fmt.Errorf("page limit must be positive, got %d", limit)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	coll, ok := d.collections[collection]
	if !ok {
		return vector.Page{}, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
	}

	ids := make([]string, 0, len(coll))
	for id := range coll {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	page := vector.Page{}
	for i, id := range ids {
		if i == limit {
			page.NextCursor = ids[i-1]
			break
		}
		page.Documents = append(page.Documents, coll[id])
	}

	return page, nil
}

// Count returns the number of documents in a collection.
func (d *Driver) Count(collection string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.collections[collection])
}

// Close is a no-op for the in-memory store.
func (d *Driver) Close() error {
	return nil
}
