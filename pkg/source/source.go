// Package source defines the boundary splice uses to fetch authoritative
// records from the systems embeddings were generated from.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/papercomputeco/splice/pkg/embedding"
)

// Record is an authoritative source entity. Fields are opaque to splice.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Adapter fetches source records in bulk.
//
// BulkGet returns the records that exist among ids, keyed by id. Identifiers
// with no record are simply absent from the result; they are never an error.
// Adapters split large id sets into store-appropriate chunks themselves.
type Adapter interface {
	BulkGet(ctx context.Context, ids []string) (map[string]Record, error)
}

// Enumerator is implemented by adapters that can list every identifier they
// hold, which lets a run report source records that have no embeddings.
type Enumerator interface {
	ListIdentifiers(ctx context.Context) ([]string, error)
}

var (
	// ErrUnknownEntityType is returned when no adapter is registered for an
	// entity type.
	ErrUnknownEntityType = errors.New("no source adapter registered for entity type")

	// ErrUnsupportedKind is returned for an unknown source kind in config.
	ErrUnsupportedKind = errors.New("unsupported source kind")
)

// LookupError wraps an adapter failure with the entity type it served.
type LookupError struct {
	EntityType embedding.EntityType
	Err        error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("source lookup for %s: %v", e.EntityType, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Registry maps entity types to the adapter serving them.
type Registry struct {
	mu       sync.RWMutex
	adapters map[embedding.EntityType]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[embedding.EntityType]Adapter),
	}
}

// Register binds an adapter to an entity type, replacing any previous one.
func (r *Registry) Register(t embedding.EntityType, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[t] = a
}

// Adapter returns the adapter for an entity type.
func (r *Registry) Adapter(t embedding.EntityType) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, t)
	}
	return a, nil
}

// EntityTypes lists registered entity types in sorted order.
func (r *Registry) EntityTypes() []embedding.EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]embedding.EntityType, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close closes every adapter that holds resources. An adapter shared by
// several entity types is closed once.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	closed := make(map[io.Closer]bool)
	for _, a := range r.adapters {
		c, ok := a.(io.Closer)
		if !ok || closed[c] {
			continue
		}
		closed[c] = true
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Chunk splits items into slices of at most size, preserving order.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) <= size {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
