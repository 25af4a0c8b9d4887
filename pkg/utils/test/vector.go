package testutils

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/vector"
)

// MockVectorExporter is an offset-paged vector.Driver whose failures can be
// scripted per collection.
type MockVectorExporter struct {
	mu sync.Mutex

	collections map[string][]vector.Document

	// FailTimes makes the next n Page calls for a collection fail with a
	// transient error.
	FailTimes map[string]int

	// FailWith makes every Page call for a collection fail with the error.
	FailWith map[string]error

	// OnPage runs before each Page call is served.
	OnPage func(collection string, cursor string)

	calls map[string]int
}

// NewMockVectorExporter creates an empty mock store.
func NewMockVectorExporter() *MockVectorExporter {
	return &MockVectorExporter{
		collections: make(map[string][]vector.Document),
		FailTimes:   make(map[string]int),
		FailWith:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

// AddRecords stores records in collection as their metadata form.
func (m *MockVectorExporter) AddRecords(collection string, records ...embedding.Record) {
	docs := make([]vector.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, vector.Document{
			ID:        r.ID,
			Embedding: r.Vector,
			Metadata:  embedding.ToMetadata(r),
		})
	}
	_ = m.Add(context.Background(), collection, docs)
}

func (m *MockVectorExporter) Add(_ context.Context, collection string, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = append(m.collections[collection], docs...)
	return nil
}

func (m *MockVectorExporter) Page(ctx context.Context, collection string, cursor string, limit int) (vector.Page, error) {
	if m.OnPage != nil {
		m.OnPage(collection, cursor)
	}
	if err := ctx.Err(); err != nil {
		return vector.Page{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[collection]++

	if err, ok := m.FailWith[collection]; ok {
		return vector.Page{}, err
	}
	if m.FailTimes[collection] > 0 {
		m.FailTimes[collection]--
		return vector.Page{}, fmt.Errorf("%w: mock transient failure", vector.ErrConnection)
	}

	docs, ok := m.collections[collection]
	if !ok {
		return vector.Page{}, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
	}

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return vector.Page{}, fmt.Errorf("%w: %q", vector.ErrInvalidCursor, cursor)
		}
		offset = n
	}
	if offset > len(docs) {
		offset = len(docs)
	}

	end := min(offset+limit, len(docs))
	page := vector.Page{Documents: append([]vector.Document(nil), docs[offset:end]...)}
	if end < len(docs) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// Calls returns how many Page calls a collection has received.
func (m *MockVectorExporter) Calls(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[collection]
}

func (m *MockVectorExporter) Close() error {
	return nil
}
