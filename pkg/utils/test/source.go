package testutils

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/splice/pkg/source"
)

// ErrMockAdapter is returned by MockAdapter's scripted failures.
var ErrMockAdapter = errors.New("mock adapter failure")

// MockAdapter is a source adapter that records calls and can be scripted to
// fail.
type MockAdapter struct {
	mu sync.Mutex

	Records map[string]source.Record

	// FailTimes makes the next n BulkGet calls fail.
	FailTimes int

	// FailAlways makes every BulkGet call fail.
	FailAlways bool

	// OnBulkGet runs at the start of each BulkGet call.
	OnBulkGet func(ctx context.Context, ids []string)

	// Requests records the ids passed to each BulkGet call.
	Requests [][]string
}

// NewMockAdapter creates a mock holding records with the given ids.
func NewMockAdapter(ids ...string) *MockAdapter {
	m := &MockAdapter{Records: make(map[string]source.Record, len(ids))}
	for _, id := range ids {
		m.Records[id] = source.Record{ID: id, Fields: map[string]any{"id": id}}
	}
	return m
}

func (m *MockAdapter) BulkGet(ctx context.Context, ids []string) (map[string]source.Record, error) {
	if m.OnBulkGet != nil {
		m.OnBulkGet(ctx, ids)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, append([]string(nil), ids...))

	if m.FailAlways {
		return nil, ErrMockAdapter
	}
	if m.FailTimes > 0 {
		m.FailTimes--
		return nil, ErrMockAdapter
	}

	out := make(map[string]source.Record, len(ids))
	for _, id := range ids {
		if r, ok := m.Records[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

// Calls returns how many BulkGet calls were made.
func (m *MockAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// MockEnumeratingAdapter is a MockAdapter that can also list its identifiers.
type MockEnumeratingAdapter struct {
	*MockAdapter

	// Lists counts ListIdentifiers calls.
	Lists int
}

// NewMockEnumeratingAdapter creates an enumerating mock holding ids.
func NewMockEnumeratingAdapter(ids ...string) *MockEnumeratingAdapter {
	return &MockEnumeratingAdapter{MockAdapter: NewMockAdapter(ids...)}
}

func (m *MockEnumeratingAdapter) ListIdentifiers(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Lists++
	ids := make([]string, 0, len(m.Records))
	for id := range m.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
