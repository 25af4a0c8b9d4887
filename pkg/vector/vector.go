// Package vector defines the bulk export boundary splice uses to read
// embeddings out of a vector store, plus the writer used to seed one.
package vector

import "context"

// Document is a stored vector with its raw metadata, as returned by a store.
type Document struct {
	// ID is the store's identifier for the vector (the embedding id).
	ID string

	// Embedding is the stored vector.
	Embedding []float32

	// Metadata is the untyped payload stored alongside the vector.
	Metadata map[string]any
}

// Page is one page of a collection export.
type Page struct {
	Documents []Document

	// NextCursor resumes the export after this page. Empty means the
	// collection has been fully read.
	NextCursor string
}

// Exporter pages through a collection in a stable order.
//
// Page must be safe to call again with the same cursor: a cursor returned by
// one call stays valid for retries and restarts of the same export.
type Exporter interface {
	// Page returns up to limit documents of collection starting at cursor.
	// The empty cursor starts from the beginning.
	Page(ctx context.Context, collection string, cursor string, limit int) (Page, error)

	// Close releases any resources held by the exporter.
	Close() error
}

// Writer stores documents in a collection. It is only used for seeding demo
// data; the correlation engine is read-only.
type Writer interface {
	// Add stores documents. Documents with an existing ID are replaced.
	Add(ctx context.Context, collection string, docs []Document) error
}

// Driver is a store that can both be exported and seeded.
type Driver interface {
	Exporter
	Writer
}
