// Package embedding defines the typed embedding record read from a vector
// store, the metadata contract it is decoded from, and the validator that
// decides whether a record may take part in correlation.
package embedding

import (
	"time"
)

// EntityType names a family of source entities. It selects the source
// adapter and the identifier field used for the join.
type EntityType string

const (
	EntityProperty         EntityType = "property"
	EntityNeighborhood     EntityType = "neighborhood"
	EntityWikipediaArticle EntityType = "wikipedia_article"
	EntityWikipediaSummary EntityType = "wikipedia_summary"
)

// BuiltinEntityTypes lists the entity types that need no registry entry to
// be named in configuration examples.
func BuiltinEntityTypes() []EntityType {
	return []EntityType{
		EntityProperty,
		EntityNeighborhood,
		EntityWikipediaArticle,
		EntityWikipediaSummary,
	}
}

// Record is one stored vector plus its decoded metadata.
// Records are never mutated once decoded.
type Record struct {
	ID     string    `json:"embedding_id"`
	Vector []float32 `json:"-"`

	EntityType        EntityType `json:"entity_type"`
	PrimaryIdentifier string     `json:"primary_identifier"`
	ParentID          string     `json:"parent_id,omitempty"`
	ChunkIndex        *int       `json:"chunk_index,omitempty"`
	ChunkTotal        *int       `json:"chunk_total,omitempty"`

	SourceType             string `json:"source_type,omitempty"`
	SourceFileOrCollection string `json:"source_file_or_collection,omitempty"`
	TextHash               string `json:"text_hash,omitempty"`

	EmbeddingModel   string    `json:"embedding_model,omitempty"`
	EmbeddingVersion string    `json:"embedding_version,omitempty"`
	GeneratedAt      time.Time `json:"generation_timestamp,omitzero"`

	// decodeErrs holds metadata fields that were present but unusable.
	decodeErrs []string
}

// IsChunked reports whether the record carries chunk position metadata.
func (r Record) IsChunked() bool {
	return r.ChunkIndex != nil || r.ChunkTotal != nil
}

// JoinKey is the identifier used to look the record up in its source and to
// bucket chunks: the parent id for chunks, the primary identifier otherwise.
// A chunk without a parent id falls back to its primary identifier.
func (r Record) JoinKey() string {
	if r.IsChunked() && r.ParentID != "" {
		return r.ParentID
	}
	return r.PrimaryIdentifier
}

// Position returns the chunk index and total, treating a non-chunked record
// as chunk 0 of 1.
func (r Record) Position() (index, total int) {
	index, total = 0, 1
	if r.ChunkIndex != nil {
		index = *r.ChunkIndex
	}
	if r.ChunkTotal != nil {
		total = *r.ChunkTotal
	}
	return index, total
}

// DecodeErrors returns metadata fields that could not be decoded.
func (r Record) DecodeErrors() []string {
	return r.decodeErrs
}

// IntPtr is a small helper for building chunked records.
func IntPtr(i int) *int {
	return &i
}
