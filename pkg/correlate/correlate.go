// Package correlate joins exported embeddings to their authoritative source
// records and classifies every identifier seen on either side.
package correlate

import (
	"sort"

	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/source"
)

// Status is the primary classification of one identifier. Every identifier
// gets exactly one.
type Status string

const (
	// StatusCorrelated means the source exists and every chunk is present.
	StatusCorrelated Status = "correlated"

	// StatusPartial means the source exists but chunks are missing or
	// inconsistent.
	StatusPartial Status = "partial"

	// StatusOrphaned means embeddings exist for an identifier with no source.
	StatusOrphaned Status = "orphaned"

	// StatusMissing means the source exists but has no embeddings.
	StatusMissing Status = "missing"
)

// Group is one identifier joined across the vector store and its source.
type Group struct {
	Identifier string               `json:"identifier"`
	EntityType embedding.EntityType `json:"entity_type"`
	Status     Status               `json:"status"`

	// Records are the identifier's embeddings ordered by chunk index.
	Records []embedding.Record `json:"records,omitempty"`

	// Source is the authoritative record, when the adapter returned one.
	Source *source.Record `json:"source,omitempty"`

	ChunkTotal    int   `json:"chunk_total,omitempty"`
	MissingChunks []int `json:"missing_chunks,omitempty"`
	MissingCount  int   `json:"missing_count,omitempty"`
	Inconsistent  bool  `json:"inconsistent,omitempty"`

	// VersionMismatch is set when any embedding's version differs from the
	// run's current version. It never changes Status.
	VersionMismatch bool     `json:"version_mismatch,omitempty"`
	Versions        []string `json:"versions,omitempty"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// Correlate classifies every identifier of one entity type.
//
// buckets come from GroupChunks, sources from the adapter lookup. universe is
// every identifier the source holds; pass nil when the adapter cannot
// enumerate, in which case no identifier is classified missing. An empty
// currentVersion disables version checks. The result is sorted by identifier.
func Correlate(
	entityType embedding.EntityType,
	buckets map[string]*Bucket,
	sources map[string]source.Record,
	universe []string,
	currentVersion string,
) []Group {
	groups := make([]Group, 0, len(buckets)+len(universe))

	for id, b := range buckets {
		g := Group{
			Identifier:    id,
			EntityType:    entityType,
			Records:       b.Records,
			ChunkTotal:    b.ChunkTotal,
			MissingChunks: b.MissingChunks,
			MissingCount:  b.MissingCount,
			Inconsistent:  b.Inconsistent,
			Warnings:      b.Warnings,
		}

		src, ok := sources[id]
		switch {
		case !ok:
			g.Status = StatusOrphaned
		case b.Complete():
			g.Status = StatusCorrelated
		default:
			g.Status = StatusPartial
		}
		if ok {
			g.Source = &src
		}

		g.Versions, g.VersionMismatch = versions(b.Records, currentVersion)
		groups = append(groups, g)
	}

	seen := make(map[string]bool, len(universe))
	for _, id := range universe {
		if _, ok := buckets[id]; ok || seen[id] {
			continue
		}
		seen[id] = true

		g := Group{
			Identifier: id,
			EntityType: entityType,
			Status:     StatusMissing,
		}
		if src, ok := sources[id]; ok {
			g.Source = &src
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Identifier < groups[j].Identifier
	})
	return groups
}

// versions returns the distinct embedding versions of records and whether
// any differs from current.
func versions(records []embedding.Record, current string) ([]string, bool) {
	set := make(map[string]struct{})
	mismatch := false
	for _, r := range records {
		set[r.EmbeddingVersion] = struct{}{}
		if current != "" && r.EmbeddingVersion != current {
			mismatch = true
		}
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, mismatch
}
