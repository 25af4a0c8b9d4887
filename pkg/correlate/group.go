package correlate

import (
	"fmt"
	"sort"

	"github.com/papercomputeco/splice/pkg/embedding"
)

// WarningKind classifies non-fatal consistency problems.
type WarningKind string

const (
	// WarningChunkTotalMismatch means members of one bucket disagree on chunk_total.
	WarningChunkTotalMismatch WarningKind = "chunk_total_mismatch"

	// WarningDuplicateChunkIndex means two embeddings claim the same chunk position.
	WarningDuplicateChunkIndex WarningKind = "duplicate_chunk_index"

	// WarningDuplicateText means two embeddings of one document share a text_hash.
	WarningDuplicateText WarningKind = "duplicate_text"
)

// Warning is a non-fatal finding attached to one identifier.
type Warning struct {
	Kind       WarningKind          `json:"kind"`
	EntityType embedding.EntityType `json:"entity_type"`
	Identifier string               `json:"identifier"`
	Detail     string               `json:"detail"`
}

// Bucket holds the embeddings sharing one join key, ordered by chunk index.
type Bucket struct {
	Identifier string
	EntityType embedding.EntityType

	// Records are sorted by chunk index, then embedding id.
	Records []embedding.Record

	// ChunkTotal is the agreed chunk_total, or the largest one seen when
	// members disagree.
	ChunkTotal int

	// MissingChunks lists the lowest indexes in [0, ChunkTotal) with no
	// embedding, at most MaxListedMissingChunks of them.
	MissingChunks []int

	// MissingCount is the number of indexes in [0, ChunkTotal) with no
	// embedding.
	MissingCount int

	// Inconsistent is set when members disagree on chunk_total or repeat a
	// chunk index. An inconsistent bucket is never complete.
	Inconsistent bool

	Warnings []Warning
}

// Complete reports whether every chunk is present exactly once and all
// members agree on the total.
func (b *Bucket) Complete() bool {
	return !b.Inconsistent && b.MissingCount == 0
}

// MaxListedMissingChunks caps how many missing chunk indexes a bucket lists.
const MaxListedMissingChunks = 1000

// GroupChunks buckets validated records by join key and orders each bucket
// by chunk index. The result does not depend on input order.
func GroupChunks(records []embedding.Record) map[string]*Bucket {
	buckets := make(map[string]*Bucket)
	for _, r := range records {
		key := r.JoinKey()
		b, ok := buckets[key]
		if !ok {
			b = &Bucket{Identifier: key, EntityType: r.EntityType}
			buckets[key] = b
		}
		b.Records = append(b.Records, r)
	}

	for _, b := range buckets {
		b.reconstruct()
	}
	return buckets
}

func (b *Bucket) reconstruct() {
	sort.SliceStable(b.Records, func(i, j int) bool {
		ii, _ := b.Records[i].Position()
		ji, _ := b.Records[j].Position()
		if ii != ji {
			return ii < ji
		}
		return b.Records[i].ID < b.Records[j].ID
	})

	totals := make(map[int]struct{})
	observed := make(map[int]int)
	texts := make(map[string]string)

	for _, r := range b.Records {
		idx, total := r.Position()
		totals[total] = struct{}{}
		if total > b.ChunkTotal {
			b.ChunkTotal = total
		}

		observed[idx]++
		if observed[idx] == 2 {
			b.Inconsistent = true
			b.warn(WarningDuplicateChunkIndex, fmt.Sprintf("chunk index %d appears more than once", idx))
		}

		if r.TextHash != "" {
			if first, ok := texts[r.TextHash]; ok {
				b.warn(WarningDuplicateText, fmt.Sprintf("embeddings %s and %s share text_hash %s", first, r.ID, r.TextHash))
			} else {
				texts[r.TextHash] = r.ID
			}
		}
	}

	if len(totals) > 1 {
		b.Inconsistent = true
		seen := make([]int, 0, len(totals))
		for t := range totals {
			seen = append(seen, t)
		}
		sort.Ints(seen)
		b.warn(WarningChunkTotalMismatch, fmt.Sprintf("members disagree on chunk_total: %v", seen))
	}

	b.MissingCount = b.ChunkTotal - len(observed)
	b.MissingChunks = missingIndexes(observed, b.ChunkTotal, MaxListedMissingChunks)
}

// missingIndexes returns up to limit indexes in [0, total) absent from
// observed, walking only the gaps between observed indexes.
func missingIndexes(observed map[int]int, total, limit int) []int {
	present := make([]int, 0, len(observed))
	for idx := range observed {
		present = append(present, idx)
	}
	sort.Ints(present)

	var out []int
	next := 0
	for _, idx := range append(present, total) {
		for i := next; i < idx && len(out) < limit; i++ {
			out = append(out, i)
		}
		if len(out) >= limit {
			break
		}
		next = idx + 1
	}
	return out
}

func (b *Bucket) warn(kind WarningKind, detail string) {
	b.Warnings = append(b.Warnings, Warning{
		Kind:       kind,
		EntityType: b.EntityType,
		Identifier: b.Identifier,
		Detail:     detail,
	})
}
