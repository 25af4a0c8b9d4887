package embedding

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Metadata keys understood by FromMetadata.
const (
	KeyEntityType        = "entity_type"
	KeyPrimaryIdentifier = "primary_identifier"
	KeyParentID          = "parent_id"
	KeyChunkIndex        = "chunk_index"
	KeyChunkTotal        = "chunk_total"
	KeySourceType        = "source_type"
	KeySourceFile        = "source_file"
	KeySourceCollection  = "source_collection"
	KeyTextHash          = "text_hash"
	KeyEmbeddingModel    = "embedding_model"
	KeyEmbeddingVersion  = "embedding_version"
	KeyGeneratedAt       = "generation_timestamp"
)

// FromMetadata decodes a vector store document into a Record.
//
// idField names the metadata key holding the primary identifier for the
// record's entity type (for example "listing_id"); when empty, or when the key
// is absent, the generic "primary_identifier" key is used. Decoding never
// fails: unusable values are kept on the record and reported by the
// Validator as invalid metadata.
func FromMetadata(id string, vec []float32, meta map[string]any, idField string) Record {
	r := Record{
		ID:     id,
		Vector: vec,
	}

	r.EntityType = EntityType(stringValue(meta[KeyEntityType]))

	if idField != "" {
		r.PrimaryIdentifier = stringValue(meta[idField])
	}
	if r.PrimaryIdentifier == "" {
		r.PrimaryIdentifier = stringValue(meta[KeyPrimaryIdentifier])
	}
	r.ParentID = stringValue(meta[KeyParentID])

	if raw, ok := meta[KeyChunkIndex]; ok && raw != nil {
		n, err := intValue(raw)
		if err != nil {
			r.decodeErrs = append(r.decodeErrs, fmt.Sprintf("%s: %v", KeyChunkIndex, err))
		} else {
			r.ChunkIndex = &n
		}
	}
	if raw, ok := meta[KeyChunkTotal]; ok && raw != nil {
		n, err := intValue(raw)
		if err != nil {
			r.decodeErrs = append(r.decodeErrs, fmt.Sprintf("%s: %v", KeyChunkTotal, err))
		} else {
			r.ChunkTotal = &n
		}
	}

	r.SourceType = stringValue(meta[KeySourceType])
	r.SourceFileOrCollection = stringValue(meta[KeySourceFile])
	if r.SourceFileOrCollection == "" {
		r.SourceFileOrCollection = stringValue(meta[KeySourceCollection])
	}
	r.TextHash = stringValue(meta[KeyTextHash])
	r.EmbeddingModel = stringValue(meta[KeyEmbeddingModel])
	r.EmbeddingVersion = stringValue(meta[KeyEmbeddingVersion])

	if raw, ok := meta[KeyGeneratedAt]; ok && raw != nil {
		ts, err := timeValue(raw)
		if err != nil {
			r.decodeErrs = append(r.decodeErrs, fmt.Sprintf("%s: %v", KeyGeneratedAt, err))
		} else {
			r.GeneratedAt = ts
		}
	}

	return r
}

// ToMetadata is the inverse of FromMetadata and is used when seeding stores.
func ToMetadata(r Record) map[string]any {
	meta := map[string]any{
		KeyEntityType:        string(r.EntityType),
		KeyPrimaryIdentifier: r.PrimaryIdentifier,
	}
	if r.ParentID != "" {
		meta[KeyParentID] = r.ParentID
	}
	if r.ChunkIndex != nil {
		meta[KeyChunkIndex] = *r.ChunkIndex
	}
	if r.ChunkTotal != nil {
		meta[KeyChunkTotal] = *r.ChunkTotal
	}
	if r.SourceType != "" {
		meta[KeySourceType] = r.SourceType
	}
	if r.SourceFileOrCollection != "" {
		meta[KeySourceFile] = r.SourceFileOrCollection
	}
	if r.TextHash != "" {
		meta[KeyTextHash] = r.TextHash
	}
	if r.EmbeddingModel != "" {
		meta[KeyEmbeddingModel] = r.EmbeddingModel
	}
	if r.EmbeddingVersion != "" {
		meta[KeyEmbeddingVersion] = r.EmbeddingVersion
	}
	if !r.GeneratedAt.IsZero() {
		meta[KeyGeneratedAt] = r.GeneratedAt.UTC().Format(time.RFC3339)
	}
	return meta
}

// FormatIdentifier renders an identifier value from any store the same way
// metadata identifiers are decoded, so that both sides of a join agree.
func FormatIdentifier(v any) string {
	return stringValue(v)
}

// stringValue renders scalar metadata values as identifiers. Integral floats
// (JSON numbers) are printed without a fractional part so that a page_id of
// 42 decodes to "42" whichever store it came from.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return stringValue(float64(t))
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func intValue(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case uint32:
		return int(t), nil
	case uint64:
		if t > math.MaxInt32 {
			return 0, fmt.Errorf("value %d out of range", t)
		}
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("value %v is not an integer", t)
		}
		return int(t), nil
	case float32:
		return intValue(float64(t))
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func timeValue(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", t)
	default:
		n, err := intValue(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(int64(n), 0).UTC(), nil
	}
}
