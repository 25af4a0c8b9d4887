package embedding

import (
	"fmt"
	"strings"
)

// Reason classifies why a record was rejected.
type Reason string

const (
	ReasonMissingID          Reason = "missing_id"
	ReasonDuplicateID        Reason = "duplicate_id"
	ReasonInvalidMetadata    Reason = "invalid_metadata"
	ReasonUnknownEntityType  Reason = "unknown_entity_type"
	ReasonEntityTypeMismatch Reason = "entity_type_mismatch"
	ReasonMissingIdentifier  Reason = "missing_identifier"
	ReasonChunkIncomplete    Reason = "chunk_fields_incomplete"
	ReasonChunkOutOfRange    Reason = "chunk_index_out_of_range"
	ReasonDimensionMismatch  Reason = "dimension_mismatch"
)

// Failure is one rejected record.
type Failure struct {
	EmbeddingID string     `json:"embedding_id"`
	EntityType  EntityType `json:"entity_type"`
	Reason      Reason     `json:"reason"`
	Detail      string     `json:"detail"`
	// Source is provenance only, it is never used for correlation.
	Source string `json:"source,omitempty"`
}

// ValidationResult is the outcome of validating one record. A zero Reason
// means the record is eligible for correlation.
type ValidationResult struct {
	Reason Reason
	Detail string
}

// OK reports whether the record passed validation.
func (v ValidationResult) OK() bool {
	return v.Reason == ""
}

// ValidatorConfig describes what a valid record looks like for one
// collection.
type ValidatorConfig struct {
	// EntityType is the type registered for the collection being validated.
	EntityType EntityType

	// Known is the set of entity types recognized by the run's registry.
	Known map[EntityType]bool

	// Dimension is the vector length declared for the collection.
	Dimension int

	// ModelDimensions overrides Dimension per embedding model.
	ModelDimensions map[string]int

	// MaxChunkTotal is the largest chunk_total accepted. Zero disables the cap.
	MaxChunkTotal int
}

// Validator checks records for one collection within one run. It remembers
// every embedding id it has accepted or rejected so that later records
// claiming the same id are refused. A Validator has a single writer and is
// not safe for concurrent use.
type Validator struct {
	cfg      ValidatorConfig
	seen     map[string]struct{}
	failures []Failure
}

// NewValidator creates a run-scoped validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{
		cfg:  cfg,
		seen: make(map[string]struct{}),
	}
}

// Validate runs the checks in order and stops at the first failure, which is
// appended to the failure list.
func (v *Validator) Validate(r Record) ValidationResult {
	res := v.check(r)
	if !res.OK() {
		v.failures = append(v.failures, Failure{
			EmbeddingID: r.ID,
			EntityType:  r.EntityType,
			Reason:      res.Reason,
			Detail:      res.Detail,
			Source:      r.SourceFileOrCollection,
		})
	}
	return res
}

func (v *Validator) check(r Record) ValidationResult {
	if strings.TrimSpace(r.ID) == "" {
		return ValidationResult{Reason: ReasonMissingID, Detail: "embedding id is empty"}
	}
	if _, dup := v.seen[r.ID]; dup {
		return ValidationResult{
			Reason: ReasonDuplicateID,
			Detail: fmt.Sprintf("embedding id %q already seen in this run", r.ID),
		}
	}
	v.seen[r.ID] = struct{}{}

	if errs := r.DecodeErrors(); len(errs) > 0 {
		return ValidationResult{Reason: ReasonInvalidMetadata, Detail: strings.Join(errs, "; ")}
	}

	if !v.cfg.Known[r.EntityType] {
		return ValidationResult{
			Reason: ReasonUnknownEntityType,
			Detail: fmt.Sprintf("entity type %q is not registered", r.EntityType),
		}
	}
	if v.cfg.EntityType != "" && r.EntityType != v.cfg.EntityType {
		return ValidationResult{
			Reason: ReasonEntityTypeMismatch,
			Detail: fmt.Sprintf("entity type %q found in the %q collection", r.EntityType, v.cfg.EntityType),
		}
	}

	if r.PrimaryIdentifier == "" {
		return ValidationResult{Reason: ReasonMissingIdentifier, Detail: "primary identifier is empty"}
	}

	if (r.ChunkIndex == nil) != (r.ChunkTotal == nil) {
		return ValidationResult{
			Reason: ReasonChunkIncomplete,
			Detail: "chunk_index and chunk_total must be set together",
		}
	}
	if r.ChunkIndex != nil {
		idx, total := *r.ChunkIndex, *r.ChunkTotal
		if idx < 0 || idx >= total {
			return ValidationResult{
				Reason: ReasonChunkOutOfRange,
				Detail: fmt.Sprintf("chunk_index %d outside [0, %d)", idx, total),
			}
		}
		if limit := v.cfg.MaxChunkTotal; limit > 0 && total > limit {
			return ValidationResult{
				Reason: ReasonChunkOutOfRange,
				Detail: fmt.Sprintf("chunk_total %d exceeds the limit of %d", total, limit),
			}
		}
	}

	if want := v.expectedDimension(r.EmbeddingModel); want > 0 && len(r.Vector) != want {
		return ValidationResult{
			Reason: ReasonDimensionMismatch,
			Detail: fmt.Sprintf("vector has %d dimensions, model %q expects %d", len(r.Vector), r.EmbeddingModel, want),
		}
	}

	return ValidationResult{}
}

func (v *Validator) expectedDimension(model string) int {
	if d, ok := v.cfg.ModelDimensions[model]; ok && d > 0 {
		return d
	}
	return v.cfg.Dimension
}

// Failures returns a copy of the failures recorded so far.
func (v *Validator) Failures() []Failure {
	out := make([]Failure, len(v.failures))
	copy(out, v.failures)
	return out
}

// Seen returns how many distinct embedding ids this validator has observed.
func (v *Validator) Seen() int {
	return len(v.seen)
}
