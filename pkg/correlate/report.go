package correlate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/papercomputeco/splice/pkg/embedding"
)

// Counts tallies one report or one entity type.
type Counts struct {
	Correlated         int `json:"correlated"`
	Partial            int `json:"partial"`
	Orphaned           int `json:"orphaned"`
	Missing            int `json:"missing"`
	VersionMismatch    int `json:"version_mismatch"`
	ValidationFailures int `json:"validation_failures"`
	Warnings           int `json:"warnings"`
}

// Identifiers returns how many identifiers were classified.
func (c Counts) Identifiers() int {
	return c.Correlated + c.Partial + c.Orphaned + c.Missing
}

func (c *Counts) add(o Counts) {
	c.Correlated += o.Correlated
	c.Partial += o.Partial
	c.Orphaned += o.Orphaned
	c.Missing += o.Missing
	c.VersionMismatch += o.VersionMismatch
	c.ValidationFailures += o.ValidationFailures
	c.Warnings += o.Warnings
}

// IdentifierRef names one identifier of one entity type.
type IdentifierRef struct {
	EntityType embedding.EntityType `json:"entity_type"`
	Identifier string               `json:"identifier"`
}

// PartialGroup describes an identifier whose chunks are incomplete.
type PartialGroup struct {
	EntityType    embedding.EntityType `json:"entity_type"`
	Identifier    string               `json:"identifier"`
	ChunkTotal    int                  `json:"chunk_total"`
	MissingChunks []int                `json:"missing_chunks"`
	MissingCount  int                  `json:"missing_count"`
	Inconsistent  bool                 `json:"inconsistent,omitempty"`
}

// VersionWarning flags an identifier embedded with a stale version.
type VersionWarning struct {
	EntityType embedding.EntityType `json:"entity_type"`
	Identifier string               `json:"identifier"`
	Status     Status               `json:"status"`
	Versions   []string             `json:"versions"`
}

// EntityOutcome is the fate of one entity type within a run.
type EntityOutcome struct {
	EntityType embedding.EntityType `json:"entity_type"`
	Collection string               `json:"collection,omitempty"`

	// Exported is how many records were read from the vector store.
	Exported int `json:"exported"`

	// Failed is set when export or lookup gave up; Cause holds the error.
	Failed bool   `json:"failed"`
	Cause  string `json:"cause,omitempty"`

	// Skipped is set when cancellation stopped the entity type before it
	// finished.
	Skipped bool `json:"skipped,omitempty"`

	Counts Counts `json:"counts"`
}

// Report is the result of one run. It is built once and not modified after
// Engine.Run returns it.
type Report struct {
	RunID      string    `json:"run_id,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	CurrentVersion string `json:"current_version,omitempty"`

	Counts Counts `json:"counts"`

	Orphaned          []IdentifierRef     `json:"orphaned"`
	Missing           []IdentifierRef     `json:"missing"`
	Partial           []PartialGroup      `json:"partial"`
	VersionMismatches []VersionWarning    `json:"version_mismatches"`
	Warnings          []Warning           `json:"warnings"`
	Failures          []embedding.Failure `json:"validation_failures"`

	EntityTypes map[embedding.EntityType]EntityOutcome `json:"entity_types"`

	// Incomplete is set when the run was cancelled; Unprocessed lists the
	// entity types it did not finish.
	Incomplete  bool                   `json:"incomplete"`
	Unprocessed []embedding.EntityType `json:"unprocessed,omitempty"`
}

// Summarize aggregates correlation groups into a report. It performs no I/O.
func Summarize(groups []Group) Report {
	r := newReport()

	for _, g := range groups {
		ref := IdentifierRef{EntityType: g.EntityType, Identifier: g.Identifier}

		switch g.Status {
		case StatusCorrelated:
			r.Counts.Correlated++
		case StatusPartial:
			r.Counts.Partial++
			missing := g.MissingChunks
			if missing == nil {
				missing = []int{}
			}
			r.Partial = append(r.Partial, PartialGroup{
				EntityType:    g.EntityType,
				Identifier:    g.Identifier,
				ChunkTotal:    g.ChunkTotal,
				MissingChunks: missing,
				MissingCount:  g.MissingCount,
				Inconsistent:  g.Inconsistent,
			})
		case StatusOrphaned:
			r.Counts.Orphaned++
			r.Orphaned = append(r.Orphaned, ref)
		case StatusMissing:
			r.Counts.Missing++
			r.Missing = append(r.Missing, ref)
		}

		if g.VersionMismatch {
			r.Counts.VersionMismatch++
			r.VersionMismatches = append(r.VersionMismatches, VersionWarning{
				EntityType: g.EntityType,
				Identifier: g.Identifier,
				Status:     g.Status,
				Versions:   g.Versions,
			})
		}

		r.Warnings = append(r.Warnings, g.Warnings...)
	}
	r.Counts.Warnings = len(r.Warnings)

	return r
}

func newReport() Report {
	return Report{
		Orphaned:          []IdentifierRef{},
		Missing:           []IdentifierRef{},
		Partial:           []PartialGroup{},
		VersionMismatches: []VersionWarning{},
		Warnings:          []Warning{},
		Failures:          []embedding.Failure{},
		EntityTypes:       make(map[embedding.EntityType]EntityOutcome),
	}
}

// merge folds another report's findings into r.
func (r *Report) merge(o Report) {
	r.Counts.add(o.Counts)
	r.Orphaned = append(r.Orphaned, o.Orphaned...)
	r.Missing = append(r.Missing, o.Missing...)
	r.Partial = append(r.Partial, o.Partial...)
	r.VersionMismatches = append(r.VersionMismatches, o.VersionMismatches...)
	r.Warnings = append(r.Warnings, o.Warnings...)
	r.Failures = append(r.Failures, o.Failures...)
}

// FailedEntityTypes lists entity types that failed, sorted.
func (r *Report) FailedEntityTypes() []embedding.EntityType {
	var out []embedding.EntityType
	for t, o := range r.EntityTypes {
		if o.Failed {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clean reports whether every entity type completed and every identifier
// correlated.
func (r *Report) Clean() bool {
	return !r.Incomplete &&
		len(r.FailedEntityTypes()) == 0 &&
		r.Counts.Partial == 0 &&
		r.Counts.Orphaned == 0 &&
		r.Counts.Missing == 0
}

// Summary returns a human-readable summary of the report.
func (r *Report) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Correlation complete: %d correlated, %d partial, %d orphaned, %d missing\n",
		r.Counts.Correlated, r.Counts.Partial, r.Counts.Orphaned, r.Counts.Missing)
	fmt.Fprintf(&b, "%d version mismatches, %d validation failures, %d warnings\n",
		r.Counts.VersionMismatch, r.Counts.ValidationFailures, r.Counts.Warnings)

	failed := r.FailedEntityTypes()
	fmt.Fprintf(&b, "%d of %d entity types failed", len(failed), len(r.EntityTypes))
	if len(failed) > 0 {
		names := make([]string, len(failed))
		for i, t := range failed {
			names[i] = string(t)
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(names, ", "))
	}

	if r.Incomplete {
		names := make([]string, len(r.Unprocessed))
		for i, t := range r.Unprocessed {
			names[i] = string(t)
		}
		fmt.Fprintf(&b, "\nRun incomplete: %d entity types not processed (%s)", len(r.Unprocessed), strings.Join(names, ", "))
	}

	return b.String()
}
