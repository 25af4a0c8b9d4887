package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/splice/pkg/correlate"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeReportCompleted is emitted after a correlation run produces a report.
	EventTypeReportCompleted = "splice.report.completed"
)

// ReportCompletedEvent is a transport-neutral event payload for a finished run.
type ReportCompletedEvent struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	EventID       string            `json:"event_id"`
	EmittedAt     time.Time         `json:"emitted_at"`
	Source        EventSource       `json:"source"`
	Outcome       RunOutcome        `json:"outcome"`
	Report        *correlate.Report `json:"report"`
}

// EventSource identifies the deployment that ran the correlation.
type EventSource struct {
	Host        string `json:"host,omitempty"`
	VectorStore string `json:"vector_store"`
}

// RunOutcome summarizes the report for consumers that only route on status.
type RunOutcome struct {
	Clean             bool     `json:"clean"`
	Incomplete        bool     `json:"incomplete"`
	FailedEntityTypes []string `json:"failed_entity_types"`
	DurationMs        int64    `json:"duration_ms"`
}

// NewReportCompletedEvent wraps a report in an event envelope.
func NewReportCompletedEvent(report *correlate.Report, source EventSource, now time.Time) *ReportCompletedEvent {
	failed := []string{}
	for _, t := range report.FailedEntityTypes() {
		failed = append(failed, string(t))
	}

	return &ReportCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeReportCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		Source:        source,
		Outcome: RunOutcome{
			Clean:             report.Clean(),
			Incomplete:        report.Incomplete,
			FailedEntityTypes: failed,
			DurationMs:        report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
		},
		Report: report,
	}
}
