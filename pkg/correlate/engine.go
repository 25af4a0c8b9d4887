package correlate

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/export"
	"github.com/papercomputeco/splice/pkg/source"
	"github.com/papercomputeco/splice/pkg/vector"
	"github.com/papercomputeco/splice/pkg/worker"
)

// Config configures an Engine.
type Config struct {
	// Store is the vector store embeddings are exported from.
	Store vector.Exporter

	// Sources maps entity types to their source adapters.
	Sources *source.Registry

	// RequestsPerSecond throttles page fetches. Zero disables throttling.
	RequestsPerSecond float64
}

// Engine runs correlation batches. It holds no state between runs.
type Engine struct {
	store   vector.Exporter
	sources *source.Registry
	rps     float64
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(c Config, logger *slog.Logger) (*Engine, error) {
	if c.Store == nil {
		return nil, errors.New("correlate: vector store is required")
	}
	if c.Sources == nil {
		return nil, errors.New("correlate: source registry is required")
	}
	return &Engine{
		store:   c.Store,
		sources: c.Sources,
		rps:     c.RequestsPerSecond,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// entityResult is what one entity type's job hands back to the run.
type entityResult struct {
	outcome EntityOutcome
	report  Report
}

// Run correlates every registered entity type once.
//
// A *ConfigError is returned before any I/O when rc is unusable. Otherwise a
// report is always returned. When ctx is cancelled, entity types that have
// not started are skipped, lookups already in flight finish, and the report
// is returned marked incomplete together with ctx's error.
func (e *Engine) Run(ctx context.Context, rc RunConfig) (*Report, error) {
	if err := rc.Validate(e.sources); err != nil {
		return nil, err
	}

	started := e.now()
	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID)

	idFields := make(map[string]string, len(rc.EntityTypes))
	for _, spec := range rc.EntityTypes {
		if spec.IDField != "" {
			idFields[spec.Collection] = spec.IDField
		}
	}

	exporter, err := export.New(export.Config{
		Store:             e.store,
		Retry:             rc.Retry,
		RequestsPerSecond: e.rps,
		IDFields:          idFields,
	}, logger)
	if err != nil {
		return nil, &ConfigError{Problems: []string{err.Error()}}
	}

	r := &runner{
		rc:           rc,
		known:        rc.Known(),
		exporter:     exporter,
		orchestrator: NewOrchestrator(e.sources, rc.Retry, logger),
		logger:       logger,
		results:      make(map[embedding.EntityType]entityResult, len(rc.EntityTypes)),
	}

	workers := min(len(rc.EntityTypes), rc.MaxConcurrency)
	pool, err := worker.NewPool(ctx, &worker.Config[EntitySpec]{
		Handle:     r.process,
		Skip:       r.skip,
		NumWorkers: uint(workers),
		QueueSize:  uint(len(rc.EntityTypes)),
		Logger:     logger,
	})
	if err != nil {
		return nil, &ConfigError{Problems: []string{err.Error()}}
	}

	logger.Info("correlation run started",
		"entity_types", len(rc.EntityTypes),
		"workers", workers,
		"page_size", rc.PageSize,
	)

	for _, spec := range rc.EntityTypes {
		pool.Enqueue(spec)
	}
	pool.Close()

	report := r.assemble()
	report.RunID = runID
	report.StartedAt = started
	report.FinishedAt = e.now()
	report.CurrentVersion = rc.CurrentVersion

	logger.Info("correlation run finished",
		"correlated", report.Counts.Correlated,
		"partial", report.Counts.Partial,
		"orphaned", report.Counts.Orphaned,
		"missing", report.Counts.Missing,
		"incomplete", report.Incomplete,
	)

	if report.Incomplete {
		return report, ctx.Err()
	}
	return report, nil
}

// runner holds the state of one run. Each entity type is written by a
// single job.
type runner struct {
	rc           RunConfig
	known        map[embedding.EntityType]bool
	exporter     *export.Exporter
	orchestrator *Orchestrator
	logger       *slog.Logger

	mu      sync.Mutex
	results map[embedding.EntityType]entityResult
}

func (r *runner) record(res entityResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[res.outcome.EntityType] = res
}

func (r *runner) skip(spec EntitySpec) {
	r.logger.Warn("entity type skipped after cancellation", "entity_type", spec.Name)
	r.record(entityResult{
		outcome: EntityOutcome{EntityType: spec.Name, Collection: spec.Collection, Skipped: true},
		report:  newReport(),
	})
}

// process runs one entity type: export, validate, extract, look up, group,
// correlate and summarize.
func (r *runner) process(ctx context.Context, spec EntitySpec) {
	logger := r.logger.With("entity_type", spec.Name, "collection", spec.Collection)
	logger.Info("correlating entity type")

	outcome := EntityOutcome{EntityType: spec.Name, Collection: spec.Collection}
	validator := embedding.NewValidator(embedding.ValidatorConfig{
		EntityType:      spec.Name,
		Known:           r.known,
		Dimension:       spec.Dimension,
		ModelDimensions: r.rc.Models,
		MaxChunkTotal:   r.rc.MaxChunkTotal,
	})

	finish := func(rep Report) {
		rep.Failures = append(rep.Failures, validator.Failures()...)
		rep.Counts.ValidationFailures = len(rep.Failures)
		outcome.Counts = rep.Counts
		r.record(entityResult{outcome: outcome, report: rep})
	}

	var valid []embedding.Record
	for batch, err := range r.exporter.Export(ctx, spec.Collection, r.rc.PageSize) {
		if err != nil {
			if ctx.Err() != nil {
				logger.Warn("export interrupted by cancellation", "exported", outcome.Exported)
				outcome.Skipped = true
				finish(newReport())
				return
			}
			logger.Error("export failed", "error", err)
			outcome.Failed = true
			outcome.Cause = err.Error()
			finish(newReport())
			return
		}

		outcome.Exported += len(batch)
		for _, rec := range batch {
			if validator.Validate(rec).OK() {
				valid = append(valid, rec)
			}
		}
	}

	// no new lookups once cancelled
	if ctx.Err() != nil {
		outcome.Skipped = true
		finish(newReport())
		return
	}

	// a lookup that has started is allowed to finish
	lookupCtx := context.WithoutCancel(ctx)
	ids := Extract(valid)[spec.Name]
	if ids == nil {
		ids = IdentifierSet{}
	}

	sources, err := r.orchestrator.Lookup(lookupCtx, spec.Name, ids)
	if err != nil {
		logger.Error("source lookup failed", "error", err)
		outcome.Failed = true
		outcome.Cause = err.Error()
		finish(newReport())
		return
	}

	// listing identifiers would be a new adapter call
	if ctx.Err() != nil && r.orchestrator.Enumerates(spec.Name) {
		logger.Warn("cancelled before listing source identifiers", "looked_up", len(ids))
		outcome.Skipped = true
		finish(newReport())
		return
	}

	universe, _, err := r.orchestrator.Universe(lookupCtx, spec.Name)
	if err != nil {
		logger.Error("listing source identifiers failed", "error", err)
		outcome.Failed = true
		outcome.Cause = err.Error()
		finish(newReport())
		return
	}

	groups := Correlate(spec.Name, GroupChunks(valid), sources, universe, r.rc.CurrentVersion)
	rep := Summarize(groups)

	logger.Info("entity type correlated",
		"exported", outcome.Exported,
		"identifiers", rep.Counts.Identifiers(),
		"correlated", rep.Counts.Correlated,
	)

	finish(rep)
}

// assemble merges per entity type results in entity type order.
func (r *runner) assemble() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	specs := append([]EntitySpec(nil), r.rc.EntityTypes...)
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	report := newReport()
	for _, spec := range specs {
		res, ok := r.results[spec.Name]
		if !ok {
			// never dequeued: the pool was cancelled before it ran
			res = entityResult{
				outcome: EntityOutcome{EntityType: spec.Name, Collection: spec.Collection, Skipped: true},
				report:  newReport(),
			}
		}

		report.EntityTypes[spec.Name] = res.outcome
		report.merge(res.report)

		if res.outcome.Skipped {
			report.Incomplete = true
			report.Unprocessed = append(report.Unprocessed, spec.Name)
		}
	}
	return &report
}
