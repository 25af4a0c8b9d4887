package correlate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/retry"
	"github.com/papercomputeco/splice/pkg/source"
)

// Orchestrator issues one bulk lookup per entity type through the adapter
// registered for it.
type Orchestrator struct {
	registry *source.Registry
	policy   retry.Policy
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. Adapter calls are retried under
// policy.
func NewOrchestrator(registry *source.Registry, policy retry.Policy, logger *slog.Logger) *Orchestrator {
	if policy.Permanent == nil {
		policy.Permanent = func(err error) bool {
			return errors.Is(err, source.ErrUnknownEntityType)
		}
	}
	return &Orchestrator{registry: registry, policy: policy, logger: logger}
}

// Lookup fetches the source records for ids. Identifiers the source does not
// hold are absent from the result. Errors are *source.LookupError.
func (o *Orchestrator) Lookup(ctx context.Context, t embedding.EntityType, ids IdentifierSet) (map[string]source.Record, error) {
	if len(ids) == 0 {
		return map[string]source.Record{}, nil
	}

	adapter, err := o.registry.Adapter(t)
	if err != nil {
		return nil, &source.LookupError{EntityType: t, Err: err}
	}

	sorted := ids.Sorted()
	records, err := retry.Do(ctx, o.withLogging(t, "bulk_get"), func(ctx context.Context) (map[string]source.Record, error) {
		return adapter.BulkGet(ctx, sorted)
	})
	if err != nil {
		return nil, &source.LookupError{EntityType: t, Err: err}
	}

	// adapters may return extra rows; keep only what was asked for
	out := make(map[string]source.Record, len(records))
	for id, r := range records {
		if ids.Has(id) {
			out[id] = r
		}
	}

	o.logger.Debug("source lookup finished",
		"entity_type", t,
		"requested", len(ids),
		"found", len(out),
	)

	return out, nil
}

// Enumerates reports whether the adapter for t can list its identifiers.
func (o *Orchestrator) Enumerates(t embedding.EntityType) bool {
	adapter, err := o.registry.Adapter(t)
	if err != nil {
		return false
	}
	_, ok := adapter.(source.Enumerator)
	return ok
}

// Universe lists every identifier the entity type's source holds. ok is
// false when the adapter cannot enumerate.
func (o *Orchestrator) Universe(ctx context.Context, t embedding.EntityType) ([]string, bool, error) {
	adapter, err := o.registry.Adapter(t)
	if err != nil {
		return nil, false, &source.LookupError{EntityType: t, Err: err}
	}

	enum, ok := adapter.(source.Enumerator)
	if !ok {
		return nil, false, nil
	}

	ids, err := retry.Do(ctx, o.withLogging(t, "list_identifiers"), func(ctx context.Context) ([]string, error) {
		return enum.ListIdentifiers(ctx)
	})
	if err != nil {
		return nil, false, &source.LookupError{EntityType: t, Err: err}
	}
	return ids, true, nil
}

func (o *Orchestrator) withLogging(t embedding.EntityType, op string) retry.Policy {
	p := o.policy
	p.OnRetry = func(attempt int, err error) {
		o.logger.Warn("retrying source call",
			"entity_type", t,
			"op", op,
			"attempt", attempt,
			"error", err,
		)
	}
	return p
}
