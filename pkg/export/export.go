// Package export streams embedding records out of a vector store page by page.
package export

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/retry"
	"github.com/papercomputeco/splice/pkg/vector"
)

// FetchError is yielded when a page could not be fetched. It ends the export
// of its collection only.
type FetchError struct {
	Collection string
	Cursor     string
	Page       int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("exporting collection %q page %d: %v", e.Collection, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config configures an Exporter.
type Config struct {
	// Store is the vector store being read.
	Store vector.Exporter

	// Retry governs each page fetch.
	Retry retry.Policy

	// RequestsPerSecond throttles page fetches across all exports sharing
	// this Exporter. Zero disables throttling.
	RequestsPerSecond float64

	// IDFields maps a collection to the metadata key holding its primary
	// identifier. Collections without an entry use "primary_identifier".
	IDFields map[string]string
}

// Exporter turns vector store pages into embedding records. It is safe for
// concurrent use; each call to Export is independent of every other.
type Exporter struct {
	store    vector.Exporter
	policy   retry.Policy
	limiter  *rate.Limiter
	idFields map[string]string
	logger   *slog.Logger
}

// New creates an Exporter.
func New(c Config, logger *slog.Logger) (*Exporter, error) {
	if c.Store == nil {
		return nil, errors.New("export: vector store is required")
	}

	e := &Exporter{
		store:    c.Store,
		policy:   c.Retry,
		idFields: c.IDFields,
		logger:   logger,
	}
	if c.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
	}

	if e.policy.Permanent == nil {
		e.policy.Permanent = Permanent
	}

	return e, nil
}

// Permanent reports store errors that retrying cannot fix.
func Permanent(err error) bool {
	return errors.Is(err, vector.ErrCollectionNotFound) || errors.Is(err, vector.ErrInvalidCursor)
}

// Export lazily reads collection in batches of at most pageSize records.
//
// The sequence is finite and restartable: ranging over it again starts from
// the first page. A failed page yields a *FetchError and ends the sequence.
// When ctx is done no further page is requested and ctx's error is yielded.
func (e *Exporter) Export(ctx context.Context, collection string, pageSize int) iter.Seq2[[]embedding.Record, error] {
	return func(yield func([]embedding.Record, error) bool) {
		if pageSize <= 0 {
			yield(nil, fmt.Errorf("export: page size must be positive, got %d", pageSize))
			return
		}

		idField := e.idFields[collection]
		cursor := ""

		for pageNum := 1; ; pageNum++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					yield(nil, ctx.Err())
					return
				}
			}

			from := cursor
			page, err := retry.Do(ctx, e.withLogging(collection, pageNum), func(ctx context.Context) (vector.Page, error) {
				return e.store.Page(ctx, collection, from, pageSize)
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(nil, ctxErr)
					return
				}
				yield(nil, &FetchError{Collection: collection, Cursor: from, Page: pageNum, Err: err})
				return
			}

			records := make([]embedding.Record, 0, len(page.Documents))
			for _, doc := range page.Documents {
				records = append(records, embedding.FromMetadata(doc.ID, doc.Embedding, doc.Metadata, idField))
			}

			e.logger.Debug("exported page",
				"collection", collection,
				"page", pageNum,
				"records", len(records),
			)

			if len(records) > 0 && !yield(records, nil) {
				return
			}

			if page.NextCursor == "" {
				return
			}
			if page.NextCursor == from {
				yield(nil, &FetchError{
					Collection: collection,
					Cursor:     from,
					Page:       pageNum,
					Err:        fmt.Errorf("%w: cursor did not advance", vector.ErrInvalidCursor),
				})
				return
			}
			cursor = page.NextCursor
		}
	}
}

func (e *Exporter) withLogging(collection string, page int) retry.Policy {
	p := e.policy
	p.OnRetry = func(attempt int, err error) {
		e.logger.Warn("retrying page fetch",
			"collection", collection,
			"page", page,
			"attempt", attempt,
			"error", err,
		)
	}
	return p
}
