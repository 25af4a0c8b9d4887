// Package sqlsource serves source records from a SQL table.
package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/source"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Identifier column kinds.
const (
	IDKindString = "string"
	IDKindInt    = "int"
)

// DefaultBatchSize keeps IN lists well under every driver's parameter limit.
const DefaultBatchSize = 500

// Config holds configuration for a SQL adapter.
type Config struct {
	// Driver is "postgres" or "sqlite3".
	Driver string

	// DSN is the driver connection string.
	DSN string

	// Table holds the source records.
	Table string

	// IDColumn holds each record's identifier. Defaults to "id".
	IDColumn string

	// IDKind is "string" or "int" and controls how identifiers are bound.
	IDKind string

	// Columns limits the fields returned. Empty selects every column.
	Columns []string

	// BatchSize caps identifiers per query.
	BatchSize int
}

// Adapter looks records up with chunked IN queries.
type Adapter struct {
	db      *sql.DB
	dialect string
	cfg     Config
	logger  *slog.Logger
}

// NewAdapter opens the database.
func NewAdapter(ctx context.Context, c Config, logger *slog.Logger) (*Adapter, error) {
	if c.Table == "" {
		return nil, errors.New("sqlsource: table is required")
	}
	if c.IDColumn == "" {
		c.IDColumn = "id"
	}
	if c.IDKind == "" {
		c.IDKind = IDKindString
	}
	if c.IDKind != IDKindString && c.IDKind != IDKindInt {
		return nil, fmt.Errorf("sqlsource: unknown id kind %q", c.IDKind)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	var driverName, d string
	switch c.Driver {
	case DriverPostgres:
		driverName, d = "pgx", dialect.Postgres
	case DriverSQLite, "sqlite":
		driverName, d = "sqlite3", dialect.SQLite
	default:
		return nil, fmt.Errorf("sqlsource: unsupported driver %q", c.Driver)
	}

	db, err := sql.Open(driverName, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewAdapterFromDB(db, d, c, logger), nil
}

// NewAdapterFromDB wraps an open database. c must already carry defaults.
func NewAdapterFromDB(db *sql.DB, d string, c Config, logger *slog.Logger) *Adapter {
	if c.IDColumn == "" {
		c.IDColumn = "id"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if len(c.Columns) > 0 && !slices.Contains(c.Columns, c.IDColumn) {
		c.Columns = append(slices.Clone(c.Columns), c.IDColumn)
	}
	return &Adapter{db: db, dialect: d, cfg: c, logger: logger}
}

// BulkGet returns the records that exist among ids. Rows are keyed by the
// identifier as requested, so "007" finds the row with integer id 7.
func (a *Adapter) BulkGet(ctx context.Context, ids []string) (map[string]source.Record, error) {
	requested := make(map[string][]string, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		v, ok := a.bind(id)
		if !ok {
			// cannot exist in an integer column
			continue
		}
		key := embedding.FormatIdentifier(v)
		if _, dup := requested[key]; !dup {
			args = append(args, v)
		}
		requested[key] = append(requested[key], id)
	}

	rows := make(map[string]source.Record, len(args))
	for _, batch := range source.Chunk(args, a.cfg.BatchSize) {
		query, qargs := a.selectIn(batch)
		if err := a.scan(ctx, query, qargs, rows); err != nil {
			return nil, err
		}
	}

	out := make(map[string]source.Record, len(rows))
	for key, rec := range rows {
		for _, id := range requested[key] {
			rec.ID = id
			out[id] = rec
		}
	}

	a.logger.Debug("sql source lookup",
		"table", a.cfg.Table,
		"requested", len(ids),
		"found", len(out),
	)

	return out, nil
}

// ListIdentifiers returns every identifier in the table, sorted.
func (a *Adapter) ListIdentifiers(ctx context.Context) ([]string, error) {
	query, args := entsql.Dialect(a.dialect).
		Select(a.cfg.IDColumn).
		From(entsql.Table(a.cfg.Table)).
		Query()

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing identifiers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning identifier: %w", err)
		}
		if id := embedding.FormatIdentifier(normalize(v)); id != "" {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identifiers: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// Close releases the database handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) bind(id string) (any, bool) {
	if a.cfg.IDKind != IDKindInt {
		return id, true
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, false
	}
	return n, true
}

// selectIn builds the lookup query for one batch of bound identifiers.
func (a *Adapter) selectIn(args []any) (string, []any) {
	return entsql.Dialect(a.dialect).
		Select(a.cfg.Columns...).
		From(entsql.Table(a.cfg.Table)).
		Where(entsql.In(a.cfg.IDColumn, args...)).
		Query()
}

func (a *Adapter) scan(ctx context.Context, query string, args []any, out map[string]source.Record) error {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying %s: %w", a.cfg.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("reading columns: %w", err)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scanning %s row: %w", a.cfg.Table, err)
		}

		fields := make(map[string]any, len(cols))
		for i, col := range cols {
			fields[col] = normalize(values[i])
		}

		id := embedding.FormatIdentifier(fields[a.cfg.IDColumn])
		if id == "" {
			continue
		}
		out[id] = source.Record{ID: id, Fields: fields}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s rows: %w", a.cfg.Table, err)
	}
	return nil
}

// normalize turns driver byte slices into strings.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
