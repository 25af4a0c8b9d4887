// Package pgvector provides a PostgreSQL vector driver using the pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/papercomputeco/splice/pkg/vector"
)

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "splice_embeddings"

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Driver implements vector.Driver on a single pgvector table keyed by
// (collection, id).
type Driver struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// Config holds configuration for the pgvector driver.
type Config struct {
	// ConnStr is a PostgreSQL connection string or URI.
	ConnStr string

	// Table holds the embeddings. Defaults to DefaultTable.
	Table string

	// Dimensions sizes the embedding column when the table is created.
	Dimensions uint
}

// NewDriver opens the database and makes sure the embeddings table exists.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.ConnStr == "" {
		return nil, errors.New("postgres connection string is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("pgvector embedding dimensions cannot be 0, must be configured")
	}

	table := c.Table
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("pgx", c.ConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			PRIMARY KEY (collection, id)
		)`, table, c.Dimensions),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	logger.Info("pgvector driver initialized",
		"table", table,
		"dimensions", c.Dimensions,
	)

	return &Driver{
		db:     db,
		table:  table,
		logger: logger,
	}, nil
}

// Add upserts documents into a collection.
func (d *Driver) Add(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	insert := entsql.Dialect(dialect.Postgres).
		Insert(d.table).
		Columns("collection", "id", "embedding", "metadata")

	for _, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for doc %s: %w", doc.ID, err)
		}
		insert.Values(collection, doc.ID, pgv.NewVector(doc.Embedding), string(meta))
	}

	insert.OnConflict(
		entsql.ConflictColumns("collection", "id"),
		entsql.ResolveWithNewValues(),
	)

	query, args := insert.Query()
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting documents: %w", err)
	}

	d.logger.Debug("added documents to pgvector",
		"collection", collection,
		"count", len(docs),
	)

	return nil
}

// Page returns documents in id order. The cursor is the last id of the
// previous page.
func (d *Driver) Page(ctx context.Context, collection string, cursor string, limit int) (vector.Page, error) {
	if limit <= 0 {
		return vector.Page{}, fmt.Errorf("page limit must be positive, got %d", limit)
	}

	query, args := PageQuery(d.table, collection, cursor, limit)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return vector.Page{}, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var (
			doc  vector.Document
			emb  pgv.Vector
			meta []byte
		)
		if err := rows.Scan(&doc.ID, &emb, &meta); err != nil {
			return vector.Page{}, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
			return vector.Page{}, fmt.Errorf("decoding metadata for doc %s: %w", doc.ID, err)
		}
		doc.Embedding = emb.Slice()
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return vector.Page{}, fmt.Errorf("iterating documents: %w", err)
	}

	page := vector.Page{}
	if len(docs) > limit {
		docs = docs[:limit]
		page.NextCursor = docs[limit-1].ID
	}
	page.Documents = docs

	d.logger.Debug("read pgvector page",
		"collection", collection,
		"cursor", cursor,
		"count", len(page.Documents),
	)

	return page, nil
}

// PageQuery builds the keyset query for one page, fetching one extra row to
// learn whether another page follows.
func PageQuery(table, collection, cursor string, limit int) (string, []any) {
	where := entsql.EQ("collection", collection)
	if cursor != "" {
		where = entsql.And(where, entsql.GT("id", cursor))
	}

	return entsql.Dialect(dialect.Postgres).
		Select("id", "embedding", "metadata").
		From(entsql.Table(table)).
		Where(where).
		OrderBy("id").
		Limit(limit + 1).
		Query()
}

// Close releases the database handle.
func (d *Driver) Close() error {
	return d.db.Close()
}
