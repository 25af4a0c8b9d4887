// Package mongo serves source records from a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/source"
)

// Identifier field kinds.
const (
	IDKindString   = "string"
	IDKindInt      = "int"
	IDKindObjectID = "objectid"
)

// DefaultBatchSize caps identifiers per $in query.
const DefaultBatchSize = 1000

// Config holds configuration for a MongoDB adapter.
type Config struct {
	// URI is the MongoDB connection string.
	URI string

	// Database and Collection locate the source documents.
	Database   string
	Collection string

	// IDField holds each document's identifier. Defaults to "_id".
	IDField string

	// IDKind is "string", "int" or "objectid".
	IDKind string

	// BatchSize caps identifiers per query.
	BatchSize int
}

// Adapter looks documents up with chunked $in finds.
type Adapter struct {
	client *mongo.Client
	coll   *mongo.Collection
	cfg    Config
	logger *slog.Logger
}

// NewAdapter connects to MongoDB.
func NewAdapter(ctx context.Context, c Config, logger *slog.Logger) (*Adapter, error) {
	if c.URI == "" {
		return nil, errors.New("mongo: uri is required")
	}
	if c.Database == "" || c.Collection == "" {
		return nil, errors.New("mongo: database and collection are required")
	}
	if c.IDField == "" {
		c.IDField = "_id"
	}
	if c.IDKind == "" {
		c.IDKind = IDKindString
	}
	switch c.IDKind {
	case IDKindString, IDKindInt, IDKindObjectID:
	default:
		return nil, fmt.Errorf("mongo: unknown id kind %q", c.IDKind)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	return &Adapter{
		client: client,
		coll:   client.Database(c.Database).Collection(c.Collection),
		cfg:    c,
		logger: logger,
	}, nil
}

// BulkGet returns the documents that exist among ids, keyed by the
// identifier as requested.
func (a *Adapter) BulkGet(ctx context.Context, ids []string) (map[string]source.Record, error) {
	bound, requested := bindIDs(a.cfg.IDKind, ids)
	out := make(map[string]source.Record, len(bound))

	for _, batch := range source.Chunk(bound, a.cfg.BatchSize) {
		cur, err := a.coll.Find(ctx, bson.M{a.cfg.IDField: bson.M{"$in": batch}})
		if err != nil {
			return nil, fmt.Errorf("mongo: find in %s: %w", a.cfg.Collection, err)
		}

		var docs []bson.M
		if err := cur.All(ctx, &docs); err != nil {
			return nil, fmt.Errorf("mongo: decoding %s: %w", a.cfg.Collection, err)
		}

		for _, doc := range docs {
			fields := toFields(doc)
			for _, id := range requested[idString(doc[a.cfg.IDField])] {
				out[id] = source.Record{ID: id, Fields: fields}
			}
		}
	}

	a.logger.Debug("mongo source lookup",
		"collection", a.cfg.Collection,
		"requested", len(ids),
		"found", len(out),
	)

	return out, nil
}

// ListIdentifiers returns every distinct identifier, sorted.
func (a *Adapter) ListIdentifiers(ctx context.Context) ([]string, error) {
	values, err := a.coll.Distinct(ctx, a.cfg.IDField, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongo: distinct %s: %w", a.cfg.IDField, err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id := idString(v); id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close disconnects the client.
func (a *Adapter) Close() error {
	return a.client.Disconnect(context.Background())
}

// bindIDs converts identifiers to the stored type, dropping ones that
// cannot exist.
// bindIDs converts ids to the stored identifier type, dropping ones that
// cannot exist. requested maps each bound value's canonical form back to the
// ids that produced it.
func bindIDs(kind string, ids []string) (bound []any, requested map[string][]string) {
	bound = make([]any, 0, len(ids))
	requested = make(map[string][]string, len(ids))
	for _, id := range ids {
		var v any
		switch kind {
		case IDKindInt:
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				continue
			}
			v = n
		case IDKindObjectID:
			oid, err := primitive.ObjectIDFromHex(id)
			if err != nil {
				continue
			}
			v = oid
		default:
			v = id
		}

		key := idString(v)
		if _, dup := requested[key]; !dup {
			bound = append(bound, v)
		}
		requested[key] = append(requested[key], id)
	}
	return bound, requested
}

func idString(v any) string {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return embedding.FormatIdentifier(v)
	}
}

// toFields converts BSON documents into plain maps and slices.
func toFields(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = plain(v)
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		return toFields(t)
	case bson.D:
		return toFields(t.Map())
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}
