// Package qdrant provides a Qdrant vector driver over the gRPC client.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/splice/pkg/vector"
)

// DocIDKey is the payload key holding the original document id. Qdrant only
// accepts unsigned integers and UUIDs as point ids, so other ids are mapped
// to a name-based UUID and kept in the payload.
const DocIDKey = "_splice_id"

// pointNamespace seeds the name-based UUIDs derived from document ids.
var pointNamespace = uuid.MustParse("6b1f0c5e-7a57-4b8e-9d3a-1c2f5e0b9a41")

// Driver implements vector.Driver using Qdrant.
type Driver struct {
	client     *qdrant.Client
	dimensions uint64
	logger     *slog.Logger

	// mu guards known
	mu sync.Mutex

	// known caches collections confirmed to exist
	known map[string]bool
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant host name.
	Host string

	// Port is the Qdrant gRPC port. Defaults to 6334.
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// Dimensions sizes collections created while seeding.
	Dimensions uint
}

// NewDriver creates a new Qdrant vector driver.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, errors.New("qdrant host is required")
	}

	port := c.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	logger.Info("qdrant vector driver initialized",
		"host", c.Host,
		"port", port,
	)

	return &Driver{
		client:     client,
		dimensions: uint64(c.Dimensions),
		logger:     logger,
		known:      make(map[string]bool),
	}, nil
}

// ensureCollection confirms a collection exists, creating it when create is set.
func (d *Driver) ensureCollection(ctx context.Context, name string, create bool) error {
	d.mu.Lock()
	ok := d.known[name]
	d.mu.Unlock()
	if ok {
		return nil
	}

	exists, err := d.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	if !exists {
		if !create {
			return fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
		}
		if d.dimensions == 0 {
			return errors.New("qdrant embedding dimensions cannot be 0 when creating a collection")
		}
		err := d.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     d.dimensions,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %q: %w", name, err)
		}
	}

	d.mu.Lock()
	d.known[name] = true
	d.mu.Unlock()

	return nil
}

// Add upserts documents into a collection, creating it if needed.
func (d *Driver) Add(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	if err := d.ensureCollection(ctx, collection, true); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		payload := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			payload[k] = v
		}
		payload[DocIDKey] = doc.ID

		values, err := qdrant.TryValueMap(payload)
		if err != nil {
			return fmt.Errorf("converting payload for doc %s: %w", doc.ID, err)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      PointID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: values,
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant",
		"collection", collection,
		"count", len(docs),
	)

	return nil
}

// Page scrolls a collection in point id order. The cursor is the point id of
// the first document of the next page.
func (d *Driver) Page(ctx context.Context, collection string, cursor string, limit int) (vector.Page, error) {
	if limit <= 0 {
		return vector.Page{}, fmt.Errorf("page limit must be positive, got %d", limit)
	}

	req := &qdrant.ScrollPoints{
		CollectionName: collection,
		// One extra point tells us where the next page starts.
		Limit:       qdrant.PtrOf(uint32(limit + 1)),
		WithPayload: qdrant.NewWithPayload(true),
		WithVectors: qdrant.NewWithVectors(true),
	}
	if cursor != "" {
		offset, err := ParseCursor(cursor)
		if err != nil {
			return vector.Page{}, err
		}
		req.Offset = offset
	}

	if err := d.ensureCollection(ctx, collection, false); err != nil {
		return vector.Page{}, err
	}

	points, err := d.client.Scroll(ctx, req)
	if err != nil {
		return vector.Page{}, fmt.Errorf("scrolling points: %w", err)
	}

	page := vector.Page{}
	if len(points) > limit {
		page.NextCursor = FormatCursor(points[limit].GetId())
		points = points[:limit]
	}

	page.Documents = make([]vector.Document, 0, len(points))
	for _, p := range points {
		page.Documents = append(page.Documents, toDocument(p))
	}

	d.logger.Debug("read qdrant page",
		"collection", collection,
		"cursor", cursor,
		"count", len(page.Documents),
	)

	return page, nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

// PointID maps a document id onto a Qdrant point id.
func PointID(docID string) *qdrant.PointId {
	if n, err := strconv.ParseUint(docID, 10, 64); err == nil {
		return qdrant.NewIDNum(n)
	}
	if u, err := uuid.Parse(docID); err == nil {
		return qdrant.NewID(u.String())
	}
	return qdrant.NewID(uuid.NewSHA1(pointNamespace, []byte(docID)).String())
}

// FormatCursor encodes a point id as an export cursor.
func FormatCursor(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return "u:" + u
	}
	return "n:" + strconv.FormatUint(id.GetNum(), 10)
}

// ParseCursor decodes a cursor produced by FormatCursor.
func ParseCursor(cursor string) (*qdrant.PointId, error) {
	if len(cursor) < 3 || cursor[1] != ':' {
		return nil, fmt.Errorf("%w: %q", vector.ErrInvalidCursor, cursor)
	}

	switch cursor[0] {
	case 'u':
		u, err := uuid.Parse(cursor[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", vector.ErrInvalidCursor, cursor)
		}
		return qdrant.NewID(u.String()), nil
	case 'n':
		n, err := strconv.ParseUint(cursor[2:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", vector.ErrInvalidCursor, cursor)
		}
		return qdrant.NewIDNum(n), nil
	default:
		return nil, fmt.Errorf("%w: %q", vector.ErrInvalidCursor, cursor)
	}
}

func toDocument(p *qdrant.RetrievedPoint) vector.Document {
	doc := vector.Document{
		Metadata: make(map[string]any, len(p.GetPayload())),
	}

	for k, v := range p.GetPayload() {
		doc.Metadata[k] = FromValue(v)
	}

	if id, ok := doc.Metadata[DocIDKey].(string); ok {
		doc.ID = id
		delete(doc.Metadata, DocIDKey)
	} else if u := p.GetId().GetUuid(); u != "" {
		doc.ID = u
	} else {
		doc.ID = strconv.FormatUint(p.GetId().GetNum(), 10)
	}

	if v := p.GetVectors().GetVector(); v != nil {
		doc.Embedding = v.GetData()
	}

	return doc
}

// FromValue converts a Qdrant payload value into plain Go values.
func FromValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for key, field := range k.StructValue.GetFields() {
			out[key] = FromValue(field)
		}
		return out
	case *qdrant.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			out = append(out, FromValue(item))
		}
		return out
	default:
		return nil
	}
}
