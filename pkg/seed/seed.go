// Package seed generates a demo dataset of embeddings and source records
// with known correlation outcomes.
package seed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/vector"
)

const (
	// DemoModel is the embedding model recorded on every seeded vector.
	DemoModel = "all-minilm-l6-v2"

	// StaleVersion is the version recorded on deliberately outdated vectors.
	StaleVersion = "v1"

	// PropertyIDField is the key holding a property's listing id, both in
	// embedding metadata and in source rows.
	PropertyIDField = "listing_id"

	batchSize = 100
)

// Options controls the size and shape of the generated dataset.
type Options struct {
	// Seed makes generation deterministic. Zero picks a random seed.
	Seed int64

	Properties    int
	Neighborhoods int
	Articles      int

	// ChunksPerArticle is how many chunks each article is split into.
	ChunksPerArticle int

	Dimensions     int
	CurrentVersion string
}

// DefaultOptions returns a small dataset that exercises every outcome.
func DefaultOptions() Options {
	return Options{
		Properties:       20,
		Neighborhoods:    5,
		Articles:         5,
		ChunksPerArticle: 3,
		Dimensions:       384,
		CurrentVersion:   "v2",
	}
}

// Entity is the generated data of one entity type.
type Entity struct {
	EntityType embedding.EntityType
	Collection string

	// IDField is the metadata and source key holding the identifier.
	IDField string

	Documents []vector.Document
	Rows      []map[string]any
}

// Expected are the counts a correlation run over the dataset reports, given
// a source adapter that can enumerate its identifiers.
type Expected struct {
	Correlated         int
	Partial            int
	Orphaned           int
	Missing            int
	VersionMismatch    int
	ValidationFailures int
}

// Dataset is a generated demo dataset.
type Dataset struct {
	Entities []Entity
	Expected Expected
}

// Generate builds a dataset. Besides correlated identifiers it contains two
// orphaned and two missing properties, one stale property vector, one
// property vector without an identifier, and one article missing a chunk.
func Generate(o Options) *Dataset {
	g := &generator{
		faker:   gofakeit.New(o.Seed),
		opts:    o,
		started: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	ds := &Dataset{}
	ds.Entities = append(ds.Entities,
		g.properties(&ds.Expected),
		g.neighborhoods(&ds.Expected),
	)
	articles, summaries := g.wikipedia(&ds.Expected)
	ds.Entities = append(ds.Entities, articles, summaries)

	return ds
}

// Write stores every document in w and writes each entity type's source rows
// to dir as <entity_type>.jsonl.
func Write(ctx context.Context, w vector.Writer, dir string, ds *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create source directory: %w", err)
	}

	for _, e := range ds.Entities {
		for start := 0; start < len(e.Documents); start += batchSize {
			end := min(start+batchSize, len(e.Documents))
			if err := w.Add(ctx, e.Collection, e.Documents[start:end]); err != nil {
				return fmt.Errorf("seed %s: %w", e.Collection, err)
			}
		}

		if err := writeRows(SourcePath(dir, e.EntityType), e.Rows); err != nil {
			return err
		}
	}

	return nil
}

// SourcePath is the JSON Lines file holding an entity type's source rows.
func SourcePath(dir string, t embedding.EntityType) string {
	return filepath.Join(dir, string(t)+".jsonl")
}

func writeRows(path string, rows []map[string]any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return f.Close()
}

type generator struct {
	faker   *gofakeit.Faker
	opts    Options
	started time.Time
	n       int
}

func (g *generator) properties(exp *Expected) Entity {
	e := Entity{
		EntityType: embedding.EntityProperty,
		Collection: string(embedding.EntityProperty),
		IDField:    PropertyIDField,
	}

	row := func(id string) map[string]any {
		return map[string]any{
			PropertyIDField: id,
			"address":       g.faker.Street(),
			"city":          g.faker.City(),
			"bedrooms":      g.faker.Number(1, 6),
			"price":         g.faker.Number(150_000, 2_500_000),
		}
	}

	for i := range g.opts.Properties {
		id := fmt.Sprintf("L%05d", 1000+i)
		r := row(id)
		e.Rows = append(e.Rows, r)

		version := g.opts.CurrentVersion
		if i == 0 {
			version = StaleVersion
			exp.VersionMismatch++
		}
		e.Documents = append(e.Documents, g.document(e.EntityType, id, version, map[string]any{
			PropertyIDField: id,
		}, fmt.Sprint(r["address"])))
		exp.Correlated++
	}

	// Vectors whose listing was deleted from the source.
	for i := range 2 {
		id := fmt.Sprintf("L%05d", 9000+i)
		e.Documents = append(e.Documents, g.document(e.EntityType, id, g.opts.CurrentVersion, map[string]any{
			PropertyIDField: id,
		}, g.faker.Street()))
		exp.Orphaned++
	}

	// Listings that were never embedded.
	for i := range 2 {
		e.Rows = append(e.Rows, row(fmt.Sprintf("L%05d", 8000+i)))
		exp.Missing++
	}

	// A vector written without its identifier.
	e.Documents = append(e.Documents, g.document(e.EntityType, "", g.opts.CurrentVersion, nil, g.faker.Street()))
	exp.ValidationFailures++

	return e
}

func (g *generator) neighborhoods(exp *Expected) Entity {
	e := Entity{
		EntityType: embedding.EntityNeighborhood,
		Collection: string(embedding.EntityNeighborhood),
		IDField:    "id",
	}

	for i := range g.opts.Neighborhoods {
		id := fmt.Sprintf("N%03d", i+1)
		name := g.faker.City()
		e.Rows = append(e.Rows, map[string]any{"id": id, "name": name, "state": g.faker.StateAbr()})
		e.Documents = append(e.Documents, g.document(e.EntityType, id, g.opts.CurrentVersion, nil, name))
		exp.Correlated++
	}

	return e
}

func (g *generator) wikipedia(exp *Expected) (Entity, Entity) {
	articles := Entity{
		EntityType: embedding.EntityWikipediaArticle,
		Collection: string(embedding.EntityWikipediaArticle),
		IDField:    "id",
	}
	summaries := Entity{
		EntityType: embedding.EntityWikipediaSummary,
		Collection: string(embedding.EntityWikipediaSummary),
		IDField:    "id",
	}

	total := g.opts.ChunksPerArticle
	for i := range g.opts.Articles {
		id := fmt.Sprintf("W%d", 100+i)
		title := g.faker.Sentence(3)
		row := map[string]any{"id": id, "title": title, "url": g.faker.URL()}
		articles.Rows = append(articles.Rows, row)
		summaries.Rows = append(summaries.Rows, row)

		for c := range total {
			// The first article lost its second chunk.
			if i == 0 && c == 1 && total > 1 {
				continue
			}
			articles.Documents = append(articles.Documents, g.document(articles.EntityType, fmt.Sprintf("%s#%d", id, c), g.opts.CurrentVersion, map[string]any{
				embedding.KeyParentID:   id,
				embedding.KeyChunkIndex: c,
				embedding.KeyChunkTotal: total,
			}, g.faker.Paragraph(1, 3, 12, " ")))
		}
		if i == 0 && total > 1 {
			exp.Partial++
		} else {
			exp.Correlated++
		}

		summaries.Documents = append(summaries.Documents, g.document(summaries.EntityType, id, g.opts.CurrentVersion, nil, title))
		exp.Correlated++
	}

	return articles, summaries
}

// document builds one vector. An empty identifier leaves the identifier keys
// out of the metadata.
func (g *generator) document(t embedding.EntityType, identifier, version string, extra map[string]any, text string) vector.Document {
	g.n++

	sum := sha256.Sum256([]byte(text))
	meta := map[string]any{
		embedding.KeyEntityType:       string(t),
		embedding.KeySourceType:       "jsonfile",
		embedding.KeySourceFile:       string(t) + ".jsonl",
		embedding.KeyTextHash:         hex.EncodeToString(sum[:8]),
		embedding.KeyEmbeddingModel:   DemoModel,
		embedding.KeyEmbeddingVersion: version,
		embedding.KeyGeneratedAt:      g.started.Add(time.Duration(g.n) * time.Minute).Format(time.RFC3339),
	}
	if identifier != "" {
		meta[embedding.KeyPrimaryIdentifier] = identifier
	}
	for k, v := range extra {
		meta[k] = v
	}

	return vector.Document{
		ID:        fmt.Sprintf("%s-%06d", t, g.n),
		Embedding: g.vector(),
		Metadata:  meta,
	}
}

// vector returns a random unit vector.
func (g *generator) vector() []float32 {
	v := make([]float32, g.opts.Dimensions)
	var norm float64
	for i := range v {
		f := g.faker.Float64Range(-1, 1)
		v[i] = float32(f)
		norm += f * f
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
