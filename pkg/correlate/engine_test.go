package correlate_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/logger"
	"github.com/papercomputeco/splice/pkg/source"
	"github.com/papercomputeco/splice/pkg/source/jsonfile"
	testutils "github.com/papercomputeco/splice/pkg/utils/test"
	"github.com/papercomputeco/splice/pkg/vector"
)

var _ = Describe("Engine", func() {
	var (
		ctx        context.Context
		store      *testutils.MockVectorExporter
		registry   *source.Registry
		properties *testutils.MockAdapter
		articles   *testutils.MockAdapter
		engine     *correlate.Engine
		rc         correlate.RunConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = testutils.NewMockVectorExporter()
		registry = source.NewRegistry()

		properties = testutils.NewMockAdapter("L100")
		articles = testutils.NewMockAdapter("W5")
		registry.Register(embedding.EntityProperty, properties)
		registry.Register(embedding.EntityWikipediaArticle, articles)

		store.AddRecords("property",
			record("e1", embedding.EntityProperty, "L100"),
			record("e2", embedding.EntityProperty, "L999"),
		)
		store.AddRecords("wikipedia_article", chunk("c0", "W5", 0, 2))

		var err error
		engine, err = correlate.NewEngine(correlate.Config{Store: store, Sources: registry}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		rc = correlate.DefaultRunConfig()
		rc.Retry = fastPolicy()
		rc.PageSize = 1
		rc.CurrentVersion = "v2"
		rc.EntityTypes = []correlate.EntitySpec{
			{Name: embedding.EntityProperty, Collection: "property"},
			{Name: embedding.EntityWikipediaArticle, Collection: "wikipedia_article"},
		}
	})

	It("requires a store and a registry", func() {
		_, err := correlate.NewEngine(correlate.Config{Sources: registry}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("vector store is required")))

		_, err = correlate.NewEngine(correlate.Config{Store: store}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("source registry is required")))
	})

	It("classifies correlated, partial and orphaned identifiers", func() {
		report, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())

		Expect(report.Counts.Correlated).To(Equal(1))
		Expect(report.Counts.Partial).To(Equal(1))
		Expect(report.Counts.Orphaned).To(Equal(1))
		Expect(report.Counts.Missing).To(BeZero())

		Expect(report.Orphaned).To(ConsistOf(correlate.IdentifierRef{EntityType: embedding.EntityProperty, Identifier: "L999"}))
		Expect(report.Partial).To(HaveLen(1))
		Expect(report.Partial[0].Identifier).To(Equal("W5"))
		Expect(report.Partial[0].MissingChunks).To(Equal([]int{1}))

		Expect(report.RunID).NotTo(BeEmpty())
		Expect(report.Incomplete).To(BeFalse())
		Expect(report.EntityTypes).To(HaveLen(2))
		Expect(report.EntityTypes[embedding.EntityProperty].Exported).To(Equal(2))
		Expect(report.FailedEntityTypes()).To(BeEmpty())
	})

	It("looks each entity type up with a single bulk call", func() {
		_, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(properties.Requests).To(Equal([][]string{{"L100", "L999"}}))
		Expect(articles.Requests).To(Equal([][]string{{"W5"}}))
	})

	It("classifies source records without embeddings as missing when the adapter can enumerate", func() {
		registry.Register(embedding.EntityProperty, testutils.NewMockEnumeratingAdapter("L100", "L200"))

		report, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Missing).To(ConsistOf(correlate.IdentifierRef{EntityType: embedding.EntityProperty, Identifier: "L200"}))
	})

	It("rejects a duplicate embedding id and keeps the first", func() {
		dup := record("e1", embedding.EntityProperty, "L555")
		store.AddRecords("property", dup)

		report, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())

		Expect(report.Counts.ValidationFailures).To(Equal(1))
		Expect(report.Failures[0].EmbeddingID).To(Equal("e1"))
		Expect(report.Failures[0].Reason).To(Equal(embedding.ReasonDuplicateID))
		Expect(report.Counts.Correlated).To(Equal(1))
		Expect(report.Orphaned).NotTo(ContainElement(HaveField("Identifier", "L555")))
	})

	It("reports stale versions alongside their classification", func() {
		stale := record("e3", embedding.EntityProperty, "L101")
		stale.EmbeddingVersion = "v1"
		store.AddRecords("property", stale)
		properties.Records["L101"] = source.Record{ID: "L101"}

		report, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Counts.Correlated).To(Equal(2))
		Expect(report.Counts.VersionMismatch).To(Equal(1))
		Expect(report.VersionMismatches[0].Identifier).To(Equal("L101"))
		Expect(report.VersionMismatches[0].Versions).To(Equal([]string{"v1"}))
	})

	It("isolates an export failure to its entity type", func() {
		store.FailWith["wikipedia_article"] = errors.New("storage exploded")

		report, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())

		outcome := report.EntityTypes[embedding.EntityWikipediaArticle]
		Expect(outcome.Failed).To(BeTrue())
		Expect(outcome.Cause).To(ContainSubstring("storage exploded"))
		Expect(report.EntityTypes[embedding.EntityProperty].Failed).To(BeFalse())
		Expect(report.Counts.Correlated).To(Equal(1))
		Expect(report.Counts.Partial).To(BeZero())
		Expect(report.Summary()).To(ContainSubstring("1 of 2 entity types failed (wikipedia_article)"))
	})

	It("isolates a lookup failure to its entity type", func() {
		properties.FailAlways = true

		report, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.FailedEntityTypes()).To(Equal([]embedding.EntityType{embedding.EntityProperty}))
		Expect(report.Counts.Partial).To(Equal(1))
		Expect(properties.Calls()).To(Equal(rc.Retry.MaxAttempts))
	})

	It("recovers from transient failures on both sides", func() {
		store.FailTimes["property"] = 2
		properties.FailTimes = 1

		report, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.FailedEntityTypes()).To(BeEmpty())
		Expect(report.Counts.Correlated).To(Equal(1))
	})

	It("fails a run whose collection is missing without retrying", func() {
		rc.EntityTypes[1].Collection = "nope"

		report, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.EntityTypes[embedding.EntityWikipediaArticle].Cause).To(ContainSubstring(vector.ErrCollectionNotFound.Error()))
		Expect(store.Calls("nope")).To(Equal(1))
	})

	It("returns a ConfigError before touching the store", func() {
		rc.PageSize = 0
		report, err := engine.Run(ctx, rc)

		var cerr *correlate.ConfigError
		Expect(errors.As(err, &cerr)).To(BeTrue())
		Expect(report).To(BeNil())
		Expect(store.Calls("property")).To(BeZero())
	})

	It("lets an in-flight lookup finish and skips what has not started", func() {
		rc.MaxConcurrency = 1
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		// property runs first; cancel while its lookup is in flight
		properties.OnBulkGet = func(_ context.Context, _ []string) { cancel() }

		report, err := engine.Run(cctx, rc)
		Expect(err).To(MatchError(context.Canceled))
		Expect(report).NotTo(BeNil())

		Expect(report.Incomplete).To(BeTrue())
		Expect(report.Unprocessed).To(Equal([]embedding.EntityType{embedding.EntityWikipediaArticle}))
		Expect(report.EntityTypes[embedding.EntityProperty].Skipped).To(BeFalse())
		Expect(report.Counts.Correlated).To(Equal(1))
		Expect(store.Calls("wikipedia_article")).To(BeZero())
		Expect(report.Summary()).To(ContainSubstring("Run incomplete"))
	})

	It("does not list source identifiers once cancelled during the lookup", func() {
		rc.EntityTypes = rc.EntityTypes[:1]
		enumerating := testutils.NewMockEnumeratingAdapter("L100", "L200")
		registry.Register(embedding.EntityProperty, enumerating)

		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		enumerating.OnBulkGet = func(_ context.Context, _ []string) { cancel() }

		report, err := engine.Run(cctx, rc)
		Expect(err).To(MatchError(context.Canceled))
		Expect(enumerating.Calls()).To(Equal(1))
		Expect(enumerating.Lists).To(BeZero())
		Expect(report.EntityTypes[embedding.EntityProperty].Skipped).To(BeTrue())
		Expect(report.Unprocessed).To(Equal([]embedding.EntityType{embedding.EntityProperty}))
	})

	It("stops exporting once cancelled", func() {
		rc.EntityTypes = rc.EntityTypes[:1]
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		store.OnPage = func(_ string, cursor string) {
			if cursor != "" {
				cancel()
			}
		}

		report, err := engine.Run(cctx, rc)
		Expect(err).To(MatchError(context.Canceled))
		Expect(report.Unprocessed).To(Equal([]embedding.EntityType{embedding.EntityProperty}))
		Expect(properties.Calls()).To(BeZero())
	})

	It("sees source file edits made between runs", func() {
		path := filepath.Join(GinkgoT().TempDir(), "properties.json")
		Expect(os.WriteFile(path, []byte(`[{"id":"L100"}]`), 0o600)).To(Succeed())
		files, err := jsonfile.NewAdapter(jsonfile.Config{Pattern: path}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		registry.Register(embedding.EntityProperty, files)

		store = testutils.NewMockVectorExporter()
		store.AddRecords("property", record("e1", embedding.EntityProperty, "L100"))
		engine, err = correlate.NewEngine(correlate.Config{Store: store, Sources: registry}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		rc.EntityTypes = rc.EntityTypes[:1]

		first, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Counts.Correlated).To(Equal(1))
		Expect(first.Counts.Orphaned).To(BeZero())

		Expect(os.WriteFile(path, []byte(`[]`), 0o600)).To(Succeed())

		second, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Counts.Correlated).To(BeZero())
		Expect(second.Counts.Orphaned).To(Equal(1))
	})

	It("produces the same findings when run twice over the same data", func() {
		faker := gofakeit.New(7)
		for i := range 40 {
			id := fmt.Sprintf("P%04d", faker.Number(0, 9999))
			if i%3 == 0 {
				properties.Records[id] = source.Record{ID: id, Fields: map[string]any{"street": faker.Street()}}
			}
			store.AddRecords("property", record(fmt.Sprintf("gen-%d", i), embedding.EntityProperty, id))
		}

		first, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())
		second, err := engine.Run(ctx, rc)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.RunID).NotTo(Equal(first.RunID))
		for _, r := range []*correlate.Report{first, second} {
			r.RunID = ""
			r.StartedAt = time.Time{}
			r.FinishedAt = time.Time{}
		}
		Expect(second).To(Equal(first))
	})
})
