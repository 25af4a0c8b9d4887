package embedding_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/splice/pkg/embedding"
)

var _ = Describe("FromMetadata", func() {
	It("decodes the entity-specific identifier field", func() {
		r := embedding.FromMetadata("e1", []float32{1, 2}, map[string]any{
			"entity_type":       "property",
			"listing_id":        "L100",
			"embedding_model":   "nomic-embed-text",
			"embedding_version": "v2",
			"text_hash":         "abc",
			"source_file":       "properties_sf.json",
		}, "listing_id")

		Expect(r.ID).To(Equal("e1"))
		Expect(r.EntityType).To(Equal(embedding.EntityProperty))
		Expect(r.PrimaryIdentifier).To(Equal("L100"))
		Expect(r.EmbeddingVersion).To(Equal("v2"))
		Expect(r.SourceFileOrCollection).To(Equal("properties_sf.json"))
		Expect(r.IsChunked()).To(BeFalse())
		Expect(r.DecodeErrors()).To(BeEmpty())
	})

	It("falls back to primary_identifier when the entity field is absent", func() {
		r := embedding.FromMetadata("e1", nil, map[string]any{
			"primary_identifier": "N7",
		}, "neighborhood_id")
		Expect(r.PrimaryIdentifier).To(Equal("N7"))
	})

	It("renders integral JSON numbers as identifiers without a fraction", func() {
		var meta map[string]any
		Expect(json.Unmarshal([]byte(`{"page_id": 4521, "chunk_index": 1, "chunk_total": 3, "parent_id": 4521}`), &meta)).To(Succeed())

		r := embedding.FromMetadata("e1", nil, meta, "page_id")
		Expect(r.PrimaryIdentifier).To(Equal("4521"))
		Expect(r.ParentID).To(Equal("4521"))
		Expect(*r.ChunkIndex).To(Equal(1))
		Expect(*r.ChunkTotal).To(Equal(3))
	})

	It("accepts string chunk positions and unix timestamps", func() {
		r := embedding.FromMetadata("e1", nil, map[string]any{
			"chunk_index":          "0",
			"chunk_total":          "2",
			"generation_timestamp": int64(1735689600),
		}, "")
		Expect(*r.ChunkIndex).To(Equal(0))
		Expect(r.GeneratedAt).To(Equal(time.Unix(1735689600, 0).UTC()))
	})

	It("keeps unusable values as decode errors instead of failing", func() {
		r := embedding.FromMetadata("e1", nil, map[string]any{
			"chunk_index":          "first",
			"generation_timestamp": "yesterday",
		}, "")
		Expect(r.ChunkIndex).To(BeNil())
		Expect(r.DecodeErrors()).To(HaveLen(2))
	})

	It("round-trips through ToMetadata", func() {
		in := embedding.Record{
			ID:                "e9",
			EntityType:        embedding.EntityWikipediaArticle,
			PrimaryIdentifier: "W5",
			ParentID:          "W5",
			ChunkIndex:        embedding.IntPtr(1),
			ChunkTotal:        embedding.IntPtr(2),
			EmbeddingVersion:  "v1",
			GeneratedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		out := embedding.FromMetadata("e9", nil, embedding.ToMetadata(in), "")

		Expect(out.JoinKey()).To(Equal("W5"))
		Expect(*out.ChunkIndex).To(Equal(1))
		Expect(out.GeneratedAt).To(Equal(in.GeneratedAt))
	})
})

var _ = Describe("Record", func() {
	It("joins chunks on the parent id", func() {
		r := embedding.Record{PrimaryIdentifier: "W5#c1", ParentID: "W5", ChunkIndex: embedding.IntPtr(1), ChunkTotal: embedding.IntPtr(3)}
		Expect(r.JoinKey()).To(Equal("W5"))
		idx, total := r.Position()
		Expect(idx).To(Equal(1))
		Expect(total).To(Equal(3))
	})

	It("joins non-chunked records on the primary identifier", func() {
		r := embedding.Record{PrimaryIdentifier: "L100", ParentID: "ignored"}
		Expect(r.JoinKey()).To(Equal("L100"))
		idx, total := r.Position()
		Expect(idx).To(Equal(0))
		Expect(total).To(Equal(1))
	})

	It("falls back to the primary identifier for chunks without a parent", func() {
		r := embedding.Record{PrimaryIdentifier: "W5", ChunkIndex: embedding.IntPtr(0), ChunkTotal: embedding.IntPtr(2)}
		Expect(r.JoinKey()).To(Equal("W5"))
	})

	It("omits an unset generation timestamp from JSON", func() {
		data, err := json.Marshal(embedding.Record{ID: "e1", PrimaryIdentifier: "L100"})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).NotTo(ContainSubstring("generation_timestamp"))

		data, err = json.Marshal(embedding.Record{ID: "e1", GeneratedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"generation_timestamp":"2026-01-02T00:00:00Z"`))
	})
})

var _ = Describe("FormatIdentifier", func() {
	DescribeTable("renders identifiers consistently",
		func(in any, want string) {
			Expect(embedding.FormatIdentifier(in)).To(Equal(want))
		},
		Entry("string", " L1 ", "L1"),
		Entry("integral float", float64(42), "42"),
		Entry("fractional float", 1.5, "1.5"),
		Entry("int", 7, "7"),
		Entry("nil", nil, ""),
	)
})
