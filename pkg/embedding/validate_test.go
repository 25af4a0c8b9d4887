package embedding_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/splice/pkg/embedding"
)

func propertyRecord(id, listing string) embedding.Record {
	return embedding.Record{
		ID:                id,
		Vector:            []float32{0.1, 0.2, 0.3},
		EntityType:        embedding.EntityProperty,
		PrimaryIdentifier: listing,
		EmbeddingModel:    "mini",
	}
}

var _ = Describe("Validator", func() {
	var v *embedding.Validator

	BeforeEach(func() {
		v = embedding.NewValidator(embedding.ValidatorConfig{
			EntityType: embedding.EntityProperty,
			Known: map[embedding.EntityType]bool{
				embedding.EntityProperty:     true,
				embedding.EntityNeighborhood: true,
			},
			Dimension:       3,
			ModelDimensions: map[string]int{"large": 5},
		})
	})

	It("accepts a well formed record", func() {
		Expect(v.Validate(propertyRecord("e1", "L100")).OK()).To(BeTrue())
		Expect(v.Failures()).To(BeEmpty())
	})

	It("rejects the second record sharing an embedding id and keeps the first", func() {
		first := propertyRecord("e1", "L100")
		second := propertyRecord("e1", "L200")
		second.TextHash = "different"

		Expect(v.Validate(first).OK()).To(BeTrue())
		res := v.Validate(second)
		Expect(res.Reason).To(Equal(embedding.ReasonDuplicateID))

		failures := v.Failures()
		Expect(failures).To(HaveLen(1))
		Expect(failures[0].EmbeddingID).To(Equal("e1"))
		Expect(failures[0].Reason).To(Equal(embedding.ReasonDuplicateID))
		Expect(v.Seen()).To(Equal(1))
	})

	It("rejects a record without an id", func() {
		Expect(v.Validate(propertyRecord("", "L1")).Reason).To(Equal(embedding.ReasonMissingID))
	})

	It("rejects unknown entity types", func() {
		r := propertyRecord("e1", "L1")
		r.EntityType = "school"
		Expect(v.Validate(r).Reason).To(Equal(embedding.ReasonUnknownEntityType))
	})

	It("rejects a known entity type stored in another type's collection", func() {
		r := propertyRecord("e1", "N1")
		r.EntityType = embedding.EntityNeighborhood
		Expect(v.Validate(r).Reason).To(Equal(embedding.ReasonEntityTypeMismatch))
	})

	It("rejects an empty primary identifier", func() {
		Expect(v.Validate(propertyRecord("e1", "")).Reason).To(Equal(embedding.ReasonMissingIdentifier))
	})

	It("requires chunk fields together", func() {
		r := propertyRecord("e1", "L1")
		r.ChunkIndex = embedding.IntPtr(0)
		Expect(v.Validate(r).Reason).To(Equal(embedding.ReasonChunkIncomplete))
	})

	DescribeTable("chunk bounds",
		func(idx, total int, ok bool) {
			r := propertyRecord("e1", "L1")
			r.ChunkIndex = embedding.IntPtr(idx)
			r.ChunkTotal = embedding.IntPtr(total)
			res := v.Validate(r)
			if ok {
				Expect(res.OK()).To(BeTrue())
			} else {
				Expect(res.Reason).To(Equal(embedding.ReasonChunkOutOfRange))
			}
		},
		Entry("first of one", 0, 1, true),
		Entry("last of three", 2, 3, true),
		Entry("index equals total", 3, 3, false),
		Entry("negative index", -1, 3, false),
		Entry("zero total", 0, 0, false),
	)

	It("rejects a chunk_total above the configured limit", func() {
		capped := embedding.NewValidator(embedding.ValidatorConfig{
			EntityType:    embedding.EntityProperty,
			Known:         map[embedding.EntityType]bool{embedding.EntityProperty: true},
			Dimension:     3,
			MaxChunkTotal: 100,
		})

		atLimit := propertyRecord("e1", "L1")
		atLimit.ChunkIndex = embedding.IntPtr(0)
		atLimit.ChunkTotal = embedding.IntPtr(100)
		Expect(capped.Validate(atLimit).OK()).To(BeTrue())

		huge := propertyRecord("e2", "L2")
		huge.ChunkIndex = embedding.IntPtr(0)
		huge.ChunkTotal = embedding.IntPtr(2_000_000_000)
		res := capped.Validate(huge)
		Expect(res.Reason).To(Equal(embedding.ReasonChunkOutOfRange))
		Expect(res.Detail).To(ContainSubstring("exceeds the limit of 100"))
	})

	It("checks the vector length against the collection dimension", func() {
		r := propertyRecord("e1", "L1")
		r.Vector = []float32{1, 2}
		res := v.Validate(r)
		Expect(res.Reason).To(Equal(embedding.ReasonDimensionMismatch))
		Expect(res.Detail).To(ContainSubstring("expects 3"))
	})

	It("prefers a model-specific dimension", func() {
		r := propertyRecord("e1", "L1")
		r.EmbeddingModel = "large"
		r.Vector = []float32{1, 2, 3, 4, 5}
		Expect(v.Validate(r).OK()).To(BeTrue())
	})

	It("reports metadata that could not be decoded", func() {
		r := embedding.FromMetadata("e1", []float32{1, 2, 3}, map[string]any{
			"entity_type":        "property",
			"primary_identifier": "L1",
			"chunk_index":        "zero",
		}, "")
		Expect(v.Validate(r).Reason).To(Equal(embedding.ReasonInvalidMetadata))
	})

	It("never stops on failures", func() {
		Expect(v.Validate(propertyRecord("", "L1")).OK()).To(BeFalse())
		Expect(v.Validate(propertyRecord("e2", "")).OK()).To(BeFalse())
		Expect(v.Validate(propertyRecord("e3", "L3")).OK()).To(BeTrue())
		Expect(v.Failures()).To(HaveLen(2))
	})
})
