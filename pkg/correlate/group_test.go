package correlate_test

import (
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/embedding"
)

var _ = Describe("Extract", func() {
	It("uses the parent id once per chunked document", func() {
		sets := correlate.Extract([]embedding.Record{
			chunk("c0", "W5", 0, 3),
			chunk("c1", "W5", 1, 3),
			chunk("c2", "W5", 2, 3),
			record("e1", embedding.EntityProperty, "L100"),
			record("e2", embedding.EntityProperty, "L101"),
		})

		Expect(sets).To(HaveLen(2))
		Expect(sets[embedding.EntityWikipediaArticle].Sorted()).To(Equal([]string{"W5"}))
		Expect(sets[embedding.EntityProperty].Sorted()).To(Equal([]string{"L100", "L101"}))
	})

	It("returns an empty map for no records", func() {
		Expect(correlate.Extract(nil)).To(BeEmpty())
	})
})

var _ = Describe("GroupChunks", func() {
	It("orders chunks by index whatever the input order", func() {
		records := []embedding.Record{
			chunk("c3", "W5", 3, 4),
			chunk("c0", "W5", 0, 4),
			chunk("c2", "W5", 2, 4),
			chunk("c1", "W5", 1, 4),
		}

		want := correlate.GroupChunks(records)["W5"]
		for range 10 {
			shuffled := append([]embedding.Record(nil), records...)
			rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			Expect(correlate.GroupChunks(shuffled)["W5"]).To(Equal(want))
		}

		ids := make([]string, 0, 4)
		for _, r := range want.Records {
			ids = append(ids, r.ID)
		}
		Expect(ids).To(Equal([]string{"c0", "c1", "c2", "c3"}))
		Expect(want.Complete()).To(BeTrue())
		Expect(want.ChunkTotal).To(Equal(4))
	})

	It("treats a non-chunked record as chunk 0 of 1", func() {
		b := correlate.GroupChunks([]embedding.Record{record("e1", embedding.EntityProperty, "L100")})["L100"]
		Expect(b.ChunkTotal).To(Equal(1))
		Expect(b.Complete()).To(BeTrue())
		Expect(b.MissingChunks).To(BeEmpty())
	})

	It("lists missing chunk indexes", func() {
		b := correlate.GroupChunks([]embedding.Record{
			chunk("c0", "W5", 0, 3),
			chunk("c2", "W5", 2, 3),
		})["W5"]

		Expect(b.Complete()).To(BeFalse())
		Expect(b.Inconsistent).To(BeFalse())
		Expect(b.MissingChunks).To(Equal([]int{1}))
	})

	It("caps the listed missing indexes for a huge chunk_total", func() {
		b := correlate.GroupChunks([]embedding.Record{
			chunk("c0", "W5", 0, 50_000_000),
			chunk("c3", "W5", 3, 50_000_000),
		})["W5"]

		Expect(b.Complete()).To(BeFalse())
		Expect(b.MissingCount).To(Equal(50_000_000 - 2))
		Expect(b.MissingChunks).To(HaveLen(correlate.MaxListedMissingChunks))
		Expect(b.MissingChunks[:3]).To(Equal([]int{1, 2, 4}))
	})

	It("marks disagreeing totals inconsistent instead of repairing them", func() {
		b := correlate.GroupChunks([]embedding.Record{
			chunk("c0", "W5", 0, 2),
			chunk("c1", "W5", 1, 3),
		})["W5"]

		Expect(b.Inconsistent).To(BeTrue())
		Expect(b.Complete()).To(BeFalse())
		Expect(b.ChunkTotal).To(Equal(3))
		Expect(b.MissingChunks).To(Equal([]int{2}))
		Expect(b.Warnings).To(ContainElement(HaveField("Kind", correlate.WarningChunkTotalMismatch)))
	})

	It("marks a repeated chunk index inconsistent", func() {
		b := correlate.GroupChunks([]embedding.Record{
			chunk("c0", "W5", 0, 2),
			chunk("c0b", "W5", 0, 2),
			chunk("c1", "W5", 1, 2),
		})["W5"]

		Expect(b.Inconsistent).To(BeTrue())
		Expect(b.Warnings).To(ContainElement(HaveField("Kind", correlate.WarningDuplicateChunkIndex)))
	})

	It("warns about repeated text without changing completeness", func() {
		a := chunk("c0", "W5", 0, 2)
		a.TextHash = "h1"
		b := chunk("c1", "W5", 1, 2)
		b.TextHash = "h1"

		bucket := correlate.GroupChunks([]embedding.Record{a, b})["W5"]
		Expect(bucket.Complete()).To(BeTrue())
		Expect(bucket.Warnings).To(HaveLen(1))
		Expect(bucket.Warnings[0].Kind).To(Equal(correlate.WarningDuplicateText))
		Expect(bucket.Warnings[0].Detail).To(ContainSubstring("c0 and c1"))
	})
})
