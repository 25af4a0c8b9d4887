package cliui_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/splice/pkg/cliui"
	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/embedding"
)

func sampleReport() *correlate.Report {
	groups := []correlate.Group{
		{EntityType: embedding.EntityProperty, Identifier: "L100", Status: correlate.StatusCorrelated},
		{EntityType: embedding.EntityProperty, Identifier: "L999", Status: correlate.StatusOrphaned},
		{EntityType: embedding.EntityWikipediaArticle, Identifier: "W5", Status: correlate.StatusPartial, ChunkTotal: 3, MissingChunks: []int{2}},
	}
	r := correlate.Summarize(groups)
	r.RunID = "run-1"
	r.StartedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.FinishedAt = r.StartedAt.Add(1500 * time.Millisecond)
	r.EntityTypes[embedding.EntityProperty] = correlate.EntityOutcome{EntityType: embedding.EntityProperty, Exported: 1200}
	r.EntityTypes[embedding.EntityNeighborhood] = correlate.EntityOutcome{EntityType: embedding.EntityNeighborhood, Failed: true, Cause: "source unavailable"}
	return &r
}

var _ = Describe("RenderReport", func() {
	It("prints counts, entity types and findings", func() {
		var buf bytes.Buffer
		cliui.RenderReport(&buf, sampleReport())
		out := buf.String()

		Expect(out).To(ContainSubstring("Correlation report"))
		Expect(out).To(ContainSubstring("run-1"))
		Expect(out).To(ContainSubstring("1.5s"))
		Expect(out).To(ContainSubstring("1,200"))
		Expect(out).To(ContainSubstring("source unavailable"))
		Expect(out).To(ContainSubstring("property L999"))
		Expect(out).To(ContainSubstring("wikipedia_article W5 missing chunks [2] of 3"))
		Expect(out).NotTo(ContainSubstring("Run incomplete"))
	})

	It("truncates long sections", func() {
		var groups []correlate.Group
		for i := range 25 {
			groups = append(groups, correlate.Group{
				EntityType: embedding.EntityProperty,
				Identifier: fmt.Sprintf("L%03d", i),
				Status:     correlate.StatusOrphaned,
			})
		}
		r := correlate.Summarize(groups)

		var buf bytes.Buffer
		cliui.RenderReport(&buf, &r)
		Expect(buf.String()).To(ContainSubstring("... and 5 more"))
		Expect(buf.String()).NotTo(ContainSubstring("L024"))
	})

	It("shortens long failure causes", func() {
		r := sampleReport()
		cause := strings.Repeat("x", 300)
		r.EntityTypes[embedding.EntityNeighborhood] = correlate.EntityOutcome{EntityType: embedding.EntityNeighborhood, Failed: true, Cause: cause}

		var buf bytes.Buffer
		cliui.RenderReport(&buf, r)
		Expect(buf.String()).To(ContainSubstring(strings.Repeat("x", 120) + "..."))
		Expect(buf.String()).NotTo(ContainSubstring(strings.Repeat("x", 121)))
	})

	It("shortens a long missing chunk list and keeps the total", func() {
		listed := make([]int, correlate.MaxListedMissingChunks)
		for i := range listed {
			listed[i] = i + 1
		}
		r := correlate.Summarize([]correlate.Group{{
			EntityType:    embedding.EntityWikipediaArticle,
			Identifier:    "W9",
			Status:        correlate.StatusPartial,
			ChunkTotal:    10000,
			MissingChunks: listed,
			MissingCount:  9999,
		}})

		var buf bytes.Buffer
		cliui.RenderReport(&buf, &r)
		Expect(buf.String()).To(ContainSubstring("wikipedia_article W9 missing chunks [1 2 3"))
		Expect(buf.String()).To(ContainSubstring("... (9999 in total) of 10000"))
		Expect(buf.String()).NotTo(ContainSubstring(" 1000]"))
	})

	It("notes unprocessed entity types", func() {
		r := sampleReport()
		r.Incomplete = true
		r.Unprocessed = []embedding.EntityType{embedding.EntityWikipediaSummary}

		var buf bytes.Buffer
		cliui.RenderReport(&buf, r)
		Expect(buf.String()).To(ContainSubstring("Run incomplete, not processed: wikipedia_summary"))
	})
})

var _ = Describe("ReportMarkdown", func() {
	It("renders tables and sections", func() {
		md := cliui.ReportMarkdown(sampleReport())

		Expect(md).To(HavePrefix("# Correlation report"))
		Expect(md).To(ContainSubstring("| Orphaned | 1 |"))
		Expect(md).To(ContainSubstring("| property | 1,200 | ok |"))
		Expect(md).To(ContainSubstring("| neighborhood | 0 | failed: source unavailable |"))
		Expect(md).To(ContainSubstring("## Partial (1)"))
		Expect(md).To(ContainSubstring("`W5` wikipedia_article, missing chunks [2] of 3"))
	})
})

var _ = Describe("Mark", func() {
	It("marks success and failure", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})
