package cliui

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/utils"
)

// maxListed caps how many identifiers each report section prints.
const maxListed = 20

// maxDetail caps causes and failure details in the terminal report.
const maxDetail = 120

// RenderReport writes a styled, human-readable report to w.
func RenderReport(w io.Writer, r *correlate.Report) {
	fmt.Fprintf(w, "\n  %s %s\n\n", reportMark(r), HeaderStyle.Render("Correlation report"))

	if r.RunID != "" {
		fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render("Run:"), DimStyle.Render(r.RunID))
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render("Took:"), DimStyle.Render(FormatDuration(r.FinishedAt.Sub(r.StartedAt))))
	}
	if r.CurrentVersion != "" {
		fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render("Current version:"), ValueStyle.Render(r.CurrentVersion))
	}
	fmt.Fprintln(w)

	counts := []struct {
		label string
		n     int
	}{
		{"correlated", r.Counts.Correlated},
		{"partial", r.Counts.Partial},
		{"orphaned", r.Counts.Orphaned},
		{"missing", r.Counts.Missing},
		{"version mismatches", r.Counts.VersionMismatch},
		{"validation failures", r.Counts.ValidationFailures},
		{"warnings", r.Counts.Warnings},
	}
	for _, c := range counts {
		fmt.Fprintf(w, "  %-20s %s\n", c.label, countStyle(c.label, c.n).Render(humanize.Comma(int64(c.n))))
	}

	fmt.Fprintf(w, "\n  %s\n", KeyStyle.Render("Entity types"))
	for _, t := range sortedEntityTypes(r) {
		o := r.EntityTypes[t]
		switch {
		case o.Failed:
			fmt.Fprintf(w, "  %s %-20s %s\n", FailMark, t, DimStyle.Render(utils.Truncate(o.Cause, maxDetail)))
		case o.Skipped:
			fmt.Fprintf(w, "  %s %-20s %s\n", WarnStyle.Render("-"), t, DimStyle.Render("not processed"))
		default:
			fmt.Fprintf(w, "  %s %-20s %s exported, %s identifiers\n", SuccessMark, t,
				humanize.Comma(int64(o.Exported)), humanize.Comma(int64(o.Counts.Identifiers())))
		}
	}

	section(w, "Orphaned", len(r.Orphaned), func(i int) string {
		return fmt.Sprintf("%s %s", r.Orphaned[i].EntityType, r.Orphaned[i].Identifier)
	})
	section(w, "Missing", len(r.Missing), func(i int) string {
		return fmt.Sprintf("%s %s", r.Missing[i].EntityType, r.Missing[i].Identifier)
	})
	section(w, "Partial", len(r.Partial), func(i int) string {
		p := r.Partial[i]
		return fmt.Sprintf("%s %s missing chunks %s of %d", p.EntityType, p.Identifier, missingList(p), p.ChunkTotal)
	})
	section(w, "Version mismatches", len(r.VersionMismatches), func(i int) string {
		v := r.VersionMismatches[i]
		return fmt.Sprintf("%s %s %s", v.EntityType, v.Identifier, strings.Join(v.Versions, ", "))
	})
	section(w, "Validation failures", len(r.Failures), func(i int) string {
		f := r.Failures[i]
		return fmt.Sprintf("%s %s %s: %s", f.EntityType, f.EmbeddingID, f.Reason, utils.Truncate(f.Detail, maxDetail))
	})

	if r.Incomplete {
		names := make([]string, len(r.Unprocessed))
		for i, t := range r.Unprocessed {
			names[i] = string(t)
		}
		fmt.Fprintf(w, "\n  %s\n", WarnStyle.Render("Run incomplete, not processed: "+strings.Join(names, ", ")))
	}
	fmt.Fprintln(w)
}

// ReportMarkdown renders the report as a markdown document.
func ReportMarkdown(r *correlate.Report) string {
	var b strings.Builder

	b.WriteString("# Correlation report\n\n")
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`", r.RunID)
		if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
			fmt.Fprintf(&b, " took %s", FormatDuration(r.FinishedAt.Sub(r.StartedAt)))
		}
		b.WriteString(".\n\n")
	}

	b.WriteString("| Outcome | Count |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Correlated | %s |\n", humanize.Comma(int64(r.Counts.Correlated)))
	fmt.Fprintf(&b, "| Partial | %s |\n", humanize.Comma(int64(r.Counts.Partial)))
	fmt.Fprintf(&b, "| Orphaned | %s |\n", humanize.Comma(int64(r.Counts.Orphaned)))
	fmt.Fprintf(&b, "| Missing | %s |\n", humanize.Comma(int64(r.Counts.Missing)))
	fmt.Fprintf(&b, "| Version mismatches | %s |\n", humanize.Comma(int64(r.Counts.VersionMismatch)))
	fmt.Fprintf(&b, "| Validation failures | %s |\n", humanize.Comma(int64(r.Counts.ValidationFailures)))
	fmt.Fprintf(&b, "| Warnings | %s |\n\n", humanize.Comma(int64(r.Counts.Warnings)))

	b.WriteString("## Entity types\n\n| Entity type | Exported | Status |\n|---|---:|---|\n")
	for _, t := range sortedEntityTypes(r) {
		o := r.EntityTypes[t]
		status := "ok"
		switch {
		case o.Failed:
			status = "failed: " + o.Cause
		case o.Skipped:
			status = "not processed"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", t, humanize.Comma(int64(o.Exported)), status)
	}
	b.WriteString("\n")

	mdSection(&b, "Orphaned", len(r.Orphaned), func(i int) string {
		return fmt.Sprintf("`%s` %s", r.Orphaned[i].Identifier, r.Orphaned[i].EntityType)
	})
	mdSection(&b, "Missing", len(r.Missing), func(i int) string {
		return fmt.Sprintf("`%s` %s", r.Missing[i].Identifier, r.Missing[i].EntityType)
	})
	mdSection(&b, "Partial", len(r.Partial), func(i int) string {
		p := r.Partial[i]
		return fmt.Sprintf("`%s` %s, missing chunks %s of %d", p.Identifier, p.EntityType, missingList(p), p.ChunkTotal)
	})

	if r.Incomplete {
		b.WriteString("> **Run incomplete.** ")
		names := make([]string, len(r.Unprocessed))
		for i, t := range r.Unprocessed {
			names[i] = string(t)
		}
		fmt.Fprintf(&b, "Not processed: %s\n", strings.Join(names, ", "))
	}

	return b.String()
}

func reportMark(r *correlate.Report) string {
	if r.Clean() {
		return SuccessMark
	}
	return FailMark
}

func countStyle(label string, n int) lipgloss.Style {
	if n == 0 || label == "correlated" {
		return ValueStyle
	}
	return WarnStyle
}

func sortedEntityTypes(r *correlate.Report) []embedding.EntityType {
	types := make([]embedding.EntityType, 0, len(r.EntityTypes))
	for t := range r.EntityTypes {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func section(w io.Writer, title string, n int, line func(i int) string) {
	if n == 0 {
		return
	}
	fmt.Fprintf(w, "\n  %s %s\n", KeyStyle.Render(title), DimStyle.Render("("+humanize.Comma(int64(n))+")"))
	for i := range min(n, maxListed) {
		fmt.Fprintf(w, "    %s\n", line(i))
	}
	if n > maxListed {
		fmt.Fprintf(w, "    %s\n", DimStyle.Render(fmt.Sprintf("... and %s more", humanize.Comma(int64(n-maxListed)))))
	}
}

func mdSection(b *strings.Builder, title string, n int, line func(i int) string) {
	if n == 0 {
		return
	}
	fmt.Fprintf(b, "## %s (%s)\n\n", title, humanize.Comma(int64(n)))
	for i := range min(n, maxListed) {
		fmt.Fprintf(b, "- %s\n", line(i))
	}
	if n > maxListed {
		fmt.Fprintf(b, "- ... and %s more\n", humanize.Comma(int64(n-maxListed)))
	}
	b.WriteString("\n")
}

// missingList renders a partial group's missing indexes, shortened when the
// list is long.
func missingList(p correlate.PartialGroup) string {
	list := utils.Truncate(fmt.Sprint(p.MissingChunks), maxDetail)
	if p.MissingCount > len(p.MissingChunks) {
		return fmt.Sprintf("%s (%d in total)", list, p.MissingCount)
	}
	return list
}
