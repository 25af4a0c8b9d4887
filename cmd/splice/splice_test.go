package splicecmder_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	splicecmder "github.com/papercomputeco/splice/cmd/splice"
	correlatecmder "github.com/papercomputeco/splice/cmd/splice/correlate"
	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/dotdir"
)

var _ = Describe("splice", func() {
	var (
		configDir string
		store     string
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		store = filepath.Join(GinkgoT().TempDir(), "splice.sqlite")
	})

	execute := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := splicecmder.NewSpliceCmd()
		cmd.SetOut(&out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(append([]string{"--config-dir", configDir, "--log-format", "text"}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	seedDemo := func() {
		out, err := execute("seed",
			"--seed", "7",
			"--vector-store-provider", "sqlite-vec",
			"--vector-store-target", store,
			"--vector-store-dimensions", "8",
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Seeded"))
	}

	It("registers every subcommand", func() {
		cmd := splicecmder.NewSpliceCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("correlate", "seed", "serve", "config", "init", "version"))
	})

	It("prints the version", func() {
		out, err := execute("version")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Version: dev"))
	})

	It("seeds a dataset and registers it in config.toml", func() {
		seedDemo()

		Expect(filepath.Join(configDir, "config.toml")).To(BeARegularFile())
		Expect(filepath.Join(configDir, "sources", "property.jsonl")).To(BeARegularFile())

		out, err := execute("config", "list")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("property (collection"))
		Expect(out).To(ContainSubstring("wikipedia"))
	})

	It("correlates the seeded dataset and saves the report", func() {
		seedDemo()

		out, err := execute("correlate", "-o", "json", "--no-publish")
		Expect(err).NotTo(HaveOccurred())

		var report correlate.Report
		Expect(json.Unmarshal([]byte(out), &report)).To(Succeed())
		Expect(report.Counts.Correlated).To(Equal(34))
		Expect(report.Counts.Partial).To(Equal(1))
		Expect(report.Counts.Orphaned).To(Equal(2))
		Expect(report.Counts.Missing).To(Equal(2))
		Expect(report.Counts.VersionMismatch).To(Equal(1))
		Expect(report.Counts.ValidationFailures).To(Equal(1))
		Expect(report.FailedEntityTypes()).To(BeEmpty())

		var saved correlate.Report
		ok, err := dotdir.NewManager().LoadLastReport(&saved, configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(saved.RunID).To(Equal(report.RunID))
	})

	It("renders a markdown report", func() {
		seedDemo()

		out, err := execute("correlate", "-o", "markdown", "--no-publish", "--no-save")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("| Orphaned | 2 |"))
		Expect(out).To(ContainSubstring("## Partial (1)"))
		Expect(filepath.Join(configDir, "last_report.json")).NotTo(BeAnExistingFile())
	})

	It("fails in strict mode when embeddings are orphaned", func() {
		seedDemo()

		_, err := execute("correlate", "--strict", "--no-publish", "--no-save")
		Expect(err).To(MatchError(correlatecmder.ErrNotClean))
	})

	It("rejects unknown output formats", func() {
		_, err := execute("correlate", "-o", "yaml")
		Expect(err).To(MatchError(ContainSubstring("unknown output format")))
	})

	It("rejects a run without entity types", func() {
		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("version = 0\n"), 0o600)).To(Succeed())

		_, err := execute("correlate", "--no-publish", "--no-save",
			"--vector-store-provider", "sqlite-vec",
			"--vector-store-target", store,
			"--vector-store-dimensions", "8",
		)
		var cfgErr *correlate.ConfigError
		Expect(err).To(BeAssignableToTypeOf(cfgErr))
	})
})
