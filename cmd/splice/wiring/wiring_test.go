package wiring_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/splice/cmd/splice/wiring"
	"github.com/papercomputeco/splice/pkg/config"
	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/logger"
	"github.com/papercomputeco/splice/pkg/source"
)

var _ = Describe("ReadGlobalFlags", func() {
	It("reads the persistent root flags", func() {
		cmd := &cobra.Command{Use: "x"}
		cmd.Flags().Bool("debug", false, "")
		cmd.Flags().String("log-format", "", "")
		cmd.Flags().String("config-dir", "", "")
		Expect(cmd.Flags().Parse([]string{"--debug", "--log-format", "json", "--config-dir", "/tmp/s"})).To(Succeed())

		g, err := wiring.ReadGlobalFlags(cmd)
		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(Equal(wiring.GlobalFlags{Debug: true, LogFormat: "json", ConfigDir: "/tmp/s"}))
	})

	It("fails when a flag is not defined", func() {
		_, err := wiring.ReadGlobalFlags(&cobra.Command{Use: "x"})
		Expect(err).To(MatchError(ContainSubstring("debug flag")))
	})
})

var _ = Describe("NewLogger", func() {
	It("rejects unknown formats", func() {
		_, err := wiring.NewLogger(wiring.GlobalFlags{LogFormat: "xml"})
		Expect(err).To(MatchError(ContainSubstring("unknown log format")))
	})

	It("builds a logger for known formats", func() {
		log, err := wiring.NewLogger(wiring.GlobalFlags{LogFormat: "json", Debug: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(log).NotTo(BeNil())
	})
})

var _ = Describe("IsTerminal", func() {
	It("is false for buffers", func() {
		Expect(wiring.IsTerminal(&bytes.Buffer{})).To(BeFalse())
	})
})

var _ = Describe("Build", func() {
	var (
		ctx context.Context
		cfg *config.Config
		dir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "property.jsonl"), []byte(`{"listing_id":"L1"}`+"\n"), 0o600)).To(Succeed())

		cfg = config.NewDefaultConfig()
		cfg.VectorStore.Provider = "memory"
		cfg.EntityTypes = []config.EntityTypeConfig{{Name: "property", Collection: "property"}}
		cfg.Sources = map[string]config.SourceConfig{
			"property": {Kind: "jsonfile", Target: filepath.Join(dir, "property.jsonl"), IDField: "listing_id"},
		}
	})

	It("opens the store, sources and publisher", func() {
		rt, err := wiring.Build(ctx, cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(rt.Close)

		Expect(rt.Store).NotTo(BeNil())
		Expect(rt.Publisher).NotTo(BeNil())
		_, err = rt.Sources.Adapter(embedding.EntityProperty)
		Expect(err).NotTo(HaveOccurred())

		engine, err := rt.Engine(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(engine).NotTo(BeNil())
	})

	It("fails when an entity type has no source", func() {
		cfg.Sources = nil
		_, err := wiring.Build(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("no [sources.property] section")))
	})

	It("fails on an unsupported source kind", func() {
		cfg.Sources["property"] = config.SourceConfig{Kind: "csv", Target: "x"}
		_, err := wiring.Build(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(source.ErrUnsupportedKind))
	})

	It("fails on an unsupported vector store", func() {
		cfg.VectorStore.Provider = "faiss"
		_, err := wiring.Build(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported vector store provider")))
	})

	It("fails on an unsupported event stream", func() {
		cfg.EventStream.Provider = "nats"
		_, err := wiring.Build(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported event stream provider")))
	})
})
