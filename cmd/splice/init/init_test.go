package initcmder_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/splice/cmd/splice/init"
	"github.com/papercomputeco/splice/pkg/config"
)

func loadConfig(dir string) *config.Config {
	data, err := os.ReadFile(filepath.Join(dir, ".splice", "config.toml"))
	Expect(err).NotTo(HaveOccurred())

	cfg := &config.Config{}
	Expect(toml.Unmarshal(data, cfg)).To(Succeed())
	return cfg
}

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(os.Chdir, origDir)
	})

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(GinkgoWriter)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("creates a .splice directory with a default config", func() {
		Expect(execute()).To(Succeed())
		Expect(filepath.Join(tmpDir, ".splice")).To(BeADirectory())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.VectorStore.Provider).To(Equal("sqlite-vec"))
		Expect(cfg.Run.PageSize).To(Equal(500))
		Expect(cfg.API.Listen).To(Equal(":8082"))
	})

	It("does not overwrite an existing config without a preset", func() {
		dir := filepath.Join(tmpDir, ".splice")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		custom := "version = 0\n\n[run]\npage_size = 42\n"
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(custom), 0o600)).To(Succeed())

		Expect(execute()).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(custom))
	})

	It("keeps other files in an existing directory", func() {
		dir := filepath.Join(tmpDir, ".splice")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		report := filepath.Join(dir, "last_report.json")
		Expect(os.WriteFile(report, []byte(`{"run_id":"r1"}`), 0o600)).To(Succeed())

		Expect(execute("--preset", "qdrant")).To(Succeed())

		data, err := os.ReadFile(report)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"run_id":"r1"}`))
	})

	DescribeTable("vector store presets",
		func(preset, provider, target string) {
			Expect(execute("--preset", preset)).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.VectorStore.Provider).To(Equal(provider))
			Expect(cfg.VectorStore.Target).To(Equal(target))
		},
		Entry("local", "local", "sqlite-vec", "splice.sqlite"),
		Entry("qdrant", "qdrant", "qdrant", "localhost:6334"),
		Entry("chroma", "chroma", "chroma", "http://localhost:8000"),
		Entry("pgvector", "pgvector", "pgvector", "postgres://localhost:5432/splice?sslmode=disable"),
	)

	It("overwrites the config when re-run with another preset", func() {
		Expect(execute("--preset", "qdrant")).To(Succeed())
		Expect(execute("--preset", "chroma")).To(Succeed())
		Expect(loadConfig(tmpDir).VectorStore.Provider).To(Equal("chroma"))
	})

	It("rejects unknown presets without creating the directory", func() {
		err := execute("--preset", "weaviate")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
		Expect(filepath.Join(tmpDir, ".splice")).NotTo(BeADirectory())
	})

	Describe("--preset with a remote URL", func() {
		It("fetches and writes the remote config", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "version = 0\n\n[vector_store]\nprovider = \"qdrant\"\ntarget = \"qdrant.internal:6334\"\ndimensions = 768\n")
			}))
			DeferCleanup(server.Close)

			Expect(execute("--preset", server.URL)).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.VectorStore.Target).To(Equal("qdrant.internal:6334"))
			Expect(cfg.VectorStore.Dimensions).To(Equal(uint(768)))
		})

		It("returns an error for a non-200 response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			DeferCleanup(server.Close)

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("HTTP 404")))
		})

		It("returns an error for invalid TOML", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "this is not valid toml [[[")
			}))
			DeferCleanup(server.Close)

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("parsing")))
		})

		It("returns an error for an unreachable URL", func() {
			Expect(execute("--preset", "http://127.0.0.1:1")).To(MatchError(ContainSubstring("fetching remote config")))
		})
	})
})
