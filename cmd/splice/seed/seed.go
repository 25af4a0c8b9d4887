package seedcmder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/splice/cmd/splice/wiring"
	"github.com/papercomputeco/splice/pkg/cliui"
	"github.com/papercomputeco/splice/pkg/config"
	"github.com/papercomputeco/splice/pkg/dotdir"
	"github.com/papercomputeco/splice/pkg/seed"
	sourceutils "github.com/papercomputeco/splice/pkg/source/utils"
)

const seedLongDesc string = `Seed a demo dataset into the configured vector store.

Generates fake properties, neighborhoods and Wikipedia articles, writes
their embeddings to the vector store and their source records to JSON Lines
files, and registers every entity type in config.toml.

The dataset deliberately contains orphaned vectors, missing source records,
an article missing a chunk, a stale embedding version and a vector without
an identifier, so "splice correlate" has something to find.

Examples:
  splice seed
  splice seed --seed 42 --properties 200
  splice seed -t ./demo.sqlite --sources-dir ./demo-sources`

const seedShortDesc string = "Seed a demo dataset"

var flagKeys = []string{
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorStoreDims,
	config.FlagCurrentVersion,
}

type seedCommander struct {
	flags wiring.GlobalFlags

	sourcesDir  string
	seed        int64
	properties  int
	articles    int
	noConfig    bool
	provider    string
	target      string
	dimensions  uint
	currVersion string

	out io.Writer
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: seedShortDesc,
		Long:  seedLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.flags, err = wiring.ReadGlobalFlags(cmd)
			if err != nil {
				return err
			}
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd)
		},
	}

	defaults := seed.DefaultOptions()
	cmd.Flags().StringVar(&cmder.sourcesDir, "sources-dir", "", "Directory for the source JSON Lines files (default: <config dir>/sources)")
	cmd.Flags().Int64Var(&cmder.seed, "seed", 0, "Random seed; 0 picks one")
	cmd.Flags().IntVar(&cmder.properties, "properties", defaults.Properties, "Number of properties to generate")
	cmd.Flags().IntVar(&cmder.articles, "articles", defaults.Articles, "Number of Wikipedia articles to generate")
	cmd.Flags().BoolVar(&cmder.noConfig, "no-config", false, "Do not register the seeded entity types in config.toml")

	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.target)
	config.AddUintFlag(cmd, config.Flags, config.FlagVectorStoreDims, &cmder.dimensions)
	config.AddStringFlag(cmd, config.Flags, config.FlagCurrentVersion, &cmder.currVersion)

	return cmd
}

func (c *seedCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()

	log, err := wiring.NewLogger(c.flags)
	if err != nil {
		return err
	}

	cfg, err := wiring.LoadConfig(cmd, c.flags.ConfigDir, flagKeys)
	if err != nil {
		return err
	}

	sourcesDir, err := c.resolveSourcesDir()
	if err != nil {
		return err
	}

	opts := seed.DefaultOptions()
	opts.Seed = c.seed
	opts.Properties = c.properties
	opts.Articles = c.articles
	opts.Dimensions = int(cfg.VectorStore.Dimensions)
	if cfg.Run.CurrentVersion != "" {
		opts.CurrentVersion = cfg.Run.CurrentVersion
	}
	ds := seed.Generate(opts)

	store, err := wiring.NewVectorDriver(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := stepOrRun(c.out, "Seeding demo data", func() error {
		return seed.Write(ctx, store, sourcesDir, ds)
	}); err != nil {
		return err
	}

	if !c.noConfig {
		if err := c.register(cfg, ds, sourcesDir, opts.CurrentVersion); err != nil {
			return err
		}
	}

	documents := 0
	for _, e := range ds.Entities {
		documents += len(e.Documents)
	}

	fmt.Fprintf(c.out, "\n  %s Seeded %s embeddings %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(strconv.Itoa(documents)),
		cliui.DimStyle.Render(fmt.Sprintf("(%s at %s)", cfg.VectorStore.Provider, cfg.VectorStore.Target)),
	)
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Sources:"), cliui.DimStyle.Render(sourcesDir))
	fmt.Fprintf(c.out, "  %s %d correlated, %d partial, %d orphaned, %d missing\n\n",
		cliui.KeyStyle.Render("Expect:"),
		ds.Expected.Correlated, ds.Expected.Partial, ds.Expected.Orphaned, ds.Expected.Missing,
	)
	return nil
}

// register points the config at the seeded collections and source files.
func (c *seedCommander) register(cfg *config.Config, ds *seed.Dataset, sourcesDir, version string) error {
	cfg.Run.CurrentVersion = version
	cfg.EntityTypes = nil
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]config.SourceConfig)
	}

	for _, e := range ds.Entities {
		name := string(e.EntityType)
		cfg.EntityTypes = append(cfg.EntityTypes, config.EntityTypeConfig{
			Name:       name,
			Collection: e.Collection,
			IDField:    e.IDField,
		})
		cfg.Sources[name] = config.SourceConfig{
			Kind:    sourceutils.KindJSONFile,
			Target:  seed.SourcePath(sourcesDir, e.EntityType),
			IDField: e.IDField,
		}
	}

	cfger, err := config.NewConfiger(c.flags.ConfigDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return cfger.SaveConfig(cfg)
}

func (c *seedCommander) resolveSourcesDir() (string, error) {
	if c.sourcesDir != "" {
		return filepath.Abs(c.sourcesDir)
	}

	dir, err := dotdir.NewManager().Ensure(c.flags.ConfigDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sources"), nil
}

func stepOrRun(w io.Writer, msg string, fn func() error) error {
	if f, ok := w.(*os.File); ok && wiring.IsTerminal(f) {
		return cliui.Step(f, msg, fn)
	}
	return fn()
}

