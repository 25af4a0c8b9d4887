// Package splicecmder
package splicecmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/splice/cmd/splice/config"
	correlatecmder "github.com/papercomputeco/splice/cmd/splice/correlate"
	initcmder "github.com/papercomputeco/splice/cmd/splice/init"
	seedcmder "github.com/papercomputeco/splice/cmd/splice/seed"
	servecmder "github.com/papercomputeco/splice/cmd/splice/serve"
	versioncmder "github.com/papercomputeco/splice/cmd/version"
)

const spliceLongDesc string = `Splice correlates the embeddings in a vector store with the source
records they were generated from.

Every identifier is classified as correlated, partial, orphaned or missing,
and embeddings produced by an outdated embedding version are flagged.

Get started:
  splice init              Create a local .splice/ directory
  splice seed              Generate a demo dataset
  splice correlate         Run a correlation and print the report
  splice serve             Run the report API`

const spliceShortDesc string = "Splice - Embedding Correlation"

func NewSpliceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "splice",
		Short:         spliceShortDesc,
		Long:          spliceLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("log-format", "", "Log format: text, json or pretty (default: pretty on a terminal, text otherwise)")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.splice or ~/.splice)")

	// Add subcommands
	cmd.AddCommand(correlatecmder.NewCorrelateCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
