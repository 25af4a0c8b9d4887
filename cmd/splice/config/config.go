// Package configcmder provides the config command for managing persistent
// splice configuration stored in the .splice/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent splice configuration.

Configuration is stored as config.toml in the .splice/ directory and provides
default values for command flags. CLI flags and SPLICE_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  run.page_size, run.max_concurrency, run.current_embedding_version,
  run.requests_per_second,
  retry.max_attempts, retry.initial_backoff, retry.max_backoff,
  vector_store.provider, vector_store.target, vector_store.dimensions,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  api.listen

Entity types and their sources are edited in config.toml directly.

Use subcommands to get, set, or list configuration values:
  splice config set <key> <value>    Set a configuration value
  splice config get <key>            Get a configuration value
  splice config list                 List all configuration values

Examples:
  splice config set vector_store.provider qdrant
  splice config set run.current_embedding_version v3
  splice config get run.page_size
  splice config list`

const configShortDesc string = "Manage persistent splice configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
