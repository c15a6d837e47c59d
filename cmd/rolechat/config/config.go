// Package configcmder provides the config command for managing persistent
// rolechat configuration stored in the .rolechat/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent rolechat configuration.

Configuration is stored as config.toml in the .rolechat/ directory and provides
default values for command flags. CLI flags always take precedence over
ROLECHAT_* environment variables, which take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.base_url, server.timeout,
  chat.markdown, chat.chunk_size,
  serve.listen, log.json

Use subcommands to get, set, or list configuration values:
  rolechat config set <key> <value>    Set a configuration value
  rolechat config get <key>            Get a configuration value
  rolechat config list                 List all configuration values

Examples:
  rolechat config set server.base_url https://chat.example.com/api/v1
  rolechat config set chat.markdown false
  rolechat config get server.timeout
  rolechat config list`

const configShortDesc string = "Manage persistent rolechat configuration"

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
