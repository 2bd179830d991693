package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledgersync/internal/buildinfo"
	"github.com/cleared-dev/ledgersync/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "ledgersync",
		Short:   "Replay bank statements into a ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.FileName, "config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newSyncCommand(opts))
	rootCmd.AddCommand(newDaemonCommand(opts))
	rootCmd.AddCommand(newImportCommand(opts))
	rootCmd.AddCommand(newNormalizeCommand())
	rootCmd.AddCommand(newCheckpointCommand(opts))

	return rootCmd
}
