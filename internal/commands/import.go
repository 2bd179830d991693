package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledgersync/internal/importer"
	"github.com/cleared-dev/ledgersync/internal/metrics"
	"github.com/cleared-dev/ledgersync/internal/syncer"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

// importToken labels checkpoints written by file imports. Imports are always
// keyed by account, so each statement owner gets its own token.
func importToken(account string) string {
	return "file-import:" + account
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var tenant, account, dir, format string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replay statement files from the import directory",
		Long: "Replay every statement file in the import directory in name order.\n" +
			"Checkpoints are kept under --account, or under each statement's own\n" +
			"IBAN when --account is not given. Imported files are moved to the\n" +
			"processed/ subdirectory; the first failure stops the run and leaves\n" +
			"the file in place.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.ImportDir
			}
			if dir == "" {
				return errors.New("no import directory configured")
			}
			parser, err := importer.DefaultRegistry().Lookup(format)
			if err != nil {
				return err
			}

			files, err := importer.Scan(dir, parser)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No statements in %s\n", dir)
				return nil
			}

			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, f := range files {
				if f.Err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s [%s] %v\n", f.Name, metrics.PassFailed, syncerr.KindOf(f.Err), f.Err)
					return fmt.Errorf("importing %s: %w", f.Name, f.Err)
				}
				owner := account
				if owner == "" {
					owner = f.Account
				}
				pass := syncer.Pass{Tenant: tenant, AccountNumber: owner, Token: importToken(owner)}
				driver := a.newDriver(importer.NewFileProvider(f.Path, parser), store)

				res, err := driver.Run(ctx, pass)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ", f.Name)
				printResult(cmd.OutOrStdout(), pass, res, err)
				if err != nil {
					return fmt.Errorf("importing %s: %w", f.Name, err)
				}
				if err := importer.MarkProcessed(dir, f.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant to import into (required)")
	_ = cmd.MarkFlagRequired("tenant")
	cmd.Flags().StringVar(&account, "account", "", "account number the checkpoint is kept under (default: the statement IBAN)")
	cmd.Flags().StringVar(&dir, "dir", "", "import directory (default from config)")
	cmd.Flags().StringVar(&format, "format", "fio", "statement format")

	return cmd
}
