package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledgersync/internal/export"
	"github.com/cleared-dev/ledgersync/internal/importer"
	"github.com/cleared-dev/ledgersync/internal/model"
)

// Files written by normalize --out.
const (
	TransfersFile = "transfers.csv"
	AccountsFile  = "accounts.csv"
)

type normalizedOutput struct {
	Statement *model.Statement `json:"statement"`
	Accounts  []model.Account  `json:"accounts"`
}

func newNormalizeCommand() *cobra.Command {
	var format, outDir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "normalize <statement-file>",
		Short: "Normalize a statement file without touching the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser, err := importer.DefaultRegistry().Lookup(format)
			if err != nil {
				return err
			}

			raw, err := importer.ParseFile(parser, args[0])
			if err != nil {
				return err
			}
			stmt, err := importer.ToLedgerStatement(raw)
			if err != nil {
				return err
			}
			accts, err := importer.ExtractUniqueAccounts(raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(normalizedOutput{Statement: stmt, Accounts: accts})
			case outDir != "":
				if err := writeNormalized(outDir, stmt, accts); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d transactions and %d accounts to %s\n", len(stmt.Transactions), len(accts), outDir)
				return nil
			default:
				return export.WriteTransfers(out, stmt.Transactions)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "fio", "statement format")
	cmd.Flags().StringVar(&outDir, "out", "", "write "+TransfersFile+" and "+AccountsFile+" to this directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the normalized statement as JSON")

	return cmd
}

func writeNormalized(dir string, stmt *model.Statement, accts []model.Account) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	tf, err := os.Create(filepath.Join(dir, TransfersFile))
	if err != nil {
		return fmt.Errorf("creating %s: %w", TransfersFile, err)
	}
	defer tf.Close()
	if err := export.WriteTransfers(tf, stmt.Transactions); err != nil {
		return err
	}

	af, err := os.Create(filepath.Join(dir, AccountsFile))
	if err != nil {
		return fmt.Errorf("creating %s: %w", AccountsFile, err)
	}
	defer af.Close()
	return export.WriteAccounts(af, accts)
}
