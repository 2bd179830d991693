package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledgersync/internal/checkpoint"
	"github.com/cleared-dev/ledgersync/internal/config"
	"github.com/cleared-dev/ledgersync/internal/importer"
)

type initOptions struct {
	ledgerURL string
	backend   string
	tenant    string
	account   string
	token     string
	force     bool
}

func newInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledgersync working directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized ledgersync at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ledgerURL, "ledger-url", "", "ledger service base URL")
	cmd.Flags().StringVar(&opts.backend, "backend", checkpoint.BackendFile, "checkpoint backend (file, sqlite, redis)")
	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "first tenant name")
	cmd.Flags().StringVar(&opts.account, "account", "", "first tenant account number")
	cmd.Flags().StringVar(&opts.token, "token", "", "first tenant provider token")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing config")

	return cmd
}

func runInit(dir string, opts initOptions) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}
	if (opts.tenant == "") != (opts.token == "") {
		return errors.New("--tenant and --token must be given together")
	}

	cfg := config.Default()
	if opts.ledgerURL != "" {
		cfg.Ledger.URL = opts.ledgerURL
	}
	cfg.Checkpoint.Backend = opts.backend
	cfg.Registry.Backend = opts.backend
	if opts.backend == checkpoint.BackendSQLite {
		cfg.Checkpoint.Path = "checkpoints.db"
		cfg.Registry.Path = "checkpoints.db"
	}
	if opts.tenant != "" {
		cfg.Tenants = []config.Tenant{{Name: opts.tenant, Account: opts.account, Token: opts.token}}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create directory structure.
	for _, d := range []string{cfg.ImportDir, filepath.Join(cfg.ImportDir, importer.ProcessedDir)} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Tokens and local state stay out of version control.
	gitignore := ".env\ncheckpoints.json\ncheckpoints.db\nregistry.json\n" + cfg.SyncLog + "\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}
