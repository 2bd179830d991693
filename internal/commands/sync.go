package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledgersync/internal/registry"
	"github.com/cleared-dev/ledgersync/internal/syncer"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var tenant, account, token string
	var wait bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass per configured or registered token",
		Long: "Run one sync pass per tenant token from the config file and the\n" +
			"registry, or a single ad hoc pass when --token is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			var passes []syncer.Pass
			if token != "" {
				if tenant == "" {
					return errors.New("--tenant is required with --token")
				}
				passes = []syncer.Pass{{Tenant: tenant, AccountNumber: account, Token: token, Wait: wait}}
			} else {
				reg, err := a.openRegistry(ctx)
				if err != nil {
					return err
				}
				all, err := registry.NewSource(a.cfg.Passes(), reg).Passes(ctx)
				reg.Close()
				if err != nil {
					return err
				}
				for _, p := range all {
					if tenant != "" && p.Tenant != tenant {
						continue
					}
					if account != "" && p.AccountNumber != account {
						continue
					}
					if cmd.Flags().Changed("wait") {
						p.Wait = wait
					}
					passes = append(passes, p)
				}
			}
			if len(passes) == 0 {
				return errors.New("no tenants to sync")
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			client, err := a.providerClient()
			if err != nil {
				return err
			}
			driver := a.newDriver(client, store)

			var errs []error
			for _, p := range passes {
				res, err := driver.Run(ctx, p)
				printResult(cmd.OutOrStdout(), p, res, err)
				if err != nil {
					errs = append(errs, fmt.Errorf("tenant %s: %w", p.Tenant, err))
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "only sync this tenant")
	cmd.Flags().StringVar(&account, "account", "", "account number the checkpoint is kept under")
	cmd.Flags().StringVar(&token, "token", "", "provider token for an ad hoc pass")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait out the provider's rate limit once")

	return cmd
}
