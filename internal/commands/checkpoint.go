package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledgersync/internal/id"
)

func newCheckpointCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or move sync checkpoints",
	}
	cmd.AddCommand(newCheckpointGetCommand(opts))
	cmd.AddCommand(newCheckpointSetCommand(opts))
	return cmd
}

func newCheckpointGetCommand(opts *rootOptions) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "get <tenant> [account]",
		Short: "Print the last synced transfer id",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && token == "" {
				return errors.New("either an account or --token is required")
			}

			a, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var cp string
			var ok bool
			if len(args) == 2 {
				cp, ok, err = store.Get(ctx, args[0], args[1])
			} else {
				cp, ok, err = store.GetByToken(ctx, args[0], token)
			}
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("no checkpoint")
			}
			fmt.Fprintln(cmd.OutOrStdout(), cp)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "look the checkpoint up by provider token")
	return cmd
}

func newCheckpointSetCommand(opts *rootOptions) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "set <tenant> <account> <transfer-id>",
		Short: "Overwrite the last synced transfer id",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := id.ParseTransferID(args[2]); err != nil {
				return fmt.Errorf("invalid transfer id: %w", err)
			}

			a, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Set(ctx, args[0], args[1], token, args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s/%s set to %s\n", args[0], args[1], args[2])
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "provider token stored with the checkpoint")
	return cmd
}
