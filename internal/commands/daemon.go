package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledgersync/internal/registry"
	"github.com/cleared-dev/ledgersync/internal/scheduler"
	"github.com/cleared-dev/ledgersync/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newDaemonCommand(opts *rootOptions) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync configured tenants on a schedule and serve the status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			if a.cfg.Schedule == "" {
				return errors.New("schedule is required to run the daemon")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			reg, err := a.openRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()
			source := registry.NewSource(a.cfg.Passes(), reg)

			client, err := a.providerClient()
			if err != nil {
				return err
			}
			// Scheduled and manual passes share one guard so they never
			// advance the same checkpoint concurrently.
			runner := scheduler.NewGuard(a.newDriver(client, store))

			sched := scheduler.New(ctx, a.log)
			job := scheduler.NewSyncJob(runner, source, a.log)
			if err := sched.AddJob(a.cfg.Schedule, job); err != nil {
				return err
			}

			srv := server.New(server.Config{
				Addr:     a.cfg.Listen,
				Log:      a.log,
				Store:    store,
				Runner:   runner,
				Source:   source,
				Registry: reg,
				Metrics:  a.metrics,
				SyncLog:  a.cfg.SyncLog,
			})
			serverErr := make(chan error, 1)
			go func() {
				serverErr <- srv.Start()
			}()

			if runNow {
				if err := sched.RunNow(job); err != nil {
					a.log.Error().Err(err).Msg("Initial sync failed")
				}
			}
			sched.Start()

			select {
			case <-ctx.Done():
				a.log.Info().Msg("Shutdown signal received")
			case err = <-serverErr:
				if err != nil {
					a.log.Error().Err(err).Msg("HTTP server failed")
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				a.log.Error().Err(serr).Msg("HTTP server shutdown failed")
			}
			sched.Stop()
			return err
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "run a sync immediately before the first scheduled tick")

	return cmd
}
