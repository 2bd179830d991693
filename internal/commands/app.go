package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/ledgersync/internal/checkpoint"
	"github.com/cleared-dev/ledgersync/internal/config"
	"github.com/cleared-dev/ledgersync/internal/ledger"
	"github.com/cleared-dev/ledgersync/internal/logging"
	"github.com/cleared-dev/ledgersync/internal/metrics"
	"github.com/cleared-dev/ledgersync/internal/provider"
	"github.com/cleared-dev/ledgersync/internal/registry"
	"github.com/cleared-dev/ledgersync/internal/syncer"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// app is the wiring shared by commands that talk to the ledger.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Recorder
}

func (o *rootOptions) load() (*app, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", o.configPath, err)
	}

	return &app{
		cfg:     cfg,
		log:     logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}),
		metrics: metrics.NewRecorder(),
	}, nil
}

func (a *app) openStore(ctx context.Context) (checkpoint.Store, error) {
	store, err := checkpoint.Open(ctx, a.cfg.CheckpointOptions())
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint store: %w", err)
	}
	return store, nil
}

func (a *app) openRegistry(ctx context.Context) (registry.Store, error) {
	reg, err := registry.Open(ctx, a.cfg.RegistryOptions())
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	return reg, nil
}

func (a *app) providerClient() (*provider.Client, error) {
	pc, err := a.cfg.ProviderClientConfig()
	if err != nil {
		return nil, err
	}
	return provider.NewClient(pc, a.log), nil
}

func (a *app) newDriver(p syncer.StatementProvider, store checkpoint.Store) *syncer.Driver {
	opts := []syncer.Option{syncer.WithMetrics(a.metrics)}
	if a.cfg.SyncLog != "" {
		opts = append(opts, syncer.WithSyncLog(a.cfg.SyncLog))
	}
	l := ledger.NewClient(a.cfg.LedgerClientConfig(), a.log)
	return syncer.NewDriver(p, l, store, a.cfg.SyncConfig(), a.log, opts...)
}

func printResult(w io.Writer, pass syncer.Pass, res *syncer.Result, err error) {
	if res == nil {
		res = &syncer.Result{Tenant: pass.Tenant, AccountNumber: pass.AccountNumber}
	}
	account := res.AccountNumber
	if account == "" {
		account = "(by token)"
	}

	fmt.Fprintf(w, "%s %s: %s", res.Tenant, account, res.Status(err))
	if err != nil {
		fmt.Fprintf(w, " [%s] %v\n", syncerr.KindOf(err), err)
		return
	}
	if res.Skipped {
		fmt.Fprintln(w, ", nothing new")
		return
	}
	fmt.Fprintf(w, ", %d transactions (%d created, %d divergent, %d rolled back), %d accounts (%d created), checkpoint %s\n",
		res.Transactions, res.Created, res.Divergent, res.RolledBack,
		res.Accounts, res.AccountsCreated, res.Checkpoint)
}
