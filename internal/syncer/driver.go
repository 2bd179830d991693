// Package syncer replays provider statements into the ledger and advances
// the per-account checkpoint.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/ledgersync/internal/batch"
	"github.com/cleared-dev/ledgersync/internal/checkpoint"
	"github.com/cleared-dev/ledgersync/internal/id"
	"github.com/cleared-dev/ledgersync/internal/importer"
	"github.com/cleared-dev/ledgersync/internal/metrics"
	"github.com/cleared-dev/ledgersync/internal/model"
	"github.com/cleared-dev/ledgersync/internal/synclog"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

// StatementProvider returns the raw statement after a transfer id.
type StatementProvider interface {
	Statement(ctx context.Context, token, fromTransferID string, wait bool) (*model.RawStatement, error)
}

// Ledger is the subset of the ledger API used by a pass.
type Ledger interface {
	AccountExists(ctx context.Context, tenant, accountNumber string) (bool, error)
	CreateAccount(ctx context.Context, tenant string, account model.Account) error
	CreateTransaction(ctx context.Context, tenant string, txn model.Transaction) error
}

// Config sizes the ledger batches.
type Config struct {
	AccountsConcurrency     int
	TransactionsConcurrency int
}

// Pass identifies one synchronization run. When AccountNumber is empty the
// checkpoint is looked up by Token and written under the statement's own
// account.
type Pass struct {
	Tenant        string
	AccountNumber string
	Token         string
	Wait          bool
}

// Result summarizes a pass. On failure it reflects the work done before the
// error.
type Result struct {
	RunID              string
	Tenant             string
	AccountNumber      string
	Skipped            bool
	PreviousCheckpoint string
	Checkpoint         string
	Accounts           int
	AccountsCreated    int
	Transactions       int
	Created            int
	Divergent          int
	RolledBack         int
}

// Status returns the pass outcome label.
func (r *Result) Status(err error) string {
	switch {
	case err != nil:
		return metrics.PassFailed
	case r.Skipped:
		return metrics.PassSkipped
	default:
		return metrics.PassSucceeded
	}
}

// Option customizes a Driver.
type Option func(*Driver)

// WithMetrics records pass activity on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(d *Driver) { d.metrics = r }
}

// WithSyncLog appends one row per pass to the CSV log at path.
func WithSyncLog(path string) Option {
	return func(d *Driver) { d.syncLog = path }
}

// Driver runs sync passes.
type Driver struct {
	provider StatementProvider
	ledger   Ledger
	store    checkpoint.Store
	cfg      Config
	metrics  *metrics.Recorder
	syncLog  string
	log      zerolog.Logger
}

// NewDriver creates a Driver.
func NewDriver(p StatementProvider, l Ledger, s checkpoint.Store, cfg Config, log zerolog.Logger, opts ...Option) *Driver {
	d := &Driver{
		provider: p,
		ledger:   l,
		store:    s,
		cfg:      cfg,
		log:      log.With().Str("component", "syncer").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type accountOutcome string

type txnOutcome struct {
	outcome     string
	transfers   int
	maxTransfer string
}

// Run executes one pass: resolve the checkpoint, fetch and normalize the
// statement, ensure accounts, replay transactions and advance the
// checkpoint after each successful batch.
func (d *Driver) Run(ctx context.Context, pass Pass) (*Result, error) {
	res := &Result{
		RunID:         uuid.NewString(),
		Tenant:        pass.Tenant,
		AccountNumber: pass.AccountNumber,
	}
	log := d.log.With().
		Str("run_id", res.RunID).
		Str("tenant", pass.Tenant).
		Logger()

	start := time.Now()
	err := d.run(ctx, pass, res, log)
	elapsed := time.Since(start)

	status := res.Status(err)
	if err != nil {
		log.Error().Err(err).Str("kind", syncerr.KindOf(err).String()).Dur("elapsed", elapsed).Msg("Sync pass failed")
	} else {
		log.Info().
			Str("status", status).
			Str("checkpoint", res.Checkpoint).
			Int("transactions", res.Transactions).
			Int("divergent", res.Divergent).
			Dur("elapsed", elapsed).
			Msg("Sync pass finished")
	}

	if d.metrics != nil {
		d.metrics.Pass(pass.Tenant, status, elapsed)
	}
	if d.syncLog != "" {
		entry := synclog.Entry{
			Timestamp:    start,
			RunID:        res.RunID,
			Tenant:       res.Tenant,
			Account:      res.AccountNumber,
			Status:       status,
			Transactions: res.Transactions,
			Divergent:    res.Divergent,
			Checkpoint:   res.Checkpoint,
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if logErr := synclog.Append(d.syncLog, []synclog.Entry{entry}); logErr != nil {
			log.Warn().Err(logErr).Msg("Failed to append sync log")
		}
	}
	return res, err
}

func (d *Driver) run(ctx context.Context, pass Pass, res *Result, log zerolog.Logger) error {
	previous, err := d.resolveCheckpoint(ctx, pass)
	if err != nil {
		return err
	}
	res.PreviousCheckpoint = previous
	res.Checkpoint = previous
	log.Info().Str("checkpoint", previous).Str("account", pass.AccountNumber).Msg("Resolved checkpoint")

	raw, err := d.provider.Statement(ctx, pass.Token, previous, pass.Wait)
	if err != nil {
		return fmt.Errorf("fetching statement: %w", err)
	}

	stmt, err := importer.ToLedgerStatement(raw)
	if err != nil {
		return err
	}
	accts, err := importer.ExtractUniqueAccounts(raw)
	if err != nil {
		return err
	}

	if res.AccountNumber == "" {
		res.AccountNumber = stmt.AccountNumber
	}

	if len(stmt.Transactions) == 0 {
		res.Skipped = true
		log.Info().Str("account", res.AccountNumber).Msg("No new transactions")
		return nil
	}

	if err := d.ensureAccounts(ctx, pass.Tenant, accts, res, log); err != nil {
		return err
	}
	return d.replayTransactions(ctx, pass, stmt.Transactions, res, log)
}

func (d *Driver) resolveCheckpoint(ctx context.Context, pass Pass) (string, error) {
	var (
		cp  string
		err error
	)
	if pass.AccountNumber != "" {
		cp, _, err = d.store.Get(ctx, pass.Tenant, pass.AccountNumber)
	} else {
		cp, _, err = d.store.GetByToken(ctx, pass.Tenant, pass.Token)
	}
	if err != nil {
		return "", fmt.Errorf("reading checkpoint: %w", err)
	}
	return cp, nil
}

func (d *Driver) ensureAccounts(ctx context.Context, tenant string, accts []model.Account, res *Result, log zerolog.Logger) error {
	log.Info().Int("accounts", len(accts)).Msg("Ensuring accounts")
	res.Accounts = len(accts)

	_, err := batch.Run(ctx, accts, d.cfg.AccountsConcurrency,
		func(ctx context.Context, acct model.Account, _ int) (accountOutcome, error) {
			exists, err := d.ledger.AccountExists(ctx, tenant, acct.AccountNumber)
			if err != nil {
				return "", err
			}
			if exists {
				log.Debug().Str("account", acct.AccountNumber).Msg("Account already exists")
				return metrics.AccountExisting, nil
			}

			err = d.ledger.CreateAccount(ctx, tenant, acct)
			switch syncerr.KindOf(err) {
			case syncerr.Unknown:
				if err != nil {
					return "", err
				}
				log.Debug().Str("account", acct.AccountNumber).Msg("Created account")
				return metrics.AccountCreated, nil
			case syncerr.LedgerConflictBenign:
				log.Warn().Str("account", acct.AccountNumber).Msg("Account created concurrently")
				return metrics.AccountDuplicate, nil
			default:
				return "", err
			}
		},
		func(_ context.Context, outcomes []accountOutcome) error {
			for _, o := range outcomes {
				if o == metrics.AccountCreated {
					res.AccountsCreated++
				}
				if d.metrics != nil {
					d.metrics.Account(tenant, string(o))
				}
			}
			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("ensuring accounts: %w", err)
	}
	return nil
}

func (d *Driver) replayTransactions(ctx context.Context, pass Pass, txns []model.Transaction, res *Result, log zerolog.Logger) error {
	log.Info().Int("transactions", len(txns)).Msg("Creating transactions")
	running := res.Checkpoint

	_, err := batch.Run(ctx, txns, d.cfg.TransactionsConcurrency,
		func(ctx context.Context, txn model.Transaction, _ int) (txnOutcome, error) {
			out := txnOutcome{
				transfers:   len(txn.Transfers),
				maxTransfer: id.Max(txn.TransferIDs()...),
			}

			err := d.ledger.CreateTransaction(ctx, pass.Tenant, txn)
			switch syncerr.KindOf(err) {
			case syncerr.Unknown:
				if err != nil {
					return out, err
				}
				log.Debug().Str("transaction", txn.ID).Msg("Transaction created")
				out.outcome = metrics.TransactionCreated
			case syncerr.LedgerConflictDivergent:
				ev := log.Warn().Str("transaction", txn.ID)
				if payload, mErr := json.Marshal(txn); mErr == nil {
					ev = ev.RawJSON("payload", payload)
				}
				ev.Msg("Transaction already exists with different data")
				out.outcome = metrics.TransactionDivergent
			case syncerr.LedgerConflictBenign:
				log.Warn().Str("transaction", txn.ID).Msg("Transaction created but rolled back")
				out.outcome = metrics.TransactionRolledBack
			default:
				return out, err
			}
			return out, nil
		},
		func(ctx context.Context, outcomes []txnOutcome) error {
			ids := make([]string, 0, len(outcomes)+1)
			ids = append(ids, running)
			for _, o := range outcomes {
				ids = append(ids, o.maxTransfer)
				res.Transactions++
				switch o.outcome {
				case metrics.TransactionCreated:
					res.Created++
				case metrics.TransactionDivergent:
					res.Divergent++
				case metrics.TransactionRolledBack:
					res.RolledBack++
				}
				if d.metrics != nil {
					d.metrics.Transaction(pass.Tenant, o.outcome, o.transfers)
				}
			}

			next := id.Max(ids...)
			if err := d.store.Set(ctx, pass.Tenant, res.AccountNumber, pass.Token, next); err != nil {
				return fmt.Errorf("writing checkpoint: %w", err)
			}
			running = next
			res.Checkpoint = next
			log.Debug().Str("checkpoint", next).Msg("Checkpoint advanced")

			if n, err := id.ParseTransferID(next); err == nil && d.metrics != nil {
				d.metrics.Checkpoint(pass.Tenant, res.AccountNumber, n)
			}
			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("creating transactions: %w", err)
	}
	return nil
}
