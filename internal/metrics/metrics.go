// Package metrics records sync activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pass outcomes.
const (
	PassSucceeded = "success"
	PassSkipped   = "skipped"
	PassFailed    = "failed"
)

// Transaction outcomes.
const (
	TransactionCreated    = "created"
	TransactionDivergent  = "divergent"
	TransactionRolledBack = "rolled_back"
)

// Account outcomes.
const (
	AccountCreated   = "created"
	AccountExisting  = "existing"
	AccountDuplicate = "duplicate"
)

// Recorder owns the sync metrics registered on one registry.
type Recorder struct {
	registry     *prometheus.Registry
	passes       *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	transactions *prometheus.CounterVec
	transfers    *prometheus.CounterVec
	accounts     *prometheus.CounterVec
	checkpoint   *prometheus.GaugeVec
}

// NewRecorder registers the sync metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		passes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgersync_passes_total",
				Help: "Sync passes by tenant and outcome",
			},
			[]string{"tenant", "status"},
		),
		passDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgersync_pass_duration_seconds",
				Help:    "Duration of sync passes",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"tenant"},
		),
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgersync_transactions_total",
				Help: "Transactions submitted to the ledger by outcome",
			},
			[]string{"tenant", "outcome"},
		),
		transfers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgersync_transfers_imported_total",
				Help: "Transfers contained in submitted transactions",
			},
			[]string{"tenant"},
		),
		accounts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgersync_accounts_total",
				Help: "Accounts ensured in the ledger by outcome",
			},
			[]string{"tenant", "outcome"},
		),
		checkpoint: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledgersync_checkpoint_transfer_id",
				Help: "Last checkpointed transfer id (numeric ids only)",
			},
			[]string{"tenant", "account"},
		),
	}
}

// Registry exposes the registry for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Pass records a finished pass.
func (r *Recorder) Pass(tenant, status string, elapsed time.Duration) {
	r.passes.WithLabelValues(tenant, status).Inc()
	r.passDuration.WithLabelValues(tenant).Observe(elapsed.Seconds())
}

// Transaction records one transaction submission with its transfer count.
func (r *Recorder) Transaction(tenant, outcome string, transfers int) {
	r.transactions.WithLabelValues(tenant, outcome).Inc()
	if outcome == TransactionCreated {
		r.transfers.WithLabelValues(tenant).Add(float64(transfers))
	}
}

// Account records one ensured account.
func (r *Recorder) Account(tenant, outcome string) {
	r.accounts.WithLabelValues(tenant, outcome).Inc()
}

// Checkpoint records a written numeric checkpoint.
func (r *Recorder) Checkpoint(tenant, account string, transferID int64) {
	r.checkpoint.WithLabelValues(tenant, account).Set(float64(transferID))
}
