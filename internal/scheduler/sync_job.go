package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/ledgersync/internal/syncer"
)

// PassRunner executes one sync pass.
type PassRunner interface {
	Run(ctx context.Context, pass syncer.Pass) (*syncer.Result, error)
}

// PassSource lists the passes a sync should run. It is consulted on every
// run so tokens registered at runtime are picked up.
type PassSource interface {
	Passes(ctx context.Context) ([]syncer.Pass, error)
}

// StaticPasses is a fixed PassSource.
type StaticPasses []syncer.Pass

// Passes implements PassSource.
func (s StaticPasses) Passes(context.Context) ([]syncer.Pass, error) {
	return s, nil
}

// SyncJob runs the listed passes one after another. A tick that fires
// while the previous run is still going is skipped.
type SyncJob struct {
	runner PassRunner
	source PassSource
	mu     sync.Mutex
	log    zerolog.Logger
}

// NewSyncJob creates a job over the passes of source.
func NewSyncJob(runner PassRunner, source PassSource, log zerolog.Logger) *SyncJob {
	return &SyncJob{
		runner: runner,
		source: source,
		log:    log.With().Str("job", "sync").Logger(),
	}
}

// Name returns the job name.
func (j *SyncJob) Name() string {
	return "sync"
}

// Run executes every pass. A failed pass does not stop the others; the
// failures are joined into the returned error. A pass that another caller
// is already running is skipped.
func (j *SyncJob) Run(ctx context.Context) error {
	if !j.mu.TryLock() {
		j.log.Warn().Msg("Sync already running, skipping")
		return nil
	}
	defer j.mu.Unlock()

	passes, err := j.source.Passes(ctx)
	if err != nil {
		return fmt.Errorf("listing passes: %w", err)
	}

	j.log.Info().Int("passes", len(passes)).Msg("Starting sync")
	start := time.Now()

	var errs []error
	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := j.runner.Run(ctx, pass)
		switch {
		case errors.Is(err, ErrPassRunning):
			j.log.Warn().
				Str("tenant", pass.Tenant).
				Str("account", pass.AccountNumber).
				Msg("Pass already running, skipping")
		case err != nil:
			errs = append(errs, fmt.Errorf("tenant %s: %w", pass.Tenant, err))
		}
	}

	j.log.Info().
		Int("failed", len(errs)).
		Dur("duration", time.Since(start)).
		Msg("Sync finished")
	return errors.Join(errs...)
}
