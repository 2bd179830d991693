package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/cleared-dev/ledgersync/internal/syncer"
)

// ErrPassRunning is returned by Guard when the same pass is already in
// flight.
var ErrPassRunning = errors.New("sync already running")

// Guard serializes passes per (tenant, account). Passes without an account
// number are keyed by their token instead. A second caller for a busy key
// fails fast with ErrPassRunning rather than waiting.
type Guard struct {
	runner  PassRunner
	mu      sync.Mutex
	running map[string]bool
}

// NewGuard wraps runner.
func NewGuard(runner PassRunner) *Guard {
	return &Guard{runner: runner, running: map[string]bool{}}
}

func passKey(p syncer.Pass) string {
	if p.AccountNumber != "" {
		return p.Tenant + "\x00" + p.AccountNumber
	}
	return p.Tenant + "\x00token:" + p.Token
}

// Run implements PassRunner.
func (g *Guard) Run(ctx context.Context, pass syncer.Pass) (*syncer.Result, error) {
	key := passKey(pass)

	g.mu.Lock()
	if g.running[key] {
		g.mu.Unlock()
		return nil, ErrPassRunning
	}
	g.running[key] = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.running, key)
		g.mu.Unlock()
	}()
	return g.runner.Run(ctx, pass)
}
