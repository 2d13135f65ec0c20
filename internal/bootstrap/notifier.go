package bootstrap

import (
	"context"
	"sync"

	"swapdesk/internal/history"
	"swapdesk/internal/session"
)

// outcomeFan fans transaction outcomes out to every registered notifier.
// Sessions are built before the dispatcher exists, so targets are added
// after construction.
type outcomeFan struct {
	mu      sync.RWMutex
	targets []session.Notifier
}

func (f *outcomeFan) Add(n session.Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, n)
}

func (f *outcomeFan) TransactionOutcome(ctx context.Context, rec *history.Record) {
	f.mu.RLock()
	targets := make([]session.Notifier, len(f.targets))
	copy(targets, f.targets)
	f.mu.RUnlock()

	for _, n := range targets {
		n.TransactionOutcome(ctx, rec)
	}
}
