package main

import (
	"context"
	"log/slog"
	"time"
)

type sessionPurger interface {
	PurgeExpired() error
}

// runSessionPurger drops expired sessions on a fixed interval until the
// context is cancelled. Memory-backed stores need this; Redis expires keys on
// its own and the purge becomes a no-op.
func runSessionPurger(ctx context.Context, logger *slog.Logger, sessions sessionPurger, interval time.Duration) error {
	if sessions == nil || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := sessions.PurgeExpired(); err != nil && logger != nil {
				logger.Error("failed to purge expired sessions", "error", err)
			}
		}
	}
}
