// Package worker runs the periodic expiry sweep in the background.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// SweepService is the slice of the auth service the sweeper drives.
type SweepService interface {
	ExpirySweep(ctx context.Context) (int, error)
}

// Sweeper triggers the expiry sweep on a fixed interval. One run fires at
// startup so a restart never extends the gap between sweeps.
type Sweeper struct {
	service  SweepService
	interval time.Duration
	logger   *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) SweeperOption {
	return func(w *Sweeper) { w.logger = l }
}

// NewSweeper builds a sweeper ticking at the given interval.
func NewSweeper(service SweepService, interval time.Duration, opts ...SweeperOption) *Sweeper {
	w := &Sweeper{
		service:  service,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until the context is cancelled. Sweep failures are logged and
// the ticker keeps going; a transiently unavailable store must not kill the
// worker.
func (w *Sweeper) Run(ctx context.Context) error {
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	if _, err := w.service.ExpirySweep(ctx); err != nil {
		w.logger.Error("expiry sweep failed", "error", err)
	}
}
