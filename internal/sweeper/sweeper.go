// Package sweeper periodically reclaims seats held by drafts that were
// never confirmed. It is the only part of the system that acts on hold age;
// nothing in the request path expires drafts opportunistically.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

type Releaser interface {
	ReleaseExpired(ctx context.Context) (int, error)
}

type Sweeper struct {
	releaser Releaser
	interval time.Duration
	log      *slog.Logger
}

func New(releaser Releaser, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		releaser: releaser,
		interval: interval,
		log:      log,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. A failing sweep is
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("sweeper started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	released, err := s.releaser.ReleaseExpired(ctx)
	if err != nil {
		s.log.Error("sweep failed", slog.String("error", err.Error()))
		return
	}
	if released > 0 {
		s.log.Info("released expired drafts", slog.Int("count", released))
	}
}
