package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Expirer cancels bookings whose confirmation window has elapsed.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Sweeper periodically expires stale paid bookings.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	logger   *zerolog.Logger
}

func NewSweeper(expirer Expirer, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{expirer: expirer, interval: interval, logger: logger}
}

// Start runs one sweep right away, then one per interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
	defer s.logger.Info().Msg("expiry sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns how many bookings expired.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	n, err := s.expirer.ExpireStale(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("expired", n).Msg("expiry sweep failed")
		return n
	}
	if n > 0 {
		s.logger.Info().Int("expired", n).Msg("expired stale bookings")
	}
	return n
}
