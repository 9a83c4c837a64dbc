package jobs

import (
	"context"
	"time"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

const (
	defaultSweepInterval = time.Hour
	defaultStaleAge      = 90 * 24 * time.Hour
)

// StaleCloser closes conversations idle longer than age.
type StaleCloser interface {
	CloseStale(ctx context.Context, age time.Duration) (int64, error)
}

// Sweeper periodically closes stale conversations so they stop matching
// as the active thread for a returning customer.
type Sweeper struct {
	store    StaleCloser
	interval time.Duration
	age      time.Duration
	logger   *logging.Logger
}

// SweeperOption customizes sweep cadence.
type SweeperOption func(*Sweeper)

// WithSweepInterval sets how often the sweep runs.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithStaleAge sets how long a conversation may idle before it is closed.
func WithStaleAge(age time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if age > 0 {
			s.age = age
		}
	}
}

func NewSweeper(store StaleCloser, logger *logging.Logger, opts ...SweeperOption) *Sweeper {
	if store == nil {
		panic("jobs: stale closer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Sweeper{
		store:    store,
		interval: defaultSweepInterval,
		age:      defaultStaleAge,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	closed, err := s.store.CloseStale(ctx, s.age)
	if err != nil {
		s.logger.Error("stale conversation sweep failed", "error", err)
		return
	}
	if closed > 0 {
		s.logger.Info("closed stale conversations", "count", closed, "age", s.age)
	}
}
