package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler periodically sweeps suspended enrollments and resumes the due
// ones. One Scheduler per process is enough; concurrent sweeps are safe but
// redundant.
type Scheduler struct {
	engine   *Engine
	logger   *slog.Logger
	interval time.Duration

	ticker  *time.Ticker
	done    chan struct{}
	started bool
	mu      sync.RWMutex
}

func NewScheduler(engine *Engine, logger *slog.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		logger:   logger.With("module", "scheduler"),
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.ticker = time.NewTicker(s.interval)
	s.started = true

	go s.run(ctx)

	s.logger.Info("Scheduler started", "interval", s.interval)

	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.ticker.Stop()
	close(s.done)
	s.started = false

	s.logger.Info("Scheduler stopped")

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.ticker.C:
			s.sweep(ctx)
		}
	}
}

// Sweep resumes all due enrollments immediately. Exposed for one-shot runs.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	return s.engine.ResumeDue(ctx, time.Now().UTC())
}

func (s *Scheduler) sweep(ctx context.Context) {
	resumed, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("Sweep failed", "error", err)

		return
	}

	if resumed > 0 {
		s.logger.Info("Resumed enrollments", "count", resumed)
	}
}
