package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// RefreshScheduler периодически обновляет кэш реестра, чтобы счетчики мест
// не зависели только от запросов пользователей.
type RefreshScheduler struct {
	scheduler gocron.Scheduler
	registry  *TournamentRegistry
	logger    *slog.Logger
}

func NewRefreshScheduler(registry *TournamentRegistry, interval time.Duration, logger *slog.Logger) (*RefreshScheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &RefreshScheduler{scheduler: sched, registry: registry, logger: logger}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.tick),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule registry refresh: %w", err)
	}
	return s, nil
}

func (s *RefreshScheduler) tick() {
	ctx := context.Background()
	if err := s.registry.RefreshTournaments(ctx); err != nil {
		s.logger.Warn("scheduled tournament refresh failed", slog.Any("error", err))
	}
	if err := s.registry.RefreshAllRegistrations(ctx); err != nil {
		s.logger.Warn("scheduled registration refresh failed", slog.Any("error", err))
	}
}

func (s *RefreshScheduler) Start() {
	s.scheduler.Start()
}

func (s *RefreshScheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}
