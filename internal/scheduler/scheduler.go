package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the watch-mode cron tasks: periodic analysis refreshes and
// the daily cache housekeeping pass.
type Scheduler struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	refresh func()
	prune   func()
}

// NewScheduler creates a Scheduler around the two task closures.
func NewScheduler(logger zerolog.Logger, refresh, prune func()) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		refresh: refresh,
		prune:   prune,
	}
}

// Register adds the refresh and prune tasks. An empty refreshCron skips the
// refresh task; the prune task is always registered.
func (s *Scheduler) Register(refreshCron, pruneCron string) error {
	if refreshCron != "" {
		if _, err := s.cron.AddFunc(refreshCron, func() {
			s.logger.Info().Msg("running scheduled refresh")
			s.refresh()
		}); err != nil {
			return fmt.Errorf("register refresh task: %w", err)
		}
	}
	if _, err := s.cron.AddFunc(pruneCron, func() {
		s.logger.Info().Msg("running cache prune pass")
		s.prune()
	}); err != nil {
		return fmt.Errorf("register prune task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("scheduler stopped")
}
