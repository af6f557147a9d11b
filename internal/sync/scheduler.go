package sync

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler fires the worker on a cron schedule, the equivalent of the
// external clock trigger.
type Scheduler struct {
	schedule string
	worker   *Worker
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewScheduler constructs a Scheduler. An empty schedule disables it.
func NewScheduler(schedule string, worker *Worker, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		worker:   worker,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the cron entry and begins scheduling.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.logger.Info("scheduled sync disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.worker.Trigger("schedule")
	}); err != nil {
		return err
	}

	s.logger.Info("scheduled sync enabled", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop halts scheduling; in-flight triggers are left to the worker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
