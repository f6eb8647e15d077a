package syncer

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron     *cron.Cron
	service  *Service
	schedule string
	ctx      context.Context
}

func NewScheduler(ctx context.Context, service *Service, schedule string) *Scheduler {
	if schedule == "" {
		schedule = "*/5 * * * *"
	}
	return &Scheduler{
		cron:     cron.New(),
		service:  service,
		schedule: schedule,
		ctx:      ctx,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.service.log.Info("Starting scheduled sync...")
		if _, err := s.service.SyncAll(s.ctx); err != nil {
			if errors.Is(err, ErrAlreadyRunning) {
				s.service.log.Warn("⚠️ Previous sync still running, skipping")
				return
			}
			s.service.log.Error("Scheduled sync error: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.service.log.Info("✅ Sync scheduler started (schedule: %s)", s.schedule)

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.service.log.Info("Sync scheduler stopped")
}

func (s *Scheduler) RunNow() (Result, error) {
	return s.service.SyncAll(s.ctx)
}
