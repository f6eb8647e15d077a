package cleanup

import (
	"time"

	"github.com/robfig/cron/v3"

	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/repository"
)

// Scheduler removes vault records that stopped syncing and settled
// notifications past their retention.
type Scheduler struct {
	cron      *cron.Cron
	vaultRepo repository.VaultRepository
	notifRepo repository.NotificationRepository
	config    *Config
	log       *logger.Logger
}

type Config struct {
	VaultRetentionDays        int
	NotificationRetentionDays int
	Schedule                  string
}

func DefaultConfig() *Config {
	return &Config{
		VaultRetentionDays:        14,
		NotificationRetentionDays: 90,
		Schedule:                  "0 2 * * *",
	}
}

func NewScheduler(
	vaultRepo repository.VaultRepository,
	notifRepo repository.NotificationRepository,
	config *Config,
	log *logger.Logger,
) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Scheduler{
		cron:      cron.New(),
		vaultRepo: vaultRepo,
		notifRepo: notifRepo,
		config:    config,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.log.Info("🧹 Starting scheduled cleanup...")
		s.RunCleanup()
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("✅ Cleanup scheduler started (schedule: %s)", s.config.Schedule)

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Cleanup scheduler stopped")
}

// Result reports how many rows a cleanup pass removed.
type Result struct {
	Vaults        int64
	Notifications int64
}

func (s *Scheduler) RunCleanup() Result {
	startTime := time.Now()
	s.log.Info("🧹 Cleanup job started")

	result := Result{
		Vaults:        s.cleanupVaults(),
		Notifications: s.cleanupNotifications(),
	}

	s.log.Info("✅ Cleanup completed in %v (vaults: %d, notifications: %d)",
		time.Since(startTime), result.Vaults, result.Notifications)
	return result
}

func (s *Scheduler) cleanupVaults() int64 {
	s.log.Info("🗑️  Removing vaults not synced for %d days...", s.config.VaultRetentionDays)

	cutoff := time.Now().UTC().AddDate(0, 0, -s.config.VaultRetentionDays)
	deleted, err := s.vaultRepo.DeleteStale(cutoff)
	if err != nil {
		s.log.Error("❌ Failed to cleanup vaults: %v", err)
		return 0
	}
	return deleted
}

func (s *Scheduler) cleanupNotifications() int64 {
	s.log.Info("🗑️  Removing settled notifications older than %d days...", s.config.NotificationRetentionDays)

	deleted, err := s.notifRepo.DeleteOld(s.config.NotificationRetentionDays)
	if err != nil {
		s.log.Error("❌ Failed to cleanup notifications: %v", err)
		return 0
	}
	return deleted
}

func (s *Scheduler) RunNow() Result {
	return s.RunCleanup()
}
