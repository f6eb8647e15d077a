package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"yearn-vaults/internal/cleanup"
	"yearn-vaults/internal/command"
	"yearn-vaults/internal/config"
	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/repository"
	"yearn-vaults/internal/syncer"
	"yearn-vaults/internal/version"
)

func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	defer func() { _ = appLog.Sync() }()

	appLog.Info("🚀 Starting yearn vaults syncer %s...", version.GetVersion())
	if cfg.App.Environment == "development" {
		appLog.Debug("Config loaded:\n%s", cfg.SafeString())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.InitDatabase(cfg.Database, cfg.App)
	if err != nil {
		appLog.Fatal("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := repository.CloseDatabase(db); err != nil {
			appLog.Error("Error closing database: %v", err)
		}
	}()
	if err := repository.AutoMigrate(db); err != nil {
		appLog.Fatal("Failed to migrate database: %v", err)
	}
	appLog.Info("✅ Database ready")

	vaultRepo := repository.NewVaultRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	redisClient, err := command.NewRedisClient(cfg.Redis)
	if err != nil {
		if cfg.App.Environment == "production" {
			appLog.Fatal("❌ Failed to connect to Redis (required in production): %v", err)
		}
		appLog.Warn("⚠️  Redis not available: %v", err)
	}
	defer func() { _ = command.CloseRedisClient(redisClient) }()

	syncService := syncer.NewService(syncer.NewUpstream(cfg.Kong, appLog), vaultRepo, syncer.Options{
		Chains:      cfg.ChainIDs(),
		Concurrency: cfg.Sync.Concurrency,
		Publisher:   command.NewEventPublisher(redisClient, appLog),
		Logger:      appLog,
	})

	if cfg.Sync.Enabled {
		scheduler := syncer.NewScheduler(ctx, syncService, cfg.Sync.Schedule)
		if err := scheduler.Start(); err != nil {
			appLog.Fatal("Failed to start sync scheduler: %v", err)
		}
		defer scheduler.Stop()

		go func() {
			appLog.Info("Running initial sync...")
			if _, err := scheduler.RunNow(); err != nil {
				appLog.Error("❌ Initial sync failed: %v", err)
			}
		}()
	} else {
		appLog.Warn("⚠️  Scheduled sync disabled, waiting for commands")
	}

	cleaner := cleanup.NewScheduler(vaultRepo, notifRepo, &cleanup.Config{
		VaultRetentionDays:        cfg.Cleanup.VaultRetentionDays,
		NotificationRetentionDays: cfg.Cleanup.NotificationRetentionDays,
		Schedule:                  cfg.Cleanup.Schedule,
	}, appLog)
	if err := cleaner.Start(); err != nil {
		appLog.Fatal("Failed to start cleanup scheduler: %v", err)
	}
	defer cleaner.Stop()

	commands := syncer.NewCommands(ctx, syncService)
	go func() {
		if err := command.NewService(redisClient, appLog).Serve(ctx, commands.Handle); err != nil {
			appLog.Error("❌ Command service stopped: %v", err)
		}
	}()

	appLog.Info("✅ Syncer started")
	<-ctx.Done()
	appLog.Info("🛑 Shutting down syncer...")
}
