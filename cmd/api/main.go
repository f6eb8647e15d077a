package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"yearn-vaults/internal/api"
	"yearn-vaults/internal/api/handlers"
	"yearn-vaults/internal/api/websocket"
	"yearn-vaults/internal/chain"
	"yearn-vaults/internal/command"
	"yearn-vaults/internal/config"
	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/notification"
	"yearn-vaults/internal/positions"
	"yearn-vaults/internal/repository"
	"yearn-vaults/internal/solver"
	"yearn-vaults/internal/syncer"
	"yearn-vaults/internal/version"
)

const EventBlock = "chain.block"

func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	defer func() { _ = appLog.Sync() }()

	appLog.Info("🚀 Starting yearn vaults API %s...", version.GetVersion())
	appLog.Info("Environment: %s", cfg.App.Environment)
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

	sqlDB, err := db.DB()
	if err != nil {
		appLog.Fatal("Failed to access database handle: %v", err)
	}

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
	if redisClient != nil {
		appLog.Info("✅ Redis connected")
	}

	hub := websocket.NewHub(appLog)
	go hub.Run(ctx)

	viewCache, err := handlers.NewViewCache(30 * time.Second)
	if err != nil {
		appLog.Fatal("Failed to create view cache: %v", err)
	}
	defer viewCache.Close()
	events := command.Fanout{viewCache, hub}

	reader, err := chain.Dial(ctx, cfg.Chains, appLog)
	if err != nil {
		appLog.Fatal("Failed to connect to chains: %v", err)
	}
	defer reader.Close()

	positionService, err := positions.NewService(vaultRepo, reader, positions.Options{}, appLog)
	if err != nil {
		appLog.Fatal("Failed to create positions service: %v", err)
	}
	defer positionService.Close()

	watcher := chain.NewWatcher(reader, reader.Chains(), time.Duration(cfg.Sync.BlockPollSeconds)*time.Second, appLog)
	blocks := watcher.Subscribe(16)
	go watcher.Run(ctx)
	go func() {
		for event := range blocks {
			hub.Publish(EventBlock, event)
		}
	}()

	quoteTimeout := time.Duration(cfg.Solvers.QuoteTimeoutSec) * time.Second
	flowOpts := solver.FlowOptions{Config: cfg, Reader: reader, Logger: appLog, QuoteTimeout: quoteTimeout}
	if cfg.Solvers.EnsoURL != "" {
		flowOpts.Enso = solver.NewEnsoClient(cfg.Solvers.EnsoURL, cfg.Solvers.EnsoAPIKey, quoteTimeout)
	}
	if cfg.Solvers.CowURL != "" {
		flowOpts.Cow = solver.NewCowClient(cfg.Solvers.CowURL, quoteTimeout)
	}
	flow := solver.NewFlow(flowOpts)

	notificationService := notification.NewService(notifRepo, hub, appLog)

	// admin commands go to the syncer process; without one they run here
	syncService := syncer.NewService(syncer.NewUpstream(cfg.Kong, appLog), vaultRepo, syncer.Options{
		Chains:      cfg.ChainIDs(),
		Concurrency: cfg.Sync.Concurrency,
		Publisher:   events,
		Logger:      appLog,
	})
	dispatcher := command.FallbackDispatcher{
		Primary:   command.NewService(redisClient, appLog),
		Secondary: command.LocalDispatcher{Handler: syncer.NewCommands(ctx, syncService).Handle},
	}

	if redisClient != nil {
		go func() {
			if err := command.Relay(ctx, redisClient, events, appLog); err != nil {
				appLog.Error("❌ Event relay stopped: %v", err)
			}
		}()
	}

	server := api.NewServer(cfg, api.Dependencies{
		Vaults:        vaultRepo,
		ViewCache:     viewCache,
		Flow:          flow,
		Positions:     positionService,
		Notifications: notificationService,
		Dispatcher:    dispatcher,
		Hub:           hub,
		DB:            sqlDB,
		Caches:        []syncer.Clearer{viewCache, positionService},
	}, appLog)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		if err != nil {
			appLog.Error("❌ Server error: %v", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown: %v", err)
	}

	appLog.Info("✅ API stopped gracefully")
}
