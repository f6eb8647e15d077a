package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yearn-vaults/internal/api/auth"
	"yearn-vaults/internal/api/handlers"
	"yearn-vaults/internal/api/middleware"
	"yearn-vaults/internal/api/websocket"
	"yearn-vaults/internal/command"
	"yearn-vaults/internal/config"
	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/repository"
	"yearn-vaults/internal/syncer"
)

// Dependencies містить сервіси, які відкриває HTTP шар
type Dependencies struct {
	Vaults        repository.VaultRepository
	ViewCache     *handlers.ViewCache
	Flow          handlers.FlowBuilder
	Positions     handlers.PositionReader
	Notifications handlers.Notifier
	Dispatcher    command.Dispatcher
	Hub           *websocket.Hub
	DB            handlers.Pinger
	// Кеші цього процесу, які очищає POST /admin/cache/clear
	Caches []syncer.Clearer
}

// Server обслуговує публічний API vault та адмін endpoints
type Server struct {
	config      *config.Config
	log         *logger.Logger
	httpServer  *http.Server
	router      *mux.Router
	handler     http.Handler
	jwtManager  *auth.JWTManager
	rateLimiter *middleware.RateLimiter
	stop        chan struct{}

	healthHandler       *handlers.HealthHandler
	vaultHandler        *handlers.VaultHandler
	actionHandler       *handlers.ActionHandler
	positionHandler     *handlers.PositionHandler
	notificationHandler *handlers.NotificationHandler
	authHandler         *handlers.AuthHandler
	adminHandler        *handlers.AdminHandler
	wsHandler           *websocket.Handler
}

func NewServer(cfg *config.Config, deps Dependencies, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		config: cfg,
		log:    log,
		stop:   make(chan struct{}),
	}

	s.jwtManager = auth.NewJWTManager(cfg.Admin.JWTSecret, 24*time.Hour)
	s.rateLimiter = middleware.NewRateLimiter(cfg.Admin.RateLimit)

	caches := make([]syncer.Clearer, 0, len(deps.Caches))
	for _, c := range deps.Caches {
		if c != nil {
			caches = append(caches, c)
		}
	}

	s.healthHandler = handlers.NewHealthHandler(deps.DB)
	s.vaultHandler = handlers.NewVaultHandler(deps.Vaults, deps.ViewCache, log)
	s.actionHandler = handlers.NewActionHandler(s.vaultHandler, deps.Flow, log)
	s.positionHandler = handlers.NewPositionHandler(deps.Positions, log)
	s.notificationHandler = handlers.NewNotificationHandler(deps.Notifications, log)
	s.authHandler = handlers.NewAuthHandler(auth.Credentials{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
	}, s.jwtManager, log)
	s.adminHandler = handlers.NewAdminHandler(deps.Dispatcher, log, caches...)
	if deps.Hub != nil {
		s.wsHandler = websocket.NewHandler(deps.Hub, cfg.Admin.AllowedOrigins)
	}

	s.setupRouter()
	return s
}

// setupRouter налаштовує всі роути та middleware
func (s *Server) setupRouter() {
	r := mux.NewRouter()

	r.Use(middleware.Recovery(s.log))
	r.Use(middleware.Logging(s.log))
	r.Use(s.rateLimiter.Middleware)

	api := r.PathPrefix("/api/v1").Subrouter()

	// ========== Публічні роути ==========

	api.HandleFunc("/health", s.healthHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/ping", s.healthHandler.Ping).Methods(http.MethodGet)
	api.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api.HandleFunc("/vaults", s.vaultHandler.ListVaults).Methods(http.MethodGet)
	api.HandleFunc("/vaults/chains", s.vaultHandler.Chains).Methods(http.MethodGet)
	api.HandleFunc("/vaults/categories", s.vaultHandler.Categories).Methods(http.MethodGet)
	api.HandleFunc("/vaults/{chainID:[0-9]+}/{address}", s.vaultHandler.GetVault).Methods(http.MethodGet)
	api.HandleFunc("/vaults/{chainID:[0-9]+}/{address}/strategies", s.vaultHandler.Strategies).Methods(http.MethodGet)
	api.HandleFunc("/vaults/{chainID:[0-9]+}/{address}/actions", s.actionHandler.BuildAction).Methods(http.MethodPost)

	api.HandleFunc("/accounts/{address}/positions", s.positionHandler.Positions).Methods(http.MethodGet)

	api.HandleFunc("/notifications", s.notificationHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/notifications", s.notificationHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}", s.notificationHandler.Update).Methods(http.MethodPatch)

	if s.wsHandler != nil {
		api.HandleFunc("/ws", s.wsHandler.ServeWS).Methods(http.MethodGet)
	}

	api.HandleFunc("/admin/auth/login", s.authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/admin/auth/refresh", s.authHandler.RefreshToken).Methods(http.MethodPost)

	// ========== Адмін роути (потрібен JWT) ==========

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.JWTAuth(s.jwtManager))

	admin.HandleFunc("/auth/me", s.authHandler.Me).Methods(http.MethodGet)
	admin.HandleFunc("/sync", s.adminHandler.TriggerSync).Methods(http.MethodPost)
	admin.HandleFunc("/sync/status", s.adminHandler.SyncStatus).Methods(http.MethodGet)
	admin.HandleFunc("/sync/{chainID:[0-9]+}/{address}", s.adminHandler.SyncVault).Methods(http.MethodPost)
	admin.HandleFunc("/cache/clear", s.adminHandler.ClearCache).Methods(http.MethodPost)

	s.router = r
	s.handler = middleware.CORS(s.config.Admin.AllowedOrigins)(r)
}

// Start запускає HTTP сервер
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Admin.Host, s.config.Admin.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.rateLimiter.RunCleanup(5*time.Minute, s.stop)

	s.log.Info("🚀 API server starting on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop зупиняє HTTP сервер gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("🛑 Shutting down API server...")
	close(s.stop)

	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("✅ API server stopped")
	return nil
}

// Handler повертає повний ланцюг middleware разом з CORS
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router повертає router для тестування
func (s *Server) Router() *mux.Router {
	return s.router
}
