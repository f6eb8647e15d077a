package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearn-vaults/internal/api/auth"
	"yearn-vaults/internal/api/handlers"
	"yearn-vaults/internal/command"
	"yearn-vaults/internal/config"
	"yearn-vaults/internal/models"
	"yearn-vaults/internal/notification"
	"yearn-vaults/internal/positions"
	"yearn-vaults/internal/repository"
	"yearn-vaults/internal/solver"
	"yearn-vaults/internal/syncer"
	"yearn-vaults/internal/vault"
)

const (
	usdcVault = "0x1111111111111111111111111111111111111111"
	daiVault  = "0x2222222222222222222222222222222222222222"
	usdc      = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	wallet    = "0x00000000000000000000000000000000000000aa"
)

type stubFlow struct {
	last solver.Request
}

func (s *stubFlow) Build(_ context.Context, req solver.Request) (*solver.ActionFlow, error) {
	s.last = req
	return &solver.ActionFlow{
		Solver:  solver.Vanilla,
		Actions: []solver.SimulatedCall{{ChainID: req.ChainID(), Method: "deposit"}},
	}, nil
}

type stubPositions struct{}

func (stubPositions) ForAccount(_ context.Context, chainID uint64, owner common.Address) ([]positions.Position, error) {
	return []positions.Position{{ChainID: chainID, Vault: usdcVault, USD: 12.5}}, nil
}

type clearCounter struct{ n int }

func (c *clearCounter) Clear() { c.n++ }

type fixture struct {
	handler  http.Handler
	flow     *stubFlow
	commands []string
	cache    *clearCounter
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	db, err := repository.InitDatabase(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, config.AppConfig{Environment: "test"})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() { _ = repository.CloseDatabase(db) })

	vaults := repository.NewVaultRepository(db)
	seedVault(t, vaults, vault.View{
		ChainID: 1, Address: usdcVault, Name: "USDC yVault", Decimals: 6, Version: "3.0.2",
		Category: "Stablecoin", Token: vault.Token{Address: usdc, Symbol: "USDC", Decimals: 6},
		TVL: vault.TVL{TVL: 1000},
		Strategies: []vault.Strategy{
			{Address: "0x3333333333333333333333333333333333333333", Name: "Lender", Status: vault.StatusActive, DebtRatio: 6000},
		},
	})
	seedVault(t, vaults, vault.View{
		ChainID: 10, Address: daiVault, Name: "DAI yVault", Decimals: 18, Version: "0.4.6",
		Category: "Stablecoin", TVL: vault.TVL{TVL: 500},
	})

	cfg := &config.Config{Admin: config.AdminConfig{
		JWTSecret:      "test-secret",
		Username:       "admin",
		AllowedOrigins: []string{"https://yearn.fi"},
	}}
	if mutate != nil {
		mutate(cfg)
	}

	viewCache, err := handlers.NewViewCache(time.Minute)
	require.NoError(t, err)
	t.Cleanup(viewCache.Close)

	f := &fixture{flow: &stubFlow{}, cache: &clearCounter{}}
	dispatcher := command.LocalDispatcher{Handler: func(_ context.Context, cmd *command.CommandMessage) (map[string]interface{}, error) {
		f.commands = append(f.commands, cmd.Type)
		if cmd.Type == command.CommandTriggerSync && len(f.commands) > 1 {
			return nil, syncer.ErrAlreadyRunning
		}
		return map[string]interface{}{"ok": true}, nil
	}}

	server := NewServer(cfg, Dependencies{
		Vaults:        vaults,
		ViewCache:     viewCache,
		Flow:          f.flow,
		Positions:     stubPositions{},
		Notifications: notification.NewService(repository.NewNotificationRepository(db), nil, nil),
		Dispatcher:    dispatcher,
		Caches:        []syncer.Clearer{f.cache},
	}, nil)
	f.handler = server.Handler()
	return f
}

func seedVault(t *testing.T, repo repository.VaultRepository, view vault.View) {
	t.Helper()
	record, err := models.NewVaultRecord(view, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(record))
}

func (f *fixture) do(t *testing.T, method, target string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, target, &payload)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestHealthAndPing(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var health handlers.HealthResponse
	decode(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)

	rec = f.do(t, http.MethodGet, "/api/v1/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListVaults(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/vaults", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list handlers.VaultListResponse
	decode(t, rec, &list)
	assert.Equal(t, int64(2), list.Total)
	require.Len(t, list.Vaults, 2)
	assert.Equal(t, "USDC yVault", list.Vaults[0].Name, "tvl descending by default")

	rec = f.do(t, http.MethodGet, "/api/v1/vaults?chain=10&sort=name", nil)
	decode(t, rec, &list)
	require.Len(t, list.Vaults, 1)
	assert.Equal(t, uint64(10), list.Vaults[0].ChainID)

	rec = f.do(t, http.MethodGet, "/api/v1/vaults?limit=500", nil)
	decode(t, rec, &list)
	assert.Equal(t, repository.MaxPageSize, list.Limit)

	rec = f.do(t, http.MethodGet, "/api/v1/vaults?chain=mainnet", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/vaults/chains", nil)
	assert.JSONEq(t, `{"chains":[1,10]}`, rec.Body.String())
}

func TestGetVaultAndStrategies(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/vaults/1/0x1234", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/vaults/1/"+strings.ToUpper(usdcVault[2:]), nil)
	assert.Equal(t, http.StatusOK, rec.Code, "addresses match case-insensitively")

	rec = f.do(t, http.MethodGet, "/api/v1/vaults/1/"+usdcVault, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view vault.View
	decode(t, rec, &view)
	assert.Equal(t, "USDC yVault", view.Name)

	rec = f.do(t, http.MethodGet, "/api/v1/vaults/1/"+usdcVault+"/strategies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var strategies handlers.StrategiesResponse
	decode(t, rec, &strategies)
	require.Len(t, strategies.Strategies, 1)
	assert.Equal(t, int64(4000), strategies.Unallocated)

	rec = f.do(t, http.MethodGet, "/api/v1/vaults/1/"+daiVault, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildAction(t *testing.T) {
	f := newFixture(t, nil)
	target := "/api/v1/vaults/1/" + usdcVault + "/actions"

	rec := f.do(t, http.MethodPost, target, handlers.ActionRequest{
		Action:           "deposit",
		AmountNormalized: "1.5",
		Owner:            wallet,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var flow solver.ActionFlow
	decode(t, rec, &flow)
	assert.Equal(t, solver.Vanilla, flow.Solver)
	require.Len(t, flow.Actions, 1)

	req := f.flow.last
	assert.Equal(t, solver.ActionDeposit, req.Action)
	assert.Equal(t, common.HexToAddress(usdc), req.InputToken, "deposits default to the underlying")
	assert.Equal(t, common.HexToAddress(usdcVault), req.OutputToken)
	assert.Equal(t, uint64(1_500_000), req.Amount.Uint64())

	rec = f.do(t, http.MethodPost, target, handlers.ActionRequest{Action: "withdraw", Amount: "42", Owner: wallet})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, common.HexToAddress(usdcVault), f.flow.last.InputToken)
	assert.Equal(t, uint64(42), f.flow.last.Amount.Uint64())

	rec = f.do(t, http.MethodPost, target, handlers.ActionRequest{Action: "bridge", Amount: "1", Owner: wallet})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, target, handlers.ActionRequest{Action: "deposit", Amount: "-1", Owner: wallet})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, target, map[string]string{"action": "deposit", "unknown": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPositions(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/accounts/"+wallet+"/positions?chainId=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Owner     string               `json:"owner"`
		Positions []positions.Position `json:"positions"`
	}
	decode(t, rec, &body)
	assert.Equal(t, common.HexToAddress(wallet).Hex(), body.Owner)
	assert.Len(t, body.Positions, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/accounts/"+wallet+"/positions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/notifications", notification.CreateInput{
		Owner: wallet, ChainID: 1, Action: "deposit", Vault: usdcVault, TxHash: "0xabc",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Notification
	decode(t, rec, &created)
	assert.Equal(t, models.NotificationStatusPending, created.Status)

	rec = f.do(t, http.MethodPost, "/api/v1/notifications", notification.CreateInput{Owner: "nobody", ChainID: 1, Action: "deposit"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/notifications?owner="+wallet, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	rec = f.do(t, http.MethodPatch, "/api/v1/notifications/"+created.ID, notification.UpdateInput{Status: "success", BlockNumber: 7})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/v1/notifications/"+created.ID, notification.UpdateInput{Status: "error"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/v1/notifications/does-not-exist", notification.UpdateInput{Status: "success"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	f := newFixture(t, func(cfg *config.Config) { cfg.Admin.PasswordHash = hash })

	rec := f.do(t, http.MethodPost, "/api/v1/admin/sync", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/auth/login", handlers.LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/auth/login", handlers.LoginRequest{Username: "admin", Password: "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login handlers.LoginResponse
	decode(t, rec, &login)
	require.NotEmpty(t, login.Token)
	bearer := "Bearer " + login.Token

	rec = f.do(t, http.MethodPost, "/api/v1/admin/sync", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/sync", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusConflict, rec.Code, "a running sync is reported as a conflict")

	rec = f.do(t, http.MethodPost, "/api/v1/admin/sync/1/"+usdcVault, nil, "Authorization", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/cache/clear", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.cache.n)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/sync/status", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{
		command.CommandTriggerSync,
		command.CommandTriggerSync,
		command.CommandSyncVault,
		command.CommandClearCache,
		command.CommandGetSyncStatus,
	}, f.commands)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodOptions, "/api/v1/notifications/abc", nil, "Origin", "https://yearn.fi")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://yearn.fi", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.do(t, http.MethodGet, "/api/v1/ping", nil, "Origin", "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Admin.RateLimit = 2 })

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodGet, "/api/v1/ping", nil, "X-Forwarded-For", "10.0.0.1")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/api/v1/ping", nil, "X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/ping", nil, "X-Forwarded-For", "10.0.0.2")
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client")
}
