package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearn-vaults/internal/command"
	"yearn-vaults/internal/config"
	"yearn-vaults/internal/kong"
	"yearn-vaults/internal/models"
	"yearn-vaults/internal/repository"
	"yearn-vaults/internal/vault"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
)

type fakeUpstream struct {
	mu        sync.Mutex
	items     []kong.VaultListItem
	snapshots map[string]*kong.VaultSnapshot
	listErr   error
}

func (f *fakeUpstream) ListVaults(context.Context, kong.ListFilter) ([]kong.VaultListItem, error) {
	return f.items, f.listErr
}

func (f *fakeUpstream) GetSnapshot(_ context.Context, _ uint64, address string) (*kong.VaultSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snap, ok := f.snapshots[address]; ok {
		return snap, nil
	}
	return nil, kong.ErrNotFound
}

type events struct {
	mu    sync.Mutex
	names []string
}

func (e *events) Publish(event string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.names = append(e.names, event)
}

type clearCounter struct{ n int }

func (c *clearCounter) Clear() { c.n++ }

func setup(t *testing.T) (*Service, *fakeUpstream, repository.VaultRepository, *events) {
	t.Helper()
	db, err := repository.InitDatabase(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, config.AppConfig{Environment: "test"})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() { _ = repository.CloseDatabase(db) })

	up := &fakeUpstream{
		items: []kong.VaultListItem{
			{ChainID: 1, Address: addrA, Name: "USDC yVault", Decimals: 6, APIVersion: "3.0.2",
				Asset: kong.Token{Address: addrB, Symbol: "USDC", Decimals: 6}},
			{ChainID: 1, Address: addrB, Name: "DAI yVault", Decimals: 18, APIVersion: "0.4.6"},
		},
		snapshots: map[string]*kong.VaultSnapshot{
			addrA: {ChainID: 1, Address: addrA, Name: "USDC-1 yVault", TotalAssets: "1000000"},
		},
	}
	repo := repository.NewVaultRepository(db)
	pub := &events{}
	svc := NewService(up, repo, Options{Concurrency: 2, Publisher: pub})
	return svc, up, repo, pub
}

func TestSyncAll(t *testing.T) {
	svc, _, repo, pub := setup(t)

	result, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, pub.names, 2)

	rec, err := repo.GetByKey(1, addrA)
	require.NoError(t, err)
	assert.Equal(t, "USDC-1 yVault", rec.Name, "snapshot wins over the list item")

	rec, err = repo.GetByKey(1, addrB)
	require.NoError(t, err)
	assert.Equal(t, "DAI yVault", rec.Name, "missing snapshot falls back to the list item")

	status := svc.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 2, status.LastResult.Updated)
	assert.Empty(t, status.LastError)
}

func TestSyncAllMarksMissingVaultsStale(t *testing.T) {
	svc, up, repo, _ := setup(t)

	old, err := models.NewVaultRecord(vault.View{
		ChainID: 10, Address: "0x9999999999999999999999999999999999999999", Name: "Retired",
	}, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(old))

	result, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Stale)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	up.items = append(up.items, kong.VaultListItem{ChainID: 1, Address: "not-an-address"})
	result, err = svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Stale, "partial passes leave stale flags alone")
}

func TestSyncAllListFailure(t *testing.T) {
	svc, up, _, _ := setup(t)
	up.listErr = errors.New("kong down")

	_, err := svc.SyncAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, "kong down", svc.Status().LastError)
}

func TestSyncVault(t *testing.T) {
	svc, up, repo, _ := setup(t)

	view, err := svc.SyncVault(context.Background(), 1, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, "USDC-1 yVault", view.Name)

	up.items = nil
	view, err = svc.SyncVault(context.Background(), 1, addrA)
	require.NoError(t, err, "snapshot alone is enough")
	assert.Equal(t, addrA, view.Address)

	_, err = svc.SyncVault(context.Background(), 1, "0x3333333333333333333333333333333333333333")
	assert.ErrorIs(t, err, kong.ErrNotFound)

	_, err = repo.GetByKey(1, addrA)
	assert.NoError(t, err)
}

func TestCommands(t *testing.T) {
	svc, _, _, _ := setup(t)
	cache := &clearCounter{}
	cmds := NewCommands(context.Background(), svc, cache)
	ctx := context.Background()

	data, err := cmds.Handle(ctx, command.NewCommand(command.CommandSyncVault, map[string]interface{}{
		"chainId": float64(1), "address": addrA,
	}))
	require.NoError(t, err)
	assert.Equal(t, "1:"+addrA, data["key"])

	_, err = cmds.Handle(ctx, command.NewCommand(command.CommandSyncVault, map[string]interface{}{"address": addrA}))
	assert.Error(t, err)

	data, err = cmds.Handle(ctx, command.NewCommand(command.CommandClearCache, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, data["cleared"])
	assert.Equal(t, 1, cache.n)

	data, err = cmds.Handle(ctx, command.NewCommand(command.CommandTriggerSync, nil))
	require.NoError(t, err)
	assert.Equal(t, true, data["started"])

	require.Eventually(t, func() bool {
		return svc.Status().LastResult.Total == 2 && !svc.Status().Running
	}, 5*time.Second, 10*time.Millisecond)

	data, err = cmds.Handle(ctx, command.NewCommand(command.CommandGetSyncStatus, nil))
	require.NoError(t, err)
	assert.Equal(t, 2, data["updated"])

	_, err = cmds.Handle(ctx, command.NewCommand("reboot", nil))
	assert.Error(t, err)
}
