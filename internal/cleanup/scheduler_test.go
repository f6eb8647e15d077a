package cleanup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearn-vaults/internal/config"
	"yearn-vaults/internal/models"
	"yearn-vaults/internal/repository"
	"yearn-vaults/internal/vault"
)

func TestRunCleanup(t *testing.T) {
	db, err := repository.InitDatabase(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, config.AppConfig{Environment: "test"})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() { _ = repository.CloseDatabase(db) })

	vaults := repository.NewVaultRepository(db)
	notifications := repository.NewNotificationRepository(db)
	now := time.Now().UTC()

	fresh, err := models.NewVaultRecord(vault.View{ChainID: 1, Address: "0x1111111111111111111111111111111111111111"}, now)
	require.NoError(t, err)
	old, err := models.NewVaultRecord(vault.View{ChainID: 1, Address: "0x2222222222222222222222222222222222222222"}, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.NoError(t, vaults.Upsert(fresh))
	require.NoError(t, vaults.Upsert(old))

	longAgo := now.AddDate(0, 0, -120)
	for _, n := range []*models.Notification{
		{Owner: "0xabc", ChainID: 1, Action: "deposit", Status: models.NotificationStatusSuccess, CreatedAt: longAgo},
		{Owner: "0xabc", ChainID: 1, Action: "deposit", Status: models.NotificationStatusPending, CreatedAt: longAgo},
		{Owner: "0xabc", ChainID: 1, Action: "withdraw", Status: models.NotificationStatusError},
	} {
		require.NoError(t, notifications.Create(n))
	}

	s := NewScheduler(vaults, notifications, DefaultConfig(), nil)
	result := s.RunNow()

	assert.Equal(t, int64(1), result.Vaults)
	assert.Equal(t, int64(1), result.Notifications, "pending and recent notifications survive")

	count, err := vaults.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	left, err := notifications.ListByOwner("0xabc", 10)
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(nil, nil, &Config{Schedule: "not a cron"}, nil)
	assert.Error(t, s.Start())
}
