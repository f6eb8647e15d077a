package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearn-vaults/internal/config"
	"yearn-vaults/internal/models"
	"yearn-vaults/internal/repository"
)

type recorder struct {
	events []string
}

func (r *recorder) Publish(event string, _ interface{}) {
	r.events = append(r.events, event)
}

func newService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	db, err := repository.InitDatabase(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, config.AppConfig{Environment: "test"})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() { _ = repository.CloseDatabase(db) })

	rec := &recorder{}
	return NewService(repository.NewNotificationRepository(db), rec, nil), rec
}

const wallet = "0xAAAA000000000000000000000000000000000001"

func TestCreateAndSettle(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()

	n, err := svc.Create(ctx, CreateInput{Owner: wallet, ChainID: 1, Action: "Deposit", TxHash: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationStatusPending, n.Status)
	assert.Equal(t, "deposit", n.Action)

	updated, err := svc.UpdateStatus(ctx, n.ID, UpdateInput{Status: "success", BlockNumber: 99})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationStatusSuccess, updated.Status)
	assert.Equal(t, "0xabc", updated.TxHash)
	assert.NotNil(t, updated.SettledAt)

	_, err = svc.UpdateStatus(ctx, n.ID, UpdateInput{Status: "error"})
	assert.ErrorIs(t, err, ErrInvalidStatus, "settled notifications are final")

	assert.Equal(t, []string{EventCreated, EventUpdated}, rec.events)

	list, err := svc.List(ctx, wallet, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	n, err := svc.Create(ctx, CreateInput{Owner: wallet, ChainID: 1, Action: "withdraw"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, n.ID, UpdateInput{Status: "pending"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	failed, err := svc.UpdateStatus(ctx, n.ID, UpdateInput{Status: "error", Error: "user rejected"})
	require.NoError(t, err)
	assert.Equal(t, "user rejected", failed.ErrorMessage)

	_, err = svc.UpdateStatus(ctx, "missing", UpdateInput{Status: "success"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateValidates(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()

	cases := []CreateInput{
		{Owner: "not-an-address", ChainID: 1, Action: "deposit"},
		{Owner: wallet, Action: "deposit"},
		{Owner: wallet, ChainID: 1, Action: "bridge"},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Empty(t, rec.events)
}
