package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"propflow/internal/platform/database"
	"propflow/internal/platform/models"
)

func TestDeliveryLogRepository_RecordListPrune(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDeliveryLogRepository(db)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).Unix()
	recent := time.Now().Unix()

	require.NoError(t, repo.Record(ctx, &models.DeliveryAttempt{
		WebhookID: "wh_1", OrganizationID: "org_1", DeliveryID: "dlv_1", EventType: "payment.completed",
		Payload: `{"a":1}`, Attempt: 1, ErrorMessage: null.StringFrom("timeout"), Timestamp: old,
	}))
	require.NoError(t, repo.Record(ctx, &models.DeliveryAttempt{
		WebhookID: "wh_1", OrganizationID: "org_1", DeliveryID: "dlv_2", EventType: "payment.completed",
		Payload: `{"a":1}`, Attempt: 1, StatusCode: null.IntFrom(200), Timestamp: recent, Success: true,
	}))

	attempts, err := repo.ListByWebhook(ctx, "org_1", "wh_1", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, int64(200), attempts[0].StatusCode.Int64)
	assert.False(t, attempts[1].StatusCode.Valid)
	assert.Equal(t, "timeout", attempts[1].ErrorMessage.String)

	// The same (delivery, attempt) pair cannot be written twice.
	assert.Error(t, repo.Record(ctx, &models.DeliveryAttempt{
		WebhookID: "wh_1", OrganizationID: "org_1", DeliveryID: "dlv_2", EventType: "payment.completed",
		Payload: `{}`, Attempt: 1, Timestamp: recent,
	}))

	pruned, err := repo.PruneBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestFeatureFlagRepository_Disable(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFeatureFlagRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "org_1", "online_payments", true))

	found, err := repo.Disable(ctx, "org_1", "online_payments")
	require.NoError(t, err)
	assert.True(t, found)

	// Idempotent
	found, err = repo.Disable(ctx, "org_1", "online_payments")
	require.NoError(t, err)
	assert.True(t, found)

	flag, err := repo.Get(ctx, "org_1", "online_payments")
	require.NoError(t, err)
	assert.False(t, flag.Enabled)

	found, err = repo.Disable(ctx, "org_1", "missing")
	require.NoError(t, err)
	assert.False(t, found)
}
