package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiContext "propflow/internal/api/context"
	"propflow/internal/api/middleware"
	"propflow/internal/engine/webhooks"
	"propflow/internal/platform/auth"
	"propflow/internal/platform/database"
	"propflow/internal/platform/models"
	"propflow/internal/platform/repositories"
)

func TestEventsHandler_DispatchOutlivesClient(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	webhookRepo := repositories.NewWebhookRepository(db, nil)
	deliveries := repositories.NewDeliveryLogRepository(db)
	sub := &models.WebhookSubscription{
		OrganizationID: "org_1",
		URL:            srv.URL,
		Secret:         "whsec_0123456789abcdef",
		Events:         models.StringList{"payment.completed"},
		Active:         true,
		MaxRetries:     3,
		RetryDelay:     1,
	}
	require.NoError(t, webhookRepo.Create(context.Background(), sub))

	dispatcher := webhooks.NewDispatcher(webhookRepo, deliveries, webhooks.Options{BackoffUnit: time.Millisecond})
	h := NewEventsHandler(nil, nil, dispatcher)

	// The caller is already gone when the handler starts.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx = context.WithValue(ctx, apiContext.Tenant, &middleware.TenantContext{OrgID: "org_1", Role: auth.RoleAdmin})

	req := httptest.NewRequest("POST", "/api/v1/webhook-dispatches", strings.NewReader(`{"event_type":"payment.completed"}`))
	rr := httptest.NewRecorder()
	h.Dispatch(rr, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(3), hits.Load())

	attempts, err := deliveries.ListByWebhook(context.Background(), "org_1", sub.ID, 10)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)

	stored, err := webhookRepo.GetByID(context.Background(), "org_1", sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FailureCount)
}
