package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"propflow/internal/engine/webhooks"
	"propflow/internal/pkg/errors"
	"propflow/internal/platform/audit"
	"propflow/internal/platform/config"
	"propflow/internal/platform/models"
)

type WebhookStore interface {
	Create(ctx context.Context, webhook *models.WebhookSubscription) error
	GetByID(ctx context.Context, orgID, id string) (*models.WebhookSubscription, error)
	List(ctx context.Context, orgID string) ([]*models.WebhookSubscription, error)
	Update(ctx context.Context, webhook *models.WebhookSubscription) error
	Delete(ctx context.Context, orgID, id string) error
}

type DeliveryHistory interface {
	ListByWebhook(ctx context.Context, orgID, webhookID string, limit int) ([]*models.DeliveryAttempt, error)
}

type WebhookTester interface {
	Test(ctx context.Context, orgID, webhookID string) (webhooks.DeliveryOutcome, error)
}

type WebhookHandler struct {
	store      WebhookStore
	deliveries DeliveryHistory
	tester     WebhookTester
	audit      *audit.Logger
	defaults   config.WebhooksConfig
}

func NewWebhookHandler(store WebhookStore, deliveries DeliveryHistory, tester WebhookTester, auditLogger *audit.Logger, defaults config.WebhooksConfig) *WebhookHandler {
	return &WebhookHandler{
		store:      store,
		deliveries: deliveries,
		tester:     tester,
		audit:      auditLogger,
		defaults:   defaults,
	}
}

type createWebhookRequest struct {
	URL        string            `json:"url" validate:"required,http_url"`
	Events     []string          `json:"events" validate:"required,min=1,dive,required"`
	Secret     string            `json:"secret" validate:"omitempty,min=16"`
	Headers    map[string]string `json:"headers"`
	MaxRetries *int              `json:"max_retries" validate:"omitempty,min=1,max=10"`
	RetryDelay *int              `json:"retry_delay" validate:"omitempty,min=0,max=3600"`
	Active     *bool             `json:"active"`
}

type updateWebhookRequest struct {
	URL        *string           `json:"url" validate:"omitempty,http_url"`
	Events     []string          `json:"events" validate:"omitempty,min=1,dive,required"`
	Secret     *string           `json:"secret" validate:"omitempty,min=16"`
	Headers    map[string]string `json:"headers"`
	MaxRetries *int              `json:"max_retries" validate:"omitempty,min=1,max=10"`
	RetryDelay *int              `json:"retry_delay" validate:"omitempty,min=0,max=3600"`
	Active     *bool             `json:"active"`
}

// createdWebhook is the only response that carries the signing secret.
type createdWebhook struct {
	*models.WebhookSubscription
	Secret string `json:"secret"`
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req createWebhookRequest
	if err := decode(r, &req); err != nil {
		errors.FromError(w, err)
		return
	}

	webhook := &models.WebhookSubscription{
		OrganizationID: t.OrgID,
		URL:            req.URL,
		Secret:         req.Secret,
		Events:         req.Events,
		Active:         true,
		Headers:        req.Headers,
		MaxRetries:     h.defaults.DefaultMaxRetries,
		RetryDelay:     h.defaults.DefaultRetryDelay,
	}
	if req.MaxRetries != nil {
		webhook.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelay != nil {
		webhook.RetryDelay = *req.RetryDelay
	}
	if req.Active != nil {
		webhook.Active = *req.Active
	}
	if webhook.MaxRetries < 1 {
		webhook.MaxRetries = webhooks.DefaultMaxRetries
	}

	if webhook.Secret == "" {
		secret, err := generateSecret()
		if err != nil {
			errors.FromError(w, err)
			return
		}
		webhook.Secret = secret
	}

	if err := h.store.Create(r.Context(), webhook); err != nil {
		errors.FromError(w, err)
		return
	}

	h.audit.Log(r.Context(), actor(r, t), "webhook.created", "webhook", webhook.ID, map[string]interface{}{
		"url":    webhook.URL,
		"events": []string(webhook.Events),
	})
	writeJSON(w, http.StatusCreated, createdWebhook{WebhookSubscription: webhook, Secret: webhook.Secret})
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	list, err := h.store.List(r.Context(), t.OrgID)
	if err != nil {
		errors.FromError(w, err)
		return
	}
	if list == nil {
		list = []*models.WebhookSubscription{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	webhook, err := h.store.GetByID(r.Context(), t.OrgID, param(r, "webhook_id"))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req updateWebhookRequest
	if err := decode(r, &req); err != nil {
		errors.FromError(w, err)
		return
	}

	webhook, err := h.store.GetByID(r.Context(), t.OrgID, param(r, "webhook_id"))
	if err != nil {
		errors.FromError(w, err)
		return
	}

	changed := []string{}
	if req.URL != nil {
		webhook.URL = *req.URL
		changed = append(changed, "url")
	}
	if req.Events != nil {
		webhook.Events = req.Events
		changed = append(changed, "events")
	}
	if req.Secret != nil {
		webhook.Secret = *req.Secret
		webhook.SecretUnreadable = false
		changed = append(changed, "secret")
	}
	if req.Headers != nil {
		webhook.Headers = req.Headers
		changed = append(changed, "headers")
	}
	if req.MaxRetries != nil {
		webhook.MaxRetries = *req.MaxRetries
		changed = append(changed, "max_retries")
	}
	if req.RetryDelay != nil {
		webhook.RetryDelay = *req.RetryDelay
		changed = append(changed, "retry_delay")
	}
	if req.Active != nil {
		webhook.Active = *req.Active
		changed = append(changed, "active")
	}

	if err := h.store.Update(r.Context(), webhook); err != nil {
		errors.FromError(w, err)
		return
	}

	h.audit.Log(r.Context(), actor(r, t), "webhook.updated", "webhook", webhook.ID, map[string]interface{}{"fields": changed})
	writeJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	id := param(r, "webhook_id")
	if err := h.store.Delete(r.Context(), t.OrgID, id); err != nil {
		errors.FromError(w, err)
		return
	}

	h.audit.Log(r.Context(), actor(r, t), "webhook.deleted", "webhook", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Test sends one synthetic delivery through the regular pipeline.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	outcome, err := h.tester.Test(r.Context(), t.OrgID, param(r, "webhook_id"))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *WebhookHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	id := param(r, "webhook_id")
	if _, err := h.store.GetByID(r.Context(), t.OrgID, id); err != nil {
		errors.FromError(w, err)
		return
	}

	attempts, err := h.deliveries.ListByWebhook(r.Context(), t.OrgID, id, limitParam(r, 50, 500))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	if attempts == nil {
		attempts = []*models.DeliveryAttempt{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"webhook_id": id,
		"attempts":   attempts,
		"as_of":      time.Now().Unix(),
	})
}
