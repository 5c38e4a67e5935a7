package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"propflow/internal/pkg/logger"
	"propflow/internal/platform/models"
	"propflow/internal/platform/secrets"
)

const webhookColumns = `id, organization_id, url, secret, events, active, headers, max_retries, retry_delay,
	failure_count, last_triggered, last_error, created_at, updated_at`

type WebhookRepository struct {
	db     *sql.DB
	sealer *secrets.Sealer
	log    zerolog.Logger
}

func NewWebhookRepository(db *sql.DB, sealer *secrets.Sealer) *WebhookRepository {
	return &WebhookRepository{db: db, sealer: sealer, log: logger.For("webhook_repo")}
}

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.WebhookSubscription) error {
	now := time.Now().Unix()
	webhook.ID = "wh_" + uuid.New().String()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now

	secret, err := r.sealer.Seal(webhook.Secret)
	if err != nil {
		return errors.Wrap(err, "failed to seal webhook secret")
	}

	query := `
		INSERT INTO webhooks (id, organization_id, url, secret, events, active, headers, max_retries, retry_delay, failure_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		webhook.ID, webhook.OrganizationID, webhook.URL, secret, webhook.Events, webhook.Active,
		webhook.Headers, webhook.MaxRetries, webhook.RetryDelay, webhook.CreatedAt, webhook.UpdatedAt)
	return errors.Wrap(err, "failed to insert webhook")
}

func (r *WebhookRepository) GetByID(ctx context.Context, orgID, id string) (*models.WebhookSubscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = ? AND organization_id = ?`, id, orgID)
	w, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "webhook %s", id)
	}
	return w, err
}

func (r *WebhookRepository) List(ctx context.Context, orgID string) ([]*models.WebhookSubscription, error) {
	return r.query(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE organization_id = ? ORDER BY created_at DESC`, orgID)
}

// ListActiveForOrg returns the organization's active subscriptions. Event
// filtering happens in memory since events are stored as a JSON array.
func (r *WebhookRepository) ListActiveForOrg(ctx context.Context, orgID string) ([]*models.WebhookSubscription, error) {
	return r.query(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE organization_id = ? AND active = 1 ORDER BY created_at`, orgID)
}

// Update persists operator edits. An unreadable secret is left as stored
// unless the caller supplied a new one and cleared SecretUnreadable.
func (r *WebhookRepository) Update(ctx context.Context, webhook *models.WebhookSubscription) error {
	webhook.UpdatedAt = time.Now().Unix()

	secret, err := r.sealer.Seal(webhook.Secret)
	if err != nil {
		return errors.Wrap(err, "failed to seal webhook secret")
	}

	query := `
		UPDATE webhooks
		SET url = ?, secret = CASE WHEN ? THEN secret ELSE ? END, events = ?, active = ?, headers = ?,
			max_retries = ?, retry_delay = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		webhook.URL, webhook.SecretUnreadable, secret, webhook.Events, webhook.Active, webhook.Headers,
		webhook.MaxRetries, webhook.RetryDelay, webhook.UpdatedAt, webhook.ID, webhook.OrganizationID)
	if err != nil {
		return errors.Wrap(err, "failed to update webhook")
	}
	return requireAffected(res, "webhook", webhook.ID)
}

func (r *WebhookRepository) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return errors.Wrap(err, "failed to delete webhook")
	}
	return requireAffected(res, "webhook", id)
}

// MarkDelivered records a successful delivery and clears the failure streak.
func (r *WebhookRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE webhooks SET failure_count = 0, last_triggered = ?, last_error = NULL WHERE id = ?`,
		at.Unix(), id)
	return errors.Wrap(err, "failed to mark webhook delivered")
}

// IncrementFailureCount bumps the failure streak in a single statement so
// overlapping dispatches never lose an update.
func (r *WebhookRepository) IncrementFailureCount(ctx context.Context, id, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE webhooks SET failure_count = failure_count + 1, last_error = ? WHERE id = ?`,
		lastError, id)
	return errors.Wrap(err, "failed to increment webhook failure count")
}

func (r *WebhookRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.WebhookSubscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query webhooks")
	}
	defer rows.Close()

	var webhooks []*models.WebhookSubscription
	for rows.Next() {
		w, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (r *WebhookRepository) scan(s interface {
	Scan(dest ...interface{}) error
}) (*models.WebhookSubscription, error) {
	var w models.WebhookSubscription
	var lastError sql.NullString

	err := s.Scan(&w.ID, &w.OrganizationID, &w.URL, &w.Secret, &w.Events, &w.Active, &w.Headers,
		&w.MaxRetries, &w.RetryDelay, &w.FailureCount, &w.LastTriggered, &lastError, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastError.Valid {
		w.LastError = lastError.String
	}

	// One unreadable secret must not hide the rest of the organization's
	// subscriptions; the dispatcher fails just this one.
	secret, err := r.sealer.Open(w.Secret)
	if err != nil {
		r.log.Error().Err(err).
			Str("webhook_id", w.ID).
			Str("stored_secret", logger.Redact(w.Secret)).
			Msg("failed to unseal webhook secret")
		w.Secret = ""
		w.SecretUnreadable = true
		return &w, nil
	}
	w.Secret = secret

	return &w, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(models.ErrNotFound, "%s %s", kind, id)
	}
	return nil
}
