package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"propflow/internal/platform/models"
)

// DeliveryLogRepository is the append-only log of webhook delivery attempts.
type DeliveryLogRepository struct {
	db *sql.DB
}

func NewDeliveryLogRepository(db *sql.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

func (r *DeliveryLogRepository) Record(ctx context.Context, a *models.DeliveryAttempt) error {
	if a.ID == "" {
		a.ID = "att_" + uuid.New().String()
	}

	query := `
		INSERT INTO delivery_attempts (
			id, webhook_id, organization_id, delivery_id, event_type, payload, attempt,
			status_code, response_body, error_message, duration_ms, timestamp, success
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.WebhookID, a.OrganizationID, a.DeliveryID, a.EventType, a.Payload, a.Attempt,
		a.StatusCode, a.ResponseBody, a.ErrorMessage, a.DurationMS, a.Timestamp, a.Success)
	return errors.Wrap(err, "failed to record delivery attempt")
}

// ListByWebhook returns the most recent attempts for a subscription, newest first.
func (r *DeliveryLogRepository) ListByWebhook(ctx context.Context, orgID, webhookID string, limit int) ([]*models.DeliveryAttempt, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, webhook_id, organization_id, delivery_id, event_type, payload, attempt,
		       status_code, response_body, error_message, duration_ms, timestamp, success
		FROM delivery_attempts
		WHERE organization_id = ? AND webhook_id = ?
		ORDER BY timestamp DESC, delivery_id, attempt DESC
		LIMIT ?
	`, orgID, webhookID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query delivery attempts")
	}
	defer rows.Close()

	var attempts []*models.DeliveryAttempt
	for rows.Next() {
		var a models.DeliveryAttempt
		if err := rows.Scan(&a.ID, &a.WebhookID, &a.OrganizationID, &a.DeliveryID, &a.EventType, &a.Payload,
			&a.Attempt, &a.StatusCode, &a.ResponseBody, &a.ErrorMessage, &a.DurationMS, &a.Timestamp, &a.Success); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// PruneBefore deletes attempts older than the cutoff and returns how many went.
func (r *DeliveryLogRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM delivery_attempts WHERE timestamp < ?`, cutoff.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune delivery attempts")
	}
	return res.RowsAffected()
}
