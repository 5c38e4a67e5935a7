package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"propflow/internal/platform/models"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	task.ID = "task_" + uuid.New().String()
	task.CreatedAt = time.Now().Unix()
	if task.Status == "" {
		task.Status = "open"
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, organization_id, rule_id, title, description, assignee, priority, status, due_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.OrganizationID, task.RuleID, task.Title, task.Description, task.Assignee,
		task.Priority, task.Status, task.DueAt, task.CreatedAt)
	return errors.Wrap(err, "failed to insert task")
}

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	n.ID = "ntf_" + uuid.New().String()
	n.CreatedAt = time.Now().Unix()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, organization_id, rule_id, channel, recipient, subject, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.OrganizationID, n.RuleID, n.Channel, n.Recipient, n.Subject, n.Body, n.CreatedAt)
	return errors.Wrap(err, "failed to insert notification")
}

type FeatureFlagRepository struct {
	db *sql.DB
}

func NewFeatureFlagRepository(db *sql.DB) *FeatureFlagRepository {
	return &FeatureFlagRepository{db: db}
}

// Upsert creates or updates a flag.
func (r *FeatureFlagRepository) Upsert(ctx context.Context, orgID, key string, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feature_flags (id, organization_id, key, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (organization_id, key) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at
	`, "ff_"+uuid.New().String(), orgID, key, enabled, time.Now().Unix())
	return errors.Wrap(err, "failed to upsert feature flag")
}

func (r *FeatureFlagRepository) Get(ctx context.Context, orgID, key string) (*models.FeatureFlag, error) {
	var f models.FeatureFlag
	err := r.db.QueryRowContext(ctx,
		`SELECT id, organization_id, key, enabled, updated_at FROM feature_flags WHERE organization_id = ? AND key = ?`,
		orgID, key).Scan(&f.ID, &f.OrganizationID, &f.Key, &f.Enabled, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "feature flag %s", key)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Disable turns a flag off. Disabling an already disabled flag still reports found.
func (r *FeatureFlagRepository) Disable(ctx context.Context, orgID, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE feature_flags SET enabled = 0, updated_at = ? WHERE organization_id = ? AND key = ?`,
		time.Now().Unix(), orgID, key)
	if err != nil {
		return false, errors.Wrap(err, "failed to disable feature flag")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
