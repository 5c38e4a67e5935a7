package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"propflow/internal/platform/models"
)

const ruleColumns = `id, organization_id, name, trigger_type, trigger_config, action_type, action_config,
	cooldown_minutes, is_active, execution_count, last_execution, created_at, updated_at`

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Create(ctx context.Context, rule *models.AutomationRule) error {
	now := time.Now().Unix()
	rule.ID = "rule_" + uuid.New().String()
	rule.ExecutionCount = 0
	rule.CreatedAt = now
	rule.UpdatedAt = now

	query := `
		INSERT INTO automation_rules (id, organization_id, name, trigger_type, trigger_config, action_type, action_config,
			cooldown_minutes, is_active, execution_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.OrganizationID, rule.Name, rule.TriggerType, rule.TriggerConfig, rule.ActionType,
		rule.ActionConfig, rule.CooldownMinutes, rule.IsActive, rule.CreatedAt, rule.UpdatedAt)
	return errors.Wrap(err, "failed to insert automation rule")
}

func (r *RuleRepository) GetByID(ctx context.Context, orgID, id string) (*models.AutomationRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM automation_rules WHERE id = ? AND organization_id = ?`, id, orgID)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "automation rule %s", id)
	}
	return rule, err
}

func (r *RuleRepository) List(ctx context.Context, orgID string) ([]*models.AutomationRule, error) {
	return r.query(ctx, `SELECT `+ruleColumns+` FROM automation_rules WHERE organization_id = ? ORDER BY created_at DESC`, orgID)
}

// ListActiveByTrigger loads active rules for a trigger type. An empty orgID
// loads the rules of every organization.
func (r *RuleRepository) ListActiveByTrigger(ctx context.Context, orgID, triggerType string) ([]*models.AutomationRule, error) {
	if orgID == "" {
		return r.query(ctx, `SELECT `+ruleColumns+` FROM automation_rules WHERE trigger_type = ? AND is_active = 1 ORDER BY created_at`, triggerType)
	}
	return r.query(ctx, `SELECT `+ruleColumns+` FROM automation_rules WHERE organization_id = ? AND trigger_type = ? AND is_active = 1 ORDER BY created_at`, orgID, triggerType)
}

// Update persists operator edits. Execution bookkeeping is owned by ClaimExecution.
func (r *RuleRepository) Update(ctx context.Context, rule *models.AutomationRule) error {
	rule.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE automation_rules SET
			name = ?, trigger_type = ?, trigger_config = ?, action_type = ?, action_config = ?,
			cooldown_minutes = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		rule.Name, rule.TriggerType, rule.TriggerConfig, rule.ActionType, rule.ActionConfig,
		rule.CooldownMinutes, rule.IsActive, rule.UpdatedAt, rule.ID, rule.OrganizationID)
	if err != nil {
		return errors.Wrap(err, "failed to update automation rule")
	}
	return requireAffected(res, "automation rule", rule.ID)
}

func (r *RuleRepository) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM automation_rules WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return errors.Wrap(err, "failed to delete automation rule")
	}
	return requireAffected(res, "automation rule", id)
}

// ClaimExecution bumps execution_count and stamps last_execution in one
// statement, only if the rule is outside its cooldown window. It reports
// false when another event already claimed the window.
func (r *RuleRepository) ClaimExecution(ctx context.Context, id string, now time.Time, cooldown time.Duration) (bool, error) {
	cutoff := now.Add(-cooldown).Unix()
	if cooldown <= 0 {
		cutoff = now.Unix()
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_rules
		SET execution_count = execution_count + 1, last_execution = ?
		WHERE id = ? AND (last_execution IS NULL OR last_execution <= ?)
	`, now.Unix(), id, cutoff)
	if err != nil {
		return false, errors.Wrap(err, "failed to claim rule execution")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RuleRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query automation rules")
	}
	defer rows.Close()

	var rules []*models.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(s interface {
	Scan(dest ...interface{}) error
}) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := s.Scan(&rule.ID, &rule.OrganizationID, &rule.Name, &rule.TriggerType, &rule.TriggerConfig,
		&rule.ActionType, &rule.ActionConfig, &rule.CooldownMinutes, &rule.IsActive, &rule.ExecutionCount,
		&rule.LastExecution, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
