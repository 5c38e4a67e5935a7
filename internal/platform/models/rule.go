package models

import (
	"time"

	"github.com/guregu/null/v5"
)

const (
	TriggerBudgetThreshold     = "budget_threshold"
	TriggerCostSpike           = "cost_spike"
	TriggerClassificationMatch = "classification_match"
	TriggerPaymentCompleted    = "payment_completed"
	TriggerDocumentUploaded    = "document_uploaded"
	TriggerMaintenanceRequest  = "maintenance_requested"
	TriggerLeaseExpiring       = "lease_expiring"
)

var TriggerTypes = []string{
	TriggerBudgetThreshold,
	TriggerCostSpike,
	TriggerClassificationMatch,
	TriggerPaymentCompleted,
	TriggerDocumentUploaded,
	TriggerMaintenanceRequest,
	TriggerLeaseExpiring,
}

const (
	ActionSendEmail        = "send_email"
	ActionSendNotification = "send_notification"
	ActionCreateTask       = "create_task"
	ActionWebhook          = "webhook"
	ActionDisableFeature   = "disable_feature"
)

var ActionTypes = []string{
	ActionSendEmail,
	ActionSendNotification,
	ActionCreateTask,
	ActionWebhook,
	ActionDisableFeature,
}

func IsTriggerType(t string) bool {
	for _, known := range TriggerTypes {
		if known == t {
			return true
		}
	}
	return false
}

func IsActionType(t string) bool {
	for _, known := range ActionTypes {
		if known == t {
			return true
		}
	}
	return false
}

type AutomationRule struct {
	ID              string   `json:"id"`
	OrganizationID  string   `json:"organization_id"`
	Name            string   `json:"name"`
	TriggerType     string   `json:"trigger_type"`
	TriggerConfig   JSONMap  `json:"trigger_config"`
	ActionType      string   `json:"action_type"`
	ActionConfig    JSONMap  `json:"action_config"`
	CooldownMinutes int      `json:"cooldown_minutes"`
	IsActive        bool     `json:"is_active"`
	ExecutionCount  int      `json:"execution_count"`
	LastExecution   null.Int `json:"last_execution"` // unix seconds
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
}

func (r *AutomationRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// CoolingDown reports whether the rule fired within its cooldown window before now.
func (r *AutomationRule) CoolingDown(now time.Time) bool {
	if !r.LastExecution.Valid || r.CooldownMinutes <= 0 {
		return false
	}
	last := time.Unix(r.LastExecution.Int64, 0)
	return now.Sub(last) < r.Cooldown()
}
