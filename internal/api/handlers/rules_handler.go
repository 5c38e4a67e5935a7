package handlers

import (
	"context"
	"net/http"

	"propflow/internal/pkg/errors"
	"propflow/internal/platform/audit"
	"propflow/internal/platform/models"
)

type RuleStore interface {
	Create(ctx context.Context, rule *models.AutomationRule) error
	GetByID(ctx context.Context, orgID, id string) (*models.AutomationRule, error)
	List(ctx context.Context, orgID string) ([]*models.AutomationRule, error)
	Update(ctx context.Context, rule *models.AutomationRule) error
	Delete(ctx context.Context, orgID, id string) error
}

type RulesHandler struct {
	rules           RuleStore
	audit           *audit.Logger
	defaultCooldown int
}

func NewRulesHandler(rules RuleStore, auditLogger *audit.Logger, defaultCooldown int) *RulesHandler {
	return &RulesHandler{rules: rules, audit: auditLogger, defaultCooldown: defaultCooldown}
}

type createRuleRequest struct {
	Name            string                 `json:"name" validate:"required,max=200"`
	TriggerType     string                 `json:"trigger_type" validate:"required"`
	TriggerConfig   map[string]interface{} `json:"trigger_config"`
	ActionType      string                 `json:"action_type" validate:"required"`
	ActionConfig    map[string]interface{} `json:"action_config"`
	CooldownMinutes *int                   `json:"cooldown_minutes" validate:"omitempty,gte=0"`
	IsActive        *bool                  `json:"is_active"`
}

type updateRuleRequest struct {
	Name            *string                `json:"name" validate:"omitempty,min=1,max=200"`
	TriggerType     *string                `json:"trigger_type"`
	TriggerConfig   map[string]interface{} `json:"trigger_config"`
	ActionType      *string                `json:"action_type"`
	ActionConfig    map[string]interface{} `json:"action_config"`
	CooldownMinutes *int                   `json:"cooldown_minutes" validate:"omitempty,gte=0"`
	IsActive        *bool                  `json:"is_active"`
}

func checkRuleKinds(triggerType, actionType string) error {
	if !models.IsTriggerType(triggerType) {
		return models.Invalid("unknown trigger type: %s", triggerType)
	}
	if !models.IsActionType(actionType) {
		return models.Invalid("unknown action type: %s", actionType)
	}
	return nil
}

func (h *RulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req createRuleRequest
	if err := decode(r, &req); err != nil {
		errors.FromError(w, err)
		return
	}
	if err := checkRuleKinds(req.TriggerType, req.ActionType); err != nil {
		errors.FromError(w, err)
		return
	}

	rule := &models.AutomationRule{
		OrganizationID:  t.OrgID,
		Name:            req.Name,
		TriggerType:     req.TriggerType,
		TriggerConfig:   req.TriggerConfig,
		ActionType:      req.ActionType,
		ActionConfig:    req.ActionConfig,
		CooldownMinutes: h.defaultCooldown,
		IsActive:        true,
	}
	if req.CooldownMinutes != nil {
		rule.CooldownMinutes = *req.CooldownMinutes
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := h.rules.Create(r.Context(), rule); err != nil {
		errors.FromError(w, err)
		return
	}

	h.audit.Log(r.Context(), actor(r, t), "automation_rule.created", "automation_rule", rule.ID, map[string]interface{}{
		"trigger_type": rule.TriggerType,
		"action_type":  rule.ActionType,
	})
	writeJSON(w, http.StatusCreated, rule)
}

func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	rules, err := h.rules.List(r.Context(), t.OrgID)
	if err != nil {
		errors.FromError(w, err)
		return
	}
	if rules == nil {
		rules = []*models.AutomationRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *RulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	rule, err := h.rules.GetByID(r.Context(), t.OrgID, param(r, "rule_id"))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *RulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req updateRuleRequest
	if err := decode(r, &req); err != nil {
		errors.FromError(w, err)
		return
	}

	rule, err := h.rules.GetByID(r.Context(), t.OrgID, param(r, "rule_id"))
	if err != nil {
		errors.FromError(w, err)
		return
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.TriggerType != nil {
		rule.TriggerType = *req.TriggerType
	}
	if req.TriggerConfig != nil {
		rule.TriggerConfig = req.TriggerConfig
	}
	if req.ActionType != nil {
		rule.ActionType = *req.ActionType
	}
	if req.ActionConfig != nil {
		rule.ActionConfig = req.ActionConfig
	}
	if req.CooldownMinutes != nil {
		rule.CooldownMinutes = *req.CooldownMinutes
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := checkRuleKinds(rule.TriggerType, rule.ActionType); err != nil {
		errors.FromError(w, err)
		return
	}

	if err := h.rules.Update(r.Context(), rule); err != nil {
		errors.FromError(w, err)
		return
	}

	h.audit.Log(r.Context(), actor(r, t), "automation_rule.updated", "automation_rule", rule.ID, nil)
	writeJSON(w, http.StatusOK, rule)
}

func (h *RulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	id := param(r, "rule_id")
	if err := h.rules.Delete(r.Context(), t.OrgID, id); err != nil {
		errors.FromError(w, err)
		return
	}

	h.audit.Log(r.Context(), actor(r, t), "automation_rule.deleted", "automation_rule", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
