package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"propflow/internal/engine/actions"
	"propflow/internal/pkg/logger"
	"propflow/internal/pkg/metrics"
	"propflow/internal/platform/models"
)

const DefaultWorkers = 8

type RuleStore interface {
	ListActiveByTrigger(ctx context.Context, orgID, triggerType string) ([]*models.AutomationRule, error)
	ClaimExecution(ctx context.Context, id string, now time.Time, cooldown time.Duration) (bool, error)
}

type ActionRunner interface {
	Execute(ctx context.Context, kind string, req actions.Request) actions.Result
}

type Options struct {
	Workers int
	Now     func() time.Time
}

type Engine struct {
	store   RuleStore
	runner  ActionRunner
	workers int
	now     func() time.Time
	log     zerolog.Logger
}

func NewEngine(store RuleStore, runner ActionRunner, opts Options) *Engine {
	e := &Engine{
		store:   store,
		runner:  runner,
		workers: opts.Workers,
		now:     opts.Now,
		log:     logger.For("rules"),
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

type RuleExecutionResult struct {
	RuleID       string         `json:"rule_id"`
	RuleName     string         `json:"rule_name"`
	ActionType   string         `json:"action_type"`
	ActionResult actions.Result `json:"action_result"`
}

// Evaluate runs every active rule for triggerType against data. Rules that
// are cooling down or whose conditions do not hold produce no result. An
// empty orgID evaluates the rules of every organization.
func (e *Engine) Evaluate(ctx context.Context, orgID, triggerType string, data map[string]interface{}) ([]RuleExecutionResult, error) {
	if triggerType == "" {
		return nil, models.Invalid("trigger_type is required")
	}
	if !models.IsTriggerType(triggerType) {
		return nil, models.Invalid("unknown trigger type: %s", triggerType)
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	rules, err := e.store.ListActiveByTrigger(ctx, orgID, triggerType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load automation rules")
	}

	slots := make([]*RuleExecutionResult, len(rules))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, rule := range rules {
		g.Go(func() error {
			slots[i] = e.evaluateRule(ctx, rule, triggerType, data)
			return nil
		})
	}
	g.Wait()

	results := make([]RuleExecutionResult, 0, len(rules))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	e.log.Info().
		Str("organization_id", orgID).
		Str("trigger_type", triggerType).
		Int("rules", len(rules)).
		Int("executed", len(results)).
		Msg("automation rules evaluated")

	return results, nil
}

func (e *Engine) evaluateRule(ctx context.Context, rule *models.AutomationRule, triggerType string, data map[string]interface{}) (out *RuleExecutionResult) {
	lg := e.log.With().Str("rule_id", rule.ID).Str("action_type", rule.ActionType).Logger()

	defer func() {
		if p := recover(); p != nil {
			lg.Error().Interface("panic", p).Msg("recovered from panic in rule evaluation")
			out = &RuleExecutionResult{
				RuleID:       rule.ID,
				RuleName:     rule.Name,
				ActionType:   rule.ActionType,
				ActionResult: actions.Result{Error: fmt.Sprintf("rule evaluation panicked: %v", p)},
			}
		}
	}()

	now := e.now()
	if rule.CoolingDown(now) {
		metrics.RuleSkips.WithLabelValues(triggerType, "cooldown").Inc()
		return nil
	}
	if !Matches(rule.TriggerConfig, data) {
		metrics.RuleSkips.WithLabelValues(triggerType, "conditions").Inc()
		return nil
	}

	claimed, err := e.store.ClaimExecution(ctx, rule.ID, now, rule.Cooldown())
	if err != nil {
		lg.Error().Err(err).Msg("failed to claim rule execution")
		return &RuleExecutionResult{
			RuleID:       rule.ID,
			RuleName:     rule.Name,
			ActionType:   rule.ActionType,
			ActionResult: actions.Result{Error: "failed to record rule execution"},
		}
	}
	if !claimed {
		// Another event fired this rule inside the window.
		metrics.RuleSkips.WithLabelValues(triggerType, "cooldown").Inc()
		return nil
	}

	res := e.runner.Execute(ctx, rule.ActionType, actions.Request{
		OrganizationID: rule.OrganizationID,
		RuleID:         rule.ID,
		Config:         rule.ActionConfig,
		Data:           data,
	})
	metrics.RuleExecutions.WithLabelValues(triggerType, rule.ActionType, metrics.Result(res.Success)).Inc()

	if res.Success {
		lg.Info().Str("detail", res.Detail).Msg("automation rule executed")
	} else {
		lg.Warn().Str("error", res.Error).Msg("automation rule action failed")
	}

	return &RuleExecutionResult{
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		ActionType:   rule.ActionType,
		ActionResult: res,
	}
}
