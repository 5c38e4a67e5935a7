package rules

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propflow/internal/engine/actions"
	"propflow/internal/platform/database"
	"propflow/internal/platform/models"
	"propflow/internal/platform/repositories"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupRules(t *testing.T) *repositories.RuleRepository {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repositories.NewRuleRepository(db)
}

func createRule(t *testing.T, repo *repositories.RuleRepository, name, action string, cooldown int, trigger map[string]interface{}) *models.AutomationRule {
	t.Helper()
	rule := &models.AutomationRule{
		OrganizationID:  "org_1",
		Name:            name,
		TriggerType:     models.TriggerBudgetThreshold,
		TriggerConfig:   trigger,
		ActionType:      action,
		ActionConfig:    models.JSONMap{},
		CooldownMinutes: cooldown,
		IsActive:        true,
	}
	require.NoError(t, repo.Create(context.Background(), rule))
	return rule
}

func TestEvaluate_CooldownSuppressesRefire(t *testing.T) {
	repo := setupRules(t)
	ctx := context.Background()
	rule := createRule(t, repo, "Budget alert", "count", 60, models.JSONMap{"threshold": 80.0})

	var calls atomic.Int32
	registry := actions.NewRegistry()
	registry.Register("count", actions.ExecutorFunc(func(ctx context.Context, req actions.Request) actions.Result {
		calls.Add(1)
		return actions.Result{Success: true, Detail: "counted"}
	}))

	c := &clock{now: time.Unix(1_700_000_000, 0)}
	engine := NewEngine(repo, registry, Options{Now: c.Now})
	data := map[string]interface{}{"value": 90}

	results, err := engine.Evaluate(ctx, "org_1", models.TriggerBudgetThreshold, data)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rule.ID, results[0].RuleID)
	assert.Equal(t, "Budget alert", results[0].RuleName)
	assert.True(t, results[0].ActionResult.Success)

	c.Advance(30 * time.Minute)
	results, err = engine.Evaluate(ctx, "org_1", models.TriggerBudgetThreshold, data)
	require.NoError(t, err)
	assert.Empty(t, results)

	stored, err := repo.GetByID(ctx, "org_1", rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ExecutionCount)
	assert.Equal(t, int64(1_700_000_000), stored.LastExecution.Int64)

	c.Advance(31 * time.Minute)
	results, err = engine.Evaluate(ctx, "org_1", models.TriggerBudgetThreshold, data)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEvaluate_FailingActionStillConsumesCooldown(t *testing.T) {
	repo := setupRules(t)
	ctx := context.Background()
	rule := createRule(t, repo, "Broken", "fail", 60, nil)

	registry := actions.NewRegistry()
	registry.Register("fail", actions.ExecutorFunc(func(ctx context.Context, req actions.Request) actions.Result {
		return actions.Result{Error: "downstream unavailable"}
	}))
	engine := NewEngine(repo, registry, Options{})

	results, err := engine.Evaluate(ctx, "org_1", models.TriggerBudgetThreshold, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].ActionResult.Success)
	assert.Equal(t, "downstream unavailable", results[0].ActionResult.Error)

	stored, err := repo.GetByID(ctx, "org_1", rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ExecutionCount)
	assert.True(t, stored.LastExecution.Valid)

	results, err = engine.Evaluate(ctx, "org_1", models.TriggerBudgetThreshold, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEvaluate_FailureIsolation(t *testing.T) {
	repo := setupRules(t)
	ctx := context.Background()
	createRule(t, repo, "A", "panic", 60, nil)
	createRule(t, repo, "B", "ok", 60, nil)
	createRule(t, repo, "C", "no_such_action", 60, nil)

	registry := actions.NewRegistry()
	registry.Register("panic", actions.ExecutorFunc(func(ctx context.Context, req actions.Request) actions.Result {
		panic("executor bug")
	}))
	registry.Register("ok", actions.ExecutorFunc(func(ctx context.Context, req actions.Request) actions.Result {
		return actions.Result{Success: true}
	}))
	engine := NewEngine(repo, registry, Options{})

	results, err := engine.Evaluate(ctx, "org_1", models.TriggerBudgetThreshold, map[string]interface{}{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	byName := map[string]RuleExecutionResult{}
	for _, r := range results {
		byName[r.RuleName] = r
	}
	assert.False(t, byName["A"].ActionResult.Success)
	assert.Contains(t, byName["A"].ActionResult.Error, "executor bug")
	assert.True(t, byName["B"].ActionResult.Success)
	assert.False(t, byName["C"].ActionResult.Success)
	assert.Contains(t, byName["C"].ActionResult.Error, "unknown action type")
}

func TestEvaluate_ConditionsFilterRules(t *testing.T) {
	repo := setupRules(t)
	ctx := context.Background()
	createRule(t, repo, "High", "ok", 60, models.JSONMap{"threshold": 90.0})
	low := createRule(t, repo, "Low", "ok", 60, models.JSONMap{"threshold": 50.0})

	registry := actions.NewRegistry()
	registry.Register("ok", actions.ExecutorFunc(func(ctx context.Context, req actions.Request) actions.Result {
		return actions.Result{Success: true}
	}))
	engine := NewEngine(repo, registry, Options{})

	results, err := engine.Evaluate(ctx, "org_1", models.TriggerBudgetThreshold, map[string]interface{}{"value": 60})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, low.ID, results[0].RuleID)
}

func TestEvaluate_ConcurrentEventsClaimOnce(t *testing.T) {
	repo := setupRules(t)
	ctx := context.Background()
	createRule(t, repo, "Once", "count", 60, nil)

	var calls atomic.Int32
	registry := actions.NewRegistry()
	registry.Register("count", actions.ExecutorFunc(func(ctx context.Context, req actions.Request) actions.Result {
		calls.Add(1)
		return actions.Result{Success: true}
	}))
	engine := NewEngine(repo, registry, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Evaluate(ctx, "org_1", models.TriggerBudgetThreshold, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestEvaluate_ScopesByOrganization(t *testing.T) {
	repo := setupRules(t)
	ctx := context.Background()
	createRule(t, repo, "Org one", "ok", 0, nil)

	registry := actions.NewRegistry()
	registry.Register("ok", actions.ExecutorFunc(func(ctx context.Context, req actions.Request) actions.Result {
		return actions.Result{Success: true, Detail: req.OrganizationID}
	}))
	engine := NewEngine(repo, registry, Options{})

	results, err := engine.Evaluate(ctx, "org_2", models.TriggerBudgetThreshold, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = engine.Evaluate(ctx, "", models.TriggerBudgetThreshold, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "org_1", results[0].ActionResult.Detail)
}

func TestEvaluate_Validation(t *testing.T) {
	engine := NewEngine(setupRules(t), actions.NewRegistry(), Options{})

	_, err := engine.Evaluate(context.Background(), "org_1", "", nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = engine.Evaluate(context.Background(), "org_1", "moon_phase", nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}
