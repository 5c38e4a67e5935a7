package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"propflow/internal/platform/database"
	"propflow/internal/platform/models"
)

func TestRuleRepository_ClaimExecution(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRuleRepository(db)
	ctx := context.Background()

	rule := &models.AutomationRule{
		OrganizationID:  "org_1",
		Name:            "Budget alert",
		TriggerType:     models.TriggerBudgetThreshold,
		TriggerConfig:   models.JSONMap{"threshold": 100},
		ActionType:      models.ActionSendNotification,
		ActionConfig:    models.JSONMap{"message": "over budget"},
		CooldownMinutes: 60,
		IsActive:        true,
	}
	require.NoError(t, repo.Create(ctx, rule))

	now := time.Unix(1700000000, 0)

	claimed, err := repo.ClaimExecution(ctx, rule.ID, now, time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Ten minutes later the window is still held.
	claimed, err = repo.ClaimExecution(ctx, rule.ID, now.Add(10*time.Minute), time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)

	fetched, err := repo.GetByID(ctx, "org_1", rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.ExecutionCount)
	assert.Equal(t, now.Unix(), fetched.LastExecution.Int64)
	assert.Equal(t, float64(100), fetched.TriggerConfig["threshold"])

	claimed, err = repo.ClaimExecution(ctx, rule.ID, now.Add(61*time.Minute), time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	fetched, err = repo.GetByID(ctx, "org_1", rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.ExecutionCount)
}

func TestRuleRepository_ListActiveByTrigger(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRuleRepository(db)
	ctx := context.Background()

	mk := func(org, trigger string, active bool) {
		require.NoError(t, repo.Create(ctx, &models.AutomationRule{
			OrganizationID: org,
			Name:           org + "-" + trigger,
			TriggerType:    trigger,
			ActionType:     models.ActionCreateTask,
			IsActive:       active,
		}))
	}
	mk("org_1", models.TriggerCostSpike, true)
	mk("org_1", models.TriggerCostSpike, false)
	mk("org_2", models.TriggerCostSpike, true)
	mk("org_1", models.TriggerBudgetThreshold, true)

	rules, err := repo.ListActiveByTrigger(ctx, "org_1", models.TriggerCostSpike)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	rules, err = repo.ListActiveByTrigger(ctx, "", models.TriggerCostSpike)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}
