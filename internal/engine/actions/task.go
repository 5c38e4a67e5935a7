package actions

import (
	"context"
	"time"

	"github.com/guregu/null/v5"

	"propflow/internal/platform/models"
)

type TaskStore interface {
	CreateTask(ctx context.Context, task *models.Task) error
}

var taskPriorities = map[string]bool{"low": true, "medium": true, "high": true, "urgent": true}

// CreateTask inserts one follow-up task. Config: title, description,
// assignee, priority, due_in_days.
func CreateTask(store TaskStore) Executor {
	return ExecutorFunc(func(ctx context.Context, req Request) Result {
		title := Render(stringParam(req.Config, "title"), req.Data)
		if title == "" {
			title = "Automation follow-up"
		}

		priority := stringParam(req.Config, "priority")
		if priority != "" && !taskPriorities[priority] {
			return failed("invalid priority: %s", priority)
		}

		task := &models.Task{
			OrganizationID: req.OrganizationID,
			RuleID:         req.RuleID,
			Title:          title,
			Description:    Render(stringParam(req.Config, "description"), req.Data),
			Assignee:       stringParam(req.Config, "assignee"),
			Priority:       priority,
		}
		if days, found := intParam(req.Config, "due_in_days"); found && days >= 0 {
			task.DueAt = null.IntFrom(time.Now().AddDate(0, 0, days).Unix())
		}

		if err := store.CreateTask(ctx, task); err != nil {
			return failed("task creation failed: %v", err)
		}
		return ok("task %s created", task.ID)
	})
}
