package actions

import (
	"context"
	"net/http"

	"propflow/internal/platform/config"
	"propflow/internal/platform/models"
)

type FeatureFlagStore interface {
	Disable(ctx context.Context, orgID, key string) (bool, error)
}

// DisableFeature flips the organization's flag config.feature_key off.
func DisableFeature(store FeatureFlagStore) Executor {
	return ExecutorFunc(func(ctx context.Context, req Request) Result {
		key := stringParam(req.Config, "feature_key")
		if key == "" {
			return failed("feature_key is required")
		}

		found, err := store.Disable(ctx, req.OrganizationID, key)
		if err != nil {
			return failed("failed to disable feature %s: %v", key, err)
		}
		if !found {
			return failed("feature flag not found: %s", key)
		}
		return ok("feature %s disabled", key)
	})
}

type Dependencies struct {
	Email         config.EmailConfig
	Notifications NotificationStore
	Tasks         TaskStore
	FeatureFlags  FeatureFlagStore
	HTTPClient    *http.Client
}

// NewDefaultRegistry registers an executor for every action type.
func NewDefaultRegistry(deps Dependencies) *Registry {
	r := NewRegistry()
	r.Register(models.ActionSendEmail, SendEmail(NewEmailSender(deps.Email)))
	r.Register(models.ActionSendNotification, SendNotification(deps.Notifications))
	r.Register(models.ActionCreateTask, CreateTask(deps.Tasks))
	r.Register(models.ActionWebhook, CallWebhook(deps.HTTPClient))
	r.Register(models.ActionDisableFeature, DisableFeature(deps.FeatureFlags))
	return r
}
