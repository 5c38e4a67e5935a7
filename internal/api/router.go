package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "propflow/internal/api/context"
	"propflow/internal/api/handlers"
	"propflow/internal/api/middleware"
	"propflow/internal/pkg/errors"
	"propflow/internal/platform/auth"
)

type Dependencies struct {
	EventsHandler    *handlers.EventsHandler
	RulesHandler     *handlers.RulesHandler
	WebhookHandler   *handlers.WebhookHandler
	AuditHandler     *handlers.AuditHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
	RateLimiter      *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	authMid := deps.AuthMiddleware.Handle
	tenantMid := deps.TenantMiddleware.Handle
	admins := requireRole(auth.RoleAdmin, auth.RoleOwner)
	producers := requireRole(auth.RoleAdmin, auth.RoleOwner, auth.RoleService)

	ingest := []func(http.HandlerFunc) http.HandlerFunc{authMid, tenantMid, producers}
	if deps.RateLimiter != nil {
		ingest = append(ingest, deps.RateLimiter.Handle)
	}

	// Event ingestion and direct engine access
	router.POST("/api/v1/events", chain(deps.EventsHandler.Ingest, ingest...))
	router.POST("/api/v1/automation/evaluate",
		chain(deps.EventsHandler.Evaluate, authMid, tenantMid, producers))
	router.POST("/api/v1/webhook-dispatches",
		chain(deps.EventsHandler.Dispatch, authMid, tenantMid, producers))

	// Automation rules
	router.POST("/api/v1/automation-rules",
		chain(deps.RulesHandler.Create, authMid, tenantMid, admins))
	router.GET("/api/v1/automation-rules",
		chain(deps.RulesHandler.List, authMid, tenantMid))
	router.GET("/api/v1/automation-rules/:rule_id",
		chain(deps.RulesHandler.Get, authMid, tenantMid))
	router.PATCH("/api/v1/automation-rules/:rule_id",
		chain(deps.RulesHandler.Update, authMid, tenantMid, admins))
	router.DELETE("/api/v1/automation-rules/:rule_id",
		chain(deps.RulesHandler.Delete, authMid, tenantMid, admins))

	// Webhook subscriptions
	router.POST("/api/v1/webhooks",
		chain(deps.WebhookHandler.Create, authMid, tenantMid, admins))
	router.GET("/api/v1/webhooks",
		chain(deps.WebhookHandler.List, authMid, tenantMid))
	router.GET("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Get, authMid, tenantMid))
	router.PATCH("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Update, authMid, tenantMid, admins))
	router.DELETE("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Delete, authMid, tenantMid, admins))
	router.POST("/api/v1/webhooks/:webhook_id/test",
		chain(deps.WebhookHandler.Test, authMid, tenantMid, admins))
	router.GET("/api/v1/webhooks/:webhook_id/deliveries",
		chain(deps.WebhookHandler.Deliveries, authMid, tenantMid))

	router.GET("/api/v1/audit-logs",
		chain(deps.AuditHandler.List, authMid, tenantMid, admins))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			t, ok := middleware.TenantFrom(r.Context())
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No tenant context", nil)
				return
			}

			allowed := false
			for _, role := range roles {
				if t.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
