package middleware

import (
	"context"
	"net/http"

	apiContext "propflow/internal/api/context"
	"propflow/internal/pkg/errors"
	"propflow/internal/platform/auth"
)

// OrganizationHeader lets service callers pick the organization they act for.
const OrganizationHeader = "X-Organization-ID"

type TenantContext struct {
	OrgID  string
	UserID string
	Role   string
}

// Service reports whether the caller may act across organizations.
func (t *TenantContext) Service() bool {
	return t.Role == auth.RoleService
}

type TenantMiddleware struct{}

func NewTenantMiddleware() *TenantMiddleware {
	return &TenantMiddleware{}
}

func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		orgID := claims.OrganizationID
		if claims.Role == auth.RoleService {
			if h := r.Header.Get(OrganizationHeader); h != "" {
				orgID = h
			}
		}
		if orgID == "" && claims.Role != auth.RoleService {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Token is not bound to an organization", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Tenant, &TenantContext{
			OrgID:  orgID,
			UserID: claims.UserID,
			Role:   claims.Role,
		})

		next(w, r.WithContext(ctx))
	}
}

// TenantFrom returns the request's tenant scope, if the middleware ran.
func TenantFrom(ctx context.Context) (*TenantContext, bool) {
	t, ok := ctx.Value(apiContext.Tenant).(*TenantContext)
	return t, ok && t != nil
}
