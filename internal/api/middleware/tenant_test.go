package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	apiContext "propflow/internal/api/context"
	"propflow/internal/platform/auth"
)

func withClaims(req *http.Request, claims *auth.Claims) *http.Request {
	ctx := context.WithValue(req.Context(), apiContext.Claims, claims)
	return req.WithContext(ctx)
}

func TestTenantMiddleware(t *testing.T) {
	middleware := NewTenantMiddleware()

	t.Run("Member Token", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set(OrganizationHeader, "org_other")
		req = withClaims(req, &auth.Claims{OrganizationID: "org_123", Role: auth.RoleMember})

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			tenant, ok := TenantFrom(r.Context())
			if !ok {
				t.Fatal("Expected tenant in context")
			}
			if tenant.OrgID != "org_123" {
				t.Errorf("Expected OrgID org_123, got %s", tenant.OrgID)
			}
			if tenant.Service() {
				t.Error("Member token must not be a service caller")
			}
			w.WriteHeader(http.StatusOK)
		})

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})

	t.Run("Service Token Picks Organization", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set(OrganizationHeader, "org_456")
		req = withClaims(req, &auth.Claims{Role: auth.RoleService})

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			tenant, _ := TenantFrom(r.Context())
			if tenant.OrgID != "org_456" {
				t.Errorf("Expected OrgID org_456, got %s", tenant.OrgID)
			}
			if !tenant.Service() {
				t.Error("Expected a service caller")
			}
			w.WriteHeader(http.StatusOK)
		})

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})

	t.Run("Unbound Token", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req = withClaims(req, &auth.Claims{Role: auth.RoleAdmin})

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not be called")
		})

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("No Claims", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not be called")
		})

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
	})
}
