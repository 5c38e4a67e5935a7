package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	apiContext "propflow/internal/api/context"
)

func TestRateLimiter_PerOrganization(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()

	handler := rl.Handle(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	call := func(orgID string) int {
		req, _ := http.NewRequest("POST", "/api/v1/events", nil)
		ctx := context.WithValue(req.Context(), apiContext.Tenant, &TenantContext{OrgID: orgID})
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req.WithContext(ctx))
		return rr.Code
	}

	if code := call("org_1"); code != http.StatusAccepted {
		t.Fatalf("first request: got %d", code)
	}
	if code := call("org_1"); code != http.StatusAccepted {
		t.Fatalf("second request: got %d", code)
	}
	if code := call("org_1"); code != http.StatusTooManyRequests {
		t.Errorf("third request: got %d, want %d", code, http.StatusTooManyRequests)
	}
	if code := call("org_2"); code != http.StatusAccepted {
		t.Errorf("other organization should have its own bucket, got %d", code)
	}
}
