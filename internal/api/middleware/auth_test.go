package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apiContext "propflow/internal/api/context"
	"propflow/internal/platform/auth"
	"propflow/internal/platform/config"
)

func TestAuthMiddleware(t *testing.T) {
	tokenSvc := auth.NewTokenService(config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour})
	middleware := NewAuthMiddleware(tokenSvc)

	token, err := tokenSvc.GenerateAccessToken("usr_1", "org_1", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rr := httptest.NewRecorder()
			handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
				claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
				if claims.OrganizationID != "org_1" {
					t.Errorf("Expected org_1, got %s", claims.OrganizationID)
				}
				w.WriteHeader(http.StatusOK)
			})

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.want)
			}
		})
	}
}
