package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	apiContext "propflow/internal/api/context"
	"propflow/internal/api/middleware"
	"propflow/internal/pkg/errors"
	"propflow/internal/pkg/validator"
	"propflow/internal/platform/audit"
	"propflow/internal/platform/models"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst and checks its validate tags.
func decode(r *http.Request, dst interface{}) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	return validator.Struct(dst)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return models.Invalid("invalid request body: %v", err)
	}
	return nil
}

func param(r *http.Request, name string) string {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}

func limitParam(r *http.Request, def, max int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// tenant returns the request scope, writing a 401 when the middleware did not run.
func tenant(w http.ResponseWriter, r *http.Request) (*middleware.TenantContext, bool) {
	t, ok := middleware.TenantFrom(r.Context())
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No tenant context", nil)
		return nil, false
	}
	return t, true
}

// resolveOrg picks the organization a request acts for. Only service callers
// may name an organization other than their own.
func resolveOrg(t *middleware.TenantContext, requested string) (string, bool) {
	if requested == "" || requested == t.OrgID {
		return t.OrgID, true
	}
	return requested, t.Service()
}

func actor(r *http.Request, t *middleware.TenantContext) audit.Actor {
	return audit.ActorFromRequest(r, t.OrgID, t.UserID)
}

func writeForbiddenOrg(w http.ResponseWriter) {
	errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Cannot act for another organization", nil)
}
