package handlers

import (
	"net/http"

	"propflow/internal/pkg/errors"
	"propflow/internal/platform/audit"
)

type AuditHandler struct {
	audit *audit.Logger
}

func NewAuditHandler(auditLogger *audit.Logger) *AuditHandler {
	return &AuditHandler{audit: auditLogger}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	logs, err := h.audit.List(r.Context(), t.OrgID, limitParam(r, 100, 500))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
