package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"propflow/internal/pkg/logger"
)

type AuditLog struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	UserID         string                 `json:"user_id"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Metadata       map[string]interface{} `json:"metadata"`
	IPAddress      string                 `json:"ip_address"`
	UserAgent      string                 `json:"user_agent"`
	CreatedAt      int64                  `json:"created_at"`
}

// Actor identifies who performed an audited change.
type Actor struct {
	OrganizationID string
	UserID         string
	IPAddress      string
	UserAgent      string
}

// ActorFromRequest fills the network details of an actor from r.
func ActorFromRequest(r *http.Request, orgID, userID string) Actor {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Actor{
		OrganizationID: orgID,
		UserID:         userID,
		IPAddress:      ip,
		UserAgent:      r.UserAgent(),
	}
}

type Logger struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db, log: logger.For("audit")}
}

// Log records an admin mutation. Failures are logged and never fail the caller.
func (l *Logger) Log(ctx context.Context, actor Actor, action, resourceType, resourceID string, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		metaJSON = []byte("{}")
	}

	entry := &AuditLog{
		ID:             "audit_" + uuid.New().String(),
		OrganizationID: actor.OrganizationID,
		UserID:         actor.UserID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Metadata:       metadata,
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
		CreatedAt:      time.Now().Unix(),
	}

	query := `
		INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = l.db.ExecContext(context.WithoutCancel(ctx), query, entry.ID, entry.OrganizationID, entry.UserID, entry.Action,
		entry.ResourceType, entry.ResourceID, string(metaJSON), entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		l.log.Error().Err(err).
			Str("action", action).
			Str("resource_type", resourceType).
			Str("resource_id", resourceID).
			Msg("failed to write audit log")
	}
}

// List returns the organization's most recent audit entries.
func (l *Logger) List(ctx context.Context, orgID string, limit int) ([]*AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs WHERE organization_id = ? ORDER BY created_at DESC LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit logs")
	}
	defer rows.Close()

	logs := []*AuditLog{}
	for rows.Next() {
		var entry AuditLog
		var meta string
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &entry.UserID, &entry.Action, &entry.ResourceType,
			&entry.ResourceID, &meta, &entry.IPAddress, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &entry.Metadata); err != nil {
			entry.Metadata = map[string]interface{}{}
		}
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
