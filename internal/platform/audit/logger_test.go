package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"propflow/internal/platform/database"
)

func TestLogger_LogAndList(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	l := NewLogger(db)
	ctx := context.Background()

	req := httptest.NewRequest("POST", "/api/v1/webhooks", nil)
	req.Header.Set("User-Agent", "curl/8")
	actor := ActorFromRequest(req, "org_1", "usr_1")
	assert.Equal(t, "192.0.2.1", actor.IPAddress)

	l.Log(ctx, actor, "webhook.created", "webhook", "wh_1", map[string]interface{}{"url": "https://example.com"})
	l.Log(ctx, Actor{OrganizationID: "org_2"}, "rule.deleted", "automation_rule", "rule_1", nil)

	logs, err := l.List(ctx, "org_1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "webhook.created", logs[0].Action)
	assert.Equal(t, "usr_1", logs[0].UserID)
	assert.Equal(t, "curl/8", logs[0].UserAgent)
	assert.Equal(t, "https://example.com", logs[0].Metadata["url"])
}

func TestLogger_InsertFailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("disk full"))

	NewLogger(db).Log(context.Background(), Actor{OrganizationID: "org_1"}, "rule.created", "automation_rule", "rule_1", nil)
	assert.NoError(t, mock.ExpectationsWereMet())
}
