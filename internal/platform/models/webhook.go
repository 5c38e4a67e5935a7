package models

import (
	"github.com/guregu/null/v5"
	"github.com/hashicorp/go-set/v2"
)

// WildcardEvent subscribes to every event type.
const WildcardEvent = "*"

type WebhookSubscription struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	URL            string `json:"url"`
	Secret         string `json:"-"`

	// SecretUnreadable marks a stored secret that could not be unsealed,
	// typically after the sealing key changed. Setting a new secret clears it.
	SecretUnreadable bool       `json:"secret_unreadable,omitempty"`
	Events           StringList `json:"events"`
	Active           bool       `json:"active"`
	Headers          StringMap  `json:"headers"`
	MaxRetries       int        `json:"max_retries"`
	RetryDelay       int        `json:"retry_delay"` // seconds
	FailureCount     int        `json:"failure_count"`
	LastTriggered    null.Int   `json:"last_triggered"`
	LastError        string     `json:"last_error,omitempty"`
	CreatedAt        int64      `json:"created_at"`
	UpdatedAt        int64      `json:"updated_at"`
}

// Wants reports whether the subscription is interested in eventType.
func (w *WebhookSubscription) Wants(eventType string) bool {
	events := set.From[string](w.Events)
	return events.Contains(eventType) || events.Contains(WildcardEvent)
}
