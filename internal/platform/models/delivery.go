package models

import "github.com/guregu/null/v5"

type DeliveryAttempt struct {
	ID             string      `json:"id"`
	WebhookID      string      `json:"webhook_id"`
	OrganizationID string      `json:"organization_id"`
	DeliveryID     string      `json:"delivery_id"`
	EventType      string      `json:"event_type"`
	Payload        string      `json:"payload"`
	Attempt        int         `json:"attempt"`
	StatusCode     null.Int    `json:"status_code"`
	ResponseBody   string      `json:"response_body"`
	ErrorMessage   null.String `json:"error_message"`
	DurationMS     int64       `json:"duration_ms"`
	Timestamp      int64       `json:"timestamp"`
	Success        bool        `json:"success"`
}
