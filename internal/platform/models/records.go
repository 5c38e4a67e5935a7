package models

import "github.com/guregu/null/v5"

// Task is a follow-up item created by a create_task action.
type Task struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organization_id"`
	RuleID         string   `json:"rule_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Assignee       string   `json:"assignee,omitempty"`
	Priority       string   `json:"priority"`
	Status         string   `json:"status"`
	DueAt          null.Int `json:"due_at"`
	CreatedAt      int64    `json:"created_at"`
}

// Notification is an in-app or email message produced by a notify action.
type Notification struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	RuleID         string `json:"rule_id"`
	Channel        string `json:"channel"` // email, in_app
	Recipient      string `json:"recipient"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	CreatedAt      int64  `json:"created_at"`
}

type FeatureFlag struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Key            string `json:"key"`
	Enabled        bool   `json:"enabled"`
	UpdatedAt      int64  `json:"updated_at"`
}
