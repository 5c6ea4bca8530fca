package activity

import "time"

// Event is a single audit record written to the activity log.
type Event struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	TenantID  string         `json:"tenant_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Query defines filters and pagination for reading the activity log.
type Query struct {
	TenantID string    `json:"tenant_id,omitempty"`
	Event    string    `json:"event,omitempty"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Cursor   string    `json:"cursor,omitempty"`
	Limit    int       `json:"limit"`
}
