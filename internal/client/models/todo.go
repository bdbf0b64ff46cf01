package models

import "time"

// Todo is a task record. Todo fields are plain (queryable server-side);
// only journal entries carry an encrypted payload by default.
type Todo struct {
	ID                    string    `json:"id,omitempty"`
	Text                  string    `json:"text"`
	Date                  string    `json:"date,omitempty"`
	Tags                  []string  `json:"tags"`
	Completed             bool      `json:"completed"`
	CreatedAt             time.Time `json:"created_at"`
	GoogleCalendarEventID string    `json:"google_calendar_event_id,omitempty"`

	Pending bool `json:"_pending,omitempty"`
}
