package models

import "time"

// WidgetLayout positions a widget on the dashboard grid.
type WidgetLayout struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Widget is one dashboard widget record.
type Widget struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"`
	Config    map[string]any `json:"config"`
	Layout    WidgetLayout   `json:"layout"`
	Enabled   bool           `json:"enabled"`
	CreatedAt time.Time      `json:"created_at"`

	Pending bool `json:"_pending,omitempty"`
}

// DefaultWidgets is the dashboard created for a first-time user whose
// widgets collection is empty.
func DefaultWidgets() []Widget {
	return []Widget{
		{Type: "streak", Config: map[string]any{}, Layout: WidgetLayout{X: 0, Y: 0, W: 2, H: 2}, Enabled: true},
		{Type: "quick_stats", Config: map[string]any{"stats": []any{"total_entries", "total_todos", "completion_rate", "avg_mood"}}, Layout: WidgetLayout{X: 2, Y: 0, W: 2, H: 2}, Enabled: true},
		{Type: "todos", Config: map[string]any{"limit": 5}, Layout: WidgetLayout{X: 0, Y: 2, W: 2, H: 2}, Enabled: true},
		{Type: "recent_entries", Config: map[string]any{"limit": 5}, Layout: WidgetLayout{X: 2, Y: 2, W: 2, H: 2}, Enabled: true},
	}
}
