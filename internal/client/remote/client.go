// Package remote implements the Remote Store collaborator: a hosted
// structured store exposed as named collections with CRUD over REST and
// change notifications over a websocket stream.
package remote

import (
	"context"
	"encoding/json"
)

// EventType classifies a realtime change notification.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one change notification. New carries the row for INSERT and
// UPDATE; Old carries at least the id for DELETE. Delivery order is the
// transport's order and is trusted as authoritative.
type Event struct {
	Type       EventType       `json:"eventType"`
	Collection string          `json:"collection"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
}

// SelectOpts narrows a Select call. Filter maps column names to exact
// values; OrderBy names the sort column.
type SelectOpts struct {
	OrderBy    string
	Descending bool
	Filter     map[string]string
}

// Client is the full Remote Store surface consumed by the record
// facades and the replay coordinator.
type Client interface {
	// Select returns the rows of a collection as raw JSON objects.
	Select(ctx context.Context, collection string, opts SelectOpts) ([]json.RawMessage, error)

	// Insert stores a new row and returns the stored representation
	// (with the server-assigned id).
	Insert(ctx context.Context, collection string, row any) (json.RawMessage, error)

	// Update patches the row with the given id.
	Update(ctx context.Context, collection, id string, fields any) error

	// Delete removes the row with the given id.
	Delete(ctx context.Context, collection, id string) error

	// Subscribe streams change notifications for a collection until ctx
	// is cancelled. The returned channel is closed on cancellation.
	Subscribe(ctx context.Context, collection string) (<-chan Event, error)

	// Ping probes reachability of the store.
	Ping(ctx context.Context) error

	Close() error
}
