// Package gcal implements the external calendar collaborator: dated
// todos are mirrored to the user's calendar through a server-side
// function, with a dedicated queue for deferral when the function is
// unreachable. Calendar sync is best-effort and never blocks record
// sync.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jotflow/jotflow/internal/client/models"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/logging"
)

// Event is the calendar projection of a dated todo.
type Event struct {
	TodoID    string `json:"todoId"`
	EventID   string `json:"eventId,omitempty"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

// EventFor builds the calendar projection of a todo.
func EventFor(t models.Todo) Event {
	return Event{
		TodoID:    t.ID,
		EventID:   t.GoogleCalendarEventID,
		Title:     t.Text,
		Date:      t.Date,
		Completed: t.Completed,
	}
}

// Calendar is the external calendar surface. A disconnected calendar
// account surfaces as common.ErrCalendarDisconnected.
type Calendar interface {
	// Upsert creates or updates the event for a todo and returns the
	// event id.
	Upsert(ctx context.Context, ev Event) (string, error)

	// Delete removes the event.
	Delete(ctx context.Context, eventID string) error
}

// Invoker calls named server-side functions. Implemented by
// remote.Store.
type Invoker interface {
	Invoke(ctx context.Context, name string, body any) (json.RawMessage, error)
}

const functionName = "google-calendar-sync"

// EdgeCalendar talks to the calendar through the hosted store's
// server-side function, which holds the user's calendar credentials.
type EdgeCalendar struct {
	invoker Invoker
	log     logging.Logger
}

// NewEdgeCalendar returns a Calendar backed by the hosted function.
func NewEdgeCalendar(invoker Invoker, log logging.Logger) *EdgeCalendar {
	if log == nil {
		log = logging.Nop()
	}
	return &EdgeCalendar{invoker: invoker, log: log.With("component", "gcal")}
}

type functionResult struct {
	EventID string `json:"eventId"`
	Error   string `json:"error"`
}

func (c *EdgeCalendar) Upsert(ctx context.Context, ev Event) (string, error) {
	out, err := c.invoker.Invoke(ctx, functionName, map[string]any{
		"action": "upsert",
		"todo":   ev,
	})
	if err != nil {
		return "", err
	}
	res, err := parseResult(out)
	if err != nil {
		return "", err
	}
	return res.EventID, nil
}

func (c *EdgeCalendar) Delete(ctx context.Context, eventID string) error {
	out, err := c.invoker.Invoke(ctx, functionName, map[string]any{
		"action":  "delete",
		"eventId": eventID,
	})
	if err != nil {
		return err
	}
	_, err = parseResult(out)
	return err
}

func parseResult(out json.RawMessage) (functionResult, error) {
	var res functionResult
	if err := json.Unmarshal(out, &res); err != nil {
		return res, fmt.Errorf("parsing calendar response: %w", err)
	}
	switch res.Error {
	case "":
		return res, nil
	case "google_disconnected":
		return res, common.ErrCalendarDisconnected
	default:
		return res, fmt.Errorf("calendar sync: %s", res.Error)
	}
}
