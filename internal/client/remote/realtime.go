package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// subscribeRequest is the first frame sent on a realtime connection.
type subscribeRequest struct {
	Action     string `json:"action"`
	Collection string `json:"collection"`
	APIKey     string `json:"apikey,omitempty"`
}

// Subscribe opens a websocket to the realtime endpoint and streams
// change notifications for one collection. The connection reconnects
// with exponential backoff on failure; the channel is closed when ctx
// is cancelled. Events are forwarded in arrival order, never re-sorted.
func (s *Store) Subscribe(ctx context.Context, collection string) (<-chan Event, error) {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 0 // retry until cancelled
		bo.MaxInterval = 30 * time.Second

		for {
			err := s.streamOnce(ctx, collection, events)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				s.log.Warn(ctx, "realtime stream interrupted", "collection", collection, "error", err)
			}

			wait := bo.NextBackOff()
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()

	return events, nil
}

// streamOnce dials, subscribes, and forwards frames until the
// connection drops or ctx is cancelled.
func (s *Store) streamOnce(ctx context.Context, collection string, events chan<- Event) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.realtimeURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// drop the connection promptly on cancellation
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	sub := subscribeRequest{Action: "subscribe", Collection: collection, APIKey: s.apiKey}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Warn(ctx, "discarding malformed realtime frame", "error", err)
			continue
		}
		if ev.Collection != "" && ev.Collection != collection {
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
