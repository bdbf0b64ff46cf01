package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jotflow/jotflow/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Subscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// first frame must be the subscribe request
		var sub subscribeRequest
		require.NoError(t, conn.ReadJSON(&sub))
		assert.Equal(t, "subscribe", sub.Action)
		assert.Equal(t, "journal_entries", sub.Collection)

		frames := []Event{
			{Type: EventInsert, Collection: "journal_entries", New: json.RawMessage(`{"id":"1"}`)},
			{Type: EventUpdate, Collection: "journal_entries", New: json.RawMessage(`{"id":"1","pinned":true}`)},
			{Type: EventDelete, Collection: "journal_entries", Old: json.RawMessage(`{"id":"1"}`)},
		}
		for _, f := range frames {
			require.NoError(t, conn.WriteJSON(f))
		}
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewStore(Options{BaseURL: srv.URL, RealtimeURL: wsURL, APIKey: "k", Logger: logging.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Subscribe(ctx, "journal_entries")
	require.NoError(t, err)

	var got []Event
	timeout := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}

	// arrival order preserved
	assert.Equal(t, EventInsert, got[0].Type)
	assert.Equal(t, EventUpdate, got[1].Type)
	assert.Equal(t, EventDelete, got[2].Type)
}

func TestStore_SubscribeChannelClosedOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewStore(Options{BaseURL: srv.URL, RealtimeURL: wsURL, APIKey: "k", Logger: logging.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	events, err := s.Subscribe(ctx, "todos")
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-events:
		assert.False(t, open, "channel must be closed after cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancellation")
	}
}
