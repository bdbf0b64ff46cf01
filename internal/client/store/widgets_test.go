package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jotflow/jotflow/internal/client/models"
	"github.com/jotflow/jotflow/internal/client/queue"
	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widgetRow(t *testing.T, w models.Widget) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(w)
	require.NoError(t, err)
	return b
}

func TestWidgets_EmptyFetchCreatesDefaults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(false)

	s := NewWidgets(env.deps())
	widgets, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, widgets, 4)

	types := map[string]bool{}
	for _, w := range widgets {
		types[w.Type] = true
		assert.NotEmpty(t, w.ID)
		assert.False(t, w.Pending)
	}
	assert.True(t, types["streak"])
	assert.True(t, types["quick_stats"])
	assert.True(t, types["todos"])
	assert.True(t, types["recent_entries"])
	assert.Len(t, env.remote.inserted, 4)
}

func TestWidgets_DefaultsQueuedWhenUnreachable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(false)
	env.remote.insertErr = errUnavailable()

	s := NewWidgets(env.deps())
	widgets, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, widgets, 4)
	for _, w := range widgets {
		assert.True(t, w.Pending)
	}

	ops := env.queue.PeekAll(ctx)
	require.Len(t, ops, 4)
	for _, op := range ops {
		assert.Equal(t, queue.OpInsert, op.Type)
		assert.Equal(t, models.CollectionWidgets, op.Collection)
	}
}

func TestWidgets_OfflineServesCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(false)
	env.remote.selectRows[models.CollectionWidgets] = []json.RawMessage{
		widgetRow(t, models.Widget{ID: "w1", Type: "streak", Enabled: true}),
	}

	s := NewWidgets(env.deps())
	_, err := s.FetchAll(ctx)
	require.NoError(t, err)

	_, err = env.slots.Get(ctx, storage.SlotWidgetsCache)
	require.NoError(t, err)

	env.online = false
	fresh := NewWidgets(env.deps())
	widgets, err := fresh.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.Equal(t, "w1", widgets[0].ID)
}

func TestWidgets_SetEnabled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(false)
	env.remote.selectRows[models.CollectionWidgets] = []json.RawMessage{
		widgetRow(t, models.Widget{ID: "w1", Type: "streak", Enabled: true}),
	}

	s := NewWidgets(env.deps())
	_, err := s.FetchAll(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SetEnabled(ctx, "w1", false))
	require.Len(t, env.remote.updated, 1)
	assert.Equal(t, "w1", env.remote.updated[0].id)

	env.online = false
	require.NoError(t, s.SetEnabled(ctx, "w1", true))
	ops := env.queue.PeekAll(ctx)
	require.Len(t, ops, 1)
	assert.Equal(t, queue.OpUpdate, ops[0].Type)
}

func TestWidgets_UpdateLayoutsPatchesOnlyChanged(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(false)
	env.remote.selectRows[models.CollectionWidgets] = []json.RawMessage{
		widgetRow(t, models.Widget{ID: "w1", Type: "streak", Layout: models.WidgetLayout{X: 0, Y: 0, W: 2, H: 2}}),
		widgetRow(t, models.Widget{ID: "w2", Type: "todos", Layout: models.WidgetLayout{X: 2, Y: 0, W: 2, H: 2}}),
	}

	s := NewWidgets(env.deps())
	_, err := s.FetchAll(ctx)
	require.NoError(t, err)

	err = s.UpdateLayouts(ctx, map[string]models.WidgetLayout{
		"w1":      {X: 2, Y: 2, W: 2, H: 2},
		"w2":      {X: 2, Y: 0, W: 2, H: 2}, // unchanged
		"unknown": {X: 0, Y: 0, W: 1, H: 1},
	})
	require.NoError(t, err)

	require.Len(t, env.remote.updated, 1)
	assert.Equal(t, "w1", env.remote.updated[0].id)
}
