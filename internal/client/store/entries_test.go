package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jotflow/jotflow/internal/client/models"
	"github.com/jotflow/jotflow/internal/client/queue"
	"github.com/jotflow/jotflow/internal/client/remote"
	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntries_FetchAll_DecryptsRows(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)

	otherKey := make([]byte, cryptox.KeySize)
	otherKey[0] = 0xFF
	env.remote.selectRows[models.CollectionEntries] = []json.RawMessage{
		encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "Morning", Content: "Coffee first"}, testKey()),
		encryptedEntryRow(t, "e2", "2026-01-14", models.SensitivePayload{Title: "Hidden", Content: "Nope"}, otherKey),
	}

	s := NewEntries(env.deps())
	entries, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].IsDecrypted)
	assert.Equal(t, "Morning", entries[0].Title)
	assert.Equal(t, "Coffee first", entries[0].Content)

	assert.False(t, entries[1].IsDecrypted)
	assert.Equal(t, models.RedactedTitle, entries[1].Title)
	assert.Equal(t, models.RedactedContent, entries[1].Content)
	assert.NotEmpty(t, entries[1].DecryptionError)
}

func TestEntries_FetchAll_LockedKeyRedacts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(false)
	env.remote.selectRows[models.CollectionEntries] = []json.RawMessage{
		encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "Secret"}, testKey()),
	}

	s := NewEntries(env.deps())
	entries, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.RedactedTitle, entries[0].Title)
	assert.False(t, entries[0].IsDecrypted)
}

func TestEntries_FetchAll_FailureServesLastKnown(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.remote.selectRows[models.CollectionEntries] = []json.RawMessage{
		encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "Kept"}, testKey()),
	}

	s := NewEntries(env.deps())
	_, err := s.FetchAll(ctx)
	require.NoError(t, err)

	env.remote.selectErr = errUnavailable()
	entries, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Kept", entries[0].Title)
}

func TestEntries_FetchAll_PreservesPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)

	s := NewEntries(env.deps())
	env.online = false
	added, err := s.Add(ctx, models.Entry{Title: "Offline note"})
	require.NoError(t, err)
	require.True(t, added.Pending)

	env.online = true
	env.remote.selectRows[models.CollectionEntries] = []json.RawMessage{
		encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "Server"}, testKey()),
	}
	entries, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, added.ID, entries[0].ID)
	assert.True(t, entries[0].Pending)
	assert.Equal(t, "e1", entries[1].ID)
}

func TestEntries_Add_LockedFailsFast(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(false)

	s := NewEntries(env.deps())
	_, err := s.Add(ctx, models.Entry{Title: "x"})
	require.ErrorIs(t, err, common.ErrEncryptionLocked)
	assert.Zero(t, env.queue.Count(ctx))
	assert.Empty(t, s.All(ctx))
}

func TestEntries_Add_Online(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)

	s := NewEntries(env.deps())
	added, err := s.Add(ctx, models.Entry{Title: "Hello", Content: "World"})
	require.NoError(t, err)

	assert.Equal(t, "srv-1", added.ID)
	assert.False(t, added.Pending)
	assert.True(t, added.IsDecrypted)
	assert.Equal(t, "Hello", added.Title)
	assert.Zero(t, env.queue.Count(ctx))

	// the wire row carried ciphertext only
	rowJSON, err := json.Marshal(env.remote.inserted[0])
	require.NoError(t, err)
	assert.NotContains(t, string(rowJSON), "Hello")
	assert.NotContains(t, string(rowJSON), "World")
}

func TestEntries_Add_OfflineQueuesExactlyOneInsert(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.online = false

	s := NewEntries(env.deps())
	added, err := s.Add(ctx, models.Entry{Title: "Offline secret", Content: "Body text"})
	require.NoError(t, err)

	assert.True(t, added.Pending)
	assert.NotEmpty(t, added.ID)

	ops := env.queue.PeekAll(ctx)
	require.Len(t, ops, 1)
	assert.Equal(t, queue.OpInsert, ops[0].Type)
	assert.Equal(t, models.CollectionEntries, ops[0].Collection)
	assert.Equal(t, added.ID, ops[0].RecordID)
	assert.NotContains(t, string(ops[0].Payload), "Offline secret")
	assert.NotContains(t, string(ops[0].Payload), "Body text")

	entries := s.All(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "Offline secret", entries[0].Title)
}

func TestEntries_Add_TransportFailureFallsBackToQueue(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.remote.insertErr = errUnavailable()

	s := NewEntries(env.deps())
	added, err := s.Add(ctx, models.Entry{Title: "x"})
	require.NoError(t, err)
	assert.True(t, added.Pending)
	assert.Equal(t, 1, env.queue.Count(ctx))
}

func TestEntries_Update_OfflineQueues(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.online = false

	s := NewEntries(env.deps())
	added, err := s.Add(ctx, models.Entry{Title: "v1"})
	require.NoError(t, err)

	added.Title = "second draft"
	require.NoError(t, s.Update(ctx, added))

	ops := env.queue.PeekAll(ctx)
	require.Len(t, ops, 2)
	assert.Equal(t, queue.OpUpdate, ops[1].Type)
	assert.Equal(t, added.ID, ops[1].RecordID)
	assert.NotContains(t, string(ops[1].Payload), "second draft")

	got, ok := s.GetByID(added.ID)
	require.True(t, ok)
	assert.Equal(t, "second draft", got.Title)
	assert.True(t, got.Pending)
}

func TestEntries_TogglePin_Online(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.remote.selectRows[models.CollectionEntries] = []json.RawMessage{
		encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "Pin me"}, testKey()),
	}

	s := NewEntries(env.deps())
	_, err := s.FetchAll(ctx)
	require.NoError(t, err)

	require.NoError(t, s.TogglePin(ctx, "e1"))
	require.Len(t, env.remote.updated, 1)
	assert.Equal(t, "e1", env.remote.updated[0].id)

	got, ok := s.GetByID("e1")
	require.True(t, ok)
	assert.True(t, got.Pinned)
}

func TestEntries_Delete_OfflineQueues(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.remote.selectRows[models.CollectionEntries] = []json.RawMessage{
		encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "Gone"}, testKey()),
	}

	s := NewEntries(env.deps())
	_, err := s.FetchAll(ctx)
	require.NoError(t, err)

	env.online = false
	require.NoError(t, s.Delete(ctx, "e1"))
	assert.Empty(t, s.All(ctx))

	ops := env.queue.PeekAll(ctx)
	require.Len(t, ops, 1)
	assert.Equal(t, queue.OpDelete, ops[0].Type)
	assert.Equal(t, "e1", ops[0].RecordID)
}

func TestEntries_ConfirmInsertRewritesQueue(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.online = false

	s := NewEntries(env.deps())
	added, err := s.Add(ctx, models.Entry{Title: "first draft"})
	require.NoError(t, err)
	added.Title = "second draft"
	require.NoError(t, s.Update(ctx, added))

	created, err := json.Marshal(models.EntryRow{ID: "srv-9", Date: added.Date})
	require.NoError(t, err)
	require.NoError(t, s.ConfirmInsert(ctx, added.ID, created))

	got, ok := s.GetByID("srv-9")
	require.True(t, ok)
	assert.False(t, got.Pending)
	assert.Equal(t, "second draft", got.Title)

	for _, op := range env.queue.PeekAll(ctx) {
		assert.Equal(t, "srv-9", op.RecordID)
	}
}

func TestEntries_ApplyEvent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.remote.selectRows[models.CollectionEntries] = []json.RawMessage{
		encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "First"}, testKey()),
	}

	s := NewEntries(env.deps())
	_, err := s.FetchAll(ctx)
	require.NoError(t, err)

	t.Run("insert deduplicated by id", func(t *testing.T) {
		s.ApplyEvent(ctx, remote.Event{
			Type: remote.EventInsert,
			New:  encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "Echo"}, testKey()),
		})
		entries := s.All(ctx)
		require.Len(t, entries, 1)
		assert.Equal(t, "First", entries[0].Title)
	})

	t.Run("insert of new row is merged", func(t *testing.T) {
		s.ApplyEvent(ctx, remote.Event{
			Type: remote.EventInsert,
			New:  encryptedEntryRow(t, "e2", "2026-01-16", models.SensitivePayload{Title: "Second"}, testKey()),
		})
		assert.Len(t, s.All(ctx), 2)
	})

	t.Run("update replaces", func(t *testing.T) {
		s.ApplyEvent(ctx, remote.Event{
			Type: remote.EventUpdate,
			New:  encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "Edited"}, testKey()),
		})
		got, ok := s.GetByID("e1")
		require.True(t, ok)
		assert.Equal(t, "Edited", got.Title)
	})

	t.Run("delete removes", func(t *testing.T) {
		s.ApplyEvent(ctx, remote.Event{Type: remote.EventDelete, Old: json.RawMessage(`{"id":"e2"}`)})
		_, ok := s.GetByID("e2")
		assert.False(t, ok)
	})
}

func TestEntries_RedecryptAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(false)
	env.remote.selectRows[models.CollectionEntries] = []json.RawMessage{
		encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "Later"}, testKey()),
	}

	s := NewEntries(env.deps())
	entries, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.False(t, entries[0].IsDecrypted)

	env.keys.Set(testKey())
	s.RedecryptAll(ctx)

	got, ok := s.GetByID("e1")
	require.True(t, ok)
	assert.True(t, got.IsDecrypted)
	assert.Equal(t, "Later", got.Title)
}

func TestEntries_CacheHoldsCiphertextOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.remote.selectRows[models.CollectionEntries] = []json.RawMessage{
		encryptedEntryRow(t, "e1", "2026-01-15", models.SensitivePayload{Title: "TopSecretTitle", Content: "TopSecretBody"}, testKey()),
	}

	s := NewEntries(env.deps())
	_, err := s.FetchAll(ctx)
	require.NoError(t, err)

	cached, err := env.slots.Get(ctx, storage.SlotEntriesCache)
	require.NoError(t, err)
	assert.NotContains(t, string(cached), "TopSecretTitle")
	assert.NotContains(t, string(cached), "TopSecretBody")

	// a fresh facade over the same slots serves the cached snapshot
	// offline
	env.online = false
	fresh := NewEntries(env.deps())
	entries, err := fresh.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "TopSecretTitle", entries[0].Title)
}

func TestEntries_NonTransportErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.remote.insertErr = errBadRequest

	s := NewEntries(env.deps())
	_, err := s.Add(ctx, models.Entry{Title: "x"})
	require.ErrorIs(t, err, errBadRequest)
	assert.Zero(t, env.queue.Count(ctx))
}
