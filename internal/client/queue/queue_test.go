package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSlots is an in-memory Slots implementation; failSet simulates
// storage quota errors.
type memSlots struct {
	data    map[string][]byte
	failSet bool
}

func newMemSlots() *memSlots {
	return &memSlots{data: map[string][]byte{}}
}

func (m *memSlots) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return v, nil
}

func (m *memSlots) Set(ctx context.Context, key string, value []byte) error {
	if m.failSet {
		return errors.New("quota exceeded")
	}
	m.data[key] = value
	return nil
}

func (m *memSlots) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memSlots) Clear(ctx context.Context) error {
	m.data = map[string][]byte{}
	return nil
}

func TestQueue_EnqueueAssignsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	q := New(storage.SlotSyncQueue, newMemSlots(), logging.Nop())

	op := q.Enqueue(ctx, Operation{Type: OpInsert, Collection: "todos", Payload: json.RawMessage(`{"text":"x"}`)})

	assert.NotEmpty(t, op.QueueID)
	assert.NotZero(t, op.Timestamp)
	assert.Equal(t, 1, q.Count(ctx))
}

func TestQueue_FIFOOrder(t *testing.T) {
	ctx := context.Background()
	q := New(storage.SlotSyncQueue, newMemSlots(), logging.Nop())

	a := q.Enqueue(ctx, Operation{Type: OpInsert, Collection: "todos"})
	b := q.Enqueue(ctx, Operation{Type: OpUpdate, Collection: "todos", RecordID: "1"})
	c := q.Enqueue(ctx, Operation{Type: OpDelete, Collection: "todos", RecordID: "2"})

	ops := q.PeekAll(ctx)
	require.Len(t, ops, 3)
	assert.Equal(t, []string{a.QueueID, b.QueueID, c.QueueID},
		[]string{ops[0].QueueID, ops[1].QueueID, ops[2].QueueID})
}

func TestQueue_DequeueIdempotent(t *testing.T) {
	ctx := context.Background()
	q := New(storage.SlotSyncQueue, newMemSlots(), logging.Nop())

	a := q.Enqueue(ctx, Operation{Type: OpInsert, Collection: "todos"})
	b := q.Enqueue(ctx, Operation{Type: OpInsert, Collection: "todos"})

	q.Dequeue(ctx, a.QueueID)
	assert.Equal(t, 1, q.Count(ctx))

	// absent id is a no-op
	q.Dequeue(ctx, a.QueueID)
	q.Dequeue(ctx, "never-existed")
	assert.Equal(t, 1, q.Count(ctx))

	ops := q.PeekAll(ctx)
	assert.Equal(t, b.QueueID, ops[0].QueueID)
}

func TestQueue_SurvivesReinstantiation(t *testing.T) {
	ctx := context.Background()
	slots := newMemSlots()

	q1 := New(storage.SlotSyncQueue, slots, logging.Nop())
	q1.Enqueue(ctx, Operation{Type: OpInsert, Collection: "todos"})

	// a new Queue over the same slot sees the persisted list
	q2 := New(storage.SlotSyncQueue, slots, logging.Nop())
	assert.Equal(t, 1, q2.Count(ctx))
}

func TestQueue_IndependentSlots(t *testing.T) {
	ctx := context.Background()
	slots := newMemSlots()

	records := New(storage.SlotSyncQueue, slots, logging.Nop())
	gcal := New(storage.SlotCalendarQueue, slots, logging.Nop())

	records.Enqueue(ctx, Operation{Type: OpInsert, Collection: "todos"})

	assert.Equal(t, 1, records.Count(ctx))
	assert.Equal(t, 0, gcal.Count(ctx))
}

func TestQueue_StorageFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	slots := newMemSlots()
	slots.failSet = true
	q := New(storage.SlotSyncQueue, slots, logging.Nop())

	assert.NotPanics(t, func() {
		q.Enqueue(ctx, Operation{Type: OpInsert, Collection: "todos"})
	})
	// nothing was durably stored, and that is tolerated
	assert.Equal(t, 0, q.Count(ctx))
}

func TestQueue_CorruptedSlotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	slots := newMemSlots()
	slots.data[storage.SlotSyncQueue] = []byte("{corrupted")

	q := New(storage.SlotSyncQueue, slots, logging.Nop())
	assert.Equal(t, 0, q.Count(ctx))
}

func TestQueue_Clear(t *testing.T) {
	ctx := context.Background()
	q := New(storage.SlotSyncQueue, newMemSlots(), logging.Nop())

	q.Enqueue(ctx, Operation{Type: OpInsert, Collection: "todos"})
	q.Clear(ctx)
	assert.Equal(t, 0, q.Count(ctx))
}

func TestQueue_RewriteRecordID(t *testing.T) {
	ctx := context.Background()
	q := New(storage.SlotSyncQueue, newMemSlots(), logging.Nop())

	q.Enqueue(ctx, Operation{Type: OpUpdate, Collection: "todos", RecordID: "temp-1"})
	q.Enqueue(ctx, Operation{Type: OpDelete, Collection: "todos", RecordID: "other"})

	q.RewriteRecordID(ctx, "temp-1", "real-9")

	ops := q.PeekAll(ctx)
	assert.Equal(t, "real-9", ops[0].RecordID)
	assert.Equal(t, "other", ops[1].RecordID)
}
