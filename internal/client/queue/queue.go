// Package queue implements the durable local operation queue: an ordered
// log of pending mutations persisted in one named storage slot and
// replayed in FIFO order when connectivity returns.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/logging"
)

// OpType classifies a queued mutation.
type OpType string

const (
	OpInsert OpType = "INSERT"
	OpUpdate OpType = "UPDATE"
	OpDelete OpType = "DELETE"
)

// Operation is one queued mutation. Payload is opaque to the queue;
// RecordID is set for UPDATE and DELETE. Operations are appended in
// causal order: a record's UPDATE never replays before its own INSERT.
type Operation struct {
	QueueID    string          `json:"queueId"`
	Type       OpType          `json:"type"`
	Collection string          `json:"collection"`
	RecordID   string          `json:"recordId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

// Queue is a durable FIFO of Operations bound to a single storage slot.
// The whole list is rewritten on every mutation, so a Queue assumes one
// logical writer; the mutex enforces that within this process. Storage
// write failures degrade durability silently: they are logged, never
// returned.
type Queue struct {
	slot  string
	slots storage.Slots
	log   logging.Logger

	mu sync.Mutex
}

// New returns a Queue persisting under the given slot key.
func New(slot string, slots storage.Slots, log logging.Logger) *Queue {
	if log == nil {
		log = logging.Nop()
	}
	return &Queue{slot: slot, slots: slots, log: log.With("queue", slot)}
}

// load reads the current list. A missing or corrupted slot yields an
// empty queue.
func (q *Queue) load(ctx context.Context) []Operation {
	data, err := q.slots.Get(ctx, q.slot)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			q.log.Warn(ctx, "failed to read queue slot", "error", err)
		}
		return []Operation{}
	}

	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		q.log.Warn(ctx, "corrupted queue slot, starting empty", "error", err)
		return []Operation{}
	}
	return ops
}

// persist rewrites the whole list back to the slot. Write failures
// (e.g. storage quota) are swallowed: queue durability is best-effort.
func (q *Queue) persist(ctx context.Context, ops []Operation) {
	data, err := json.Marshal(ops)
	if err != nil {
		q.log.Error(ctx, "failed to marshal queue", "error", err)
		return
	}
	if err := q.slots.Set(ctx, q.slot, data); err != nil {
		q.log.Warn(ctx, "failed to persist queue, durability degraded", "error", err)
	}
}

// Enqueue appends op with a fresh unique queue id and the current
// timestamp, and returns the stored operation.
func (q *Queue) Enqueue(ctx context.Context, op Operation) Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	op.QueueID = uuid.NewString()
	op.Timestamp = time.Now().UnixMilli()

	ops := append(q.load(ctx), op)
	q.persist(ctx, ops)
	return op
}

// Dequeue removes the operation with the given queue id. Removing an
// absent id is a no-op, not an error.
func (q *Queue) Dequeue(ctx context.Context, queueID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load(ctx)
	filtered := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op.QueueID != queueID {
			filtered = append(filtered, op)
		}
	}
	q.persist(ctx, filtered)
}

// PeekAll returns the queued operations in FIFO order without removing
// them.
func (q *Queue) PeekAll(ctx context.Context) []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Count returns the number of queued operations.
func (q *Queue) Count(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.load(ctx))
}

// Clear removes every queued operation.
func (q *Queue) Clear(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.slots.Delete(ctx, q.slot); err != nil {
		q.log.Warn(ctx, "failed to clear queue slot", "error", err)
	}
}

// RewriteRecordID replaces references to a temporary local record id
// with the server-assigned id in every still-queued operation. Used when
// an offline INSERT is confirmed and later queued mutations must target
// the real id before replay.
func (q *Queue) RewriteRecordID(ctx context.Context, oldID, newID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load(ctx)
	changed := false
	for i := range ops {
		if ops[i].RecordID == oldID {
			ops[i].RecordID = newID
			changed = true
		}
	}
	if changed {
		q.persist(ctx, ops)
	}
}
