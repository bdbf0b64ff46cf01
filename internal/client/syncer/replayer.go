// Package syncer implements the connectivity and replay coordinator:
// it watches remote reachability and drains the durable operation
// queues in FIFO order when connectivity returns.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jotflow/jotflow/internal/client/queue"
	"github.com/jotflow/jotflow/internal/client/remote"
	"github.com/jotflow/jotflow/internal/logging"
)

// Replayer drains one queue of deferred work. Replay stops at the first
// failure so causal order is preserved for the next attempt.
type Replayer interface {
	Replay(ctx context.Context) error
	Pending(ctx context.Context) int
}

// InsertConfirmer reconciles a replayed INSERT with the row the remote
// store returned. Implemented by the record facades.
type InsertConfirmer interface {
	ConfirmInsert(ctx context.Context, tempID string, created json.RawMessage) error
}

// QueueReplayer replays the record operation queue against the remote
// store.
type QueueReplayer struct {
	queue      *queue.Queue
	remote     remote.Client
	confirmers map[string]InsertConfirmer
	log        logging.Logger
}

// NewQueueReplayer returns a replayer for the record operation queue.
// confirmers maps collection names to the facade that reconciles
// replayed inserts for that collection.
func NewQueueReplayer(q *queue.Queue, rc remote.Client, confirmers map[string]InsertConfirmer, log logging.Logger) *QueueReplayer {
	if log == nil {
		log = logging.Nop()
	}
	if confirmers == nil {
		confirmers = map[string]InsertConfirmer{}
	}
	return &QueueReplayer{queue: q, remote: rc, confirmers: confirmers, log: log}
}

// Replay sends queued operations strictly in FIFO order, removing each
// one only after the remote store accepted it. The first failure halts
// the pass; the failed operation and everything behind it stay queued.
// The head is re-read every iteration so id rewrites done by a
// confirmer take effect before later operations replay.
func (r *QueueReplayer) Replay(ctx context.Context) error {
	var last string
	for {
		ops := r.queue.PeekAll(ctx)
		if len(ops) == 0 {
			return nil
		}
		op := ops[0]
		if op.QueueID == last {
			// the queue storage refused the dequeue; stop instead of
			// replaying the same operation forever
			return fmt.Errorf("queue head %s did not advance", op.QueueID)
		}

		if err := r.apply(ctx, op); err != nil {
			r.log.Warn(ctx, "replay halted", "op", op.QueueID, "type", op.Type, "collection", op.Collection, "error", err)
			return fmt.Errorf("replaying %s %s: %w", op.Type, op.Collection, err)
		}
		r.queue.Dequeue(ctx, op.QueueID)
		last = op.QueueID
		r.log.Debug(ctx, "replayed", "op", op.QueueID, "type", op.Type, "collection", op.Collection)
	}
}

// Pending returns the number of operations waiting for replay.
func (r *QueueReplayer) Pending(ctx context.Context) int {
	return r.queue.Count(ctx)
}

func (r *QueueReplayer) apply(ctx context.Context, op queue.Operation) error {
	switch op.Type {
	case queue.OpInsert:
		row, err := stripID(op.Payload)
		if err != nil {
			return fmt.Errorf("preparing insert payload: %w", err)
		}
		created, err := r.remote.Insert(ctx, op.Collection, row)
		if err != nil {
			return err
		}
		if c, ok := r.confirmers[op.Collection]; ok {
			if err := c.ConfirmInsert(ctx, op.RecordID, created); err != nil {
				r.log.Warn(ctx, "insert confirmed remotely but reconciliation failed", "record", op.RecordID, "error", err)
			}
		}
		return nil
	case queue.OpUpdate:
		return r.remote.Update(ctx, op.Collection, op.RecordID, op.Payload)
	case queue.OpDelete:
		return r.remote.Delete(ctx, op.Collection, op.RecordID)
	default:
		r.log.Warn(ctx, "dropping unknown queued operation", "op", op.QueueID, "type", op.Type)
		return nil
	}
}

// stripID removes the temporary local id from a queued insert payload
// so the remote store assigns the real one.
func stripID(payload json.RawMessage) (json.RawMessage, error) {
	var row map[string]any
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, err
	}
	delete(row, "id")
	return json.Marshal(row)
}
