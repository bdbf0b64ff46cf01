package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jotflow/jotflow/internal/client/models"
	"github.com/jotflow/jotflow/internal/client/queue"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/logging"
)

// Syncer schedules calendar work for dated todos. Online it mirrors
// immediately; offline, or when the function is unreachable, the work
// goes to its own queue and replays on reconnect. It satisfies both the
// todo facade's scheduler and the coordinator's replayer.
type Syncer struct {
	cal    Calendar
	queue  *queue.Queue
	online func() bool
	log    logging.Logger

	mu           sync.Mutex
	disconnected bool
}

// NewSyncer returns a calendar syncer over its own deferred-work queue.
func NewSyncer(cal Calendar, q *queue.Queue, online func() bool, log logging.Logger) *Syncer {
	if log == nil {
		log = logging.Nop()
	}
	if online == nil {
		online = func() bool { return false }
	}
	return &Syncer{cal: cal, queue: q, online: online, log: log.With("component", "gcal")}
}

// ScheduleUpsert mirrors a dated todo to the calendar, deferring when
// that is not possible right now. Failures never propagate to the
// caller.
func (s *Syncer) ScheduleUpsert(ctx context.Context, todo models.Todo) {
	ev := EventFor(todo)
	if s.online() {
		_, err := s.cal.Upsert(ctx, ev)
		if err == nil {
			s.setDisconnected(false)
			return
		}
		if s.handled(ctx, err, todo.ID) {
			return
		}
	}
	s.enqueue(ctx, queue.OpInsert, todo.ID, ev)
}

// ScheduleDelete removes the todo's calendar event, deferring when
// necessary.
func (s *Syncer) ScheduleDelete(ctx context.Context, todo models.Todo) {
	if todo.GoogleCalendarEventID == "" {
		return
	}
	ev := EventFor(todo)
	if s.online() {
		err := s.cal.Delete(ctx, ev.EventID)
		if err == nil || errors.Is(err, common.ErrNotFound) {
			s.setDisconnected(false)
			return
		}
		if s.handled(ctx, err, todo.ID) {
			return
		}
	}
	s.enqueue(ctx, queue.OpDelete, ev.EventID, ev)
}

// handled reports whether the error terminates the attempt without
// queueing: a disconnected calendar needs re-auth, not a retry, and
// anything that is not a transport failure will not succeed later
// either.
func (s *Syncer) handled(ctx context.Context, err error, todoID string) bool {
	if errors.Is(err, common.ErrCalendarDisconnected) {
		s.setDisconnected(true)
		s.log.Warn(ctx, "calendar disconnected, dropping event", "todo", todoID)
		return true
	}
	if !errors.Is(err, common.ErrRemoteUnavailable) {
		s.log.Warn(ctx, "calendar sync failed, dropping event", "todo", todoID, "error", err)
		return true
	}
	return false
}

// enqueue defers the operation, coalescing with any still-queued
// operation for the same record.
func (s *Syncer) enqueue(ctx context.Context, op queue.OpType, recordID string, ev Event) {
	for _, queued := range s.queue.PeekAll(ctx) {
		if queued.RecordID == recordID && queued.Type == op {
			s.queue.Dequeue(ctx, queued.QueueID)
		}
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error(ctx, "failed to marshal calendar event", "error", err)
		return
	}
	s.queue.Enqueue(ctx, queue.Operation{
		Type:       op,
		Collection: "google_calendar",
		RecordID:   recordID,
		Payload:    payload,
	})
}

// Replay drains the deferred calendar work in FIFO order, halting on
// the first failure. A disconnected account halts the pass and flips
// Disconnected; the remaining events stay queued for after re-auth.
func (s *Syncer) Replay(ctx context.Context) error {
	var last string
	for {
		ops := s.queue.PeekAll(ctx)
		if len(ops) == 0 {
			return nil
		}
		op := ops[0]
		if op.QueueID == last {
			return fmt.Errorf("calendar queue head %s did not advance", op.QueueID)
		}

		if err := s.apply(ctx, op); err != nil {
			if errors.Is(err, common.ErrCalendarDisconnected) {
				s.setDisconnected(true)
			}
			s.log.Warn(ctx, "calendar replay halted", "op", op.QueueID, "error", err)
			return fmt.Errorf("replaying calendar %s: %w", op.Type, err)
		}
		s.queue.Dequeue(ctx, op.QueueID)
		last = op.QueueID
	}
}

// Pending returns the number of deferred calendar operations.
func (s *Syncer) Pending(ctx context.Context) int {
	return s.queue.Count(ctx)
}

// Disconnected reports whether the calendar account needs re-auth.
func (s *Syncer) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

func (s *Syncer) setDisconnected(v bool) {
	s.mu.Lock()
	s.disconnected = v
	s.mu.Unlock()
}

func (s *Syncer) apply(ctx context.Context, op queue.Operation) error {
	var ev Event
	if err := json.Unmarshal(op.Payload, &ev); err != nil {
		s.log.Warn(ctx, "dropping malformed calendar operation", "op", op.QueueID, "error", err)
		return nil
	}
	switch op.Type {
	case queue.OpDelete:
		err := s.cal.Delete(ctx, ev.EventID)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	default:
		_, err := s.cal.Upsert(ctx, ev)
		return err
	}
}
