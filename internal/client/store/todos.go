package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jotflow/jotflow/internal/client/models"
	"github.com/jotflow/jotflow/internal/client/queue"
	"github.com/jotflow/jotflow/internal/client/remote"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/logging"
)

// CalendarScheduler mirrors todo changes to an external calendar. The
// scheduler absorbs its own failures and queueing; record operations
// never wait on it.
type CalendarScheduler interface {
	ScheduleUpsert(ctx context.Context, todo models.Todo)
	ScheduleDelete(ctx context.Context, todo models.Todo)
}

// Todos is the task facade. Todo fields are plain, so there is no
// encryption discipline here, only the optimistic offline paths shared
// with the other facades.
type Todos struct {
	deps     Deps
	calendar CalendarScheduler
	log      logging.Logger

	mu      sync.Mutex
	records []models.Todo
	idmap   map[string]string
}

// NewTodos returns a todo facade. calendar may be nil when no external
// calendar is connected.
func NewTodos(deps Deps, calendar CalendarScheduler) *Todos {
	deps.normalize()
	return &Todos{
		deps:     deps,
		calendar: calendar,
		log:      deps.Logger.With("store", models.CollectionTodos),
		idmap:    map[string]string{},
	}
}

// FetchAll refreshes the working set when online; offline or on a
// failed fetch the last known state is served. Pending local records
// absent from the fetch result are preserved.
func (s *Todos) FetchAll(ctx context.Context) ([]models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.deps.Online() {
		return s.snapshot(), nil
	}

	rows, err := s.deps.Remote.Select(ctx, models.CollectionTodos, remote.SelectOpts{
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		s.log.Warn(ctx, "fetch failed, serving last known todos", "error", err)
		return s.snapshot(), nil
	}

	fetched := make([]models.Todo, 0, len(rows))
	seen := map[string]bool{}
	for _, raw := range rows {
		var todo models.Todo
		if err := json.Unmarshal(raw, &todo); err != nil {
			s.log.Warn(ctx, "skipping malformed todo row", "error", err)
			continue
		}
		fetched = append(fetched, todo)
		seen[todo.ID] = true
	}

	var kept []models.Todo
	for _, t := range s.records {
		if t.Pending && !seen[t.ID] {
			kept = append(kept, t)
		}
	}
	s.records = append(kept, fetched...)
	return s.snapshot(), nil
}

// All returns the current working set.
func (s *Todos) All() []models.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// GetByID returns the todo with the given id.
func (s *Todos) GetByID(id string) (models.Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.records[idx], true
	}
	return models.Todo{}, false
}

// Add creates a todo, optimistically when offline. A dated todo is
// also scheduled on the external calendar.
func (s *Todos) Add(ctx context.Context, t models.Todo) (models.Todo, error) {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := t
	if s.deps.Online() {
		t.ID = ""
		created, err := s.deps.Remote.Insert(ctx, models.CollectionTodos, t)
		if err == nil {
			if perr := json.Unmarshal(created, &stored); perr != nil {
				return models.Todo{}, fmt.Errorf("parsing created todo: %w", perr)
			}
			s.records = append([]models.Todo{stored}, s.records...)
			s.mirror(ctx, stored, false)
			return stored, nil
		}
		if !errors.Is(err, common.ErrRemoteUnavailable) {
			return models.Todo{}, err
		}
		s.log.Warn(ctx, "insert failed, queueing", "error", err)
	}

	stored.ID = uuid.NewString()
	stored.Pending = true
	rowJSON, err := json.Marshal(stored)
	if err != nil {
		return models.Todo{}, err
	}
	s.deps.Queue.Enqueue(ctx, queue.Operation{
		Type:       queue.OpInsert,
		Collection: models.CollectionTodos,
		RecordID:   stored.ID,
		Payload:    rowJSON,
	})
	s.records = append([]models.Todo{stored}, s.records...)
	s.mirror(ctx, stored, false)
	return stored, nil
}

// Toggle flips the completed flag.
func (s *Todos) Toggle(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return common.ErrNotFound
	}
	completed := !s.records[idx].Completed
	return s.patch(ctx, id, map[string]any{"completed": completed}, func(rec *models.Todo) {
		rec.Completed = completed
	})
}

// Update patches the todo's text, date, and tags.
func (s *Todos) Update(ctx context.Context, t models.Todo) error {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	fields := map[string]any{
		"text": t.Text,
		"date": t.Date,
		"tags": t.Tags,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.patch(ctx, t.ID, fields, func(rec *models.Todo) {
		rec.Text = t.Text
		rec.Date = t.Date
		rec.Tags = t.Tags
	})
	if err != nil {
		return err
	}
	if idx := s.indexOf(t.ID); idx >= 0 {
		s.mirror(ctx, s.records[idx], false)
	}
	return nil
}

// Delete removes the todo and cancels its calendar event if one was
// created.
func (s *Todos) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return common.ErrNotFound
	}
	gone := s.records[idx]
	remoteID := s.realID(id)

	if s.deps.Online() {
		err := s.deps.Remote.Delete(ctx, models.CollectionTodos, remoteID)
		if err == nil {
			s.remove(idx)
			s.mirror(ctx, gone, true)
			return nil
		}
		if !errors.Is(err, common.ErrRemoteUnavailable) {
			return err
		}
		s.log.Warn(ctx, "delete failed, queueing", "record", remoteID, "error", err)
	}

	s.remove(idx)
	s.deps.Queue.Enqueue(ctx, queue.Operation{
		Type:       queue.OpDelete,
		Collection: models.CollectionTodos,
		RecordID:   remoteID,
	})
	s.mirror(ctx, gone, true)
	return nil
}

// ConfirmInsert reconciles a replayed offline INSERT with the
// server-assigned id.
func (s *Todos) ConfirmInsert(ctx context.Context, tempID string, created json.RawMessage) error {
	var todo models.Todo
	if err := json.Unmarshal(created, &todo); err != nil {
		return fmt.Errorf("parsing created todo: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.idmap[tempID] = todo.ID
	if idx := s.indexOf(tempID); idx >= 0 {
		todo.Pending = false
		s.records[idx] = todo
	}
	s.deps.Queue.RewriteRecordID(ctx, tempID, todo.ID)
	return nil
}

// ApplyEvent merges one realtime change notification.
func (s *Todos) ApplyEvent(ctx context.Context, ev remote.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case remote.EventInsert, remote.EventUpdate:
		var todo models.Todo
		if err := json.Unmarshal(ev.New, &todo); err != nil {
			s.log.Warn(ctx, "malformed realtime row", "error", err)
			return
		}
		idx := s.indexOf(todo.ID)
		if ev.Type == remote.EventInsert {
			if idx >= 0 {
				return
			}
			s.records = append([]models.Todo{todo}, s.records...)
			sort.SliceStable(s.records, func(i, j int) bool {
				return s.records[i].CreatedAt.After(s.records[j].CreatedAt)
			})
		} else {
			if idx < 0 {
				return
			}
			s.records[idx] = todo
		}
	case remote.EventDelete:
		var old struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.Old, &old); err != nil {
			s.log.Warn(ctx, "malformed realtime row", "error", err)
			return
		}
		if idx := s.indexOf(old.ID); idx >= 0 {
			s.remove(idx)
		}
	}
}

// patch applies a plain-field mutation locally and either sends it or
// queues it. Callers hold the mutex.
func (s *Todos) patch(ctx context.Context, id string, fields map[string]any, apply func(*models.Todo)) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return common.ErrNotFound
	}

	remoteID := s.realID(id)
	if s.deps.Online() {
		err := s.deps.Remote.Update(ctx, models.CollectionTodos, remoteID, fields)
		if err == nil {
			apply(&s.records[idx])
			return nil
		}
		if !errors.Is(err, common.ErrRemoteUnavailable) {
			return err
		}
		s.log.Warn(ctx, "update failed, queueing", "record", remoteID, "error", err)
	}

	apply(&s.records[idx])
	s.records[idx].Pending = true
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	s.deps.Queue.Enqueue(ctx, queue.Operation{
		Type:       queue.OpUpdate,
		Collection: models.CollectionTodos,
		RecordID:   remoteID,
		Payload:    fieldsJSON,
	})
	return nil
}

// mirror forwards a dated todo to the calendar scheduler. Calendar sync
// never fails a record operation.
func (s *Todos) mirror(ctx context.Context, t models.Todo, deleted bool) {
	if s.calendar == nil {
		return
	}
	if deleted {
		if t.GoogleCalendarEventID != "" {
			s.calendar.ScheduleDelete(ctx, t)
		}
		return
	}
	if t.Date != "" {
		s.calendar.ScheduleUpsert(ctx, t)
	}
}

func (s *Todos) realID(id string) string {
	if real, ok := s.idmap[id]; ok {
		return real
	}
	return id
}

func (s *Todos) indexOf(id string) int {
	real := s.realID(id)
	for i, t := range s.records {
		if t.ID == id || t.ID == real {
			return i
		}
	}
	return -1
}

func (s *Todos) remove(idx int) {
	s.records = append(s.records[:idx], s.records[idx+1:]...)
}

func (s *Todos) snapshot() []models.Todo {
	out := make([]models.Todo, len(s.records))
	copy(out, s.records)
	return out
}
