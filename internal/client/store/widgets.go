package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jotflow/jotflow/internal/client/models"
	"github.com/jotflow/jotflow/internal/client/queue"
	"github.com/jotflow/jotflow/internal/client/remote"
	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/logging"
)

// Widgets is the dashboard configuration facade. Widgets are plain
// records; the facade keeps a snapshot cache so a dashboard renders
// instantly on an offline start, and creates the default dashboard for
// a first-time user.
type Widgets struct {
	deps Deps
	log  logging.Logger

	mu      sync.Mutex
	records []models.Widget
	idmap   map[string]string
	loaded  bool
}

// NewWidgets returns a widgets facade over the shared collaborators.
func NewWidgets(deps Deps) *Widgets {
	deps.normalize()
	return &Widgets{
		deps:  deps,
		log:   deps.Logger.With("store", models.CollectionWidgets),
		idmap: map[string]string{},
	}
}

// FetchAll refreshes the dashboard from the remote store when online.
// An empty fetch result for a first-time user creates the default
// dashboard. Offline, or on a failed fetch, the cached snapshot is
// served.
func (s *Widgets) FetchAll(ctx context.Context) ([]models.Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.deps.Online() {
		s.ensureLoaded(ctx)
		return s.snapshot(), nil
	}

	rows, err := s.deps.Remote.Select(ctx, models.CollectionWidgets, remote.SelectOpts{
		OrderBy: "created_at",
	})
	if err != nil {
		s.log.Warn(ctx, "fetch failed, serving cached widgets", "error", err)
		s.ensureLoaded(ctx)
		return s.snapshot(), nil
	}

	fetched := make([]models.Widget, 0, len(rows))
	for _, raw := range rows {
		var w models.Widget
		if err := json.Unmarshal(raw, &w); err != nil {
			s.log.Warn(ctx, "skipping malformed widget row", "error", err)
			continue
		}
		fetched = append(fetched, w)
	}

	if len(fetched) == 0 {
		fetched = s.createDefaults(ctx)
	}
	s.records = fetched
	s.loaded = true
	s.writeCache(ctx)
	return s.snapshot(), nil
}

// All returns the current dashboard without touching the network.
func (s *Widgets) All(ctx context.Context) []models.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.snapshot()
}

// SetEnabled shows or hides a widget.
func (s *Widgets) SetEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.patch(ctx, id, map[string]any{"enabled": enabled}, func(w *models.Widget) {
		w.Enabled = enabled
	})
}

// UpdateConfig replaces a widget's configuration map.
func (s *Widgets) UpdateConfig(ctx context.Context, id string, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.patch(ctx, id, map[string]any{"config": config}, func(w *models.Widget) {
		w.Config = config
	})
}

// UpdateLayouts applies a bulk layout change after the user rearranges
// the dashboard grid. Each changed widget is patched individually;
// unknown ids are skipped.
func (s *Widgets) UpdateLayouts(ctx context.Context, layouts map[string]models.WidgetLayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	for id, layout := range layouts {
		idx := s.indexOf(id)
		if idx < 0 {
			continue
		}
		if s.records[idx].Layout == layout {
			continue
		}
		l := layout
		err := s.patch(ctx, id, map[string]any{"layout": l}, func(w *models.Widget) {
			w.Layout = l
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ConfirmInsert reconciles a replayed offline INSERT with the
// server-assigned id.
func (s *Widgets) ConfirmInsert(ctx context.Context, tempID string, created json.RawMessage) error {
	var w models.Widget
	if err := json.Unmarshal(created, &w); err != nil {
		return fmt.Errorf("parsing created widget: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.idmap[tempID] = w.ID
	if idx := s.indexOf(tempID); idx >= 0 {
		w.Pending = false
		s.records[idx] = w
	}
	s.deps.Queue.RewriteRecordID(ctx, tempID, w.ID)
	s.writeCache(ctx)
	return nil
}

// ApplyEvent merges one realtime change notification and writes the
// snapshot cache back.
func (s *Widgets) ApplyEvent(ctx context.Context, ev remote.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	switch ev.Type {
	case remote.EventInsert, remote.EventUpdate:
		var w models.Widget
		if err := json.Unmarshal(ev.New, &w); err != nil {
			s.log.Warn(ctx, "malformed realtime row", "error", err)
			return
		}
		idx := s.indexOf(w.ID)
		if ev.Type == remote.EventInsert {
			if idx >= 0 {
				return
			}
			s.records = append(s.records, w)
		} else {
			if idx < 0 {
				return
			}
			s.records[idx] = w
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
			s.records = append(s.records[:idx], s.records[idx+1:]...)
		}
	}
	s.writeCache(ctx)
}

// createDefaults builds the first-time dashboard. Online it inserts
// the defaults immediately; failures fall back to pending records with
// queued INSERTs. Callers hold the mutex.
func (s *Widgets) createDefaults(ctx context.Context) []models.Widget {
	defaults := models.DefaultWidgets()
	out := make([]models.Widget, 0, len(defaults))
	for _, w := range defaults {
		w.CreatedAt = time.Now().UTC()
		created, err := s.deps.Remote.Insert(ctx, models.CollectionWidgets, w)
		if err == nil {
			var stored models.Widget
			if perr := json.Unmarshal(created, &stored); perr == nil {
				out = append(out, stored)
				continue
			}
		} else if !errors.Is(err, common.ErrRemoteUnavailable) {
			s.log.Warn(ctx, "failed to create default widget", "type", w.Type, "error", err)
			continue
		}

		w.ID = uuid.NewString()
		w.Pending = true
		rowJSON, merr := json.Marshal(w)
		if merr != nil {
			continue
		}
		s.deps.Queue.Enqueue(ctx, queue.Operation{
			Type:       queue.OpInsert,
			Collection: models.CollectionWidgets,
			RecordID:   w.ID,
			Payload:    rowJSON,
		})
		out = append(out, w)
	}
	return out
}

// patch applies a plain-field mutation locally and either sends it or
// queues it. Callers hold the mutex.
func (s *Widgets) patch(ctx context.Context, id string, fields map[string]any, apply func(*models.Widget)) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return common.ErrNotFound
	}

	remoteID := s.realID(id)
	if s.deps.Online() {
		err := s.deps.Remote.Update(ctx, models.CollectionWidgets, remoteID, fields)
		if err == nil {
			apply(&s.records[idx])
			s.writeCache(ctx)
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
		Collection: models.CollectionWidgets,
		RecordID:   remoteID,
		Payload:    fieldsJSON,
	})
	s.writeCache(ctx)
	return nil
}

func (s *Widgets) realID(id string) string {
	if real, ok := s.idmap[id]; ok {
		return real
	}
	return id
}

func (s *Widgets) indexOf(id string) int {
	real := s.realID(id)
	for i, w := range s.records {
		if w.ID == id || w.ID == real {
			return i
		}
	}
	return -1
}

func (s *Widgets) snapshot() []models.Widget {
	out := make([]models.Widget, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Widgets) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := s.deps.Slots.Get(ctx, storage.SlotWidgetsCache)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "failed to read widgets cache", "error", err)
		}
		return
	}
	var widgets []models.Widget
	if err := json.Unmarshal(data, &widgets); err != nil {
		s.log.Warn(ctx, "corrupted widgets cache, ignoring", "error", err)
		return
	}
	s.records = widgets
}

func (s *Widgets) writeCache(ctx context.Context) {
	data, err := json.Marshal(s.records)
	if err != nil {
		s.log.Error(ctx, "failed to marshal widgets cache", "error", err)
		return
	}
	if err := s.deps.Slots.Set(ctx, storage.SlotWidgetsCache, data); err != nil {
		s.log.Warn(ctx, "failed to persist widgets cache", "error", err)
	}
}
