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
	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/cryptox"
	"github.com/jotflow/jotflow/internal/logging"
)

// Entries is the journal entry facade. It owns the in-memory working
// set for the entries collection, enforces the encryption discipline
// (sensitive fields travel only inside the encrypted payload), and
// degrades to queued offline mutations when the remote store is
// unreachable.
type Entries struct {
	deps Deps
	log  logging.Logger

	mu      sync.Mutex
	records []models.Entry
	// idmap tracks temp (local) id -> server-assigned id for offline
	// inserts confirmed during replay.
	idmap  map[string]string
	loaded bool
}

// NewEntries returns an entries facade over the shared collaborators.
func NewEntries(deps Deps) *Entries {
	deps.normalize()
	return &Entries{
		deps:  deps,
		log:   deps.Logger.With("store", models.CollectionEntries),
		idmap: map[string]string{},
	}
}

// FetchAll refreshes the working set from the remote store when online
// and returns it newest-first. Offline, or when the fetch fails, the
// last known state is served instead of an error: a read never loses
// what the user already has. Pending local records absent from the
// fetch result are preserved.
func (s *Entries) FetchAll(ctx context.Context) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.deps.Online() {
		s.ensureLoaded(ctx)
		return s.snapshot(), nil
	}

	rows, err := s.deps.Remote.Select(ctx, models.CollectionEntries, remote.SelectOpts{
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		s.log.Warn(ctx, "fetch failed, serving last known entries", "error", err)
		s.ensureLoaded(ctx)
		return s.snapshot(), nil
	}

	fetched := make([]models.Entry, 0, len(rows))
	seen := map[string]bool{}
	for _, raw := range rows {
		var row models.EntryRow
		if err := json.Unmarshal(raw, &row); err != nil {
			s.log.Warn(ctx, "skipping malformed entry row", "error", err)
			continue
		}
		fetched = append(fetched, s.decryptRow(row))
		seen[row.ID] = true
	}

	// Pending records the server has not acknowledged yet stay in the
	// working set ahead of the fetched ones.
	var kept []models.Entry
	for _, e := range s.records {
		if e.Pending && !seen[e.ID] {
			kept = append(kept, e)
		}
	}
	s.records = append(kept, fetched...)
	s.loaded = true
	s.writeCache(ctx)
	return s.snapshot(), nil
}

// GetByID returns the entry with the given id from the working set.
func (s *Entries) GetByID(id string) (models.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.records {
		if e.ID == id || s.idmap[id] == e.ID {
			return e, true
		}
	}
	return models.Entry{}, false
}

// All returns the current working set without touching the network.
func (s *Entries) All(ctx context.Context) []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.snapshot()
}

// Add creates a journal entry. The sensitive bundle is encrypted before
// anything leaves this method; with no session key loaded it fails fast
// with common.ErrEncryptionLocked. Online, the record is inserted and
// returned in its confirmed form. Offline (or when the store is
// unreachable) the record is applied optimistically under a temporary
// id, marked pending, and an INSERT is queued.
func (s *Entries) Add(ctx context.Context, e models.Entry) (models.Entry, error) {
	key, err := s.deps.Keys.Key()
	if err != nil {
		return models.Entry{}, err
	}
	defer cryptox.Wipe(key)

	payload, err := cryptox.Encrypt(e.Sensitive(), key)
	if err != nil {
		return models.Entry{}, fmt.Errorf("encrypting entry: %w", err)
	}
	e.Raw = &payload
	e.IsDecrypted = true
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Date == "" {
		e.Date = e.CreatedAt.Format("2006-01-02")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	if s.deps.Online() {
		row, rerr := e.Row()
		if rerr != nil {
			return models.Entry{}, rerr
		}
		row.ID = "" // server assigns
		created, ierr := s.deps.Remote.Insert(ctx, models.CollectionEntries, row)
		if ierr == nil {
			confirmed, perr := s.confirmed(e, created)
			if perr != nil {
				return models.Entry{}, perr
			}
			s.records = append([]models.Entry{confirmed}, s.records...)
			s.writeCache(ctx)
			return confirmed, nil
		}
		if !errors.Is(ierr, common.ErrRemoteUnavailable) {
			return models.Entry{}, ierr
		}
		s.log.Warn(ctx, "insert failed, queueing", "error", ierr)
	}

	e.ID = uuid.NewString()
	e.Pending = true
	row, rerr := e.Row()
	if rerr != nil {
		return models.Entry{}, rerr
	}
	rowJSON, rerr := json.Marshal(row)
	if rerr != nil {
		return models.Entry{}, rerr
	}
	s.deps.Queue.Enqueue(ctx, queue.Operation{
		Type:       queue.OpInsert,
		Collection: models.CollectionEntries,
		RecordID:   e.ID,
		Payload:    rowJSON,
	})
	s.records = append([]models.Entry{e}, s.records...)
	s.writeCache(ctx)
	return e, nil
}

// Update re-encrypts the entry's sensitive bundle and patches the
// record. Requires the session key; offline the update is applied
// locally and queued, possibly still keyed by a temporary id.
func (s *Entries) Update(ctx context.Context, e models.Entry) error {
	key, err := s.deps.Keys.Key()
	if err != nil {
		return err
	}
	defer cryptox.Wipe(key)

	payload, err := cryptox.Encrypt(e.Sensitive(), key)
	if err != nil {
		return fmt.Errorf("encrypting entry: %w", err)
	}
	e.Raw = &payload
	e.IsDecrypted = true

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	fields := map[string]any{
		"date":              e.Date,
		"pinned":            e.Pinned,
		"encrypted_payload": string(payloadJSON),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patch(ctx, e.ID, fields, func(rec *models.Entry) {
		sensitive := e.Sensitive()
		rec.Date = e.Date
		rec.Pinned = e.Pinned
		rec.Raw = e.Raw
		rec.ApplySensitive(sensitive)
	})
}

// TogglePin flips the pinned flag. Pinned is a plain column, so no
// session key is needed.
func (s *Entries) TogglePin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.find(id)
	if !ok {
		return common.ErrNotFound
	}
	pinned := !cur.Pinned
	return s.patch(ctx, id, map[string]any{"pinned": pinned}, func(rec *models.Entry) {
		rec.Pinned = pinned
	})
}

// patch applies a plain-field mutation locally and either sends it or
// queues it. Callers hold the mutex.
func (s *Entries) patch(ctx context.Context, id string, fields map[string]any, apply func(*models.Entry)) error {
	s.ensureLoaded(ctx)

	idx := s.indexOf(id)
	if idx < 0 {
		return common.ErrNotFound
	}

	remoteID := s.realID(id)
	if s.deps.Online() {
		err := s.deps.Remote.Update(ctx, models.CollectionEntries, remoteID, fields)
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
		Collection: models.CollectionEntries,
		RecordID:   remoteID,
		Payload:    fieldsJSON,
	})
	s.writeCache(ctx)
	return nil
}

// Delete removes the entry locally and either deletes it remotely or
// queues the deletion.
func (s *Entries) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	idx := s.indexOf(id)
	if idx < 0 {
		return common.ErrNotFound
	}
	remoteID := s.realID(id)

	if s.deps.Online() {
		err := s.deps.Remote.Delete(ctx, models.CollectionEntries, remoteID)
		if err == nil {
			s.remove(idx)
			s.writeCache(ctx)
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
		Collection: models.CollectionEntries,
		RecordID:   remoteID,
	})
	s.writeCache(ctx)
	return nil
}

// ConfirmInsert reconciles a queued offline INSERT after the remote
// store acknowledged it: the temporary id maps to the server-assigned
// one, the local record is promoted to confirmed, and queued operations
// still referencing the temp id are rewritten.
func (s *Entries) ConfirmInsert(ctx context.Context, tempID string, created json.RawMessage) error {
	var row models.EntryRow
	if err := json.Unmarshal(created, &row); err != nil {
		return fmt.Errorf("parsing created entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.idmap[tempID] = row.ID
	if idx := s.indexOf(tempID); idx >= 0 {
		rec := &s.records[idx]
		rec.ID = row.ID
		rec.Pending = false
		if !row.CreatedAt.IsZero() {
			rec.CreatedAt = row.CreatedAt
		}
	}
	s.deps.Queue.RewriteRecordID(ctx, tempID, row.ID)
	s.writeCache(ctx)
	return nil
}

// ApplyEvent merges one realtime change notification into the working
// set. Events are applied in arrival order; an INSERT for an id already
// present (typically the echo of this client's own insert) is dropped.
func (s *Entries) ApplyEvent(ctx context.Context, ev remote.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	switch ev.Type {
	case remote.EventInsert, remote.EventUpdate:
		var row models.EntryRow
		if err := json.Unmarshal(ev.New, &row); err != nil {
			s.log.Warn(ctx, "malformed realtime row", "error", err)
			return
		}
		idx := s.indexOf(row.ID)
		if ev.Type == remote.EventInsert {
			if idx >= 0 {
				return
			}
			s.records = append([]models.Entry{s.decryptRow(row)}, s.records...)
			sort.SliceStable(s.records, func(i, j int) bool {
				return s.records[i].CreatedAt.After(s.records[j].CreatedAt)
			})
		} else {
			if idx < 0 {
				return
			}
			s.records[idx] = s.decryptRow(row)
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
	s.writeCache(ctx)
}

// RedecryptAll retries decryption for records that could not be
// decrypted earlier, using the currently loaded key. Called after the
// user unlocks encryption.
func (s *Entries) RedecryptAll(ctx context.Context) {
	key, err := s.deps.Keys.Key()
	if err != nil {
		return
	}
	defer cryptox.Wipe(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		rec := &s.records[i]
		if rec.IsDecrypted || rec.Raw == nil {
			continue
		}
		var p models.SensitivePayload
		if derr := cryptox.Decrypt(*rec.Raw, key, &p); derr != nil {
			rec.DecryptionError = derr.Error()
			continue
		}
		rec.ApplySensitive(p)
	}
}

// decryptRow converts a wire row into the in-memory form, decrypting
// the payload when a key is loaded and redacting otherwise. A failed
// decryption never surfaces ciphertext or stale plaintext.
func (s *Entries) decryptRow(row models.EntryRow) models.Entry {
	e := models.Entry{ID: row.ID, Date: row.Date, Pinned: row.Pinned, CreatedAt: row.CreatedAt}

	p, present, err := row.Payload()
	if !present {
		e.ApplySensitive(models.SensitivePayload{})
		return e
	}
	if err != nil {
		e.Redact(p, "invalid encrypted payload")
		return e
	}

	key, kerr := s.deps.Keys.Key()
	if kerr != nil {
		e.Redact(p, common.ErrEncryptionLocked.Error())
		return e
	}
	defer cryptox.Wipe(key)

	var sensitive models.SensitivePayload
	if derr := cryptox.Decrypt(p, key, &sensitive); derr != nil {
		e.Redact(p, derr.Error())
		return e
	}
	e.Raw = &p
	e.ApplySensitive(sensitive)
	return e
}

// confirmed builds the confirmed form of a just-inserted entry from the
// server's returned row, keeping the locally known plaintext.
func (s *Entries) confirmed(e models.Entry, created json.RawMessage) (models.Entry, error) {
	var row models.EntryRow
	if err := json.Unmarshal(created, &row); err != nil {
		return models.Entry{}, fmt.Errorf("parsing created entry: %w", err)
	}
	e.ID = row.ID
	if !row.CreatedAt.IsZero() {
		e.CreatedAt = row.CreatedAt
	}
	e.Pending = false
	return e, nil
}

// realID maps a temporary id to the server-assigned one when the
// mapping is known.
func (s *Entries) realID(id string) string {
	if real, ok := s.idmap[id]; ok {
		return real
	}
	return id
}

func (s *Entries) indexOf(id string) int {
	real := s.realID(id)
	for i, e := range s.records {
		if e.ID == id || e.ID == real {
			return i
		}
	}
	return -1
}

func (s *Entries) find(id string) (models.Entry, bool) {
	if idx := s.indexOf(id); idx >= 0 {
		return s.records[idx], true
	}
	return models.Entry{}, false
}

func (s *Entries) remove(idx int) {
	s.records = append(s.records[:idx], s.records[idx+1:]...)
}

func (s *Entries) snapshot() []models.Entry {
	out := make([]models.Entry, len(s.records))
	copy(out, s.records)
	return out
}

// ensureLoaded populates the working set from the snapshot cache once.
// Callers hold the mutex.
func (s *Entries) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := s.deps.Slots.Get(ctx, storage.SlotEntriesCache)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "failed to read entries cache", "error", err)
		}
		return
	}
	var rows []models.EntryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		s.log.Warn(ctx, "corrupted entries cache, ignoring", "error", err)
		return
	}
	s.records = make([]models.Entry, 0, len(rows))
	for _, row := range rows {
		s.records = append(s.records, s.decryptRow(row))
	}
}

// writeCache persists the ciphertext wire form of the working set for
// instant display on the next offline start. Plaintext never reaches
// the cache. Callers hold the mutex.
func (s *Entries) writeCache(ctx context.Context) {
	rows := make([]models.EntryRow, 0, len(s.records))
	for _, e := range s.records {
		row, err := e.Row()
		if err != nil {
			s.log.Warn(ctx, "skipping uncacheable entry", "record", e.ID, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	data, err := json.Marshal(rows)
	if err != nil {
		s.log.Error(ctx, "failed to marshal entries cache", "error", err)
		return
	}
	if err := s.deps.Slots.Set(ctx, storage.SlotEntriesCache, data); err != nil {
		s.log.Warn(ctx, "failed to persist entries cache", "error", err)
	}
}
