package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jotflow/jotflow/internal/client/keyring"
	"github.com/jotflow/jotflow/internal/client/models"
	"github.com/jotflow/jotflow/internal/client/queue"
	"github.com/jotflow/jotflow/internal/client/remote"
	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/cryptox"
	"github.com/jotflow/jotflow/internal/logging"
	"github.com/stretchr/testify/require"
)

// memSlots is an in-memory Slots implementation.
type memSlots struct {
	data map[string][]byte
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

type fakeUpdate struct {
	collection string
	id         string
	fields     any
}

// fakeRemote is an in-memory remote.Client. By default Insert echoes
// the row back with a server-assigned id.
type fakeRemote struct {
	remote.Client

	selectRows map[string][]json.RawMessage
	selectErr  error

	insertFn  func(collection string, row any) (json.RawMessage, error)
	insertErr error
	inserted  []any

	updated   []fakeUpdate
	updateErr error

	deleted   []string
	deleteErr error

	nextID int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{selectRows: map[string][]json.RawMessage{}}
}

func (f *fakeRemote) Select(ctx context.Context, collection string, opts remote.SelectOpts) ([]json.RawMessage, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.selectRows[collection], nil
}

func (f *fakeRemote) Insert(ctx context.Context, collection string, row any) (json.RawMessage, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, row)
	if f.insertFn != nil {
		return f.insertFn(collection, row)
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	f.nextID++
	m["id"] = fmt.Sprintf("srv-%d", f.nextID)
	return json.Marshal(m)
}

func (f *fakeRemote) Update(ctx context.Context, collection, id string, fields any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, fakeUpdate{collection: collection, id: id, fields: fields})
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, collection, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func errUnavailable() error {
	return fmt.Errorf("remote: %w", common.ErrRemoteUnavailable)
}

// testEnv wires the facade collaborators around in-memory fakes.
type testEnv struct {
	remote *fakeRemote
	slots  *memSlots
	queue  *queue.Queue
	keys   *keyring.Keyring
	online bool
}

func newTestEnv(withKey bool) *testEnv {
	env := &testEnv{
		remote: newFakeRemote(),
		slots:  newMemSlots(),
		keys:   keyring.New(),
		online: true,
	}
	env.queue = queue.New(storage.SlotSyncQueue, env.slots, logging.Nop())
	if withKey {
		env.keys.Set(testKey())
	}
	return env
}

func (env *testEnv) deps() Deps {
	return Deps{
		Remote: env.remote,
		Queue:  env.queue,
		Keys:   env.keys,
		Slots:  env.slots,
		Online: func() bool { return env.online },
		Logger: logging.Nop(),
	}
}

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, cryptox.KeySize)
}

// encryptedEntryRow builds a wire row whose payload is encrypted with
// the given key.
func encryptedEntryRow(t *testing.T, id, date string, p models.SensitivePayload, key []byte) json.RawMessage {
	t.Helper()
	payload, err := cryptox.Encrypt(p, key)
	require.NoError(t, err)
	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)
	row := models.EntryRow{ID: id, Date: date, EncryptedPayload: string(payloadJSON)}
	b, err := json.Marshal(row)
	require.NoError(t, err)
	return b
}

var errBadRequest = errors.New("bad request")
