// Package keyring holds the session encryption key. The key is derived
// once per session when the user unlocks encryption and lives only in
// memory; absence of a key is a first-class state that makes encrypted
// mutations fail fast instead of writing plaintext.
package keyring

import (
	"sync"

	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/cryptox"
)

// Keyring stores the master key for the current session. Safe for
// concurrent use; every facade instance reads the same ring.
type Keyring struct {
	mu  sync.RWMutex
	key []byte
}

func New() *Keyring {
	return &Keyring{}
}

// Set installs the session key, wiping any previous one.
func (k *Keyring) Set(key []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	cryptox.Wipe(k.key)
	k.key = make([]byte, len(key))
	copy(k.key, key)
}

// Key returns a copy of the session key, or common.ErrEncryptionLocked
// when no key is loaded.
func (k *Keyring) Key() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.key == nil {
		return nil, common.ErrEncryptionLocked
	}
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out, nil
}

// Unlocked reports whether a session key is loaded.
func (k *Keyring) Unlocked() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key != nil
}

// Clear wipes the key material and returns the ring to the locked
// state. Called on logout and key rotation so no further plaintext
// operations run against stale material.
func (k *Keyring) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	cryptox.Wipe(k.key)
	k.key = nil
}
