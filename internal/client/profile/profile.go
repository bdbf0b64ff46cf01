// Package profile manages the master-password lifecycle: deriving the
// session key from the password and the account's persisted KDF
// parameters, verifying a re-derived key without ever storing it, and
// loading it into the keyring.
package profile

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jotflow/jotflow/internal/client/keyring"
	"github.com/jotflow/jotflow/internal/client/models"
	"github.com/jotflow/jotflow/internal/client/remote"
	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/cryptox"
	"github.com/jotflow/jotflow/internal/logging"
	"github.com/jotflow/jotflow/internal/passwordx"
)

// ErrWrongPassword is returned by Unlock when the derived key does not
// match the stored verifier.
var ErrWrongPassword = errors.New("wrong master password")

// Params is the non-secret key-derivation material persisted on the
// account profile: the salt plus the Argon2id cost parameters. Anyone
// holding these still needs the master password to derive the key.
type Params struct {
	Salt      string `json:"salt"`
	OpsLimit  uint32 `json:"opslimit"`
	MemLimit  uint32 `json:"memlimit"`
	Algorithm int    `json:"algorithm"`
}

func (p Params) kdf() cryptox.Params {
	return cryptox.Params{OpsLimit: p.OpsLimit, MemLimit: p.MemLimit, Algorithm: p.Algorithm}
}

func (p Params) saltBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Salt)
}

type profileRow struct {
	ID         string  `json:"id,omitempty"`
	E2EEParams *Params `json:"e2ee_params,omitempty"`
}

// Manager reads and writes the account's encryption profile and drives
// the keyring.
type Manager struct {
	remote remote.Client
	slots  storage.Slots
	keys   *keyring.Keyring
	online func() bool
	log    logging.Logger

	// KDFParams is the cost profile used when establishing a new
	// master password. Existing accounts keep the parameters persisted
	// at setup time.
	KDFParams cryptox.Params
}

// NewManager returns a profile manager.
func NewManager(rc remote.Client, slots storage.Slots, keys *keyring.Keyring, online func() bool, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	if online == nil {
		online = func() bool { return false }
	}
	return &Manager{
		remote:    rc,
		slots:     slots,
		keys:      keys,
		online:    online,
		log:       log.With("component", "profile"),
		KDFParams: cryptox.DefaultParams(),
	}
}

// SetMasterPassword establishes encryption for the account: the
// password must satisfy the strength policy, a fresh salt is generated,
// the derived key goes into the keyring, and the KDF parameters are
// persisted to the account profile and the local cache. The key itself
// is never persisted anywhere; only its verifier fingerprint is cached
// for later unlock checks.
func (m *Manager) SetMasterPassword(ctx context.Context, password string) error {
	res := passwordx.Validate(password)
	if !res.IsValid {
		return fmt.Errorf("password rejected: %s", strings.Join(res.Errors, "; "))
	}

	salt := cryptox.GenerateSalt()
	params := Params{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		OpsLimit:  m.KDFParams.OpsLimit,
		MemLimit:  m.KDFParams.MemLimit,
		Algorithm: m.KDFParams.Algorithm,
	}

	key, err := cryptox.DeriveKey(password, salt, params.kdf())
	if err != nil {
		return err
	}
	defer cryptox.Wipe(key)

	if err := m.saveParams(ctx, params); err != nil {
		return err
	}
	if err := m.slots.Set(ctx, storage.SlotKeyVerifier, cryptox.MakeVerifier(key)); err != nil {
		m.log.Warn(ctx, "failed to cache key verifier", "error", err)
	}

	m.keys.Set(key)
	return nil
}

// Unlock re-derives the key from the password and the account's
// persisted parameters, checks it against the cached verifier in
// constant time, and loads it into the keyring. On a device with no
// cached verifier yet, the derived key is accepted and its verifier is
// cached; a wrong password then shows up as failed record decryption.
func (m *Manager) Unlock(ctx context.Context, password string) error {
	params, err := m.loadParams(ctx)
	if err != nil {
		return err
	}
	salt, err := params.saltBytes()
	if err != nil {
		return fmt.Errorf("%w: invalid salt: %v", common.ErrKeyDerivation, err)
	}

	key, err := cryptox.DeriveKey(password, salt, params.kdf())
	if err != nil {
		return err
	}
	defer cryptox.Wipe(key)

	verifier, verr := m.slots.Get(ctx, storage.SlotKeyVerifier)
	switch {
	case errors.Is(verr, common.ErrNotFound):
		if err := m.slots.Set(ctx, storage.SlotKeyVerifier, cryptox.MakeVerifier(key)); err != nil {
			m.log.Warn(ctx, "failed to cache key verifier", "error", err)
		}
	case verr != nil:
		return verr
	default:
		if subtle.ConstantTimeCompare(cryptox.MakeVerifier(key), verifier) != 1 {
			return ErrWrongPassword
		}
	}

	m.keys.Set(key)
	return nil
}

// Lock wipes the session key.
func (m *Manager) Lock() {
	m.keys.Clear()
}

// Unlocked reports whether a session key is loaded.
func (m *Manager) Unlocked() bool {
	return m.keys.Unlocked()
}

// HasParams reports whether encryption has been set up for this
// account, looking at the remote profile when reachable and at the
// local cache otherwise.
func (m *Manager) HasParams(ctx context.Context) bool {
	_, err := m.loadParams(ctx)
	return err == nil
}

// loadParams reads the KDF parameters, preferring the account profile
// so a new device picks them up, falling back to the local cache
// offline.
func (m *Manager) loadParams(ctx context.Context) (Params, error) {
	if m.online() {
		rows, err := m.remote.Select(ctx, models.CollectionProfiles, remote.SelectOpts{})
		if err != nil {
			m.log.Warn(ctx, "failed to fetch profile, using cached params", "error", err)
		}
		for _, raw := range rows {
			var row profileRow
			if jerr := json.Unmarshal(raw, &row); jerr != nil {
				continue
			}
			if row.E2EEParams != nil {
				m.cacheParams(ctx, *row.E2EEParams)
				return *row.E2EEParams, nil
			}
		}
		// the profile may not have caught up with a locally completed
		// setup; the cache below is then authoritative
	}

	data, err := m.slots.Get(ctx, storage.SlotE2EEParams)
	if err != nil {
		return Params{}, fmt.Errorf("loading encryption params: %w", err)
	}
	var params Params
	if err := json.Unmarshal(data, &params); err != nil {
		return Params{}, fmt.Errorf("corrupted encryption params cache: %w", err)
	}
	return params, nil
}

// saveParams writes the KDF parameters to the account profile and the
// local cache. A transport failure leaves the local copy authoritative
// until the next successful save.
func (m *Manager) saveParams(ctx context.Context, params Params) error {
	m.cacheParams(ctx, params)

	if !m.online() {
		m.log.Warn(ctx, "offline, encryption params saved locally only")
		return nil
	}

	rows, err := m.remote.Select(ctx, models.CollectionProfiles, remote.SelectOpts{})
	if err != nil {
		if errors.Is(err, common.ErrRemoteUnavailable) {
			m.log.Warn(ctx, "profile unreachable, encryption params saved locally only", "error", err)
			return nil
		}
		return err
	}

	for _, raw := range rows {
		var row profileRow
		if jerr := json.Unmarshal(raw, &row); jerr != nil {
			continue
		}
		if row.ID != "" {
			return m.remote.Update(ctx, models.CollectionProfiles, row.ID, map[string]any{"e2ee_params": params})
		}
	}

	_, err = m.remote.Insert(ctx, models.CollectionProfiles, profileRow{E2EEParams: &params})
	return err
}

func (m *Manager) cacheParams(ctx context.Context, params Params) {
	data, err := json.Marshal(params)
	if err != nil {
		m.log.Error(ctx, "failed to marshal encryption params", "error", err)
		return
	}
	if err := m.slots.Set(ctx, storage.SlotE2EEParams, data); err != nil {
		m.log.Warn(ctx, "failed to cache encryption params", "error", err)
	}
}
