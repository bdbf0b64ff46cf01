// Package cryptox implements the key-derivation and payload-encryption
// primitives for end-to-end encrypted records.
//
// Keys are derived from the user's master password with Argon2id using
// caller-supplied cost parameters, so a returning user regenerates the
// identical key from the same salt and parameters without the key ever
// being stored. Payloads are JSON-serialized and sealed with NaCl
// secretbox (XSalsa20-Poly1305); ciphertext and nonce travel together as
// base64 strings inside the record's encrypted_payload column.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/jotflow/jotflow/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// SaltSize matches libsodium's crypto_pwhash_SALTBYTES.
	SaltSize = 16
	// KeySize is the secretbox key length.
	KeySize = 32
	// NonceSize is the secretbox nonce length.
	NonceSize = 24

	// AlgArgon2id13 identifies Argon2id v1.3, the only supported KDF
	// algorithm. The id is persisted in the account profile alongside
	// the cost parameters.
	AlgArgon2id13 = 2

	kdfThreads = 4
)

// Params carries the KDF cost parameters persisted (non-secret) in the
// user's account profile. OpsLimit is the Argon2 time parameter;
// MemLimit is the memory limit in bytes, as libsodium counts it.
type Params struct {
	OpsLimit  uint32 `json:"opslimit"`
	MemLimit  uint32 `json:"memlimit"`
	Algorithm int    `json:"algorithm"`
}

// DefaultParams mirrors libsodium's MODERATE limits: 3 passes over
// 256 MiB.
func DefaultParams() Params {
	return Params{OpsLimit: 3, MemLimit: 256 * 1024 * 1024, Algorithm: AlgArgon2id13}
}

// EncryptedPayload is the wire/storage form of an encrypted value.
// Both fields are standard base64.
type EncryptedPayload struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// DeriveKey derives a 32-byte symmetric key from the master password and
// salt. Deterministic: identical inputs always yield identical bytes.
func DeriveKey(password string, salt []byte, p Params) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", common.ErrKeyDerivation)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", common.ErrKeyDerivation, SaltSize, len(salt))
	}
	if p.Algorithm != AlgArgon2id13 {
		return nil, fmt.Errorf("%w: unsupported algorithm %d", common.ErrKeyDerivation, p.Algorithm)
	}
	if p.OpsLimit == 0 || p.MemLimit < 8*1024*kdfThreads {
		return nil, fmt.Errorf("%w: invalid cost parameters", common.ErrKeyDerivation)
	}

	key := argon2.IDKey([]byte(password), salt, p.OpsLimit, p.MemLimit/1024, kdfThreads, KeySize)
	return key, nil
}

// GenerateSalt returns a fresh cryptographically random salt. Generated
// once at first password-set and persisted alongside the cost parameters.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// MakeVerifier returns a non-reversible fingerprint of the master key,
// safe to cache locally for checking a re-derived key without storing
// the key itself.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// Encrypt serializes v to JSON and seals it under key with a fresh
// random nonce. The nonce is never derived from content and never
// reused under the same key.
func Encrypt(v any, key []byte) (EncryptedPayload, error) {
	if len(key) != KeySize {
		return EncryptedPayload{}, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	plaintext, err := json.Marshal(v)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("serializing payload: %w", err)
	}

	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return EncryptedPayload{}, fmt.Errorf("generating nonce: %w", err)
	}

	var k [KeySize]byte
	copy(k[:], key)

	ciphertext := secretbox.Seal(nil, plaintext, &nonce, &k)

	return EncryptedPayload{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(nonce[:]),
	}, nil
}

// Decrypt opens p under key and unmarshals the plaintext JSON into v.
// Authentication failure is a hard error wrapping
// common.ErrDecryptionFailed: the caller must treat the record as
// undecryptable, never guess or partially recover.
func Decrypt(p EncryptedPayload, key []byte, v any) error {
	if len(key) != KeySize {
		return fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(p.Ciphertext)
	if err != nil {
		return fmt.Errorf("%w: bad ciphertext encoding", common.ErrDecryptionFailed)
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(p.Nonce)
	if err != nil || len(nonceBytes) != NonceSize {
		return fmt.Errorf("%w: bad nonce", common.ErrDecryptionFailed)
	}

	var nonce [NonceSize]byte
	copy(nonce[:], nonceBytes)
	var k [KeySize]byte
	copy(k[:], key)

	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &k)
	if !ok {
		return common.ErrDecryptionFailed
	}

	return json.Unmarshal(plaintext, v)
}

// Wipe zeroes key material in place.
func Wipe(b []byte) {
	common.WipeByteArray(b)
}
