// Package common defines shared constants and sentinel errors used across
// JotFlow client components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Crypto errors.
	ErrKeyDerivation    = errors.New("key derivation failed")
	ErrDecryptionFailed = errors.New("decryption failed: incorrect key or tampered data")

	// Facade-level errors. ErrEncryptionLocked means no session key is
	// loaded: encrypted mutations must fail fast instead of writing
	// plaintext.
	ErrEncryptionLocked = errors.New("e2e encryption is not unlocked")

	// Transport errors.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// External calendar integration errors. ErrCalendarDisconnected
	// signals that the user must re-authorize the integration.
	ErrCalendarDisconnected = errors.New("external calendar disconnected")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
)
