package cli

import (
	"context"
	"fmt"

	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/jotflow/jotflow/internal/cryptox"
)

// Login authenticates against the remote store with email and
// password.
func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	pw, err := GetPassword("Account password", a.out)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	if err := a.remote.SignIn(ctx, email, string(pw)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed in.")

	if a.profile.HasParams(ctx) {
		fmt.Fprintln(a.out, "Encryption is set up; run 'unlock' to read your entries.")
	} else {
		fmt.Fprintln(a.out, "Encryption is not set up yet; run 'setpassword' first.")
	}
	return nil
}

// Logout drops the remote session and the encryption key, and wipes
// the locally cached record snapshots and key verifier. Queued
// mutations survive so nothing the user wrote is lost.
func (a *App) Logout(ctx context.Context) error {
	a.remote.SignOut()
	a.keys.Clear()
	err := storage.PurgeSlots(ctx, a.db,
		storage.SlotEntriesCache,
		storage.SlotWidgetsCache,
		storage.SlotE2EEParams,
		storage.SlotKeyVerifier,
	)
	if err != nil {
		return fmt.Errorf("wiping local caches: %w", err)
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

// Unlock derives the session key from the master password and retries
// decryption of anything fetched while locked.
func (a *App) Unlock(ctx context.Context) error {
	pw, err := GetPassword("Master password", a.out)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	if err := a.profile.Unlock(ctx, string(pw)); err != nil {
		return err
	}
	a.entries.RedecryptAll(ctx)
	fmt.Fprintln(a.out, "Encryption unlocked.")
	return nil
}

// SetPassword establishes (or rotates) the master password.
func (a *App) SetPassword(ctx context.Context) error {
	pw, err := GetPassword("New master password", a.out)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)
	confirm, err := GetPassword("Repeat master password", a.out)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(confirm)

	if string(pw) != string(confirm) {
		return fmt.Errorf("passwords do not match")
	}
	if err := a.profile.SetMasterPassword(ctx, string(pw)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Master password set. Keep it safe: it cannot be recovered.")
	return nil
}

// Lock drops the session key.
func (a *App) Lock(ctx context.Context) error {
	a.profile.Lock()
	fmt.Fprintln(a.out, "Encryption locked.")
	return nil
}
