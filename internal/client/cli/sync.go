package cli

import (
	"context"
	"fmt"
)

// Sync replays the queued operations immediately instead of waiting
// for the next reconnect.
func (a *App) Sync(ctx context.Context) error {
	if !a.coord.Online() {
		return fmt.Errorf("offline; queued operations will replay on reconnect")
	}
	if err := a.coord.Sync(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Sync complete.")
	return nil
}

// Status prints connectivity, queue, and encryption state.
func (a *App) Status(ctx context.Context) error {
	mode := "offline"
	if a.coord.Online() {
		mode = "online"
	}
	enc := "locked"
	if a.unlocked() {
		enc = "unlocked"
	}

	fmt.Fprintf(a.out, "Mode:       %s\n", mode)
	fmt.Fprintf(a.out, "Encryption: %s\n", enc)
	fmt.Fprintf(a.out, "Pending:    %d queued operation(s)\n", a.coord.PendingCount())
	if a.coord.Syncing() {
		fmt.Fprintln(a.out, "Sync in progress...")
	}
	if a.calendar.Disconnected() {
		fmt.Fprintln(a.out, "Calendar:   disconnected, re-auth required")
	}
	return nil
}

// status renders the REPL prompt segment.
func (a *App) status() string {
	mode := "offline"
	if a.coord.Online() {
		mode = "online"
	}
	s := mode
	if a.unlocked() {
		s += " unlocked"
	}
	if n := a.coord.PendingCount(); n > 0 {
		s += fmt.Sprintf(" pending:%d", n)
	}
	return "(" + s + ")"
}
