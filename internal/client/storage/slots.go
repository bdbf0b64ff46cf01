package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/dbx"
)

// Well-known slot keys. Each queue purpose owns exactly one slot; the
// caches hold the last-known snapshot for instant offline display.
const (
	SlotSyncQueue     = "jotflow_sync_queue"
	SlotCalendarQueue = "jotflow_gcal_sync_queue"
	SlotEntriesCache  = "jotflow_entries_cache"
	SlotWidgetsCache  = "jotflow_widgets_cache"
	SlotE2EEParams    = "jotflow_e2ee_params"
	SlotKeyVerifier   = "jotflow_key_verifier"
)

// Slots describes read/write access to named durable storage slots.
type Slots interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// SQLiteSlots implements Slots over a DBTX (either *sql.DB or *sql.Tx).
type SQLiteSlots struct {
	db dbx.DBTX
}

// NewSQLiteSlots returns a SQLiteSlots bound to the given DBTX.
func NewSQLiteSlots(db dbx.DBTX) *SQLiteSlots {
	return &SQLiteSlots{db: db}
}

// Get returns the slot's value, or common.ErrNotFound if the slot has
// never been written.
func (r *SQLiteSlots) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	return value, nil
}

// Set upserts the slot's value.
func (r *SQLiteSlots) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO slots (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

// Delete removes the slot. Deleting an absent slot is a no-op.
func (r *SQLiteSlots) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM slots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}

// Clear removes every slot.
func (r *SQLiteSlots) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM slots`); err != nil {
		return fmt.Errorf("failed to clear slots: %w", err)
	}
	return nil
}

// PurgeSlots deletes the given slots in one transaction, so sign-out
// can never leave the record caches and the key verifier out of step.
func PurgeSlots(ctx context.Context, db *sql.DB, keys ...string) error {
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		slots := NewSQLiteSlots(tx)
		for _, key := range keys {
			if err := slots.Delete(ctx, key); err != nil {
				return err
			}
		}
		return nil
	})
}
