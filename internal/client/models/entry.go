package models

import (
	"encoding/json"
	"time"

	"github.com/jotflow/jotflow/internal/cryptox"
)

// EntryRow is the wire form of a journal entry: plain queryable columns
// plus the opaque encrypted payload, serialized as a JSON string in the
// encrypted_payload column.
type EntryRow struct {
	ID               string    `json:"id,omitempty"`
	Date             string    `json:"date"`
	Pinned           bool      `json:"pinned"`
	CreatedAt        time.Time `json:"created_at"`
	EncryptedPayload string    `json:"encrypted_payload,omitempty"`
}

// Payload parses the encrypted_payload column. Returns false when the
// row carries no payload.
func (r EntryRow) Payload() (cryptox.EncryptedPayload, bool, error) {
	if r.EncryptedPayload == "" {
		return cryptox.EncryptedPayload{}, false, nil
	}
	var p cryptox.EncryptedPayload
	if err := json.Unmarshal([]byte(r.EncryptedPayload), &p); err != nil {
		return cryptox.EncryptedPayload{}, true, err
	}
	return p, true, nil
}

// Entry is the in-memory form of a journal entry. A record is in one of
// three states: confirmed (acknowledged by the remote store), pending
// (optimistically applied locally, mutation queued), or
// decryption-failed (ciphertext present but the key is absent or wrong;
// sensitive fields hold redaction placeholders).
type Entry struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`

	// Sensitive fields, populated only after successful decryption or
	// for locally created records.
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Tags       []string    `json:"tags"`
	Mood       *int        `json:"mood"`
	VoiceNotes []VoiceNote `json:"voiceNotes"`

	IsDecrypted     bool   `json:"isDecrypted"`
	DecryptionError string `json:"decryptionError,omitempty"`
	Pending         bool   `json:"_pending,omitempty"`

	// Raw is the record's encrypted payload as fetched or produced.
	// Retained even after decryption: the local snapshot cache stores
	// this form, never plaintext, and a record fetched before the key
	// was available is decrypted in place from it once the key is set.
	Raw *cryptox.EncryptedPayload `json:"-"`
}

// Row converts the entry back to its wire form (plain columns plus the
// opaque payload). Sensitive plaintext never appears in the result.
func (e Entry) Row() (EntryRow, error) {
	row := EntryRow{ID: e.ID, Date: e.Date, Pinned: e.Pinned, CreatedAt: e.CreatedAt}
	if e.Raw != nil {
		b, err := json.Marshal(e.Raw)
		if err != nil {
			return EntryRow{}, err
		}
		row.EncryptedPayload = string(b)
	}
	return row, nil
}

// Sensitive extracts the entry's sensitive bundle for encryption.
func (e Entry) Sensitive() SensitivePayload {
	p := SensitivePayload{
		Title:      e.Title,
		Content:    e.Content,
		Tags:       e.Tags,
		Mood:       e.Mood,
		VoiceNotes: e.VoiceNotes,
	}
	p.Normalize()
	return p
}

// ApplySensitive merges a decrypted bundle into the entry and marks it
// decrypted. The raw payload is kept so the record can be re-cached
// without ever persisting plaintext.
func (e *Entry) ApplySensitive(p SensitivePayload) {
	p.Normalize()
	e.Title = p.Title
	e.Content = p.Content
	e.Tags = p.Tags
	e.Mood = p.Mood
	e.VoiceNotes = p.VoiceNotes
	e.IsDecrypted = true
	e.DecryptionError = ""
}

// Redact replaces sensitive fields with the fixed placeholders and
// records the decryption failure. The raw payload is kept so a later
// key change can retry.
func (e *Entry) Redact(raw cryptox.EncryptedPayload, reason string) {
	e.Title = RedactedTitle
	e.Content = RedactedContent
	e.Tags = []string{}
	e.Mood = nil
	e.VoiceNotes = nil
	e.IsDecrypted = false
	e.DecryptionError = reason
	e.Raw = &raw
}
