// Package models defines the record types synchronized with the hosted
// store: journal entries, todos, dashboard widgets, and the sensitive
// payload bundle that travels only in encrypted form.
package models

// Redaction placeholders shown instead of sensitive fields when a
// record's payload cannot be decrypted. Raw ciphertext or stale
// plaintext must never be substituted.
const (
	RedactedTitle   = "[Encrypted]"
	RedactedContent = "[Decryption Failed]"
)

// Collection names on the hosted store.
const (
	CollectionEntries  = "journal_entries"
	CollectionTodos    = "todos"
	CollectionWidgets  = "widgets"
	CollectionProfiles = "profiles"
)

// VoiceNote describes one audio attachment referenced from an entry's
// encrypted payload.
type VoiceNote struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	DurationSec float64 `json:"durationSec"`
}

// SensitivePayload is the bundle of fields that exist in plaintext only
// in memory. It is encrypted as one unit, never field-by-field, and
// persisted solely inside a record's encrypted_payload column.
type SensitivePayload struct {
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Tags       []string    `json:"tags"`
	Mood       *int        `json:"mood"`
	VoiceNotes []VoiceNote `json:"voiceNotes"`
}

// Normalize replaces nil slices so the encrypted JSON always carries
// explicit empty collections.
func (p *SensitivePayload) Normalize() {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.VoiceNotes == nil {
		p.VoiceNotes = []VoiceNote{}
	}
}
