package database

import (
	"database/sql"
	"time"
)

// Turn roles persisted in the turns table.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User holds the per-user settings that shape prompt assembly and reply delivery.
// A row is created on first contact and only ever updated afterwards.
type User struct {
	UserID          int64          `db:"user_id"`
	DisplayName     string         `db:"display_name"`
	Lang            string         `db:"lang"`
	Persona         string         `db:"persona"`
	Voice           bool           `db:"voice"`
	TranslateTo     sql.NullString `db:"translate_to"`
	VoiceTranscript bool           `db:"voice_transcript"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// UserSettings is a partial update of a User. Nil fields are left untouched.
type UserSettings struct {
	DisplayName     *string
	Lang            *string
	Persona         *string
	Voice           *bool
	TranslateTo     *string // empty string clears the target language
	VoiceTranscript *bool
}

// IsEmpty reports whether the update carries no fields.
func (s UserSettings) IsEmpty() bool {
	return s.DisplayName == nil && s.Lang == nil && s.Persona == nil &&
		s.Voice == nil && s.TranslateTo == nil && s.VoiceTranscript == nil
}

// Turn is one role-tagged message in a user's conversation history.
type Turn struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// ValidRole reports whether role may be stored in the turns table.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}
