package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrInvalidRole is returned when a turn role is neither user nor assistant.
var ErrInvalidRole = errors.New("invalid turn role")

// Store defines the conversation memory operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetOrCreateUser returns the user row, inserting one built from defaults on first contact.
	// A non-empty defaults.DisplayName refreshes the stored display name.
	GetOrCreateUser(ctx context.Context, userID int64, defaults User) (*User, error)

	// UpdateUser applies a partial settings update.
	UpdateUser(ctx context.Context, userID int64, settings UserSettings) error

	// AppendTurn appends a single turn to the user's history.
	AppendTurn(ctx context.Context, userID int64, role, content string) error

	// AppendExchange appends a user turn followed by an assistant turn in one transaction.
	AppendExchange(ctx context.Context, userID int64, userText, assistantText string) error

	// ReadTurns returns the user's full history in chronological order.
	ReadTurns(ctx context.Context, userID int64) ([]Turn, error)

	// DeleteTurns atomically removes every turn of the user.
	DeleteTurns(ctx context.Context, userID int64) (int64, error)

	// DeleteTurnsBefore removes turns of all users created before cutoff.
	DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
// Queries are written with '?' placeholders and rebound for the active driver.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) GetOrCreateUser(ctx context.Context, userID int64, defaults User) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for user lookup", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	insert := `
        INSERT INTO users (user_id, display_name, lang, persona, voice, translate_to, voice_transcript, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (user_id) DO NOTHING`
	_, err = tx.ExecContext(ctx, tx.Rebind(insert),
		userID, defaults.DisplayName, defaults.Lang, defaults.Persona, defaults.Voice,
		defaults.TranslateTo, defaults.VoiceTranscript, now, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to create user %d: %w", userID, err)
	}

	if defaults.DisplayName != "" {
		refresh := `UPDATE users SET display_name = ?, updated_at = ? WHERE user_id = ? AND display_name <> ?`
		if _, err := tx.ExecContext(ctx, tx.Rebind(refresh), defaults.DisplayName, now, userID, defaults.DisplayName); err != nil {
			s.logger.ErrorContext(ctx, "Error refreshing display name", "user_id", userID, "error", err)
			return nil, fmt.Errorf("failed to refresh display name for user %d: %w", userID, err)
		}
	}

	var user User
	query := `
        SELECT user_id, display_name, lang, persona, voice, translate_to, voice_transcript, created_at, updated_at
        FROM users WHERE user_id = ?`
	if err := tx.GetContext(ctx, &user, tx.Rebind(query), userID); err != nil {
		s.logger.ErrorContext(ctx, "Error reading user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to read user %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &user, nil
}

func (s *sqlxStore) UpdateUser(ctx context.Context, userID int64, settings UserSettings) error {
	if settings.IsEmpty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if settings.DisplayName != nil {
		add("display_name", *settings.DisplayName)
	}
	if settings.Lang != nil {
		add("lang", *settings.Lang)
	}
	if settings.Persona != nil {
		add("persona", *settings.Persona)
	}
	if settings.Voice != nil {
		add("voice", *settings.Voice)
	}
	if settings.TranslateTo != nil {
		add("translate_to", sql.NullString{String: *settings.TranslateTo, Valid: *settings.TranslateTo != ""})
	}
	if settings.VoiceTranscript != nil {
		add("voice_transcript", *settings.VoiceTranscript)
	}
	add("updated_at", time.Now().UTC())
	args = append(args, userID)

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE user_id = ?"
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating user settings", "user_id", userID, "error", err)
		return fmt.Errorf("failed to update user %d: %w", userID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("failed to update user %d: %w", userID, sql.ErrNoRows)
	}

	s.logger.DebugContext(ctx, "User settings updated", "user_id", userID, "fields", len(sets)-1)
	return nil
}

func (s *sqlxStore) AppendTurn(ctx context.Context, userID int64, role, content string) error {
	if !ValidRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	query := `INSERT INTO turns (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), userID, role, content, time.Now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error appending turn", "user_id", userID, "role", role, "error", err)
		return fmt.Errorf("failed to append %s turn for user %d: %w", role, userID, err)
	}
	return nil
}

func (s *sqlxStore) AppendExchange(ctx context.Context, userID int64, userText, assistantText string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for exchange", "user_id", userID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	// Both rows share a timestamp; the id keeps user before assistant.
	now := time.Now().UTC()
	query := tx.Rebind(`INSERT INTO turns (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, userID, RoleUser, userText, now); err != nil {
		s.logger.ErrorContext(ctx, "Error appending user turn", "user_id", userID, "error", err)
		return fmt.Errorf("failed to append user turn for user %d: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx, query, userID, RoleAssistant, assistantText, now); err != nil {
		s.logger.ErrorContext(ctx, "Error appending assistant turn", "user_id", userID, "error", err)
		return fmt.Errorf("failed to append assistant turn for user %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit exchange", "user_id", userID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Exchange recorded", "user_id", userID)
	return nil
}

func (s *sqlxStore) ReadTurns(ctx context.Context, userID int64) ([]Turn, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var turns []Turn
	query := `
        SELECT id, user_id, role, content, created_at
        FROM turns
        WHERE user_id = ?
        ORDER BY created_at ASC, id ASC`
	err := s.db.SelectContext(ctx, &turns, s.db.Rebind(query), userID)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while reading turns", "user_id", userID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error reading turns", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to read turns for user %d: %w", userID, err)
	}

	s.logger.DebugContext(ctx, "Read turns", "user_id", userID, "count", len(turns))
	return turns, nil
}

func (s *sqlxStore) DeleteTurns(ctx context.Context, userID int64) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for reset", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to begin transaction for reset: %w", err)
	}
	defer s.rollback(ctx, tx)

	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM turns WHERE user_id = ?`), userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting turns", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to delete turns for user %d: %w", userID, err)
	}
	count, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit reset", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to commit reset transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Deleted user history", "user_id", userID, "count", count)
	return count, nil
}

func (s *sqlxStore) DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM turns WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting old turns", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to delete turns before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted old turns", "cutoff", cutoff, "count", count)
	return count, nil
}

// RunSQLMaintenance executes VACUUM, which must run outside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	stmt := "VACUUM;"
	if s.db.DriverName() == "pgx" {
		stmt = "VACUUM ANALYZE;"
	}

	s.logger.InfoContext(ctx, "Starting database maintenance", "statement", stmt)
	_, err := s.db.ExecContext(ctx, stmt)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}

// rollback is deferred after BeginTxx; it is a no-op once the transaction is committed.
func (s *sqlxStore) rollback(ctx context.Context, tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.WarnContext(ctx, "Error rolling back transaction", "error", err)
	}
}
