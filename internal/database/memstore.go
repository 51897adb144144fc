package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. History is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]User
	turns  map[int64][]Turn
	now    func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]User),
		turns: make(map[int64][]Turn),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) GetOrCreateUser(ctx context.Context, userID int64, defaults User) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	user, ok := m.users[userID]
	if !ok {
		user = defaults
		user.UserID = userID
		user.CreatedAt = now
		user.UpdatedAt = now
	} else if defaults.DisplayName != "" && user.DisplayName != defaults.DisplayName {
		user.DisplayName = defaults.DisplayName
		user.UpdatedAt = now
	}
	m.users[userID] = user

	return &user, nil
}

func (m *MemoryStore) UpdateUser(ctx context.Context, userID int64, settings UserSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if settings.IsEmpty() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("failed to update user %d: %w", userID, sql.ErrNoRows)
	}
	if settings.DisplayName != nil {
		user.DisplayName = *settings.DisplayName
	}
	if settings.Lang != nil {
		user.Lang = *settings.Lang
	}
	if settings.Persona != nil {
		user.Persona = *settings.Persona
	}
	if settings.Voice != nil {
		user.Voice = *settings.Voice
	}
	if settings.TranslateTo != nil {
		user.TranslateTo = sql.NullString{String: *settings.TranslateTo, Valid: *settings.TranslateTo != ""}
	}
	if settings.VoiceTranscript != nil {
		user.VoiceTranscript = *settings.VoiceTranscript
	}
	user.UpdatedAt = m.now()
	m.users[userID] = user
	return nil
}

func (m *MemoryStore) AppendTurn(ctx context.Context, userID int64, role, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(userID, role, content, m.now())
	return nil
}

func (m *MemoryStore) AppendExchange(ctx context.Context, userID int64, userText, assistantText string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.appendLocked(userID, RoleUser, userText, now)
	m.appendLocked(userID, RoleAssistant, assistantText, now)
	return nil
}

func (m *MemoryStore) appendLocked(userID int64, role, content string, at time.Time) {
	m.nextID++
	m.turns[userID] = append(m.turns[userID], Turn{
		ID:        m.nextID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	})
}

func (m *MemoryStore) ReadTurns(ctx context.Context, userID int64) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	turns := m.turns[userID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *MemoryStore) DeleteTurns(ctx context.Context, userID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := int64(len(m.turns[userID]))
	delete(m.turns, userID)
	return count, nil
}

func (m *MemoryStore) DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for userID, turns := range m.turns {
		kept := turns[:0]
		for _, t := range turns {
			if t.CreatedAt.Before(cutoff) {
				count++
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == 0 {
			delete(m.turns, userID)
		} else {
			m.turns[userID] = kept
		}
	}
	return count, nil
}

// RunSQLMaintenance has nothing to compact for the in-memory store.
func (m *MemoryStore) RunSQLMaintenance(ctx context.Context) error {
	return ctx.Err()
}

var _ Store = (*MemoryStore)(nil)
