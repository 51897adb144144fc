package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) Store {
	t.Helper()

	db, err := NewDB(Options{Driver: DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, nil)
}

// storeFactories lets the same behavioral tests run against every Store implementation.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"sqlite": newTestSQLiteStore,
		"memory": func(*testing.T) Store { return NewMemoryStore() },
	}
}

func TestStoreAppendAndRead(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := factory(t)

			if _, err := store.GetOrCreateUser(ctx, 42, User{Lang: "en", Persona: "assistant"}); err != nil {
				t.Fatalf("GetOrCreateUser() error = %v", err)
			}

			if err := store.AppendTurn(ctx, 42, RoleUser, "hi"); err != nil {
				t.Fatalf("AppendTurn() error = %v", err)
			}
			if err := store.AppendExchange(ctx, 42, "what's the weather?", "sunny"); err != nil {
				t.Fatalf("AppendExchange() error = %v", err)
			}
			if err := store.AppendTurn(ctx, 42, RoleAssistant, "anything else?"); err != nil {
				t.Fatalf("AppendTurn() error = %v", err)
			}

			turns, err := store.ReadTurns(ctx, 42)
			if err != nil {
				t.Fatalf("ReadTurns() error = %v", err)
			}

			want := []struct{ role, content string }{
				{RoleUser, "hi"},
				{RoleUser, "what's the weather?"},
				{RoleAssistant, "sunny"},
				{RoleAssistant, "anything else?"},
			}
			if len(turns) != len(want) {
				t.Fatalf("ReadTurns() returned %d turns, want %d", len(turns), len(want))
			}
			for i, w := range want {
				if turns[i].Role != w.role || turns[i].Content != w.content {
					t.Errorf("turn %d = {%s %q}, want {%s %q}", i, turns[i].Role, turns[i].Content, w.role, w.content)
				}
				if turns[i].UserID != 42 {
					t.Errorf("turn %d user_id = %d, want 42", i, turns[i].UserID)
				}
			}
		})
	}
}

func TestStoreRejectsInvalidRole(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := factory(t)

			if _, err := store.GetOrCreateUser(ctx, 1, User{}); err != nil {
				t.Fatalf("GetOrCreateUser() error = %v", err)
			}
			err := store.AppendTurn(ctx, 1, "system", "you are a bot")
			if !errors.Is(err, ErrInvalidRole) {
				t.Fatalf("AppendTurn() error = %v, want ErrInvalidRole", err)
			}

			turns, err := store.ReadTurns(ctx, 1)
			if err != nil {
				t.Fatalf("ReadTurns() error = %v", err)
			}
			if len(turns) != 0 {
				t.Errorf("ReadTurns() returned %d turns after rejected append, want 0", len(turns))
			}
		})
	}
}

func TestStoreDeleteTurnsIsScopedToUser(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := factory(t)

			for _, id := range []int64{1, 2} {
				if _, err := store.GetOrCreateUser(ctx, id, User{}); err != nil {
					t.Fatalf("GetOrCreateUser(%d) error = %v", id, err)
				}
				for i := 0; i < 3; i++ {
					if err := store.AppendExchange(ctx, id, "q", "a"); err != nil {
						t.Fatalf("AppendExchange(%d) error = %v", id, err)
					}
				}
			}

			deleted, err := store.DeleteTurns(ctx, 1)
			if err != nil {
				t.Fatalf("DeleteTurns() error = %v", err)
			}
			if deleted != 6 {
				t.Errorf("DeleteTurns() = %d, want 6", deleted)
			}

			turns, err := store.ReadTurns(ctx, 1)
			if err != nil {
				t.Fatalf("ReadTurns(1) error = %v", err)
			}
			if len(turns) != 0 {
				t.Errorf("ReadTurns(1) after reset returned %d turns, want 0", len(turns))
			}

			other, err := store.ReadTurns(ctx, 2)
			if err != nil {
				t.Fatalf("ReadTurns(2) error = %v", err)
			}
			if len(other) != 6 {
				t.Errorf("ReadTurns(2) returned %d turns, want 6", len(other))
			}

			// Deleting an empty history is not an error.
			if deleted, err := store.DeleteTurns(ctx, 1); err != nil || deleted != 0 {
				t.Errorf("second DeleteTurns() = (%d, %v), want (0, nil)", deleted, err)
			}
		})
	}
}

func TestStoreDeleteTurnsBefore(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := factory(t)

			if _, err := store.GetOrCreateUser(ctx, 7, User{}); err != nil {
				t.Fatalf("GetOrCreateUser() error = %v", err)
			}
			if err := store.AppendExchange(ctx, 7, "old", "reply"); err != nil {
				t.Fatalf("AppendExchange() error = %v", err)
			}

			deleted, err := store.DeleteTurnsBefore(ctx, time.Now().Add(-time.Hour))
			if err != nil {
				t.Fatalf("DeleteTurnsBefore(past) error = %v", err)
			}
			if deleted != 0 {
				t.Errorf("DeleteTurnsBefore(past) = %d, want 0", deleted)
			}

			deleted, err = store.DeleteTurnsBefore(ctx, time.Now().Add(time.Hour))
			if err != nil {
				t.Fatalf("DeleteTurnsBefore(future) error = %v", err)
			}
			if deleted != 2 {
				t.Errorf("DeleteTurnsBefore(future) = %d, want 2", deleted)
			}
		})
	}
}

func TestStoreUserSettings(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := factory(t)

			defaults := User{DisplayName: "Ann", Lang: "ru", Persona: "assistant", Voice: true}
			user, err := store.GetOrCreateUser(ctx, 5, defaults)
			if err != nil {
				t.Fatalf("GetOrCreateUser() error = %v", err)
			}
			if user.Lang != "ru" || user.Persona != "assistant" || !user.Voice || user.TranslateTo.Valid {
				t.Fatalf("new user = %+v, want defaults applied", user)
			}

			lang, persona, voice, translate := "en", "sarcastic", false, "de"
			err = store.UpdateUser(ctx, 5, UserSettings{Lang: &lang, Persona: &persona, Voice: &voice, TranslateTo: &translate})
			if err != nil {
				t.Fatalf("UpdateUser() error = %v", err)
			}

			// Defaults must not overwrite stored settings on later contact.
			user, err = store.GetOrCreateUser(ctx, 5, User{DisplayName: "Anna", Lang: "ru", Persona: "assistant", Voice: true})
			if err != nil {
				t.Fatalf("GetOrCreateUser() second call error = %v", err)
			}
			if user.DisplayName != "Anna" {
				t.Errorf("DisplayName = %q, want refreshed %q", user.DisplayName, "Anna")
			}
			if user.Lang != "en" || user.Persona != "sarcastic" || user.Voice {
				t.Errorf("settings = {%s %s %v}, want {en sarcastic false}", user.Lang, user.Persona, user.Voice)
			}
			if !user.TranslateTo.Valid || user.TranslateTo.String != "de" {
				t.Errorf("TranslateTo = %+v, want de", user.TranslateTo)
			}

			none := ""
			if err := store.UpdateUser(ctx, 5, UserSettings{TranslateTo: &none}); err != nil {
				t.Fatalf("UpdateUser(clear) error = %v", err)
			}
			user, err = store.GetOrCreateUser(ctx, 5, User{})
			if err != nil {
				t.Fatalf("GetOrCreateUser() third call error = %v", err)
			}
			if user.TranslateTo.Valid {
				t.Errorf("TranslateTo = %+v, want NULL after clearing", user.TranslateTo)
			}
			if user.DisplayName != "Anna" {
				t.Errorf("empty display name overwrote stored one: %q", user.DisplayName)
			}

			if err := store.UpdateUser(ctx, 999, UserSettings{Lang: &lang}); err == nil {
				t.Error("UpdateUser() on unknown user returned nil error")
			}
		})
	}
}

func TestStoreCancelledContext(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := factory(t)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := store.ReadTurns(ctx, 1); !errors.Is(err, context.Canceled) {
				t.Errorf("ReadTurns() error = %v, want context.Canceled", err)
			}
			if err := store.RunSQLMaintenance(ctx); !errors.Is(err, context.Canceled) {
				t.Errorf("RunSQLMaintenance() error = %v, want context.Canceled", err)
			}
		})
	}
}

func TestRunSQLMaintenanceSQLite(t *testing.T) {
	t.Parallel()

	store := newTestSQLiteStore(t)
	if err := store.RunSQLMaintenance(context.Background()); err != nil {
		t.Fatalf("RunSQLMaintenance() error = %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestRedactDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{name: "postgres url", dsn: "postgres://bot:secret@db:5432/jarvis?sslmode=disable", want: "postgres://db:5432/jarvis"},
		{name: "sqlite file", dsn: "file:jarvis.db?_pragma=foreign_keys(1)", want: "jarvis.db"},
		{name: "plain path", dsn: "/data/jarvis.db", want: "/data/jarvis.db"},
		{name: "memory", dsn: ":memory:", want: ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RedactDSN(tt.dsn); got != tt.want {
				t.Errorf("RedactDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := NewDB(Options{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("NewDB() with unknown driver returned nil error")
	}
}
