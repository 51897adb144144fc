package memory

import (
	"context"
	"testing"

	"github.com/edgard/jarvis/internal/database"
)

func TestRecorderRecordAndReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	rec := NewRecorder(store)

	if _, err := store.GetOrCreateUser(ctx, 3, database.User{}); err != nil {
		t.Fatalf("GetOrCreateUser() error = %v", err)
	}
	if err := rec.Record(ctx, 3, "hello", "hi there"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	history, err := store.ReadTurns(ctx, 3)
	if err != nil {
		t.Fatalf("ReadTurns() error = %v", err)
	}
	if len(history) != 2 || history[0].Role != database.RoleUser || history[1].Role != database.RoleAssistant {
		t.Fatalf("history = %+v, want user then assistant", history)
	}

	deleted, err := rec.Reset(ctx, 3)
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Reset() deleted %d, want 2", deleted)
	}
	if history, _ := store.ReadTurns(ctx, 3); len(history) != 0 {
		t.Errorf("history after Reset() has %d turns, want 0", len(history))
	}
}

func TestRecorderWrapsStoreErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := NewRecorder(database.NewMemoryStore())
	if err := rec.Record(ctx, 1, "a", "b"); err == nil {
		t.Error("Record() with cancelled context returned nil error")
	}
	if _, err := rec.Reset(ctx, 1); err == nil {
		t.Error("Reset() with cancelled context returned nil error")
	}
}
