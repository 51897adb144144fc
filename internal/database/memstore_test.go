package database

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreReadReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.AppendExchange(ctx, 1, "q", "a"); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}

	turns, _ := m.ReadTurns(ctx, 1)
	turns[0].Content = "changed"

	again, _ := m.ReadTurns(ctx, 1)
	if again[0].Content != "q" {
		t.Errorf("stored turn mutated through ReadTurns result: %q", again[0].Content)
	}
}

func TestMemoryStoreUpdateMissingUser(t *testing.T) {
	t.Parallel()

	lang := "en"
	if err := NewMemoryStore().UpdateUser(context.Background(), 9, UserSettings{Lang: &lang}); err == nil {
		t.Error("UpdateUser() error = nil for unknown user")
	}
}

func TestMemoryStoreRetentionKeepsRecentTurns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_ = m.AppendExchange(ctx, 1, "old q", "old a")
	_ = m.AppendExchange(ctx, 2, "other old", "other old a")
	now = now.Add(48 * time.Hour)
	_ = m.AppendExchange(ctx, 1, "new q", "new a")

	deleted, err := m.DeleteTurnsBefore(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteTurnsBefore() error = %v", err)
	}
	if deleted != 4 {
		t.Errorf("deleted = %d, want 4", deleted)
	}

	turns, _ := m.ReadTurns(ctx, 1)
	if len(turns) != 2 || turns[0].Content != "new q" {
		t.Errorf("user 1 turns = %+v", turns)
	}
	if turns, _ := m.ReadTurns(ctx, 2); len(turns) != 0 {
		t.Errorf("user 2 turns = %+v, want none", turns)
	}
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.AppendExchange(ctx, 1, "q", "a")
		}()
	}
	wg.Wait()

	turns, _ := m.ReadTurns(ctx, 1)
	if len(turns) != 40 {
		t.Fatalf("got %d turns, want 40", len(turns))
	}
	for i := 0; i < len(turns); i += 2 {
		if turns[i].Role != RoleUser || turns[i+1].Role != RoleAssistant {
			t.Fatalf("exchange at %d interleaved: %s, %s", i, turns[i].Role, turns[i+1].Role)
		}
	}
}
