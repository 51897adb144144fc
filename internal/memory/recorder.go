package memory

import (
	"context"
	"fmt"

	"github.com/edgard/jarvis/internal/database"
)

// Recorder persists completed exchanges.
type Recorder struct {
	store database.Store
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store database.Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends the user turn and the assistant turn atomically.
// Call it only after the completion succeeded.
func (r *Recorder) Record(ctx context.Context, userID int64, userText, assistantText string) error {
	if err := r.store.AppendExchange(ctx, userID, userText, assistantText); err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// Reset removes the whole history of a user and reports how many turns were deleted.
func (r *Recorder) Reset(ctx context.Context, userID int64) (int64, error) {
	count, err := r.store.DeleteTurns(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset history: %w", err)
	}
	return count, nil
}
