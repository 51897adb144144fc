package tasks

import (
	"context"
	"fmt"
	"time"
)

// newMemoryRetentionTask deletes turns older than database.retention_days.
// A retention of zero keeps history forever and makes the task a no-op.
func newMemoryRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "memory_retention")

	return func(ctx context.Context) error {
		days := deps.Config.Database.RetentionDays
		if days <= 0 {
			log.DebugContext(ctx, "Memory retention disabled, skipping")
			return nil
		}

		cutoff := deps.Now().UTC().AddDate(0, 0, -days)
		log.InfoContext(ctx, "Starting memory retention task...", "cutoff", cutoff)
		startTime := time.Now()

		ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		deleted, err := deps.Store.DeleteTurnsBefore(ctx, cutoff)
		duration := time.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "Memory retention task failed", "error", err, "duration", duration)
			return fmt.Errorf("memory retention failed: %w", err)
		}

		log.InfoContext(ctx, "Memory retention task completed", "deleted_turns", deleted, "duration", duration)
		return nil
	}
}
