// Package store defines the task persistence port.
package store

import (
	"context"

	"github.com/Strob0t/CodeSmith/internal/domain/task"
)

// Store persists task snapshots. The task manager guarantees one writer per
// task id (the owning orchestrator), so implementations only need to make
// individual calls atomic, not coordinate concurrent writers of one task.
type Store interface {
	Create(ctx context.Context, t *task.Task) error
	Get(ctx context.Context, id string) (*task.Task, error)
	List(ctx context.Context) ([]task.Task, error)
	// Update replaces the stored snapshot of the task.
	Update(ctx context.Context, t *task.Task) error
	Delete(ctx context.Context, id string) error
}
