package store

import (
	"context"

	"github.com/phrazzld/voicetask/internal/domain"
)

// MutateFn produces the next version of a task from the current one. It
// receives a private copy and may return a modified value or an error to
// abort the mutation without persisting anything.
type MutateFn func(current domain.Task) (domain.Task, error)

// TaskStore is the durable, race-safe record store for the task collection.
type TaskStore interface {
	// Snapshot returns a consistent copy of every task in insertion order.
	// Readers never block each other and never observe a partial write.
	Snapshot(ctx context.Context) ([]domain.Task, error)

	// Get returns a copy of a single task.
	// Returns ErrTaskNotFound if the id is absent.
	Get(ctx context.Context, id string) (*domain.Task, error)

	// Insert appends a new task.
	// Returns ErrTaskExists if the id is already present.
	// Returns ErrPersistence if the durable write failed.
	Insert(ctx context.Context, task *domain.Task) error

	// Mutate loads the task, applies fn and persists the result. At most one
	// mutation is in flight for the whole collection at a time.
	// Returns ErrTaskNotFound before fn runs if the id is absent, fn's error
	// unchanged if fn fails, and ErrPersistence if the durable write failed.
	Mutate(ctx context.Context, id string, fn MutateFn) (*domain.Task, error)
}
