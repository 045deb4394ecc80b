package mocks

import (
	"context"

	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/store"
)

// MockTaskStore implements store.TaskStore with function fields. A nil
// function delegates to Next, so a test can wrap a real store and override
// a single method.
type MockTaskStore struct {
	SnapshotFn func(ctx context.Context) ([]domain.Task, error)
	GetFn      func(ctx context.Context, id string) (*domain.Task, error)
	InsertFn   func(ctx context.Context, task *domain.Task) error
	MutateFn   func(ctx context.Context, id string, fn store.MutateFn) (*domain.Task, error)

	Next store.TaskStore
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// Snapshot implements store.TaskStore.
func (m *MockTaskStore) Snapshot(ctx context.Context) ([]domain.Task, error) {
	if m.SnapshotFn != nil {
		return m.SnapshotFn(ctx)
	}
	if m.Next == nil {
		return []domain.Task{}, nil
	}
	return m.Next.Snapshot(ctx)
}

// Get implements store.TaskStore.
func (m *MockTaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	if m.Next == nil {
		return nil, store.ErrTaskNotFound
	}
	return m.Next.Get(ctx, id)
}

// Insert implements store.TaskStore.
func (m *MockTaskStore) Insert(ctx context.Context, task *domain.Task) error {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, task)
	}
	if m.Next == nil {
		return nil
	}
	return m.Next.Insert(ctx, task)
}

// Mutate implements store.TaskStore.
func (m *MockTaskStore) Mutate(ctx context.Context, id string, fn store.MutateFn) (*domain.Task, error) {
	if m.MutateFn != nil {
		return m.MutateFn(ctx, id, fn)
	}
	if m.Next == nil {
		return nil, store.ErrTaskNotFound
	}
	return m.Next.Mutate(ctx, id, fn)
}
