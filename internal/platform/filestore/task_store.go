package filestore

import (
	"context"

	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/store"
)

// TaskStore implements store.TaskStore over tasks.json.
type TaskStore struct {
	c *collection[domain.Task]
}

var _ store.TaskStore = (*TaskStore)(nil)

func indexOfTask(tasks []domain.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Snapshot implements store.TaskStore.
func (s *TaskStore) Snapshot(ctx context.Context) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current := s.c.load()
	out := make([]domain.Task, len(current))
	for i := range current {
		out[i] = current[i].Clone()
	}
	return out, nil
}

// Get implements store.TaskStore.
func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current := s.c.load()
	idx := indexOfTask(current, id)
	if idx < 0 {
		return nil, store.ErrTaskNotFound
	}
	task := current[idx].Clone()
	return &task, nil
}

// Insert implements store.TaskStore.
func (s *TaskStore) Insert(ctx context.Context, task *domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	current := s.c.load()
	if indexOfTask(current, task.ID) >= 0 {
		return store.ErrTaskExists
	}

	rec := task.Clone()
	rec.Normalize()
	next := make([]domain.Task, len(current), len(current)+1)
	copy(next, current)
	next = append(next, rec)

	if err := s.c.commit(next); err != nil {
		return store.NewPersistenceError("task", "insert", err)
	}
	return nil
}

// Mutate implements store.TaskStore.
func (s *TaskStore) Mutate(ctx context.Context, id string, fn store.MutateFn) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	current := s.c.load()
	idx := indexOfTask(current, id)
	if idx < 0 {
		return nil, store.ErrTaskNotFound
	}

	updated, err := fn(current[idx].Clone())
	if err != nil {
		return nil, err
	}
	updated.ID = id
	updated.Normalize()

	next := make([]domain.Task, len(current))
	copy(next, current)
	next[idx] = updated.Clone()

	if err := s.c.commit(next); err != nil {
		return nil, store.NewPersistenceError("task", "mutate", err)
	}
	return &updated, nil
}
