package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/voicetask/internal/domain"
)

// Collection file names inside the data directory.
const (
	TasksFileName = "tasks.json"
	UsersFileName = "users.json"
)

// Store owns a locked data directory and the collections inside it.
type Store struct {
	dir   string
	lock  *os.File
	tasks *TaskStore
	users *UserStore
}

// Open locks dir and loads its collections. It returns store.ErrLocked when
// another process keeps the lock for longer than lockTimeout.
func Open(ctx context.Context, dir string, lockTimeout time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	lock, err := acquireLock(ctx, filepath.Join(dir, LockFileName), lockTimeout)
	if err != nil {
		return nil, err
	}

	tasks, err := openCollection[domain.Task](filepath.Join(dir, TasksFileName), decodeTaskRecord)
	if err != nil {
		_ = releaseLock(lock)
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	users, err := openCollection[userRecord](filepath.Join(dir, UsersFileName), decodeUserRecord)
	if err != nil {
		_ = releaseLock(lock)
		return nil, fmt.Errorf("load users: %w", err)
	}

	logger.Info("file store opened",
		slog.Int("tasks", len(tasks.load())),
		slog.Int("users", len(users.load())))

	return &Store{
		dir:   dir,
		lock:  lock,
		tasks: &TaskStore{c: tasks},
		users: &UserStore{c: users},
	}, nil
}

// Tasks returns the task collection.
func (s *Store) Tasks() *TaskStore { return s.tasks }

// Users returns the user collection.
func (s *Store) Users() *UserStore { return s.users }

// Close releases the data directory lock. The collections must not be used
// afterwards.
func (s *Store) Close() error {
	err := releaseLock(s.lock)
	s.lock = nil
	return err
}
