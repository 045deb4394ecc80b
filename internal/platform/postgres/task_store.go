package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/platform/logger"
	"github.com/phrazzld/voicetask/internal/redact"
	"github.com/phrazzld/voicetask/internal/store"
)

// taskCollectionLockKey is the advisory lock id shared by every writer of
// the tasks table.
const taskCollectionLockKey int64 = 0x766f_7461_736b // "votask"

const (
	selectAllTasksSQL  = `SELECT doc FROM tasks ORDER BY seq`
	selectTaskSQL      = `SELECT doc FROM tasks WHERE id = $1`
	lockTasksSQL       = `SELECT pg_advisory_xact_lock($1)`
	selectForUpdateSQL = `SELECT doc FROM tasks WHERE id = $1 FOR UPDATE`
	insertTaskSQL      = `INSERT INTO tasks (id, doc) VALUES ($1, $2)`
	updateTaskSQL      = `UPDATE tasks SET doc = $2, updated_at = NOW() WHERE id = $1`
)

// PostgresTaskStore implements store.TaskStore using PostgreSQL.
type PostgresTaskStore struct {
	db *sql.DB
}

// NewPostgresTaskStore creates a task store that uses db. The caller owns db.
func NewPostgresTaskStore(db *sql.DB) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

func decodeTask(raw []byte) (domain.Task, error) {
	var task domain.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return domain.Task{}, fmt.Errorf("decode task document: %w", err)
	}
	task.Normalize()
	return task, nil
}

// Snapshot implements store.TaskStore.
func (s *PostgresTaskStore) Snapshot(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, selectAllTasksSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := []domain.Task{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task, err := decodeTask(raw)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// Get implements store.TaskStore.
func (s *PostgresTaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, selectTaskSQL, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", MapError(err))
	}
	task, err := decodeTask(raw)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Insert implements store.TaskStore.
func (s *PostgresTaskStore) Insert(ctx context.Context, task *domain.Task) error {
	rec := task.Clone()
	rec.Normalize()
	doc, err := json.Marshal(rec)
	if err != nil {
		return store.NewStoreError("task", "insert", "failed to encode task", err)
	}

	_, err = s.db.ExecContext(ctx, insertTaskSQL, task.ID, doc)
	if IsUniqueViolation(err) {
		return store.ErrTaskExists
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to insert task",
			"task_id", task.ID,
			"error", redact.Error(err))
		return store.NewPersistenceError("task", "insert", MapError(err))
	}
	return nil
}

// Mutate implements store.TaskStore.
func (s *PostgresTaskStore) Mutate(ctx context.Context, id string, fn store.MutateFn) (*domain.Task, error) {
	var (
		result  domain.Task
		applied bool
	)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, lockTasksSQL, taskCollectionLockKey); err != nil {
			return store.NewPersistenceError("task", "mutate", MapError(err))
		}

		var raw []byte
		err := tx.QueryRowContext(ctx, selectForUpdateSQL, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrTaskNotFound
		}
		if err != nil {
			return store.NewPersistenceError("task", "mutate", MapError(err))
		}

		current, err := decodeTask(raw)
		if err != nil {
			return err
		}
		updated, err := fn(current)
		if err != nil {
			return err
		}
		updated.ID = id
		updated.Normalize()

		doc, err := json.Marshal(updated)
		if err != nil {
			return store.NewStoreError("task", "mutate", "failed to encode task", err)
		}
		if _, err := tx.ExecContext(ctx, updateTaskSQL, id, doc); err != nil {
			return store.NewPersistenceError("task", "mutate", MapError(err))
		}

		result = updated
		applied = true
		return nil
	})
	if err != nil {
		if applied {
			// fn and the update succeeded, so the commit failed.
			return nil, store.NewPersistenceError("task", "mutate", err)
		}
		return nil, err
	}
	return &result, nil
}
