package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/store"
)

var alice = domain.Principal{ID: "u-alice", Username: "alice", Role: domain.RoleUser}

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(context.Background(), dir, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTask(t *testing.T, title string) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(alice, domain.TaskDraft{Title: title, Priority: "high", Tags: []string{"a"}})
	require.NoError(t, err)
	return task
}

func TestTaskStore_InsertGetSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tasks := openTestStore(t, t.TempDir()).Tasks()

	first := newTask(t, "first")
	second := newTask(t, "second")
	require.NoError(t, tasks.Insert(ctx, first))
	require.NoError(t, tasks.Insert(ctx, second))

	got, err := tasks.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, *second, *got)

	snap, err := tasks.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, first.ID, snap[0].ID, "snapshot keeps insertion order")
	assert.Equal(t, second.ID, snap[1].ID)
}

func TestTaskStore_InsertDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tasks := openTestStore(t, t.TempDir()).Tasks()

	task := newTask(t, "dup")
	require.NoError(t, tasks.Insert(ctx, task))

	err := tasks.Insert(ctx, task)
	assert.ErrorIs(t, err, store.ErrTaskExists)
	assert.True(t, store.IsDuplicateError(err))

	snap, err := tasks.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, 1)
}

func TestTaskStore_GetMissing(t *testing.T) {
	t.Parallel()
	_, err := openTestStore(t, t.TempDir()).Tasks().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_RoundTripAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	task := newTask(t, "persisted")
	task.AudioFiles = append(task.AudioFiles, domain.AudioFile{
		ID:           "f1",
		UserFilename: "note.wav",
		InternalPath: "/srv/audio/x.wav",
		ContentType:  "audio/wav",
		Size:         42,
		UploadedAt:   domain.Now(),
	})

	s, err := Open(ctx, dir, 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Tasks().Insert(ctx, task))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, dir)
	got, err := reopened.Tasks().Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, *task, *got)
}

func TestTaskStore_RoundTripEmptyCollections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	task, err := domain.NewTask(alice, domain.TaskDraft{Title: "no tags"})
	require.NoError(t, err)

	s, err := Open(ctx, dir, 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Tasks().Insert(ctx, task))
	_, err = s.Tasks().Mutate(ctx, task.ID, func(cur domain.Task) (domain.Task, error) {
		cur.Tags = nil
		cur.AudioFiles = nil
		return cur, nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, TasksFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")

	got, err := openTestStore(t, dir).Tasks().Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, *task, *got)
	assert.NotNil(t, got.Tags)
	assert.NotNil(t, got.AudioFiles)
}

func TestOpen_LegacyRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	tasksJSON := `[
  {
    "id": "t-1",
    "title": "call back",
    "description": "",
    "priority": "high",
    "owner": "alice",
    "category": null,
    "tags": null,
    "audio_file": "recordings/t-1.wav",
    "created_at": "2024-05-01T10:00:00.123456",
    "status": "approved"
  },
  {
    "id": "t-2",
    "title": "plain",
    "description": "d",
    "priority": "low",
    "owner": "bob",
    "category": "work",
    "tags": ["a"],
    "audio_file": null,
    "created_at": "2024-05-02T09:30:00"
  }
]`
	usersJSON := `[{"username": "alice", "password_hash": "$2b$12$legacy", "role": "admin"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, TasksFileName), []byte(tasksJSON), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, UsersFileName), []byte(usersJSON), 0o600))

	s, err := Open(ctx, dir, 0, nil)
	require.NoError(t, err)

	snap, err := s.Tasks().Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 2)

	first := snap[0]
	assert.Equal(t, domain.TaskStatusApproved, first.Status)
	assert.Equal(t, domain.DefaultCategory, first.Category)
	assert.Equal(t, []string{}, first.Tags)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC), first.CreatedAt)
	require.Len(t, first.AudioFiles, 1)
	legacyFile := first.AudioFiles[0]
	assert.NotEmpty(t, legacyFile.ID)
	assert.Equal(t, "t-1.wav", legacyFile.UserFilename)
	assert.Equal(t, "recordings/t-1.wav", legacyFile.InternalPath)

	second := snap[1]
	assert.Equal(t, domain.TaskStatusPending, second.Status)
	assert.Equal(t, "work", second.Category)
	assert.Empty(t, second.AudioFiles)
	assert.Equal(t, "2024-05-02T09:30:00.000000Z", domain.FormatTimestamp(second.CreatedAt))

	user, err := s.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "$2b$12$legacy", user.HashedPassword)
	assert.Equal(t, domain.RoleAdmin, user.Role)

	// A commit rewrites the file in the current layout; ids stay stable.
	_, err = s.Tasks().Mutate(ctx, "t-2", func(cur domain.Task) (domain.Task, error) { return cur, nil })
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, TasksFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"audio_file"`)

	reopened := openTestStore(t, dir)
	again, err := reopened.Tasks().Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, legacyFile, again.AudioFiles[0])
	sameUser, err := reopened.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, sameUser.ID, "generated user id must not change between loads")
}

func TestOpen_TaskWithoutIDIsRejected(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TasksFileName), []byte(`[{"title":"x"}]`), 0o600))

	_, err := Open(context.Background(), dir, 0, nil)
	require.Error(t, err)
}

func TestTaskStore_MutateMissingDoesNotCallFn(t *testing.T) {
	t.Parallel()
	called := false
	_, err := openTestStore(t, t.TempDir()).Tasks().Mutate(context.Background(), "missing",
		func(cur domain.Task) (domain.Task, error) {
			called = true
			return cur, nil
		})
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.False(t, called)
}

func TestTaskStore_MutateFnErrorLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tasks := openTestStore(t, t.TempDir()).Tasks()
	task := newTask(t, "unchanged")
	require.NoError(t, tasks.Insert(ctx, task))

	sentinel := errors.New("rejected")
	_, err := tasks.Mutate(ctx, task.ID, func(cur domain.Task) (domain.Task, error) {
		cur.Title = "changed"
		return cur, sentinel
	})
	assert.Same(t, sentinel, err)

	got, err := tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "unchanged", got.Title)
}

func TestTaskStore_MutateReceivesPrivateCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tasks := openTestStore(t, t.TempDir()).Tasks()
	task := newTask(t, "copy")
	require.NoError(t, tasks.Insert(ctx, task))

	_, err := tasks.Mutate(ctx, task.ID, func(cur domain.Task) (domain.Task, error) {
		cur.Tags[0] = "mutated-in-place"
		return cur, errors.New("abort")
	})
	require.Error(t, err)

	got, err := tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Tags)
}

func TestTaskStore_MutatePersistenceFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := openTestStore(t, dir)
	task := newTask(t, "before")
	require.NoError(t, s.Tasks().Insert(ctx, task))

	before, err := os.ReadFile(filepath.Join(dir, TasksFileName))
	require.NoError(t, err)

	s.tasks.c.write = func(string, []byte, os.FileMode) error { return errors.New("disk full") }

	_, err = s.Tasks().Mutate(ctx, task.ID, func(cur domain.Task) (domain.Task, error) {
		cur.Title = "after"
		return cur, nil
	})
	assert.ErrorIs(t, err, store.ErrPersistence)

	got, err := s.Tasks().Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "before", got.Title, "in-memory view must not advance")

	after, err := os.ReadFile(filepath.Join(dir, TasksFileName))
	require.NoError(t, err)
	assert.Equal(t, before, after, "durable state must be intact")

	err = s.Tasks().Insert(ctx, newTask(t, "never"))
	assert.ErrorIs(t, err, store.ErrPersistence)
}

func TestTaskStore_ConcurrentMutationsAreSerialized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := openTestStore(t, dir)
	task := newTask(t, "contended")
	require.NoError(t, s.Tasks().Insert(ctx, task))

	const workers = 32
	var wg sync.WaitGroup
	// One result per writer and per reader.
	errs := make(chan error, 2*workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Tasks().Mutate(ctx, task.ID, func(cur domain.Task) (domain.Task, error) {
				cur.Tags = append(cur.Tags, fmt.Sprintf("w%d", i))
				return cur, nil
			})
			errs <- err
		}(i)
	}

	// Readers run alongside the writers and must always see a whole task.
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := s.Tasks().Snapshot(ctx)
			if err == nil && len(snap) != 1 {
				err = fmt.Errorf("snapshot has %d tasks", len(snap))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Tasks().Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tags, workers+1)
	for i := 0; i < workers; i++ {
		assert.Contains(t, got.Tags, fmt.Sprintf("w%d", i))
	}
}

func TestTaskStore_SnapshotIsIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tasks := openTestStore(t, t.TempDir()).Tasks()
	require.NoError(t, tasks.Insert(ctx, newTask(t, "isolated")))

	snap, err := tasks.Snapshot(ctx)
	require.NoError(t, err)
	snap[0].Title = "scribbled"
	snap[0].Tags[0] = "scribbled"

	again, err := tasks.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "isolated", again[0].Title)
	assert.Equal(t, []string{"a"}, again[0].Tags)
}

func TestOpen_CorruptCollection(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, TasksFileName)
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":`), 0o600))

	_, err := Open(context.Background(), dir, 0, nil)
	require.Error(t, err)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, `[{"id":`, string(data), "damaged file must not be overwritten")
}

func TestOpen_EmptyFileIsEmptyCollection(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TasksFileName), nil, 0o600))

	snap, err := openTestStore(t, dir).Tasks().Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestTaskStore_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tasks := openTestStore(t, t.TempDir()).Tasks()

	_, err := tasks.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, tasks.Insert(ctx, newTask(t, "late")), context.Canceled)
}
