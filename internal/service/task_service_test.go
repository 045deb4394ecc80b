package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/domain/filter"
	"github.com/phrazzld/voicetask/internal/mocks"
	"github.com/phrazzld/voicetask/internal/platform/blobstore"
	"github.com/phrazzld/voicetask/internal/platform/filestore"
	"github.com/phrazzld/voicetask/internal/service"
	"github.com/phrazzld/voicetask/internal/store"
)

var (
	alice = domain.Principal{ID: "u-alice", Username: "alice", Role: domain.RoleUser}
	bob   = domain.Principal{ID: "u-bob", Username: "bob", Role: domain.RoleUser}
	admin = domain.Principal{ID: "u-admin", Username: "root", Role: domain.RoleAdmin}
)

// fixture wires a TaskService to real stores in temporary directories.
type fixture struct {
	svc     service.TaskService
	files   *filestore.Store
	tasks   store.TaskStore
	blobs   *blobstore.Store
	dataDir string
	root    string
}

type fixtureOption func(*fixtureOptions)

type fixtureOptions struct {
	cfg      service.TaskServiceConfig
	maxBytes int64
	wrap     func(store.TaskStore) store.TaskStore
}

func withConfig(cfg service.TaskServiceConfig) fixtureOption {
	return func(o *fixtureOptions) { o.cfg = cfg }
}

func withMaxBytes(n int64) fixtureOption {
	return func(o *fixtureOptions) { o.maxBytes = n }
}

func withTaskStore(wrap func(store.TaskStore) store.TaskStore) fixtureOption {
	return func(o *fixtureOptions) { o.wrap = wrap }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	o := fixtureOptions{maxBytes: 1 << 20}
	for _, opt := range opts {
		opt(&o)
	}

	base := t.TempDir()
	f := &fixture{dataDir: filepath.Join(base, "data")}

	files, err := filestore.Open(context.Background(), f.dataDir, 0, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = files.Close() })
	f.files = files
	f.tasks = files.Tasks()
	if o.wrap != nil {
		f.tasks = o.wrap(f.tasks)
	}

	guard, err := blobstore.NewGuard(filepath.Join(base, "audio"))
	require.NoError(t, err)
	f.root = guard.Root()
	f.blobs = blobstore.New(guard, o.maxBytes)

	f.svc, err = service.NewTaskService(f.tasks, f.blobs, o.cfg, quietLogger())
	require.NoError(t, err)
	return f
}

func (f *fixture) create(t *testing.T, p domain.Principal, draft domain.TaskDraft) *domain.Task {
	t.Helper()
	if draft.Title == "" {
		draft.Title = "task"
	}
	task, err := f.svc.Create(context.Background(), p, draft)
	require.NoError(t, err)
	return task
}

func strPtr(s string) *string { return &s }

func statusPtr(s domain.TaskStatus) *domain.TaskStatus { return &s }

func TestNewTaskService_RequiresDependencies(t *testing.T) {
	guard, err := blobstore.NewGuard(t.TempDir())
	require.NoError(t, err)

	_, err = service.NewTaskService(nil, blobstore.New(guard, 1), service.TaskServiceConfig{}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	files, err := filestore.Open(context.Background(), t.TempDir(), 0, nil)
	require.NoError(t, err)
	defer files.Close()
	_, err = service.NewTaskService(files.Tasks(), nil, service.TaskServiceConfig{}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTaskService_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		f := newFixture(t)
		task, err := f.svc.Create(ctx, alice, domain.TaskDraft{Title: "record intro"})
		require.NoError(t, err)

		assert.NotEmpty(t, task.ID)
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.Equal(t, domain.DefaultPriority, task.Priority)
		assert.Equal(t, domain.DefaultCategory, task.Category)
		assert.Equal(t, "alice", task.Owner)
		assert.Equal(t, "u-alice", task.UserID)
		assert.Empty(t, task.Tags)
		assert.Empty(t, task.AudioFiles)

		stored, err := f.tasks.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, *task, *stored)
	})

	t.Run("explicit user id", func(t *testing.T) {
		f := newFixture(t)
		task := f.create(t, alice, domain.TaskDraft{UserID: "external-7"})
		assert.Equal(t, "external-7", task.UserID)
		assert.Equal(t, "alice", task.Owner)
	})

	t.Run("rejects invalid payloads before persisting", func(t *testing.T) {
		f := newFixture(t)
		tests := []domain.TaskDraft{
			{Title: ""},
			{Title: "   "},
			{Title: string(make([]rune, domain.MaxTitleLength+1))},
			{Title: "ok", Description: string(make([]rune, domain.MaxDescriptionLength+1))},
		}
		for i, draft := range tests {
			_, err := f.svc.Create(ctx, alice, draft)
			assert.ErrorIs(t, err, domain.ErrValidation, "case %d", i)
		}
		snap, err := f.tasks.Snapshot(ctx)
		require.NoError(t, err)
		assert.Empty(t, snap)
	})

	t.Run("ids are pairwise distinct", func(t *testing.T) {
		f := newFixture(t)
		const n = 64
		ids := make(chan string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				task, err := f.svc.Create(ctx, alice, domain.TaskDraft{Title: fmt.Sprintf("t%d", i)})
				if assert.NoError(t, err) {
					ids <- task.ID
				}
			}(i)
		}
		wg.Wait()
		close(ids)

		seen := make(map[string]struct{}, n)
		for id := range ids {
			_, dup := seen[id]
			assert.False(t, dup, "duplicate id %s", id)
			seen[id] = struct{}{}
		}
		assert.Len(t, seen, n)
	})
}

func TestTaskService_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	hidden := newFixture(t, withConfig(service.TaskServiceConfig{HideForbidden: true}))

	task := f.create(t, alice, domain.TaskDraft{})
	hiddenTask := hidden.create(t, alice, domain.TaskDraft{})

	tests := []struct {
		name      string
		fx        *fixture
		principal domain.Principal
		id        string
		wantErr   error
	}{
		{name: "owner", fx: f, principal: alice, id: task.ID},
		{name: "admin", fx: f, principal: admin, id: task.ID},
		{name: "same username, other id", fx: f, principal: domain.Principal{ID: "other", Username: "alice", Role: domain.RoleUser}, id: task.ID},
		{name: "other user", fx: f, principal: bob, id: task.ID, wantErr: service.ErrForbidden},
		{name: "missing", fx: f, principal: alice, id: "nope", wantErr: service.ErrTaskNotFound},
		{name: "other user hidden", fx: hidden, principal: bob, id: hiddenTask.ID, wantErr: service.ErrTaskNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.fx.svc.Get(ctx, tc.principal, tc.id)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.id, got.ID)
		})
	}
}

func TestTaskService_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("partial update preserves untouched fields", func(t *testing.T) {
		f := newFixture(t)
		task := f.create(t, alice, domain.TaskDraft{Title: "mix", Priority: "high", Tags: []string{"a"}})

		updated, err := f.svc.Update(ctx, alice, task.ID, domain.TaskPatch{Status: statusPtr(domain.TaskStatusApproved)})
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusApproved, updated.Status)
		assert.Equal(t, "high", updated.Priority)
		assert.Equal(t, "mix", updated.Title)
		assert.Equal(t, []string{"a"}, updated.Tags)
		assert.Equal(t, task.CreatedAt, updated.CreatedAt)

		stored, err := f.tasks.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, *updated, *stored)
	})

	t.Run("any status may follow any other", func(t *testing.T) {
		f := newFixture(t)
		task := f.create(t, alice, domain.TaskDraft{})
		for _, s := range []domain.TaskStatus{domain.TaskStatusArchived, domain.TaskStatusPending, domain.TaskStatusCompleted} {
			updated, err := f.svc.Update(ctx, alice, task.ID, domain.TaskPatch{Status: statusPtr(s)})
			require.NoError(t, err)
			assert.Equal(t, s, updated.Status)
		}
	})

	t.Run("invalid patch leaves task unchanged", func(t *testing.T) {
		f := newFixture(t)
		task := f.create(t, alice, domain.TaskDraft{})

		_, err := f.svc.Update(ctx, alice, task.ID, domain.TaskPatch{
			Title:  strPtr("renamed"),
			Status: statusPtr("done-ish"),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)

		stored, err := f.tasks.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, *task, *stored)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		f := newFixture(t)
		task := f.create(t, alice, domain.TaskDraft{})

		_, err := f.svc.Update(ctx, bob, task.ID, domain.TaskPatch{Title: strPtr("mine now")})
		assert.ErrorIs(t, err, service.ErrForbidden)

		stored, err := f.tasks.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.Title, stored.Title)
	})

	t.Run("admin may update", func(t *testing.T) {
		f := newFixture(t)
		task := f.create(t, alice, domain.TaskDraft{})
		updated, err := f.svc.Update(ctx, admin, task.ID, domain.TaskPatch{Category: strPtr("ops")})
		require.NoError(t, err)
		assert.Equal(t, "ops", updated.Category)
		assert.Equal(t, "alice", updated.Owner)
	})

	t.Run("missing task", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Update(ctx, alice, "nope", domain.TaskPatch{Title: strPtr("x")})
		assert.ErrorIs(t, err, service.ErrTaskNotFound)
	})

	t.Run("empty patch returns current task", func(t *testing.T) {
		f := newFixture(t)
		task := f.create(t, alice, domain.TaskDraft{})
		got, err := f.svc.Update(ctx, alice, task.ID, domain.TaskPatch{})
		require.NoError(t, err)
		assert.Equal(t, *task, *got)

		_, err = f.svc.Update(ctx, bob, task.ID, domain.TaskPatch{})
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("persistence failure surfaces", func(t *testing.T) {
		f := newFixture(t, withTaskStore(failingMutations))
		task := f.create(t, alice, domain.TaskDraft{})

		_, err := f.svc.Update(ctx, alice, task.ID, domain.TaskPatch{Title: strPtr("x")})
		assert.ErrorIs(t, err, store.ErrPersistence)
		var serviceErr *service.TaskServiceError
		require.ErrorAs(t, err, &serviceErr)
		assert.Equal(t, "update_task", serviceErr.Operation)
	})
}

func TestTaskService_Update_ConcurrentDistinctFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	task := f.create(t, alice, domain.TaskDraft{Title: "orig"})

	tags := []string{"x", "y"}
	patches := []domain.TaskPatch{
		{Title: strPtr("new title")},
		{Description: strPtr("new description")},
		{Priority: strPtr("low")},
		{Status: statusPtr(domain.TaskStatusInProgress)},
		{Category: strPtr("studio")},
		{Tags: &tags},
	}

	var wg sync.WaitGroup
	for _, p := range patches {
		wg.Add(1)
		go func(p domain.TaskPatch) {
			defer wg.Done()
			_, err := f.svc.Update(ctx, alice, task.ID, p)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	got, err := f.svc.Get(ctx, alice, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "new title", got.Title)
	assert.Equal(t, "new description", got.Description)
	assert.Equal(t, "low", got.Priority)
	assert.Equal(t, domain.TaskStatusInProgress, got.Status)
	assert.Equal(t, "studio", got.Category)
	assert.Equal(t, []string{"x", "y"}, got.Tags)
}

func TestTaskService_ListAndSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	a1 := f.create(t, alice, domain.TaskDraft{Title: "Intro take", Tags: []string{"a", "b"}, Priority: "high"})
	b1 := f.create(t, bob, domain.TaskDraft{Title: "bob one", Tags: []string{"a", "b"}})
	a2 := f.create(t, alice, domain.TaskDraft{Title: "outro", Tags: []string{"a"}, Description: "final TAKE"})
	a3 := f.create(t, alice, domain.TaskDraft{Title: "bridge", Category: "music"})

	ids := func(tasks []domain.Task) []string {
		out := make([]string, 0, len(tasks))
		for _, task := range tasks {
			out = append(out, task.ID)
		}
		return out
	}

	t.Run("ownership isolation", func(t *testing.T) {
		got, err := f.svc.List(ctx, bob, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{b1.ID}, ids(got))

		got, err = f.svc.Search(ctx, bob, filter.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{b1.ID}, ids(got))
	})

	t.Run("admin sees everything in insertion order", func(t *testing.T) {
		got, err := f.svc.List(ctx, admin, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{a1.ID, b1.ID, a2.ID, a3.ID}, ids(got))
	})

	t.Run("pagination", func(t *testing.T) {
		got, err := f.svc.List(ctx, alice, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{a2.ID}, ids(got))

		got, err = f.svc.List(ctx, alice, 2, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{a3.ID}, ids(got))

		got, err = f.svc.List(ctx, alice, 10, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("tag conjunction", func(t *testing.T) {
		got, err := f.svc.Search(ctx, alice, filter.Filter{Tags: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, []string{a1.ID}, ids(got), "a task tagged only a is excluded")
	})

	t.Run("keyword is case-insensitive over title and description", func(t *testing.T) {
		got, err := f.svc.Search(ctx, alice, filter.Filter{Keyword: "take"})
		require.NoError(t, err)
		assert.Equal(t, []string{a1.ID, a2.ID}, ids(got))
	})

	t.Run("filters combine", func(t *testing.T) {
		got, err := f.svc.Search(ctx, admin, filter.Filter{Tags: []string{"a"}, Owner: "alice", Priority: "high"})
		require.NoError(t, err)
		assert.Equal(t, []string{a1.ID}, ids(got))
	})

	t.Run("created bounds", func(t *testing.T) {
		after := domain.FormatTimestamp(a2.CreatedAt)
		got, err := f.svc.Search(ctx, alice, filter.Filter{CreatedAfter: after})
		require.NoError(t, err)
		assert.Equal(t, []string{a2.ID, a3.ID}, ids(got))

		future := domain.FormatTimestamp(time.Now().Add(time.Hour))
		got, err = f.svc.Search(ctx, alice, filter.Filter{CreatedAfter: future})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestTaskService_RoundTripAcrossRestart(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	guard, err := blobstore.NewGuard(filepath.Join(base, "audio"))
	require.NoError(t, err)
	blobs := blobstore.New(guard, 1<<20)

	files, err := filestore.Open(ctx, dataDir, 0, nil)
	require.NoError(t, err)
	svc, err := service.NewTaskService(files.Tasks(), blobs, service.TaskServiceConfig{}, nil)
	require.NoError(t, err)

	created, err := svc.Create(ctx, alice, domain.TaskDraft{
		Title:       "persist me",
		Description: "across restarts",
		Priority:    "high",
		Category:    "demo",
		Tags:        []string{"x", "y"},
	})
	require.NoError(t, err)
	require.NoError(t, files.Close())

	reopened, err := filestore.Open(ctx, dataDir, 0, nil)
	require.NoError(t, err)
	defer reopened.Close()
	svc, err = service.NewTaskService(reopened.Tasks(), blobs, service.TaskServiceConfig{}, nil)
	require.NoError(t, err)

	got, err := svc.Get(ctx, alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *got)
}

// failingMutations wraps next so that every mutation runs fn and then fails
// as a durable write would.
func failingMutations(next store.TaskStore) store.TaskStore {
	return &mocks.MockTaskStore{
		Next: next,
		MutateFn: func(ctx context.Context, id string, fn store.MutateFn) (*domain.Task, error) {
			current, err := next.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if _, err := fn(*current); err != nil {
				return nil, err
			}
			return nil, store.NewPersistenceError("task", "mutate", errors.New("disk full"))
		},
	}
}
