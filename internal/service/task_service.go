package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/domain/access"
	"github.com/phrazzld/voicetask/internal/domain/filter"
	"github.com/phrazzld/voicetask/internal/platform/blobstore"
	"github.com/phrazzld/voicetask/internal/platform/logger"
	"github.com/phrazzld/voicetask/internal/redact"
	"github.com/phrazzld/voicetask/internal/store"
)

// TaskService defines the business operations on tasks and their
// attachments. Every method receives the already authenticated principal.
type TaskService interface {
	// Create builds a pending task owned by the principal and persists it.
	Create(ctx context.Context, principal domain.Principal, draft domain.TaskDraft) (*domain.Task, error)

	// Get returns a single task the principal may read.
	Get(ctx context.Context, principal domain.Principal, taskID string) (*domain.Task, error)

	// Update applies only the fields present in patch, atomically.
	Update(ctx context.Context, principal domain.Principal, taskID string, patch domain.TaskPatch) (*domain.Task, error)

	// List returns the principal's visible tasks, paginated.
	List(ctx context.Context, principal domain.Principal, skip, limit int) ([]domain.Task, error)

	// Search returns the principal's visible tasks matching every set criterion.
	Search(ctx context.Context, principal domain.Principal, criteria filter.Filter) ([]domain.Task, error)

	// Attach stores a batch of uploads and records them on the task in one
	// mutation. Returns ErrPartialFailure with the result when some uploads
	// were rejected, and ErrPayloadTooLarge when all of them were.
	Attach(ctx context.Context, principal domain.Principal, taskID string, uploads []Upload) (*AttachResult, error)

	// RenameFile changes an attachment's display name.
	RenameFile(ctx context.Context, principal domain.Principal, taskID, fileID, displayName string) (*domain.AudioFile, error)

	// DeleteFiles removes attachments and their blobs in one mutation.
	// Returns ErrPartialFailure with the result when some ids could not be
	// deleted cleanly.
	DeleteFiles(ctx context.Context, principal domain.Principal, taskID string, fileIDs []string) (*DeleteFilesResult, error)

	// Fetch locates an attachment by id, or failing that by display name.
	Fetch(ctx context.Context, principal domain.Principal, taskID, identifier string) (*Download, error)

	// SweepOrphans removes blobs no task references that are older than
	// the configured grace period. It returns how many were removed.
	SweepOrphans(ctx context.Context) (int, error)
}

// MaxDisplayNameLength bounds attachment display names, in runes.
const MaxDisplayNameLength = 255

// DefaultOrphanGracePeriod protects blobs written by uploads that have not
// committed yet.
const DefaultOrphanGracePeriod = 10 * time.Minute

// TaskServiceConfig holds the policy switches for a TaskService.
type TaskServiceConfig struct {
	// HideForbidden reports tasks the caller may not access as missing
	// instead of forbidden.
	HideForbidden bool

	// OrphanGracePeriod is the minimum age of an unreferenced blob before
	// SweepOrphans removes it. Zero selects DefaultOrphanGracePeriod.
	OrphanGracePeriod time.Duration

	// UploadConcurrency bounds parallel blob writes per batch. Zero means
	// one writer per upload.
	UploadConcurrency int
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks  store.TaskStore
	blobs  *blobstore.Store
	cfg    TaskServiceConfig
	logger *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	blobs *blobstore.Store,
	cfg TaskServiceConfig,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}
	if blobs == nil {
		return nil, domain.NewValidationError("blobs", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OrphanGracePeriod <= 0 {
		cfg.OrphanGracePeriod = DefaultOrphanGracePeriod
	}

	return &taskServiceImpl{
		tasks:  tasks,
		blobs:  blobs,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "task_service")),
	}, nil
}

// Create implements TaskService.Create
func (s *taskServiceImpl) Create(
	ctx context.Context,
	principal domain.Principal,
	draft domain.TaskDraft,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(principal, draft)
	if err != nil {
		log.Debug("rejected invalid task", slog.String("error", err.Error()))
		return nil, err
	}

	if err := s.tasks.Insert(ctx, task); err != nil {
		log.Error("failed to save task",
			slog.String("error", redact.Error(err)),
			slog.String("task_id", task.ID))
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("owner", task.Owner))
	return task, nil
}

// Get implements TaskService.Get
func (s *taskServiceImpl) Get(
	ctx context.Context,
	principal domain.Principal,
	taskID string,
) (*domain.Task, error) {
	return s.loadReadable(ctx, principal, taskID, "get_task")
}

// Update implements TaskService.Update
// Validation runs before the mutation scope is entered, so an invalid patch
// never touches the store.
func (s *taskServiceImpl) Update(
	ctx context.Context,
	principal domain.Principal,
	taskID string,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return s.loadReadable(ctx, principal, taskID, "update_task")
	}

	updated, err := s.tasks.Mutate(ctx, taskID, func(current domain.Task) (domain.Task, error) {
		if !access.CanWrite(principal, &current) {
			return current, s.denied()
		}
		return patch.Apply(current)
	})
	if err != nil {
		return nil, s.mutationError(log, "update_task", taskID, err)
	}

	log.Info("task updated",
		slog.String("task_id", taskID),
		slog.Any("fields", patch.Fields()))
	return updated, nil
}

// List implements TaskService.List
func (s *taskServiceImpl) List(
	ctx context.Context,
	principal domain.Principal,
	skip, limit int,
) ([]domain.Task, error) {
	visible, err := s.visible(ctx, principal, "list_tasks")
	if err != nil {
		return nil, err
	}
	return filter.Paginate(visible, skip, limit), nil
}

// Search implements TaskService.Search
func (s *taskServiceImpl) Search(
	ctx context.Context,
	principal domain.Principal,
	criteria filter.Filter,
) ([]domain.Task, error) {
	visible, err := s.visible(ctx, principal, "search_tasks")
	if err != nil {
		return nil, err
	}
	return filter.Apply(visible, criteria), nil
}

func (s *taskServiceImpl) visible(ctx context.Context, principal domain.Principal, op string) ([]domain.Task, error) {
	all, err := s.tasks.Snapshot(ctx)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to read tasks",
			slog.String("error", redact.Error(err)))
		return nil, NewTaskServiceError(op, "failed to read tasks", err)
	}
	return access.ScopeForListing(principal, all), nil
}

// loadReadable fetches a task and applies the read policy.
func (s *taskServiceImpl) loadReadable(
	ctx context.Context,
	principal domain.Principal,
	taskID, op string,
) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load task",
			slog.String("error", redact.Error(err)),
			slog.String("task_id", taskID))
		return nil, NewTaskServiceError(op, "failed to load task", err)
	}
	if !access.CanRead(principal, task) {
		return nil, s.denied()
	}
	return task, nil
}

// denied is the error for a task that exists but is not accessible.
func (s *taskServiceImpl) denied() error {
	if s.cfg.HideForbidden {
		return ErrTaskNotFound
	}
	return ErrForbidden
}

// mutationError translates a Mutate failure. Errors raised inside the
// mutation function pass through unchanged.
func (s *taskServiceImpl) mutationError(log *slog.Logger, op, taskID string, err error) error {
	switch {
	case store.IsNotFoundError(err):
		return ErrTaskNotFound
	case isServiceSentinel(err), errors.Is(err, domain.ErrValidation):
		return err
	}
	log.Error("task mutation failed",
		slog.String("operation", op),
		slog.String("task_id", taskID),
		slog.String("error", redact.Error(err)))
	return NewTaskServiceError(op, "failed to update task", err)
}
