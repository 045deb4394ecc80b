package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/domain/access"
	"github.com/phrazzld/voicetask/internal/platform/blobstore"
	"github.com/phrazzld/voicetask/internal/platform/logger"
	"github.com/phrazzld/voicetask/internal/redact"
)

// fallbackDisplayName names an upload that arrived without any filename.
const fallbackDisplayName = "recording"

// sweepConcurrency bounds parallel removals during an orphan sweep.
const sweepConcurrency = 4

// Upload is one incoming file of an attach batch.
type Upload struct {
	// Filename is the client-side file name. Only its extension is used
	// when naming the stored blob.
	Filename string
	// DisplayName overrides Filename as the attachment's user_filename.
	DisplayName string
	// Size is the declared size in bytes, or a negative value if unknown.
	Size    int64
	Content io.Reader
}

func (u Upload) displayName() string {
	name := strings.TrimSpace(u.DisplayName)
	if name == "" {
		name = strings.TrimSpace(u.Filename)
	}
	if name == "" {
		return fallbackDisplayName
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		name = string([]rune(name)[:MaxDisplayNameLength])
	}
	return name
}

// RejectedUpload describes an upload that was not stored.
type RejectedUpload struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// AttachResult reports the outcome of an attach batch.
type AttachResult struct {
	Task     *domain.Task       `json:"task,omitempty"`
	Added    []domain.AudioFile `json:"added"`
	Rejected []RejectedUpload   `json:"rejected"`
}

// FailedDelete describes an attachment whose blob could not be removed.
// The attachment stays on the task.
type FailedDelete struct {
	FileID string `json:"file_id"`
	Reason string `json:"reason"`
}

// DeleteFilesResult reports the outcome of a delete batch. FileNotFound
// lists ids that were removed from the task although their blob was
// already absent; they also appear in Deleted.
type DeleteFilesResult struct {
	Task         *domain.Task   `json:"-"`
	Deleted      []string       `json:"deleted"`
	NotFound     []string       `json:"not_found"`
	FileNotFound []string       `json:"file_not_found"`
	Failed       []FailedDelete `json:"failed,omitempty"`
}

func newDeleteFilesResult() *DeleteFilesResult {
	return &DeleteFilesResult{
		Deleted:      []string{},
		NotFound:     []string{},
		FileNotFound: []string{},
	}
}

func (r *DeleteFilesResult) partial() bool {
	return len(r.NotFound) > 0 || len(r.FileNotFound) > 0 || len(r.Failed) > 0
}

// Download locates an attachment's content on disk.
type Download struct {
	Path        string
	DisplayName string
	ContentType string
	Size        int64
}

// errNothingDeleted aborts a delete mutation that would not change the task.
var errNothingDeleted = errors.New("no attachment deleted")

// Attach implements TaskService.Attach
func (s *taskServiceImpl) Attach(
	ctx context.Context,
	principal domain.Principal,
	taskID string,
	uploads []Upload,
) (*AttachResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(uploads) == 0 {
		return nil, domain.NewValidationError("files", "at least one file is required", nil)
	}

	// Check access before any bytes reach the disk.
	task, err := s.loadReadable(ctx, principal, taskID, "attach_files")
	if err != nil {
		return nil, err
	}
	if !access.CanWrite(principal, task) {
		return nil, s.denied()
	}

	stored := make([]*domain.AudioFile, len(uploads))
	rejected := make([]*RejectedUpload, len(uploads))
	maxBytes := s.blobs.MaxBytes()

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.UploadConcurrency > 0 {
		g.SetLimit(s.cfg.UploadConcurrency)
	}
	for i := range uploads {
		up := uploads[i]
		name := up.displayName()
		g.Go(func() error {
			if up.Size > maxBytes {
				rejected[i] = &RejectedUpload{Filename: name, Reason: ErrPayloadTooLarge.Error()}
				return nil
			}
			ext := up.Filename
			if ext == "" {
				ext = name
			}
			blob, err := s.blobs.Write(gctx, taskID, ext, up.Content)
			if errors.Is(err, blobstore.ErrTooLarge) {
				rejected[i] = &RejectedUpload{Filename: name, Reason: ErrPayloadTooLarge.Error()}
				return nil
			}
			if err != nil {
				return err
			}
			stored[i] = &domain.AudioFile{
				ID:           uuid.NewString(),
				UserFilename: name,
				InternalPath: blob.Path,
				ContentType:  blob.ContentType,
				Size:         blob.Size,
				UploadedAt:   domain.Now(),
			}
			return nil
		})
	}

	result := &AttachResult{Added: []domain.AudioFile{}, Rejected: []RejectedUpload{}}
	waitErr := g.Wait()
	for i := range uploads {
		if stored[i] != nil {
			result.Added = append(result.Added, *stored[i])
		}
		if rejected[i] != nil {
			result.Rejected = append(result.Rejected, *rejected[i])
		}
	}
	if waitErr != nil {
		s.discardBlobs(log, result.Added)
		log.Error("failed to store uploads",
			slog.String("task_id", taskID),
			slog.String("error", redact.Error(waitErr)))
		return nil, NewTaskServiceError("attach_files", "failed to store upload", waitErr)
	}
	if len(result.Added) == 0 {
		log.Debug("every upload exceeded the size limit",
			slog.String("task_id", taskID),
			slog.Int("rejected", len(result.Rejected)))
		return result, ErrPayloadTooLarge
	}

	updated, err := s.tasks.Mutate(ctx, taskID, func(current domain.Task) (domain.Task, error) {
		if !access.CanWrite(principal, &current) {
			return current, s.denied()
		}
		current.AudioFiles = append(current.AudioFiles, result.Added...)
		return current, nil
	})
	if err != nil {
		s.discardBlobs(log, result.Added)
		return nil, s.mutationError(log, "attach_files", taskID, err)
	}
	result.Task = updated

	log.Info("attachments added",
		slog.String("task_id", taskID),
		slog.Int("added", len(result.Added)),
		slog.Int("rejected", len(result.Rejected)))

	if len(result.Rejected) > 0 {
		return result, ErrPartialFailure
	}
	return result, nil
}

// discardBlobs removes blobs written for a batch that did not commit.
func (s *taskServiceImpl) discardBlobs(log *slog.Logger, files []domain.AudioFile) {
	for _, f := range files {
		if err := s.blobs.Remove(f.InternalPath); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			log.Warn("failed to discard uncommitted blob",
				slog.String("file_id", f.ID),
				slog.String("error", redact.Error(err)))
		}
	}
}

// RenameFile implements TaskService.RenameFile
func (s *taskServiceImpl) RenameFile(
	ctx context.Context,
	principal domain.Principal,
	taskID, fileID, displayName string,
) (*domain.AudioFile, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, domain.NewValidationError("user_filename", "cannot be empty", nil)
	}
	if utf8.RuneCountInString(displayName) > MaxDisplayNameLength {
		return nil, domain.NewValidationError("user_filename", "must be at most 255 characters", nil)
	}

	updated, err := s.tasks.Mutate(ctx, taskID, func(current domain.Task) (domain.Task, error) {
		if !access.CanWrite(principal, &current) {
			return current, s.denied()
		}
		idx := current.FindAudioFile(fileID)
		if idx < 0 {
			return current, ErrAttachmentNotFound
		}
		current.AudioFiles[idx].UserFilename = displayName
		return current, nil
	})
	if err != nil {
		return nil, s.mutationError(log, "rename_file", taskID, err)
	}

	idx := updated.FindAudioFile(fileID)
	if idx < 0 {
		return nil, ErrAttachmentNotFound
	}
	file := updated.AudioFiles[idx]

	log.Info("attachment renamed",
		slog.String("task_id", taskID),
		slog.String("file_id", fileID))
	return &file, nil
}

// DeleteFiles implements TaskService.DeleteFiles
// Blobs are removed inside the mutation scope so no concurrent batch sees
// an entry whose blob is already gone.
func (s *taskServiceImpl) DeleteFiles(
	ctx context.Context,
	principal domain.Principal,
	taskID string,
	fileIDs []string,
) (*DeleteFilesResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ids := dedupe(fileIDs)
	if len(ids) == 0 {
		return nil, domain.NewValidationError("file_ids", "at least one file id is required", nil)
	}

	var result *DeleteFilesResult
	var failure error
	computed := false

	updated, err := s.tasks.Mutate(ctx, taskID, func(current domain.Task) (domain.Task, error) {
		result = newDeleteFilesResult()
		failure = nil
		if !access.CanWrite(principal, &current) {
			return current, s.denied()
		}

		removed := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			idx := current.FindAudioFile(id)
			if idx < 0 {
				result.NotFound = append(result.NotFound, id)
				continue
			}
			err := s.blobs.Remove(current.AudioFiles[idx].InternalPath)
			switch {
			case err == nil:
				result.Deleted = append(result.Deleted, id)
				removed[id] = struct{}{}
			case errors.Is(err, blobstore.ErrNotFound):
				result.Deleted = append(result.Deleted, id)
				result.FileNotFound = append(result.FileNotFound, id)
				removed[id] = struct{}{}
			default:
				if failure == nil {
					failure = err
				}
				reason := "failed to remove file"
				if errors.Is(err, blobstore.ErrOutsideRoot) {
					reason = "stored path is outside the attachment root"
				}
				log.Warn("attachment blob not removed",
					slog.String("task_id", taskID),
					slog.String("file_id", id),
					slog.String("error", redact.Error(err)))
				result.Failed = append(result.Failed, FailedDelete{FileID: id, Reason: reason})
			}
		}
		if len(removed) == 0 {
			return current, errNothingDeleted
		}

		kept := make([]domain.AudioFile, 0, len(current.AudioFiles)-len(removed))
		for _, f := range current.AudioFiles {
			if _, ok := removed[f.ID]; !ok {
				kept = append(kept, f)
			}
		}
		current.AudioFiles = kept
		computed = true
		return current, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, errNothingDeleted):
			if len(result.Failed) == 0 {
				return result, ErrAttachmentNotFound
			}
			return result, NewTaskServiceError("delete_files", "no attachment could be removed", failure)
		case computed:
			// Blobs are gone but the record still lists them.
			log.Error("attachments removed from disk but task update failed",
				slog.Bool("inconsistent_state", true),
				slog.String("task_id", taskID),
				slog.Any("removed_file_ids", result.Deleted),
				slog.String("error", redact.Error(err)))
			return nil, NewTaskServiceError("delete_files", "attachments removed but task update failed", err)
		}
		return nil, s.mutationError(log, "delete_files", taskID, err)
	}
	result.Task = updated

	log.Info("attachments deleted",
		slog.String("task_id", taskID),
		slog.Int("deleted", len(result.Deleted)),
		slog.Int("not_found", len(result.NotFound)),
		slog.Int("file_not_found", len(result.FileNotFound)),
		slog.Int("failed", len(result.Failed)))

	if result.partial() {
		return result, ErrPartialFailure
	}
	return result, nil
}

// Fetch implements TaskService.Fetch
// An id match wins over a display name match.
func (s *taskServiceImpl) Fetch(
	ctx context.Context,
	principal domain.Principal,
	taskID, identifier string,
) (*Download, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.loadReadable(ctx, principal, taskID, "fetch_file")
	if err != nil {
		return nil, err
	}

	idx := task.FindAudioFile(identifier)
	if idx < 0 {
		for i := range task.AudioFiles {
			if task.AudioFiles[i].UserFilename == identifier {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return nil, ErrAttachmentNotFound
	}
	file := task.AudioFiles[idx]

	path, info, err := s.blobs.Stat(file.InternalPath)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			log.Warn("attachment blob missing",
				slog.String("task_id", taskID),
				slog.String("file_id", file.ID))
			return nil, ErrBlobMissing
		}
		log.Error("failed to locate attachment blob",
			slog.String("task_id", taskID),
			slog.String("file_id", file.ID),
			slog.String("error", redact.Error(err)))
		return nil, NewTaskServiceError("fetch_file", "failed to locate attachment", err)
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Download{
		Path:        path,
		DisplayName: file.UserFilename,
		ContentType: contentType,
		Size:        info.Size(),
	}, nil
}

// SweepOrphans implements TaskService.SweepOrphans
func (s *taskServiceImpl) SweepOrphans(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	all, err := s.tasks.Snapshot(ctx)
	if err != nil {
		return 0, NewTaskServiceError("sweep_orphans", "failed to read tasks", err)
	}
	guard := s.blobs.Guard()
	referenced := make(map[string]struct{})
	for i := range all {
		for _, f := range all[i].AudioFiles {
			referenced[filepath.Clean(f.InternalPath)] = struct{}{}
			if resolved, err := guard.Resolve(f.InternalPath); err == nil {
				referenced[resolved] = struct{}{}
			}
		}
	}

	entries, err := s.blobs.List(ctx)
	if err != nil {
		return 0, NewTaskServiceError("sweep_orphans", "failed to list blobs", err)
	}

	cutoff := time.Now().Add(-s.cfg.OrphanGracePeriod)
	var removed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, entry := range entries {
		if _, ok := referenced[entry.Path]; ok {
			continue
		}
		if entry.ModTime.After(cutoff) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.blobs.Remove(entry.Path); err != nil {
				if !errors.Is(err, blobstore.ErrNotFound) {
					log.Warn("failed to remove orphaned blob",
						slog.String("blob", entry.Name),
						slog.String("error", redact.Error(err)))
				}
				return nil
			}
			removed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(removed.Load()), err
	}

	if n := removed.Load(); n > 0 {
		log.Info("orphaned blobs removed", slog.Int64("count", n))
	}
	return int(removed.Load()), nil
}

// dedupe drops empty and repeated ids, preserving first-seen order.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
