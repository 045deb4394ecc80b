package filestore

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/voicetask/internal/domain"
)

// Records written by earlier releases carry a single audio_file path per
// task, timestamps without a zone, and users keyed by username alone. They
// are upgraded on load and written back in the current form by the next
// commit. Generated ids are name-based so they stay stable across restarts
// until that happens.
var legacyIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("voicetask:legacy"))

// taskRecord is the on-disk form of a task, loose enough to accept both the
// current and the legacy layout.
type taskRecord struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Priority    string             `json:"priority"`
	Status      domain.TaskStatus  `json:"status"`
	Category    *string            `json:"category"`
	Tags        []string           `json:"tags"`
	Owner       string             `json:"owner"`
	UserID      string             `json:"user_id"`
	AudioFiles  []domain.AudioFile `json:"audio_files"`
	AudioFile   *string            `json:"audio_file"`
	CreatedAt   string             `json:"created_at"`
}

func decodeTaskRecord(raw json.RawMessage) (domain.Task, error) {
	var rec taskRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Task{}, err
	}
	if rec.ID == "" {
		return domain.Task{}, errors.New("task without id")
	}

	var created time.Time
	if rec.CreatedAt != "" {
		t, err := domain.ParseTimestamp(rec.CreatedAt)
		if err != nil {
			return domain.Task{}, err
		}
		created = t
	}

	task := domain.Task{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Priority:    rec.Priority,
		Status:      rec.Status,
		Category:    domain.DefaultCategory,
		Tags:        rec.Tags,
		Owner:       rec.Owner,
		UserID:      rec.UserID,
		AudioFiles:  rec.AudioFiles,
		CreatedAt:   created,
	}
	if rec.Category != nil {
		task.Category = *rec.Category
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	task.Normalize()

	if rec.AudioFile != nil && *rec.AudioFile != "" && !hasInternalPath(task.AudioFiles, *rec.AudioFile) {
		path := *rec.AudioFile
		task.AudioFiles = append(task.AudioFiles, domain.AudioFile{
			ID:           uuid.NewSHA1(legacyIDNamespace, []byte("audio:"+task.ID+":"+path)).String(),
			UserFilename: filepath.Base(filepath.ToSlash(path)),
			InternalPath: path,
			UploadedAt:   created,
		})
	}
	return task, nil
}

func hasInternalPath(files []domain.AudioFile, path string) bool {
	for i := range files {
		if files[i].InternalPath == path {
			return true
		}
	}
	return false
}

// userFileRecord accepts both the current hashed_password field and the
// legacy password_hash one.
type userFileRecord struct {
	ID             string      `json:"id"`
	Username       string      `json:"username"`
	HashedPassword string      `json:"hashed_password"`
	PasswordHash   string      `json:"password_hash"`
	Role           domain.Role `json:"role"`
	CreatedAt      string      `json:"created_at"`
}

func decodeUserRecord(raw json.RawMessage) (userRecord, error) {
	var rec userFileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return userRecord{}, err
	}
	if strings.TrimSpace(rec.Username) == "" {
		return userRecord{}, errors.New("user without username")
	}

	out := userRecord{
		ID:             rec.ID,
		Username:       rec.Username,
		HashedPassword: rec.HashedPassword,
		Role:           rec.Role,
	}
	if out.ID == "" {
		key := "user:" + strings.ToLower(strings.TrimSpace(rec.Username))
		out.ID = uuid.NewSHA1(legacyIDNamespace, []byte(key)).String()
	}
	if out.HashedPassword == "" {
		out.HashedPassword = rec.PasswordHash
	}
	if out.Role == "" {
		out.Role = domain.RoleUser
	}
	if rec.CreatedAt != "" {
		t, err := domain.ParseTimestamp(rec.CreatedAt)
		if err != nil {
			return userRecord{}, err
		}
		out.CreatedAt = t
	}
	return out, nil
}
