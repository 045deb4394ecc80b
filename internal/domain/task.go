package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TaskStatus represents the workflow state of a task.
type TaskStatus string

// Possible task status values. Any value may replace any other; no
// transition graph is enforced.
const (
	TaskStatusPending       TaskStatus = "pending"
	TaskStatusInProgress    TaskStatus = "in_progress"
	TaskStatusWaitingReview TaskStatus = "waiting_review"
	TaskStatusApproved      TaskStatus = "approved"
	TaskStatusRejected      TaskStatus = "rejected"
	TaskStatusFailed        TaskStatus = "failed"
	TaskStatusCompleted     TaskStatus = "completed"
	TaskStatusCanceled      TaskStatus = "canceled"
	TaskStatusArchived      TaskStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusWaitingReview,
		TaskStatusApproved, TaskStatusRejected, TaskStatusFailed,
		TaskStatusCompleted, TaskStatusCanceled, TaskStatusArchived:
		return true
	default:
		return false
	}
}

// Field limits and defaults for tasks.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 1000

	DefaultPriority = "medium"
	DefaultCategory = "未分类"
)

// TimestampLayout is the canonical, fixed-width UTC layout used when
// timestamps are compared as strings. Every timestamp the application
// generates formats to the same width, so lexicographic order equals
// chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Now returns the current UTC time at microsecond precision, matching
// TimestampLayout.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// naiveTimestampLayout matches ISO 8601 timestamps written without a zone,
// with or without fractional seconds.
const naiveTimestampLayout = "2006-01-02T15:04:05.999999999"

// ParseTimestamp reads an RFC 3339 timestamp. A timestamp without a zone
// designator is taken to be UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(naiveTimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// AudioFile is an uploaded recording attached to a task.
//
// UserFilename is display-only and never used to build filesystem paths.
// InternalPath is generated by the server and always lies beneath the
// attachment root.
type AudioFile struct {
	ID           string    `json:"id"`
	UserFilename string    `json:"user_filename"`
	InternalPath string    `json:"internal_path"`
	ContentType  string    `json:"content_type,omitempty"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Task is a unit of work owned by a user, carrying metadata and zero or
// more audio attachments.
type Task struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    string      `json:"priority"`
	Status      TaskStatus  `json:"status"`
	Category    string      `json:"category"`
	Tags        []string    `json:"tags"`
	Owner       string      `json:"owner"`
	UserID      string      `json:"user_id"`
	AudioFiles  []AudioFile `json:"audio_files"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TaskDraft carries the caller-supplied fields for a new task. Empty
// optional fields take their defaults.
type TaskDraft struct {
	Title       string
	Description string
	Priority    string
	Category    string
	Tags        []string
	// UserID overrides the creator's id as the ownership key when set.
	UserID string
}

// NewTask builds a validated pending task owned by principal.
func NewTask(principal Principal, draft TaskDraft) (*Task, error) {
	task := &Task{
		ID:          uuid.NewString(),
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    draft.Priority,
		Status:      TaskStatusPending,
		Category:    draft.Category,
		Tags:        NormalizeTags(draft.Tags),
		Owner:       principal.Username,
		UserID:      draft.UserID,
		AudioFiles:  []AudioFile{},
		CreatedAt:   Now(),
	}
	if task.Priority == "" {
		task.Priority = DefaultPriority
	}
	if task.Category == "" {
		task.Category = DefaultCategory
	}
	if task.UserID == "" {
		task.UserID = principal.ID
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// Validate checks the task's field constraints.
func (t *Task) Validate() error {
	if t.ID == "" {
		return NewValidationError("id", "cannot be empty", nil)
	}
	if err := validateTitle(t.Title); err != nil {
		return err
	}
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return NewValidationError("status", "must be a known status", ErrInvalidStatus)
	}
	if t.Owner == "" && t.UserID == "" {
		return NewValidationError("owner", "task must have an owner", nil)
	}
	return nil
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	if t.Tags != nil {
		out.Tags = make([]string, len(t.Tags))
		copy(out.Tags, t.Tags)
	}
	if t.AudioFiles != nil {
		out.AudioFiles = make([]AudioFile, len(t.AudioFiles))
		copy(out.AudioFiles, t.AudioFiles)
	}
	return out
}

// Normalize replaces nil collections with empty ones so that a task
// encodes the same way whether or not it has tags or attachments.
func (t *Task) Normalize() {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.AudioFiles == nil {
		t.AudioFiles = []AudioFile{}
	}
}

// FindAudioFile returns the index of the attachment with the given id, or -1.
func (t *Task) FindAudioFile(id string) int {
	for i := range t.AudioFiles {
		if t.AudioFiles[i].ID == id {
			return i
		}
	}
	return -1
}

// HasTags reports whether the task carries every tag in want.
func (t *Task) HasTags(want []string) bool {
	for _, w := range want {
		found := false
		for _, have := range t.Tags {
			if have == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NormalizeTags drops empty and duplicate tags, preserving first-seen order.
// It never returns nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return NewValidationError("title", "cannot be empty", nil)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return NewValidationError("title", "must be at most 100 characters", nil)
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return NewValidationError("description", "must be at most 1000 characters", nil)
	}
	return nil
}
