package api

import (
	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/service"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	// AccessToken is the JWT token used for API authorization
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer"
	TokenType string `json:"token_type"`

	UserID string `json:"user_id"`

	// ExpiresAt is the RFC 3339 timestamp when the access token expires
	ExpiresAt string `json:"expires_at,omitempty"`
}

// UserResponse describes an account without its credentials.
type UserResponse struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// CreateTaskRequest defines the payload for creating a task.
type CreateTaskRequest struct {
	Title       string   `json:"title"       validate:"required,max=100"`
	Description string   `json:"description" validate:"max=1000"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	UserID      string   `json:"user_id"`
}

// Draft converts the request into the service input.
func (r CreateTaskRequest) Draft() domain.TaskDraft {
	return domain.TaskDraft{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Category:    r.Category,
		Tags:        r.Tags,
		UserID:      r.UserID,
	}
}

// RenameFileRequest defines the payload for renaming an attachment.
type RenameFileRequest struct {
	UserFilename string `json:"user_filename" validate:"required,max=255"`
}

// DeleteFilesRequest defines the payload for removing attachments.
type DeleteFilesRequest struct {
	FileIDs []string `json:"file_ids" validate:"required,min=1,dive,required"`
}

// AudioFileResponse is the client view of an attachment. The internal path
// never leaves the server.
type AudioFileResponse struct {
	ID           string `json:"id"`
	UserFilename string `json:"user_filename"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size"`
	UploadedAt   string `json:"uploaded_at"`
}

// TaskResponse is the client view of a task.
type TaskResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    string              `json:"priority"`
	Status      domain.TaskStatus   `json:"status"`
	Category    string              `json:"category"`
	Tags        []string            `json:"tags"`
	Owner       string              `json:"owner"`
	UserID      string              `json:"user_id"`
	AudioFiles  []AudioFileResponse `json:"audio_files"`
	CreatedAt   string              `json:"created_at"`
}

// RejectedUploadResponse names an upload that was not stored.
type RejectedUploadResponse struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// UploadResponse reports the outcome of an upload batch.
type UploadResponse struct {
	// Error is set when no file of the batch was stored.
	Error    string                   `json:"error,omitempty"`
	Task     *TaskResponse            `json:"task,omitempty"`
	Added    []AudioFileResponse      `json:"added"`
	Rejected []RejectedUploadResponse `json:"rejected"`
}

// DeleteFilesResponse reports the outcome of a delete batch.
type DeleteFilesResponse struct {
	Deleted      []string               `json:"deleted"`
	NotFound     []string               `json:"not_found"`
	FileNotFound []string               `json:"file_not_found"`
	Failed       []service.FailedDelete `json:"failed,omitempty"`
	Task         *TaskResponse          `json:"task,omitempty"`
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

func audioFileToResponse(f domain.AudioFile) AudioFileResponse {
	return AudioFileResponse{
		ID:           f.ID,
		UserFilename: f.UserFilename,
		ContentType:  f.ContentType,
		Size:         f.Size,
		UploadedAt:   domain.FormatTimestamp(f.UploadedAt),
	}
}

func audioFilesToResponse(files []domain.AudioFile) []AudioFileResponse {
	out := make([]AudioFileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, audioFileToResponse(f))
	}
	return out
}

func taskToResponse(t *domain.Task) TaskResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		Category:    t.Category,
		Tags:        tags,
		Owner:       t.Owner,
		UserID:      t.UserID,
		AudioFiles:  audioFilesToResponse(t.AudioFiles),
		CreatedAt:   domain.FormatTimestamp(t.CreatedAt),
	}
}

func tasksToResponse(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, taskToResponse(&tasks[i]))
	}
	return out
}

func uploadToResponse(res *service.AttachResult) UploadResponse {
	out := UploadResponse{
		Added:    audioFilesToResponse(res.Added),
		Rejected: make([]RejectedUploadResponse, 0, len(res.Rejected)),
	}
	for _, r := range res.Rejected {
		out.Rejected = append(out.Rejected, RejectedUploadResponse{Filename: r.Filename, Reason: r.Reason})
	}
	if res.Task != nil {
		task := taskToResponse(res.Task)
		out.Task = &task
	}
	return out
}

func deleteToResponse(res *service.DeleteFilesResult) DeleteFilesResponse {
	out := DeleteFilesResponse{
		Deleted:      nonNil(res.Deleted),
		NotFound:     nonNil(res.NotFound),
		FileNotFound: nonNil(res.FileNotFound),
		Failed:       res.Failed,
	}
	if res.Task != nil {
		task := taskToResponse(res.Task)
		out.Task = &task
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
