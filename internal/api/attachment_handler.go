package api

import (
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/phrazzld/voicetask/internal/api/shared"
	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/platform/logger"
	"github.com/phrazzld/voicetask/internal/redact"
	"github.com/phrazzld/voicetask/internal/service"
)

// Multipart limits for upload requests.
const (
	uploadFieldFiles        = "files"
	uploadFieldDisplayNames = "display_names"
	maxFilesPerUpload       = 20
	multipartMemory         = 32 << 20
	multipartOverhead       = 1 << 20
)

// UploadFiles handles POST /tasks/{id}/upload. Each "files" part becomes an
// attachment; the optional "display_names" values pair with the files by
// position.
func (h *TaskHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	taskID, err := getPathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	log := logger.FromContextOrDefault(r.Context(), h.logger).With(slog.String("task_id", taskID))

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes*maxFilesPerUpload+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleAPIError(w, r, service.ErrPayloadTooLarge, "")
			return
		}
		HandleAPIError(w, r, domain.NewValidationError(uploadFieldFiles, "must be a multipart form upload", err), "")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("failed to remove multipart temp files", slog.String("error", redact.Error(err)))
		}
	}()

	headers := r.MultipartForm.File[uploadFieldFiles]
	if len(headers) > maxFilesPerUpload {
		HandleAPIError(w, r, domain.NewValidationError(uploadFieldFiles, "too many files in one upload", domain.ErrValidation), "")
		return
	}
	displayNames := r.MultipartForm.Value[uploadFieldDisplayNames]

	uploads, closeAll, err := openUploads(headers, displayNames)
	defer closeAll()
	if err != nil {
		log.Error("failed to open multipart file", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to read uploaded files")
		return
	}

	result, err := h.tasks.Attach(r.Context(), principal, taskID, uploads)
	switch {
	case err == nil:
		shared.RespondWithJSON(w, r, http.StatusCreated, uploadToResponse(result))
	case errors.Is(err, service.ErrPartialFailure) && result != nil:
		shared.RespondWithJSON(w, r, http.StatusMultiStatus, uploadToResponse(result))
	case errors.Is(err, service.ErrPayloadTooLarge) && result != nil:
		resp := uploadToResponse(result)
		resp.Error = GetSafeErrorMessage(err)
		log.Debug("upload batch rejected", slog.Int("rejected", len(result.Rejected)))
		shared.RespondWithJSON(w, r, http.StatusRequestEntityTooLarge, resp)
	default:
		HandleAPIError(w, r, err, "Failed to upload files")
	}
}

func openUploads(headers []*multipart.FileHeader, displayNames []string) ([]service.Upload, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	uploads := make([]service.Upload, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)

		upload := service.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Content:  f,
		}
		if i < len(displayNames) {
			upload.DisplayName = displayNames[i]
		}
		uploads = append(uploads, upload)
	}
	return uploads, closeAll, nil
}

// RenameFile handles PATCH /tasks/{id}/files/{fileID}.
func (h *TaskHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	taskID, err := getPathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	fileID, err := getPathParam(r, "fileID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req RenameFileRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	file, err := h.tasks.RenameFile(r.Context(), principal, taskID, fileID, req.UserFilename)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to rename file")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, audioFileToResponse(*file))
}

// DeleteFiles handles DELETE /tasks/{id}/files.
func (h *TaskHandler) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	taskID, err := getPathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req DeleteFilesRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.tasks.DeleteFiles(r.Context(), principal, taskID, req.FileIDs)
	switch {
	case err == nil:
		shared.RespondWithJSON(w, r, http.StatusOK, deleteToResponse(result))
	case errors.Is(err, service.ErrPartialFailure) && result != nil:
		shared.RespondWithJSON(w, r, http.StatusMultiStatus, deleteToResponse(result))
	default:
		HandleAPIError(w, r, err, "Failed to delete files")
	}
}

// DownloadFile handles GET /tasks/{id}/files/{identifier}. The identifier is
// an attachment id or its display name.
func (h *TaskHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	taskID, err := getPathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	identifier, err := getPathParam(r, "identifier")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	dl, err := h.tasks.Fetch(r.Context(), principal, taskID, identifier)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch file")
		return
	}

	f, err := os.Open(dl.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			HandleAPIError(w, r, service.ErrBlobMissing, "")
			return
		}
		HandleAPIError(w, r, err, "Failed to read file")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read file")
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(dl.DisplayName))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, "", info.ModTime(), f)
}

// contentDisposition formats an attachment header. Non-ASCII names use the
// RFC 2231 encoding produced by mime.FormatMediaType.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
