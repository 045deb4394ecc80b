package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/voicetask/internal/api/shared"
	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/platform/blobstore"
	"github.com/phrazzld/voicetask/internal/platform/filestore"
	"github.com/phrazzld/voicetask/internal/service"
)

var (
	alice = domain.Principal{ID: "u-alice", Username: "alice", Role: domain.RoleUser}
	bob   = domain.Principal{ID: "u-bob", Username: "bob", Role: domain.RoleUser}
	admin = domain.Principal{ID: "u-admin", Username: "root", Role: domain.RoleAdmin}
)

// wavBytes is a minimal RIFF/WAVE header followed by silence.
var wavBytes = append([]byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00"+
	"\x44\xac\x00\x00\x88\x58\x01\x00\x02\x00\x10\x00data\x00\x00\x00\x00"), make([]byte, 64)...)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// taskAPI is a TaskHandler routed by chi over real stores in temporary
// directories.
type taskAPI struct {
	t       *testing.T
	svc     service.TaskService
	handler *TaskHandler
	router  chi.Router
	root    string
}

func newTaskAPI(t *testing.T, maxBytes int64) *taskAPI {
	t.Helper()
	base := t.TempDir()

	files, err := filestore.Open(context.Background(), filepath.Join(base, "data"), 0, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = files.Close() })

	guard, err := blobstore.NewGuard(filepath.Join(base, "audio"))
	require.NoError(t, err)

	svc, err := service.NewTaskService(files.Tasks(), blobstore.New(guard, maxBytes),
		service.TaskServiceConfig{}, quietLogger())
	require.NoError(t, err)

	h := NewTaskHandler(svc, PageLimits{Default: 100, Max: 1000}, maxBytes, quietLogger())

	r := chi.NewRouter()
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Get("/search", h.SearchTasks)
		r.Get("/{id}", h.GetTask)
		r.Put("/{id}", h.UpdateTask)
		r.Patch("/{id}", h.UpdateTask)
		r.Post("/{id}/upload", h.UploadFiles)
		r.Delete("/{id}/files", h.DeleteFiles)
		r.Patch("/{id}/files/{fileID}", h.RenameFile)
		r.Get("/{id}/files/{identifier}", h.DownloadFile)
	})

	return &taskAPI{t: t, svc: svc, handler: h, router: r, root: guard.Root()}
}

// do sends req as principal. A zero principal sends it unauthenticated.
func (a *taskAPI) do(p domain.Principal, req *http.Request) *httptest.ResponseRecorder {
	a.t.Helper()
	if p.ID != "" {
		req = req.WithContext(shared.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *taskAPI) doJSON(p domain.Principal, method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return a.do(p, req)
}

func (a *taskAPI) createTask(p domain.Principal, body map[string]any) TaskResponse {
	a.t.Helper()
	rec := a.doJSON(p, http.MethodPost, "/tasks", body)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var task TaskResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &task))
	return task
}

type uploadPart struct {
	filename string
	content  []byte
}

func (a *taskAPI) upload(p domain.Principal, taskID string, names []string, parts ...uploadPart) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, part := range parts {
		fw, err := mw.CreateFormFile("files", part.filename)
		require.NoError(a.t, err)
		_, err = fw.Write(part.content)
		require.NoError(a.t, err)
	}
	for _, name := range names {
		require.NoError(a.t, mw.WriteField("display_names", name))
	}
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/tasks/"+taskID+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(p, req)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
