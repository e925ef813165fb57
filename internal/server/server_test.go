package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclight-labs/spgate/internal/graph"
	"github.com/arclight-labs/spgate/internal/history"
	"github.com/arclight-labs/spgate/internal/sharepoint"
)

// mockDrive implements DriveClient with pluggable behaviour per test.
type mockDrive struct {
	ensureFolderFn func(ctx context.Context, dir string) error
	uploadFn       func(ctx context.Context, dir, name string, r io.Reader, size int64) (*sharepoint.DriveItem, error)
	downloadURLFn  func(ctx context.Context, path string) (string, error)
	listChildrenFn func(ctx context.Context, dir string) ([]sharepoint.DriveItem, error)

	ensuredDirs []string
}

func (m *mockDrive) EnsureFolder(ctx context.Context, dir string) error {
	m.ensuredDirs = append(m.ensuredDirs, dir)
	if m.ensureFolderFn != nil {
		return m.ensureFolderFn(ctx, dir)
	}
	return nil
}

func (m *mockDrive) Upload(ctx context.Context, dir, name string, r io.Reader, size int64) (*sharepoint.DriveItem, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, dir, name, r, size)
	}
	return nil, fmt.Errorf("upload not configured")
}

func (m *mockDrive) DownloadURL(ctx context.Context, path string) (string, error) {
	if m.downloadURLFn != nil {
		return m.downloadURLFn(ctx, path)
	}
	return "", fmt.Errorf("download not configured")
}

func (m *mockDrive) ListChildren(ctx context.Context, dir string) ([]sharepoint.DriveItem, error) {
	if m.listChildrenFn != nil {
		return m.listChildrenFn(ctx, dir)
	}
	return nil, fmt.Errorf("list not configured")
}

// memLog is an in-memory TransferLog.
type memLog struct {
	records []history.Record
}

func (l *memLog) Insert(_ context.Context, rec history.Record) error {
	l.records = append(l.records, rec)
	return nil
}

func (l *memLog) Recent(_ context.Context, limit int) ([]history.Record, error) {
	if limit > len(l.records) {
		limit = len(l.records)
	}
	return l.records[:limit], nil
}

func newTestServer(drive DriveClient, transfers TransferLog) *Server {
	return New(drive, transfers, zerolog.Nop())
}

// multipartBody builds a multipart form with a file part and optional path.
func multipartBody(t *testing.T, filename, content, path string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	if path != "" {
		require.NoError(t, w.WriteField("path", path))
	}
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func TestHandleUpload_Success(t *testing.T) {
	drive := &mockDrive{
		uploadFn: func(_ context.Context, dir, name string, r io.Reader, size int64) (*sharepoint.DriveItem, error) {
			assert.Equal(t, "reports/2026", dir)
			assert.Equal(t, "summary.txt", name)

			body, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(body))
			assert.Equal(t, int64(5), size)

			return &sharepoint.DriveItem{ID: "item-1", Name: name, Size: size}, nil
		},
	}
	log := &memLog{}
	srv := newTestServer(drive, log)

	body, contentType := multipartBody(t, "summary.txt", "hello", "/reports/2026/")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Message string `json:"message"`
		Path    string `json:"path"`
		ID      string `json:"id"`
		Size    int64  `json:"size"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "reports/2026/summary.txt", resp.Path)
	assert.Equal(t, "item-1", resp.ID)
	assert.Equal(t, int64(5), resp.Size)

	assert.Equal(t, []string{"reports/2026"}, drive.ensuredDirs)

	require.Len(t, log.records, 1)
	assert.Equal(t, history.OpUpload, log.records[0].Operation)
	assert.Equal(t, "ok", log.records[0].Status)
	assert.Equal(t, "reports/2026/summary.txt", log.records[0].Path)
}

func TestHandleUpload_RootPath(t *testing.T) {
	drive := &mockDrive{
		uploadFn: func(_ context.Context, dir, name string, _ io.Reader, size int64) (*sharepoint.DriveItem, error) {
			assert.Equal(t, "", dir)
			return &sharepoint.DriveItem{ID: "item-1", Name: name, Size: size}, nil
		},
	}
	srv := newTestServer(drive, nil)

	body, contentType := multipartBody(t, "root.txt", "x", "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, drive.ensuredDirs, "no folder creation expected for root uploads")
}

func TestHandleUpload_NoFile(t *testing.T) {
	srv := newTestServer(&mockDrive{}, nil)

	body, contentType := multipartBody(t, "", "", "reports")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no file provided")
}

func TestHandleUpload_FolderCreationFails(t *testing.T) {
	drive := &mockDrive{
		ensureFolderFn: func(context.Context, string) error {
			return fmt.Errorf("probe folder: %w", graph.ErrForbidden)
		},
	}
	log := &memLog{}
	srv := newTestServer(drive, log)

	body, contentType := multipartBody(t, "a.txt", "x", "locked")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "folder structure")

	require.Len(t, log.records, 1)
	assert.Equal(t, "error", log.records[0].Status)
}

func TestHandleUpload_GraphError(t *testing.T) {
	drive := &mockDrive{
		uploadFn: func(context.Context, string, string, io.Reader, int64) (*sharepoint.DriveItem, error) {
			return nil, fmt.Errorf("upload: %w", graph.ErrRateLimited)
		},
	}
	srv := newTestServer(drive, nil)

	body, contentType := multipartBody(t, "a.txt", "x", "")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleFetch_Success(t *testing.T) {
	drive := &mockDrive{
		downloadURLFn: func(_ context.Context, path string) (string, error) {
			assert.Equal(t, "reports/summary.txt", path)
			return "https://tenant.sharepoint.com/download/abc", nil
		},
	}
	log := &memLog{}
	srv := newTestServer(drive, log)

	req := httptest.NewRequest(http.MethodGet, "/fetch/reports/summary.txt", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		DownloadURL string `json:"download_url"`
		Filename    string `json:"filename"`
		Path        string `json:"path"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://tenant.sharepoint.com/download/abc", resp.DownloadURL)
	assert.Equal(t, "summary.txt", resp.Filename)
	assert.Equal(t, "reports", resp.Path)

	require.Len(t, log.records, 1)
	assert.Equal(t, history.OpFetch, log.records[0].Operation)
	assert.Equal(t, "ok", log.records[0].Status)
}

func TestHandleFetch_NotFound(t *testing.T) {
	drive := &mockDrive{
		downloadURLFn: func(context.Context, string) (string, error) {
			return "", fmt.Errorf("get item: %w", graph.ErrNotFound)
		},
	}
	srv := newTestServer(drive, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/missing.txt", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFetch_Folder(t *testing.T) {
	drive := &mockDrive{
		downloadURLFn: func(context.Context, string) (string, error) {
			return "", fmt.Errorf("%w: reports", sharepoint.ErrIsFolder)
		},
	}
	srv := newTestServer(drive, nil)

	req := httptest.NewRequest(http.MethodGet, "/fetch/reports", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFetch_EmptyPath(t *testing.T) {
	srv := newTestServer(&mockDrive{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/fetch/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListFolder(t *testing.T) {
	drive := &mockDrive{
		listChildrenFn: func(_ context.Context, dir string) ([]sharepoint.DriveItem, error) {
			assert.Equal(t, "reports", dir)
			return []sharepoint.DriveItem{
				{ID: "f-1", Name: "2026", Folder: &sharepoint.FolderInfo{}},
				{ID: "i-1", Name: "summary.txt", Size: 42, File: &sharepoint.FileInfo{MIMEType: "text/plain"}},
			}, nil
		},
	}
	srv := newTestServer(drive, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/folders/reports", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Path  string        `json:"path"`
		Items []folderEntry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "reports", resp.Path)
	require.Len(t, resp.Items, 2)
	assert.True(t, resp.Items[0].Folder)
	assert.Equal(t, "application/vnd.ms-folder", resp.Items[0].MIMEType)
	assert.False(t, resp.Items[1].Folder)
	assert.Equal(t, int64(42), resp.Items[1].Size)
	assert.Equal(t, "text/plain", resp.Items[1].MIMEType)
}

func TestHandleTransfers(t *testing.T) {
	log := &memLog{records: []history.Record{
		{ID: "t-1", Operation: history.OpUpload, Path: "a.txt", Status: "ok"},
		{ID: "t-2", Operation: history.OpFetch, Path: "b.txt", Status: "error", Error: "graph: not found"},
	}}
	srv := newTestServer(&mockDrive{}, log)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Transfers []transferEntry `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Transfers, 2)
	assert.Equal(t, "upload", resp.Transfers[0].Operation)
	assert.Equal(t, "graph: not found", resp.Transfers[1].Error)
}

func TestHandleTransfers_Disabled(t *testing.T) {
	srv := newTestServer(&mockDrive{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&mockDrive{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(&mockDrive{}, nil)

	t.Run("generated when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("caller value honoured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "caller-id")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, "caller-id", rec.Header().Get("X-Request-ID"))
	})
}
