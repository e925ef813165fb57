package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arclight-labs/spgate/internal/graph"
	"github.com/arclight-labs/spgate/internal/history"
	"github.com/arclight-labs/spgate/internal/sharepoint"
)

// handleUpload accepts a multipart upload and writes it into the document
// library, creating the target folder chain first.
//
// Expected form data:
//   - file: the file to upload
//   - path: optional folder path inside the drive
func (s *Server) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	if fileHeader.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty filename"})
		return
	}

	dir := sharepoint.CleanPath(c.PostForm("path"))
	fullPath := sharepoint.JoinPath(dir, fileHeader.Filename)

	if dir != "" {
		if err := s.drive.EnsureFolder(c.Request.Context(), dir); err != nil {
			s.log.Error().Err(err).Str("path", dir).Msg("folder creation failed")
			s.record(c, history.Record{
				Operation: history.OpUpload,
				Path:      fullPath,
				Status:    "error",
				Error:     err.Error(),
			})
			c.JSON(statusFor(err), gin.H{"error": "failed to create folder structure"})
			return
		}
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer f.Close()

	item, err := s.drive.Upload(c.Request.Context(), dir, fileHeader.Filename, f, fileHeader.Size)
	if err != nil {
		s.log.Error().Err(err).Str("path", fullPath).Msg("upload failed")
		s.record(c, history.Record{
			Operation: history.OpUpload,
			Path:      fullPath,
			Size:      fileHeader.Size,
			Status:    "error",
			Error:     err.Error(),
		})
		c.JSON(statusFor(err), gin.H{"error": "failed to upload file"})
		return
	}

	s.record(c, history.Record{
		Operation: history.OpUpload,
		Path:      fullPath,
		Size:      item.Size,
		Status:    "ok",
	})
	c.JSON(http.StatusCreated, gin.H{
		"message": "file uploaded successfully",
		"path":    fullPath,
		"id":      item.ID,
		"size":    item.Size,
	})
}

// handleFetch resolves a drive path to its short-lived download URL.
func (s *Server) handleFetch(c *gin.Context) {
	path := sharepoint.CleanPath(strings.TrimPrefix(c.Param("filepath"), "/"))
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file path"})
		return
	}

	url, err := s.drive.DownloadURL(c.Request.Context(), path)
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, sharepoint.ErrIsFolder) {
			status = http.StatusBadRequest
		}
		if status >= http.StatusInternalServerError {
			s.log.Error().Err(err).Str("path", path).Msg("fetch failed")
		}
		s.record(c, history.Record{
			Operation: history.OpFetch,
			Path:      path,
			Status:    "error",
			Error:     err.Error(),
		})
		c.JSON(status, gin.H{"error": "failed to fetch file"})
		return
	}

	dir, name := sharepoint.SplitPath(path)
	s.record(c, history.Record{
		Operation: history.OpFetch,
		Path:      path,
		Status:    "ok",
	})
	c.JSON(http.StatusOK, gin.H{
		"download_url": url,
		"filename":     name,
		"path":         dir,
	})
}

// folderEntry is one listed child in a folder response.
type folderEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Folder   bool   `json:"folder"`
	MIMEType string `json:"mime_type,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// handleListFolder lists the direct children of a drive folder.
func (s *Server) handleListFolder(c *gin.Context) {
	dir := sharepoint.CleanPath(strings.TrimPrefix(c.Param("dirpath"), "/"))

	items, err := s.drive.ListChildren(c.Request.Context(), dir)
	if err != nil {
		if status := statusFor(err); status >= http.StatusInternalServerError {
			s.log.Error().Err(err).Str("path", dir).Msg("listing failed")
		}
		c.JSON(statusFor(err), gin.H{"error": "failed to list folder"})
		return
	}

	entries := make([]folderEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, folderEntry{
			ID:       item.ID,
			Name:     item.Name,
			Size:     item.Size,
			Folder:   item.IsFolder(),
			MIMEType: item.GetMIMEType(),
			Modified: item.ModifiedDateTime,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"path":  dir,
		"items": entries,
	})
}

// transferEntry is one listed transfer in a history response.
type transferEntry struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// handleTransfers lists recent transfers from the local log.
func (s *Server) handleTransfers(c *gin.Context) {
	if s.transfers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transfer log disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.transfers.Recent(c.Request.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("transfer log query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transfers"})
		return
	}

	entries := make([]transferEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, transferEntry{
			ID:        rec.ID,
			Operation: string(rec.Operation),
			Path:      rec.Path,
			Size:      rec.Size,
			Status:    rec.Status,
			Error:     rec.Error,
			CreatedAt: rec.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"transfers": entries})
}

// statusFor maps Graph client errors to the status the gateway answers with.
// Upstream auth failures surface as 502 so callers can tell a gateway
// misconfiguration from their own bad request.
func statusFor(err error) int {
	switch {
	case errors.Is(err, graph.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, graph.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, graph.ErrUnauthorised), errors.Is(err, graph.ErrForbidden):
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
