// Package server exposes the gateway's inbound HTTP surface.
package server

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arclight-labs/spgate/internal/history"
	"github.com/arclight-labs/spgate/internal/sharepoint"
)

// DriveClient is the subset of the SharePoint drive client the handlers use.
type DriveClient interface {
	EnsureFolder(ctx context.Context, dir string) error
	Upload(ctx context.Context, dir, name string, r io.Reader, size int64) (*sharepoint.DriveItem, error)
	DownloadURL(ctx context.Context, path string) (string, error)
	ListChildren(ctx context.Context, dir string) ([]sharepoint.DriveItem, error)
}

// TransferLog records and lists served transfers. May be nil when the log is
// disabled.
type TransferLog interface {
	Insert(ctx context.Context, rec history.Record) error
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// Server routes gateway requests to the drive client.
type Server struct {
	drive     DriveClient
	transfers TransferLog
	log       zerolog.Logger
	engine    *gin.Engine
}

// New creates a gateway server around the given drive client.
func New(drive DriveClient, transfers TransferLog, logger zerolog.Logger) *Server {
	s := &Server{
		drive:     drive,
		transfers: transfers,
		log:       logger,
	}
	s.engine = s.setupRoutes()
	return s
}

// Handler returns the HTTP handler for mounting on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(s.log))

	// Health never touches Graph.
	r.GET("/health", s.handleHealth)

	v1 := r.Group("/api/v1")
	v1.POST("/files", s.handleUpload)
	v1.GET("/files/*filepath", s.handleFetch)
	v1.GET("/folders/*dirpath", s.handleListFolder)
	v1.GET("/transfers", s.handleTransfers)

	// Aliases matching the original route layout.
	r.POST("/upload", s.handleUpload)
	r.GET("/fetch/*filepath", s.handleFetch)

	return r
}

// handleHealth handles liveness probes.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "sharepoint-gateway",
	})
}

// record appends to the transfer log, best effort. A log failure never fails
// the request that triggered it.
func (s *Server) record(c *gin.Context, rec history.Record) {
	if s.transfers == nil {
		return
	}
	if err := s.transfers.Insert(c.Request.Context(), rec); err != nil {
		s.log.Warn().Err(err).Str("path", rec.Path).Msg("failed to record transfer")
	}
}
