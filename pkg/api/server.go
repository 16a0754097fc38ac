// Package api implements the read-only-plus-upload HTTP surface of
// spec.md §6: job listing/detail, jailed artifact/log file retrieval, seed
// upload, SSE event streaming, and a watcher diagnostic snapshot.
//
// Grounded on the teacher's pkg/api package: github.com/labstack/echo/v5 is
// the framework every teacher handler file imports, setupRoutes/NewServer
// mirror pkg/api/server.go's wiring shape, and the {ok, data, error,
// message} envelope generalizes pkg/api/responses.go's per-route response
// structs into one shared shape per spec.md §6.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/events"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
)

// Server is the HTTP API server. It holds only read paths and the event hub
// — it never opens a status.Writer and never mutates tasks-status.json
// (spec.md §5: "It reads only; it never writes tasks-status.json").
type Server struct {
	echo     *echo.Echo
	resolver *pathfs.Resolver
	hub      *events.Hub
	log      *slog.Logger

	resumeOnStart bool
	httpServer    *http.Server
}

// NewServer builds a Server and registers its routes. log may be nil
// (slog.Default() is used).
func NewServer(resolver *pathfs.Resolver, hub *events.Hub, resumeOnStart bool, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, resolver: resolver, hub: hub, log: log, resumeOnStart: resumeOnStart}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(8 * 1024 * 1024))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.Logger())

	s.echo.POST("/api/upload/seed", s.uploadSeedHandler)
	s.echo.GET("/api/jobs", s.listJobsHandler)
	s.echo.GET("/api/jobs/:jobId", s.getJobHandler)
	s.echo.GET("/api/jobs/:jobId/tasks/:taskId/file", s.getTaskFileHandler)
	s.echo.GET("/api/events", s.eventsHandler)
	s.echo.GET("/api/state", s.stateHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// stateHandler serves GET /api/state: a diagnostic snapshot of watcher
// state (spec.md §6).
func (s *Server) stateHandler(c *echo.Context) error {
	resp := StateResponse{
		DataRoot:         s.resolver.Root(),
		ConnectedClients: s.hub.ConnectionCount(),
		HeartbeatSeconds: int(s.hub.Heartbeat() / time.Second),
		ResumeOnStart:    s.resumeOnStart,
		PendingSeedCount: countEntries(s.resolver.Pending()),
		CurrentJobCount:  countEntries(s.resolver.Current()),
		CompleteJobCount: countEntries(s.resolver.Complete()),
	}
	return c.JSON(http.StatusOK, ok(resp))
}

func countEntries(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	return len(entries)
}
