package api

import (
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/events"
)

// eventsHandler serves GET /api/events (spec.md §6): a Server-Sent Events
// stream, optionally filtered by ?jobId=, with a periodic heartbeat comment
// to keep intermediaries from timing out.
func (s *Server) eventsHandler(c *echo.Context) error {
	jobID := c.QueryParam("jobId")

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	ch, unsub := s.hub.Subscribe(jobID)
	defer unsub()

	heartbeat := time.NewTicker(s.hub.Heartbeat())
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, open := <-ch:
			if !open {
				return nil
			}
			frame, err := events.EncodeSSE(ev)
			if err != nil {
				s.log.Warn("encode SSE frame", "err", err)
				continue
			}
			if _, err := resp.Write(frame); err != nil {
				return nil
			}
			resp.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(resp, ": heartbeat\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
