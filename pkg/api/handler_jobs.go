package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/events"
)

// listJobsHandler serves GET /api/jobs: canonical job summaries across
// current/ and complete/ (spec.md §6).
func (s *Server) listJobsHandler(c *echo.Context) error {
	jobs, err := events.ListJobs(s.resolver)
	if err != nil {
		s.log.Error("list jobs", "err", err)
		return c.JSON(http.StatusInternalServerError, fail("internal_error", "failed to list jobs"))
	}
	if jobs == nil {
		jobs = []*events.CanonicalJob{}
	}
	return c.JSON(http.StatusOK, ok(jobs))
}

// getJobHandler serves GET /api/jobs/:jobId: canonical job detail (spec.md
// §6).
func (s *Server) getJobHandler(c *echo.Context) error {
	jobID := c.Param("jobId")
	job, _, err := events.ReadJob(s.resolver, jobID)
	if err != nil {
		status, code, msg := mapError(err)
		return c.JSON(status, fail(code, msg))
	}
	return c.JSON(http.StatusOK, ok(job))
}
