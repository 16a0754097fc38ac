package api

import (
	"encoding/base64"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"unicode/utf8"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/events"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/perr"
)

var validFileKinds = map[string]pathfs.FileKind{
	"artifacts": pathfs.KindArtifacts,
	"logs":      pathfs.KindLogs,
	"tmp":       pathfs.KindTmp,
}

// getTaskFileHandler serves GET /api/jobs/:jobId/tasks/:taskId/file
// (spec.md §6): a path-jailed read of one artifact/log/tmp file.
func (s *Server) getTaskFileHandler(c *echo.Context) error {
	jobID := c.Param("jobId")
	taskID := c.Param("taskId")
	kindParam := c.QueryParam("type")
	filename := c.QueryParam("filename")

	job, loc, err := events.ReadJob(s.resolver, jobID)
	if err != nil {
		status, code, msg := mapError(err)
		return c.JSON(status, fail(code, msg))
	}
	if _, ok := job.TasksStatus[taskID]; !ok {
		status, code, msg := mapError(perr.ErrNotFound)
		return c.JSON(status, fail(code, msg))
	}

	kind, ok := validFileKinds[kindParam]
	if !ok {
		return c.JSON(http.StatusBadRequest, fail("validation_error", "type must be one of artifacts, logs, tmp"))
	}
	if filename == "" {
		return c.JSON(http.StatusBadRequest, fail("validation_error", "filename is required"))
	}

	var jobDir string
	switch loc {
	case events.LocationCurrent:
		jobDir = s.resolver.CurrentJobDir(jobID)
	default:
		jobDir = s.resolver.CompleteJobDir(jobID)
	}

	resolved, err := pathfs.ResolveJailed(s.resolver.Jail(jobDir), string(kind), filename)
	if err != nil {
		status, code, msg := mapError(err)
		return c.JSON(status, fail(code, msg))
	}

	info, err := os.Stat(resolved)
	if err != nil {
		status, code, msg := mapError(perr.ErrNotFound)
		return c.JSON(status, fail(code, msg))
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		status, code, msg := mapError(perr.ErrNotFound)
		return c.JSON(status, fail(code, msg))
	}

	resp := FileResponse{
		MIME:  mimeForExt(filename),
		Size:  info.Size(),
		MTime: info.ModTime().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if utf8.Valid(data) {
		resp.Encoding = "utf8"
		resp.Content = string(data)
	} else {
		resp.Encoding = "base64"
		resp.Content = base64.StdEncoding.EncodeToString(data)
	}

	return c.JSON(http.StatusOK, ok(resp))
}

func mimeForExt(filename string) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}
