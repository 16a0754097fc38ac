package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/events"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/perr"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pipeline"
)

const seedNameAlreadyExistsMsg = "a seed or job named %q already exists"

// uploadSeedHandler serves POST /api/upload/seed (spec.md §6): accepts a
// seed as a JSON body or a multipart file field named "file", validates it,
// assigns a jobId, writes it atomically under pending/, and broadcasts
// seed:uploaded.
func (s *Server) uploadSeedHandler(c *echo.Context) error {
	data, err := readSeedBody(c.Request())
	if err != nil {
		status, code, msg := mapError(err)
		return c.JSON(status, fail(code, msg))
	}

	seed, err := pipeline.ParseSeed(data)
	if err != nil {
		status, code, msg := mapError(err)
		return c.JSON(status, fail(code, msg))
	}

	exists, err := seedNameExists(s.resolver, seed.Name)
	if err != nil {
		s.log.Error("scan for duplicate seed name", "name", seed.Name, "err", err)
		return c.JSON(http.StatusInternalServerError, fail("internal_error", "failed to validate seed"))
	}
	if exists {
		valErr := perr.NewValidation("seed", "name", fmt.Sprintf(seedNameAlreadyExistsMsg, seed.Name))
		status, code, msg := mapError(valErr)
		return c.JSON(status, fail(code, msg))
	}

	jobID := newJobID()
	destPath := s.resolver.PendingSeedPath(jobID)

	if err := pathfs.AtomicWrite(destPath, data, 0o644); err != nil {
		s.log.Error("write pending seed", "jobId", jobID, "err", err)
		return c.JSON(http.StatusInternalServerError, fail("internal_error", "failed to persist seed"))
	}

	s.hub.Broadcast(events.Event{
		Type:    events.EventSeedUploaded,
		JobID:   jobID,
		Payload: events.SeedUploadedPayload{JobName: seed.Name},
	})

	return c.JSON(http.StatusOK, ok(map[string]string{"jobId": jobID}))
}

// newJobID derives a jobId matching pipeline.JobIDPattern from a fresh
// UUIDv4: hyphens stripped, truncated to 20 hex characters, prefixed "j-"
// (spec.md §6's ambient-stack addendum on jobId assignment).
func newJobID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "j-" + raw[:20]
}

// seedNameExists scans pending/ (one seed file per job, "<jobId>-seed.json")
// and current/ (one "seed.json" per job directory) for a seed whose Name
// matches name, so a duplicate submission is rejected even though jobId
// itself is a freshly-minted random value that can never collide (spec.md
// §8 round-trip/idempotence: "Submitting a seed with a name already
// occupying the pending or current directory returns 400 ... already
// exists"). A job directory or seed file that is mid-write or unreadable is
// skipped rather than treated as fatal, matching events.ListJobs's
// tolerance of transient phase-directory inconsistency.
func seedNameExists(resolver *pathfs.Resolver, name string) (bool, error) {
	pendingEntries, err := os.ReadDir(resolver.Pending())
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("scan pending: %w", err)
	}
	for _, e := range pendingEntries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(resolver.Pending(), e.Name()))
		if err != nil {
			continue
		}
		if seed, err := pipeline.ParseSeed(data); err == nil && seed.Name == name {
			return true, nil
		}
	}

	currentEntries, err := os.ReadDir(resolver.Current())
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("scan current: %w", err)
	}
	for _, e := range currentEntries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		jobDir := resolver.CurrentJobDir(e.Name())
		data, err := os.ReadFile(resolver.SeedPath(jobDir))
		if err != nil {
			continue
		}
		if seed, err := pipeline.ParseSeed(data); err == nil && seed.Name == name {
			return true, nil
		}
	}

	return false, nil
}

func readSeedBody(r *http.Request) ([]byte, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			return nil, perr.NewValidation("seed", "", "Invalid JSON: "+err.Error())
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, perr.NewValidation("seed", "file", "Required fields missing: file")
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(r.Body)
}
