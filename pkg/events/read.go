package events

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/perr"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
)

// Location names the phase directory a job was found in.
type Location string

const (
	LocationCurrent  Location = "current"
	LocationComplete Location = "complete"
)

// ReadJob resolves jobId by probing current/ then complete/ (spec.md §4.4
// "readJob"), returning the canonical payload and where it was found.
// Returns perr.ErrNotFound if the job exists in neither phase.
//
// Grounded on the teacher's services.SessionService read methods
// (phase-probing a resource by trying the known locations in order).
func ReadJob(resolver *pathfs.Resolver, jobID string) (*CanonicalJob, Location, error) {
	if snap, err := status.Load(resolver.StatusPath(resolver.CurrentJobDir(jobID))); err == nil {
		return Transform(snap), LocationCurrent, nil
	} else if !errors.Is(err, perr.ErrNotFound) {
		return nil, "", fmt.Errorf("events: read current job %s: %w", jobID, err)
	}

	if snap, err := status.Load(resolver.StatusPath(resolver.CompleteJobDir(jobID))); err == nil {
		return Transform(snap), LocationComplete, nil
	} else if !errors.Is(err, perr.ErrNotFound) {
		return nil, "", fmt.Errorf("events: read complete job %s: %w", jobID, err)
	}

	return nil, "", fmt.Errorf("%w: job %s", perr.ErrNotFound, jobID)
}

// ListJobs returns canonical summaries across current/ and complete/
// (spec.md §6 "/api/jobs").
func ListJobs(resolver *pathfs.Resolver) ([]*CanonicalJob, error) {
	var out []*CanonicalJob

	for _, dir := range []string{resolver.Current(), resolver.Complete()} {
		entries, err := readJobDirs(dir)
		if err != nil {
			return nil, err
		}
		for _, jobID := range entries {
			job, _, err := ReadJob(resolver, jobID)
			if err != nil {
				continue // a job directory mid-write or missing its status file is skipped, not fatal
			}
			out = append(out, job)
		}
	}
	return out, nil
}

func readJobDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil // a missing phase directory yields an empty list, not an error
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
