// Package runner implements the pipeline runner (spec.md §4.2): the
// per-job worker that reconciles a job's status snapshot against its
// pipeline configuration, then drives each task through the fixed 11-stage
// lifecycle with a bounded critique/refine loop, persisting a snapshot after
// every transition and promoting the job directory to complete/ on success.
//
// Grounded on the teacher's pkg/agent/controller iteration loop
// (iterating.go: run a step, merge output/flags, check a continuation flag,
// loop or advance) generalized from a variable-length tool-call loop to the
// fixed 11-stage sequence, and on pkg/queue.Worker's poll/execute/persist
// cycle generalized from queue-polling to a single assigned jobId.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/perr"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pipeline"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/stage"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
)

// primarySequence is every stage up to and including the quality gate.
var primarySequence = []status.Stage{
	status.StageIngestion,
	status.StagePreProcessing,
	status.StagePromptTemplating,
	status.StageInference,
	status.StageParsing,
	status.StageValidateStructure,
	status.StageValidateQuality,
}

// refinableFrom is the index primarySequence restarts from after a refine
// pass (promptTemplating), per spec.md §4.2 bullet 5.
const refinableFrom = 2

var tailSequence = []status.Stage{
	status.StageFinalValidation,
	status.StageIntegration,
}

// Clock is injected so tests can control "now" deterministically.
type Clock func() time.Time

// Runner executes one job's pipeline to completion or terminal failure.
// One Runner instance per worker process, per jobId (spec.md §4.2: "a
// single jobId argument").
type Runner struct {
	Resolver              *pathfs.Resolver
	JobID                 string
	Registry              *stage.Registry
	LLM                   stage.LLM
	DefaultMaxRefinements int
	Log                   *slog.Logger

	now Clock

	previousTaskOutputs map[string]any
}

// New builds a Runner. log may be nil, in which case slog.Default() is used.
func New(resolver *pathfs.Resolver, jobID string, registry *stage.Registry, llm stage.LLM, defaultMaxRefinements int, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		Resolver:              resolver,
		JobID:                 jobID,
		Registry:              registry,
		LLM:                   llm,
		DefaultMaxRefinements: defaultMaxRefinements,
		Log:                   log,
		now:                   time.Now,
		previousTaskOutputs:   map[string]any{},
	}
}

// WithClock overrides the clock (for deterministic tests).
func (r *Runner) WithClock(c Clock) *Runner {
	r.now = c
	return r
}

// Run executes the startup sequence then the task execution loop
// (spec.md §4.2). Returns nil only on full job success (directory moved to
// complete/); any task failure returns a non-nil error and leaves the job
// directory in current/ with state="failed" for post-mortem.
func (r *Runner) Run(ctx context.Context) error {
	jobDir := r.Resolver.CurrentJobDir(r.JobID)

	seedData, err := os.ReadFile(r.Resolver.SeedPath(jobDir))
	if err != nil {
		return fmt.Errorf("runner: read seed: %w", err)
	}
	seed, err := pipeline.ParseSeed(seedData)
	if err != nil {
		return fmt.Errorf("runner: seed %s is invalid: %w", r.JobID, err)
	}

	slug := seed.Pipeline
	manifest, err := pipeline.LoadManifest(r.Resolver, slug)
	if err != nil {
		return fmt.Errorf("runner: load manifest %q: %w", slug, err)
	}

	statusPath := r.Resolver.StatusPath(jobDir)
	writer, err := status.LoadInto(statusPath)
	if err != nil {
		return fmt.Errorf("runner: load status: %w", err)
	}

	if err := r.reconcile(writer, manifest); err != nil {
		return fmt.Errorf("runner: reconcile: %w", err)
	}

	for _, taskID := range manifest.Tasks {
		snap := writer.Current()
		t, ok := snap.Tasks[taskID]
		if !ok {
			return fmt.Errorf("runner: task %q missing from snapshot after reconcile", taskID)
		}
		switch t.State {
		case status.TaskDone:
			continue
		case status.TaskFailed:
			return fmt.Errorf("runner: job %s aborted, task %q already failed", r.JobID, taskID)
		}

		max := manifest.MaxRefinementsFor(taskID, r.DefaultMaxRefinements)
		if err := r.runTask(ctx, writer, jobDir, seed.Data, taskID, max); err != nil {
			r.Log.Error("task failed", "jobId", r.JobID, "taskId", taskID, "err", err)
			return err
		}
	}

	return r.complete(jobDir)
}

// reconcile adds any manifest task missing from the snapshot as pending
// (new tasks added to the pipeline config after the job started), and
// resets any task found running back to pending — its stage state was not
// flushed, so it must re-execute from the top (spec.md §4.2 step 3).
func (r *Runner) reconcile(writer *status.Writer, manifest *pipeline.Manifest) error {
	snap := writer.Current()
	var missing []string
	var running []string
	for _, taskID := range manifest.Tasks {
		t, ok := snap.Tasks[taskID]
		if !ok {
			missing = append(missing, taskID)
			continue
		}
		if t.State == status.TaskRunning {
			running = append(running, taskID)
		}
	}

	if len(missing) > 0 {
		if _, err := writer.Write(func(s *status.Snapshot) {
			for _, taskID := range missing {
				s.Tasks[taskID] = &status.TaskStatus{
					State: status.TaskPending,
					Files: status.FileList{Artifacts: []string{}, Logs: []string{}, Tmp: []string{}},
				}
			}
		}); err != nil {
			return err
		}
	}

	for _, taskID := range running {
		if _, err := writer.ResetSingleTask(taskID, false); err != nil {
			return err
		}
	}
	return nil
}

// runTask drives one task through the 11-stage lifecycle. seedData is the
// job seed's data object, the input to the ingestion stage.
func (r *Runner) runTask(ctx context.Context, writer *status.Writer, jobDir string, seedData map[string]any, taskID string, maxRefinements int) error {
	startedAt := r.now().UTC()
	if _, err := writer.Write(func(s *status.Snapshot) {
		t := s.Tasks[taskID]
		t.State = status.TaskRunning
		stg := status.StageIngestion
		t.CurrentStage = &stg
		t.Attempts++
		t.StartedAt = &startedAt
		s.State = status.JobRunning
		s.Current = &taskID
		s.CurrentStage = &stg
	}); err != nil {
		return err
	}

	io := newJailedIO(r.Resolver, jobDir, taskID, writer)
	sc := &stage.Context{
		Seed:                seedData,
		Data:                map[string]any{},
		PreviousTaskOutputs: r.previousTaskOutputs,
		PreviousStage:       "seed",
		Output:              seedData,
		Flags:               map[string]any{},
		IO:                  io,
		LLM:                 r.LLM,
		Meta:                stage.Meta{JobID: r.JobID, TaskID: taskID},
	}

	for _, st := range primarySequence {
		sc.Meta.Stage = st
		sc.Meta.Attempt = 1
		res, err := r.runStage(ctx, writer, taskID, st, sc)
		if err != nil {
			return r.failTask(writer, taskID, st, err)
		}
		mergeStageResult(sc, st, res)

		if st == status.StageValidateQuality {
			for {
				if !truthy(sc.Flags["refinementNeeded"]) {
					break
				}
				snap := writer.Current()
				attempts := snap.Tasks[taskID].RefinementAttempts
				if attempts >= maxRefinements {
					return r.failTask(writer, taskID, status.StageRefine,
						fmt.Errorf("refinement bound exceeded: %d attempts >= max %d", attempts, maxRefinements))
				}

				critiqueRes, err := r.runStage(ctx, writer, taskID, status.StageCritique, sc)
				if err != nil {
					return r.failTask(writer, taskID, status.StageCritique, err)
				}
				mergeStageResult(sc, status.StageCritique, critiqueRes)

				refineRes, err := r.runStage(ctx, writer, taskID, status.StageRefine, sc)
				if err != nil {
					return r.failTask(writer, taskID, status.StageRefine, err)
				}
				mergeStageResult(sc, status.StageRefine, refineRes)

				if _, err := writer.Write(func(s *status.Snapshot) {
					s.Tasks[taskID].RefinementAttempts++
				}); err != nil {
					return err
				}

				delete(sc.Flags, "refinementNeeded")
				for i := refinableFrom; i < len(primarySequence); i++ {
					st := primarySequence[i]
					sc.Meta.Stage = st
					res, err := r.runStage(ctx, writer, taskID, st, sc)
					if err != nil {
						return r.failTask(writer, taskID, st, err)
					}
					mergeStageResult(sc, st, res)
				}
			}
		}
	}

	for _, st := range tailSequence {
		sc.Meta.Stage = st
		res, err := r.runStage(ctx, writer, taskID, st, sc)
		if err != nil {
			return r.failTask(writer, taskID, st, err)
		}
		mergeStageResult(sc, st, res)
	}

	endedAt := r.now().UTC()
	_, err := writer.Write(func(s *status.Snapshot) {
		t := s.Tasks[taskID]
		t.State = status.TaskDone
		t.CurrentStage = nil
		t.EndedAt = &endedAt
		if t.StartedAt != nil {
			ms := endedAt.Sub(*t.StartedAt).Milliseconds()
			t.ExecutionTimeMs = &ms
		}
		s.Current = nil
		s.CurrentStage = nil
		if allTasksDone(s) {
			s.State = status.JobComplete
		} else {
			s.State = status.JobPending
		}
	})
	if err != nil {
		return err
	}

	r.previousTaskOutputs[taskID] = sc.Output
	return nil
}

// runStage records the currentStage transition, then invokes the stage
// function resolved from the registry (spec.md §4.2 step 4).
func (r *Runner) runStage(ctx context.Context, writer *status.Writer, taskID string, st status.Stage, sc *stage.Context) (stage.Result, error) {
	if _, err := writer.Write(func(s *status.Snapshot) {
		stg := st
		s.Tasks[taskID].CurrentStage = &stg
		s.CurrentStage = &stg
	}); err != nil {
		return stage.Result{}, fmt.Errorf("%w: recording stage %s: %v", perr.ErrFatalIO, st, err)
	}

	fn, err := r.Registry.Get(taskID, st)
	if err != nil {
		return stage.Result{}, err
	}
	return fn(ctx, sc)
}

// failTask records a task failure and the job-level failed state.
func (r *Runner) failTask(writer *status.Writer, taskID string, failedStage status.Stage, cause error) error {
	endedAt := r.now().UTC()
	_, err := writer.Write(func(s *status.Snapshot) {
		t := s.Tasks[taskID]
		t.State = status.TaskFailed
		stg := failedStage
		t.FailedStage = &stg
		t.CurrentStage = nil
		t.EndedAt = &endedAt
		t.Error = &status.ErrorInfo{Message: cause.Error()}
		s.State = status.JobFailed
		s.Current = nil
		s.CurrentStage = nil
	})
	if err != nil {
		r.Log.Error("failed to persist task failure", "jobId", r.JobID, "taskId", taskID, "writeErr", err)
	}
	return &perr.StageError{Stage: string(failedStage), Message: cause.Error()}
}

// complete atomically promotes the job directory from current/ to
// complete/ (spec.md §4.2 "Completion").
func (r *Runner) complete(jobDir string) error {
	dst := r.Resolver.CompleteJobDir(r.JobID)
	if err := pathfs.SafeMove(jobDir, dst); err != nil {
		return fmt.Errorf("%w: promoting job to complete: %v", perr.ErrFatalIO, err)
	}
	return nil
}

func mergeStageResult(sc *stage.Context, st status.Stage, res stage.Result) {
	sc.Data[string(st)] = res.Output
	sc.Output = res.Output
	sc.PreviousStage = string(st)
	for k, v := range res.Flags {
		sc.Flags[k] = v
	}
}

func allTasksDone(s *status.Snapshot) bool {
	for _, t := range s.Tasks {
		if t.State != status.TaskDone {
			return false
		}
	}
	return true
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
