// Package stage defines the stage function interface every task stage
// implements, and the compile-time registry mapping taskId -> stage -> impl.
//
// Grounded on spec.md §9's re-architecture note: "dynamic stage functions
// loaded from user files -> define a stage interface ... plus a registry
// mapping taskId -> {stage -> implementation} ... compile-time registration".
// The iteration shape (run a step, merge output/flags, check a continuation
// flag) generalizes the teacher's pkg/agent/controller iteration loop
// (iterating.go, react.go).
package stage

import (
	"context"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
)

// IO grants a stage write access to a job's files/{artifacts,logs,tmp}/
// directories and an append-only log sink. Implementations must enforce the
// path jail (spec.md §4.5) — see pkg/runner for the concrete implementation.
type IO interface {
	// WriteArtifact writes name under files/artifacts/, registering it in
	// the task's snapshot file list.
	WriteArtifact(name string, data []byte) error
	// WriteLog appends a line to files/logs/<name>, registering it if new.
	WriteLog(name string, line string) error
	// WriteTmp writes name under files/tmp/, registering it.
	WriteTmp(name string, data []byte) error
}

// LLM is the opaque model-inference callable; its implementation (provider
// adapters, prompt templates) is out of scope per spec.md §1.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Meta identifies the call site of a stage invocation.
type Meta struct {
	JobID   string
	TaskID  string
	Stage   status.Stage
	Attempt int
}

// Context is passed to every stage function (spec.md §4.2 "Stage context").
type Context struct {
	Seed                map[string]any
	Data                map[string]any // prior stage outputs within this task, keyed by stage name
	PreviousTaskOutputs map[string]any
	PreviousStage       string // the stage just executed, or "seed" for ingestion
	Output              any    // output of the previous stage (or the seed for ingestion)
	Flags               map[string]any
	IO                  IO
	LLM                 LLM
	Meta                Meta
}

// Result is what a stage function returns on success (spec.md §4.2 "Stage
// contract"). Flags must be a flat map; reserved names include
// refinementNeeded and validationFailed.
type Result struct {
	Output any
	Flags  map[string]any
}

// Func is the signature every stage implementation satisfies.
type Func func(ctx context.Context, sc *Context) (Result, error)

// TaskStages maps each of the 11 fixed stage names to an implementation for
// one taskId. A task need not override every stage — Registry.Get falls back
// to the builtin default for any stage the task doesn't register.
type TaskStages map[status.Stage]Func
