// Package status defines the authoritative job status snapshot
// (tasks-status.json) and the only component permitted to mutate it.
//
// Grounded on the teacher's pkg/session.Session (mutex-guarded struct with
// SetStatus/SetError mutator methods) generalized from a single in-process
// object to a per-job document with a stable on-disk schema, plus rig's
// internal/core.State (JSON-tagged tree, phase enum, Transition validation).
package status

import "time"

// JobState is the root-level lifecycle state of a job.
type JobState string

const (
	JobPending  JobState = "pending"
	JobRunning  JobState = "running"
	JobComplete JobState = "complete"
	JobFailed   JobState = "failed"
)

// TaskState is the lifecycle state of a single task within a job.
type TaskState string

const (
	TaskPending TaskState = "pending"
	TaskRunning TaskState = "running"
	TaskDone    TaskState = "done"
	TaskFailed  TaskState = "failed"
)

// Stage is one of the 11 fixed stages of a task, in execution order.
type Stage string

const (
	StageIngestion         Stage = "ingestion"
	StagePreProcessing     Stage = "preProcessing"
	StagePromptTemplating  Stage = "promptTemplating"
	StageInference         Stage = "inference"
	StageParsing           Stage = "parsing"
	StageValidateStructure Stage = "validateStructure"
	StageValidateQuality   Stage = "validateQuality"
	StageCritique          Stage = "critique"
	StageRefine            Stage = "refine"
	StageFinalValidation   Stage = "finalValidation"
	StageIntegration       Stage = "integration"
)

// Stages is the fixed, ordered stage sequence every task executes.
var Stages = []Stage{
	StageIngestion,
	StagePreProcessing,
	StagePromptTemplating,
	StageInference,
	StageParsing,
	StageValidateStructure,
	StageValidateQuality,
	StageCritique,
	StageRefine,
	StageFinalValidation,
	StageIntegration,
}

// TokenUsage records a single model call's token accounting.
type TokenUsage struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
}

// ErrorInfo captures a task failure for persistence and display.
type ErrorInfo struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	Debug   string `json:"debug,omitempty"`
}

// FileList is the set of filenames (no paths) registered under one kind.
type FileList struct {
	Artifacts []string `json:"artifacts"`
	Logs      []string `json:"logs"`
	Tmp       []string `json:"tmp"`
}

// TaskStatus is a single task's entry in the snapshot.
type TaskStatus struct {
	State              TaskState    `json:"state"`
	CurrentStage       *Stage       `json:"currentStage"`
	FailedStage        *Stage       `json:"failedStage,omitempty"`
	Attempts           int          `json:"attempts"`
	RefinementAttempts int          `json:"refinementAttempts"`
	StartedAt          *time.Time   `json:"startedAt"`
	EndedAt            *time.Time   `json:"endedAt"`
	ExecutionTimeMs    *int64       `json:"executionTimeMs"`
	TokenUsage         []TokenUsage `json:"tokenUsage"`
	Error              *ErrorInfo   `json:"error"`
	Files              FileList     `json:"files"`
}

// Snapshot is the full authoritative document at tasks-status.json.
type Snapshot struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Pipeline     string                 `json:"pipeline"`
	State        JobState               `json:"state"`
	Current      *string                `json:"current"`
	CurrentStage *Stage                 `json:"currentStage"`
	CreatedAt    time.Time              `json:"createdAt"`
	LastUpdated  time.Time              `json:"lastUpdated"`
	Tasks        map[string]*TaskStatus `json:"tasks"`
	Files        FileList               `json:"files"`
}

// NewSnapshot builds the initial snapshot for a freshly promoted job: state
// pending, current nil, and one pending TaskStatus per taskID in pipeline
// order.
func NewSnapshot(jobID, name, pipelineSlug string, taskIDs []string, now time.Time) *Snapshot {
	tasks := make(map[string]*TaskStatus, len(taskIDs))
	for _, id := range taskIDs {
		tasks[id] = &TaskStatus{State: TaskPending, Files: emptyFileList()}
	}
	return &Snapshot{
		ID:          jobID,
		Name:        name,
		Pipeline:    pipelineSlug,
		State:       JobPending,
		CreatedAt:   now,
		LastUpdated: now,
		Tasks:       tasks,
		Files:       emptyFileList(),
	}
}

// emptyFileList returns a FileList with empty (not nil) slices, so it
// marshals to JSON as [] rather than null per spec.md §3's schema.
func emptyFileList() FileList {
	return FileList{Artifacts: []string{}, Logs: []string{}, Tmp: []string{}}
}

// Clone deep-copies the snapshot so callers can mutate the copy and discard
// it on validation failure without corrupting the published in-memory
// snapshot (spec.md §4.3 step 1).
func (s *Snapshot) Clone() *Snapshot {
	clone := *s
	clone.Tasks = make(map[string]*TaskStatus, len(s.Tasks))
	for id, t := range s.Tasks {
		tc := *t
		if t.CurrentStage != nil {
			v := *t.CurrentStage
			tc.CurrentStage = &v
		}
		if t.FailedStage != nil {
			v := *t.FailedStage
			tc.FailedStage = &v
		}
		if t.StartedAt != nil {
			v := *t.StartedAt
			tc.StartedAt = &v
		}
		if t.EndedAt != nil {
			v := *t.EndedAt
			tc.EndedAt = &v
		}
		if t.ExecutionTimeMs != nil {
			v := *t.ExecutionTimeMs
			tc.ExecutionTimeMs = &v
		}
		if t.Error != nil {
			e := *t.Error
			tc.Error = &e
		}
		tc.TokenUsage = append([]TokenUsage{}, t.TokenUsage...)
		tc.Files = cloneFileList(t.Files)
		clone.Tasks[id] = &tc
	}
	if s.Current != nil {
		v := *s.Current
		clone.Current = &v
	}
	if s.CurrentStage != nil {
		v := *s.CurrentStage
		clone.CurrentStage = &v
	}
	clone.Files = cloneFileList(s.Files)
	return &clone
}

func cloneFileList(f FileList) FileList {
	return FileList{
		Artifacts: append([]string{}, f.Artifacts...),
		Logs:      append([]string{}, f.Logs...),
		Tmp:       append([]string{}, f.Tmp...),
	}
}
