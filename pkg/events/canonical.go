package events

import (
	"strings"
	"time"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
)

// TaskSummary is one entry of a CanonicalJob's tasksStatus map: a
// status.TaskStatus with its State enum normalized and an optional warning
// tag when the raw document carried an unrecognized value.
type TaskSummary struct {
	status.TaskStatus
	Warning string `json:"warning,omitempty"`
}

// CanonicalJob is the wire shape every API response and SSE payload uses
// (spec.md §4.4 "list transformer"). It renames the raw snapshot's `tasks`
// field to `tasksStatus` and attaches derived fields the raw snapshot
// doesn't carry.
type CanonicalJob struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Pipeline        string                  `json:"pipeline"`
	PipelineLabel   string                  `json:"pipelineLabel"`
	Status          string                  `json:"status"`
	Current         *string                 `json:"current"`
	CurrentStage    *string                 `json:"currentStage"`
	CreatedAt       time.Time               `json:"createdAt"`
	LastUpdated     time.Time               `json:"lastUpdated"`
	Progress        int                     `json:"progress"`
	DisplayCategory string                  `json:"displayCategory"`
	TasksStatus     map[string]*TaskSummary `json:"tasksStatus"`
	Files           status.FileList         `json:"files"`
}

// validTaskStates is the known enum; anything else normalizes to pending
// with a warning tag (spec.md §4.4: "unknowns -> pending with a warning
// tag").
var validTaskStates = map[status.TaskState]bool{
	status.TaskPending: true,
	status.TaskRunning: true,
	status.TaskDone:    true,
	status.TaskFailed:  true,
}

// Transform maps a raw status.Snapshot into its canonical API shape
// (spec.md §4.4 "The list transformer maps the raw snapshot...").
func Transform(snap *status.Snapshot) *CanonicalJob {
	tasksStatus := make(map[string]*TaskSummary, len(snap.Tasks))
	doneCount := 0
	anyFailed := false
	anyRunning := false

	for taskID, t := range snap.Tasks {
		summary := &TaskSummary{TaskStatus: *t}
		if !validTaskStates[t.State] {
			summary.State = status.TaskPending
			summary.Warning = "unrecognized task state normalized to pending"
		}
		switch summary.State {
		case status.TaskDone:
			doneCount++
		case status.TaskFailed:
			anyFailed = true
		case status.TaskRunning:
			anyRunning = true
		}
		tasksStatus[taskID] = summary
	}

	taskCount := len(snap.Tasks)
	progress := 0
	if taskCount > 0 {
		progress = int((100*doneCount + taskCount/2) / taskCount) // round to nearest
	}

	derivedStatus := deriveStatus(snap.State, anyFailed, anyRunning, doneCount, taskCount)

	return &CanonicalJob{
		ID:              snap.ID,
		Name:            snap.Name,
		Pipeline:        snap.Pipeline,
		PipelineLabel:   humanizeSlug(snap.Pipeline),
		Status:          derivedStatus,
		Current:         snap.Current,
		CurrentStage:    stagePtrToStringPtr(snap.CurrentStage),
		CreatedAt:       snap.CreatedAt,
		LastUpdated:     snap.LastUpdated,
		Progress:        progress,
		DisplayCategory: classify(derivedStatus, anyFailed, anyRunning, doneCount, taskCount),
		TasksStatus:     tasksStatus,
		Files:           snap.Files,
	}
}

// deriveStatus uses the snapshot's own state when present; it's always
// present for documents this module writes, but the derivation rule exists
// for documents read from elsewhere that omit it (spec.md §4.4: "derives
// status from task states when the snapshot omits it").
func deriveStatus(raw status.JobState, anyFailed, anyRunning bool, doneCount, taskCount int) string {
	if raw != "" {
		return string(raw)
	}
	if anyFailed {
		return string(status.JobFailed)
	}
	if anyRunning {
		return string(status.JobRunning)
	}
	if taskCount > 0 && doneCount == taskCount {
		return string(status.JobComplete)
	}
	return string(status.JobPending)
}

// classify buckets a job into errors/current/complete for UI grouping
// (spec.md §4.4 displayCategory rule, priority order as written).
func classify(derivedStatus string, anyFailed, anyRunning bool, doneCount, taskCount int) string {
	if anyFailed || derivedStatus == string(status.JobFailed) {
		return "errors"
	}
	if anyRunning || derivedStatus == string(status.JobRunning) {
		return "current"
	}
	if taskCount > 0 && doneCount == taskCount {
		return "complete"
	}
	return "current"
}

// humanizeSlug turns "my-pipeline-slug" into "My Pipeline Slug".
func humanizeSlug(slug string) string {
	if slug == "" {
		return ""
	}
	parts := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func stagePtrToStringPtr(s *status.Stage) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
