package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
)

func TestTransform_RenamesTasksToTasksStatus(t *testing.T) {
	snap := &status.Snapshot{
		ID: "job1", Name: "Job One", Pipeline: "review-pr",
		State: status.JobRunning, CreatedAt: time.Now(), LastUpdated: time.Now(),
		Tasks: map[string]*status.TaskStatus{
			"task-a": {State: status.TaskDone},
			"task-b": {State: status.TaskRunning},
		},
		Files: status.FileList{},
	}

	canon := Transform(snap)
	require.Len(t, canon.TasksStatus, 2)
	assert.Equal(t, status.TaskDone, canon.TasksStatus["task-a"].State)
	assert.Equal(t, "Review Pr", canon.PipelineLabel)
}

func TestTransform_ProgressIsRoundedPercentDone(t *testing.T) {
	snap := &status.Snapshot{
		Tasks: map[string]*status.TaskStatus{
			"a": {State: status.TaskDone},
			"b": {State: status.TaskDone},
			"c": {State: status.TaskPending},
		},
	}
	canon := Transform(snap)
	assert.Equal(t, 67, canon.Progress) // 2/3 -> 66.67 rounds to 67
}

func TestTransform_UnknownTaskState_NormalizesToPendingWithWarning(t *testing.T) {
	snap := &status.Snapshot{
		Tasks: map[string]*status.TaskStatus{
			"a": {State: status.TaskState("bogus")},
		},
	}
	canon := Transform(snap)
	assert.Equal(t, status.TaskPending, canon.TasksStatus["a"].State)
	assert.NotEmpty(t, canon.TasksStatus["a"].Warning)
}

func TestTransform_DerivesStatusWhenStateOmitted(t *testing.T) {
	snap := &status.Snapshot{
		Tasks: map[string]*status.TaskStatus{
			"a": {State: status.TaskFailed},
			"b": {State: status.TaskDone},
		},
	}
	canon := Transform(snap)
	assert.Equal(t, string(status.JobFailed), canon.Status)
	assert.Equal(t, "errors", canon.DisplayCategory)
}

func TestTransform_DisplayCategory_CompleteWhenAllTasksDone(t *testing.T) {
	snap := &status.Snapshot{
		State: status.JobComplete,
		Tasks: map[string]*status.TaskStatus{
			"a": {State: status.TaskDone},
		},
	}
	canon := Transform(snap)
	assert.Equal(t, "complete", canon.DisplayCategory)
}

func TestTransform_DisplayCategory_CurrentWhenRunning(t *testing.T) {
	snap := &status.Snapshot{
		State: status.JobRunning,
		Tasks: map[string]*status.TaskStatus{
			"a": {State: status.TaskRunning},
		},
	}
	canon := Transform(snap)
	assert.Equal(t, "current", canon.DisplayCategory)
}

func TestHumanizeSlug(t *testing.T) {
	assert.Equal(t, "Review Pr", humanizeSlug("review-pr"))
	assert.Equal(t, "Code Review Flow", humanizeSlug("code_review_flow"))
	assert.Equal(t, "", humanizeSlug(""))
}
