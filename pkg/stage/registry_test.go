package stage

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FallsBackToBuiltinDefault(t *testing.T) {
	r := NewRegistry()
	fn, err := r.Get("unknown-task", status.StageIngestion)
	require.NoError(t, err)

	res, err := fn(context.Background(), &Context{Output: "seed-data"})
	require.NoError(t, err)
	assert.Equal(t, "seed-data", res.Output)
}

func TestRegistry_TaskOverrideTakesPrecedence(t *testing.T) {
	r := NewRegistry()
	called := false
	r.RegisterTask("t1", TaskStages{
		status.StageParsing: func(_ context.Context, sc *Context) (Result, error) {
			called = true
			return Result{Output: "parsed", Flags: map[string]any{}}, nil
		},
	})

	fn, err := r.Get("t1", status.StageParsing)
	require.NoError(t, err)
	res, err := fn(context.Background(), &Context{})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "parsed", res.Output)
}

func TestRegistry_TaskOverridePartial_FallsBackForOtherStages(t *testing.T) {
	r := NewRegistry()
	r.RegisterTask("t1", TaskStages{
		status.StageParsing: func(_ context.Context, sc *Context) (Result, error) {
			return Result{Output: "parsed", Flags: map[string]any{}}, nil
		},
	})

	fn, err := r.Get("t1", status.StageIngestion)
	require.NoError(t, err)
	res, err := fn(context.Background(), &Context{Output: "raw"})
	require.NoError(t, err)
	assert.Equal(t, "raw", res.Output)
}

func TestRegistry_UnknownStage_Errors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("t1", status.Stage("not-a-real-stage"))
	require.Error(t, err)
}
