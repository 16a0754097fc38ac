package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinStages_CoversAllElevenStages(t *testing.T) {
	stages := BuiltinStages()
	for _, s := range status.Stages {
		_, ok := stages[s]
		assert.True(t, ok, "missing builtin for stage %q", s)
	}
}

func TestPassthrough_ForwardsOutput(t *testing.T) {
	res, err := passthrough(context.Background(), &Context{Output: 42})
	require.NoError(t, err)
	assert.Equal(t, 42, res.Output)
}

func TestValidateStructure_RejectsNilOutput(t *testing.T) {
	_, err := validateStructure(context.Background(), &Context{Output: nil})
	require.Error(t, err)
}

func TestValidateQuality_DefaultNeverRequestsRefinement(t *testing.T) {
	res, err := validateQuality(context.Background(), &Context{Output: "x"})
	require.NoError(t, err)
	assert.Equal(t, false, res.Flags["refinementNeeded"])
}

type stubLLM struct {
	out string
	err error
}

func (s stubLLM) Complete(_ context.Context, _ string) (string, error) {
	return s.out, s.err
}

func TestInfer_CallsLLM(t *testing.T) {
	res, err := infer(context.Background(), &Context{Output: "prompt", LLM: stubLLM{out: "response"}})
	require.NoError(t, err)
	assert.Equal(t, "response", res.Output)
}

func TestInfer_NoLLMConfigured_PassesPromptThrough(t *testing.T) {
	res, err := infer(context.Background(), &Context{Output: "prompt"})
	require.NoError(t, err)
	assert.Equal(t, "prompt", res.Output)
}

func TestInfer_PropagatesLLMError(t *testing.T) {
	sentinel := errors.New("provider down")
	_, err := infer(context.Background(), &Context{Output: "prompt", LLM: stubLLM{err: sentinel}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
}
