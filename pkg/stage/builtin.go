package stage

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
)

// BuiltinStages returns the default implementation for each of the 11 fixed
// stages, so a pipeline is runnable without any user-supplied task code.
// Tasks register overrides via Registry.RegisterTask for the stages where
// real behavior (parsing a model response, validating domain-specific
// structure, etc.) is needed; everything else falls back to these.
//
// Grounded on the teacher's config/builtin.go ("ship built-in, compiled-in
// defaults alongside user-extensible registries").
func BuiltinStages() TaskStages {
	return TaskStages{
		status.StageIngestion:         passthrough,
		status.StagePreProcessing:     passthrough,
		status.StagePromptTemplating:  promptTemplate,
		status.StageInference:         infer,
		status.StageParsing:           passthrough,
		status.StageValidateStructure: validateStructure,
		status.StageValidateQuality:   validateQuality,
		status.StageCritique:          critique,
		status.StageRefine:            refine,
		status.StageFinalValidation:   passthrough,
		status.StageIntegration:       passthrough,
	}
}

// passthrough forwards the previous stage's output unchanged, with no flags.
// Used by stages a task doesn't need to customize (ingestion, preProcessing,
// parsing, finalValidation, integration by default).
func passthrough(_ context.Context, sc *Context) (Result, error) {
	return Result{Output: sc.Output, Flags: map[string]any{}}, nil
}

// promptTemplate renders the previous output into a prompt string. The
// default implementation simply stringifies it; real pipelines register a
// task-specific implementation reading task config (out of scope per
// spec.md §1 — "LLM provider adapters and prompt templates").
func promptTemplate(_ context.Context, sc *Context) (Result, error) {
	return Result{Output: fmt.Sprintf("%v", sc.Output), Flags: map[string]any{}}, nil
}

// infer calls the stage context's LLM callable with the rendered prompt.
func infer(ctx context.Context, sc *Context) (Result, error) {
	prompt, _ := sc.Output.(string)
	if sc.LLM == nil {
		return Result{Output: prompt, Flags: map[string]any{}}, nil
	}
	out, err := sc.LLM.Complete(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("inference: %w", err)
	}
	return Result{Output: out, Flags: map[string]any{}}, nil
}

// validateStructure is fatal-on-failure (spec.md §4.2: "no retry"). The
// default accepts any non-nil output; tasks needing schema validation
// register their own implementation.
func validateStructure(_ context.Context, sc *Context) (Result, error) {
	if sc.Output == nil {
		return Result{}, fmt.Errorf("validateStructure: empty output")
	}
	return Result{Output: sc.Output, Flags: map[string]any{}}, nil
}

// validateQuality is where the refinementNeeded flag originates. The default
// never requests refinement; tasks needing a quality gate register their own
// implementation that sets flags["refinementNeeded"] = true.
func validateQuality(_ context.Context, sc *Context) (Result, error) {
	return Result{Output: sc.Output, Flags: map[string]any{"refinementNeeded": false}}, nil
}

// critique produces feedback to drive the next refine pass. The default is
// a no-op that passes the output through.
func critique(_ context.Context, sc *Context) (Result, error) {
	return Result{Output: sc.Output, Flags: map[string]any{}}, nil
}

// refine applies the critique's feedback before looping back to
// promptTemplating. The default is a no-op pass-through.
func refine(_ context.Context, sc *Context) (Result, error) {
	return Result{Output: sc.Output, Flags: map[string]any{}}, nil
}
