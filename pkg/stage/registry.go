package stage

import (
	"fmt"
	"sync"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
)

// Registry is the compile-time table of taskId -> stage -> implementation,
// replacing the source system's runtime module resolution (spec.md §9).
//
// Grounded on the teacher's config.BuiltinAgents / builtin.go pattern: a
// small set of compiled-in defaults, extensible by explicit registration,
// rather than a dynamic plugin loader.
type Registry struct {
	mu       sync.RWMutex
	tasks    map[string]TaskStages
	defaults TaskStages
}

// NewRegistry creates a Registry seeded with the builtin default stage set
// (see builtin.go), used for any task that doesn't register its own
// implementation of a given stage.
func NewRegistry() *Registry {
	return &Registry{
		tasks:    make(map[string]TaskStages),
		defaults: BuiltinStages(),
	}
}

// RegisterTask installs (or replaces) the stage implementations for taskID.
// Stages not present in the map fall back to the builtin defaults.
func (r *Registry) RegisterTask(taskID string, stages TaskStages) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[taskID] = stages
}

// Get resolves the Func for (taskID, stageName), falling back to the
// builtin default, then erroring if neither is registered.
func (r *Registry) Get(taskID string, stageName status.Stage) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if stages, ok := r.tasks[taskID]; ok {
		if fn, ok := stages[stageName]; ok {
			return fn, nil
		}
	}
	if fn, ok := r.defaults[stageName]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("stage: no implementation registered for task %q stage %q", taskID, stageName)
}
