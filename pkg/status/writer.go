package status

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/perr"
)

// Clock is injected so tests can control "now" deterministically; production
// code uses time.Now.
type Clock func() time.Time

// Mutation is applied to a cloned snapshot; it must not retain references
// into the snapshot it was handed beyond the call.
type Mutation func(*Snapshot)

// Writer is the only component permitted to mutate a job's tasks-status.json
// (spec.md §4.3). One Writer instance should be used per job within a single
// worker process — all writes are serialized through an internal mutex.
//
// Grounded on the teacher's pkg/session.Session thread-safety pattern
// (RWMutex-guarded struct, mutator methods) generalized to a file-backed
// document, and on rig's SaveState atomic-write sequence.
type Writer struct {
	mu       sync.Mutex
	path     string
	current  *Snapshot
	now      Clock
	resolver *pathfs.Resolver
}

// NewWriter creates a Writer for the snapshot at path. initial is the
// snapshot to use as the in-memory cache and must not be nil — callers that
// are resuming an existing job on disk use LoadInto instead.
func NewWriter(path string, initial *Snapshot) *Writer {
	return &Writer{path: path, current: initial, now: time.Now}
}

// WithClock overrides the clock (for deterministic tests).
func (w *Writer) WithClock(c Clock) *Writer {
	w.now = c
	return w
}

// Load reads and decodes the snapshot at path; it does not touch any
// Writer. Returns perr.ErrNotFound if no file exists yet.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.ErrNotFound
		}
		return nil, fmt.Errorf("status: read %s: %w", path, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("status: unmarshal %s: %w", path, err)
	}
	return &s, nil
}

// LoadInto builds a Writer from an on-disk snapshot at path.
func LoadInto(path string) (*Writer, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewWriter(path, snap), nil
}

// Current returns the cached in-memory snapshot (the last successfully
// written value). Safe for concurrent reads.
func (w *Writer) Current() *Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.Clone()
}

// Write applies mutate to a deep copy of the current snapshot, validates
// invariants, bumps lastUpdated, and durably persists it via copy-on-write +
// atomic rename (spec.md §4.3, the full seven-step write protocol).
func (w *Writer) Write(mutate Mutation) (*Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.current.Clone()
	mutate(next)
	next.LastUpdated = w.now().UTC()

	if err := validate(next, w.current); err != nil {
		return nil, fmt.Errorf("%w: %s", perr.ErrInvariantViolation, err)
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("status: marshal snapshot: %w", err)
	}

	if err := pathfs.AtomicWrite(w.path, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %s", perr.ErrFatalIO, err)
	}

	w.current = next
	return next.Clone(), nil
}

// ResetSingleTask returns a task to pending, clearing attempts,
// refinementAttempts, failedStage, and error; optionally clearing
// tokenUsage. Files lists and all other tasks are untouched (spec.md §4.3
// "Reset semantics"). Root fields change only as far as the invariants
// require: current/currentStage are cleared if they named this task (a
// running job then returns to pending), and a complete job, or a failed job
// with no failed task left, returns to pending.
func (w *Writer) ResetSingleTask(taskID string, clearTokenUsage bool) (*Snapshot, error) {
	return w.Write(func(s *Snapshot) {
		t, ok := s.Tasks[taskID]
		if !ok {
			return
		}
		t.State = TaskPending
		t.CurrentStage = nil
		t.FailedStage = nil
		t.Attempts = 0
		t.RefinementAttempts = 0
		t.Error = nil
		t.StartedAt = nil
		t.EndedAt = nil
		t.ExecutionTimeMs = nil
		if clearTokenUsage {
			t.TokenUsage = []TokenUsage{}
		}
		if s.Current != nil && *s.Current == taskID {
			s.Current = nil
			s.CurrentStage = nil
			if s.State == JobRunning {
				s.State = JobPending
			}
		}
		if s.State == JobFailed {
			stillFailed := false
			for _, other := range s.Tasks {
				if other.State == TaskFailed {
					stillFailed = true
				}
			}
			if !stillFailed {
				s.State = JobPending
			}
		}
		if s.State == JobComplete {
			s.State = JobPending
		}
	})
}
