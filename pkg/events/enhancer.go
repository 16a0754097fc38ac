package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
)

// Enhancer sits between the change detector and the hub (spec.md §4.4
// "Enhancer"): it debounces per-jobId change notifications with a trailing
// window, re-reads the job on the window firing, and broadcasts a
// job:created the first time a jobId yields a successful read, job:updated
// thereafter. Read failures suppress the broadcast so no stale payload ever
// reaches a client.
//
// Grounded on the same ConnectionManager/NotifyListener pairing as the hub,
// restructured as a map[jobId]*time.Timer guarded by a mutex — directly
// analogous to how the teacher's pkg/queue.WorkerPool tracks
// map[string]context.CancelFunc.
type Enhancer struct {
	resolver *pathfs.Resolver
	hub      *Hub
	window   time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	seen   map[string]bool
}

// NewEnhancer builds an Enhancer. window is the debounce window (spec.md
// §4.4 default 200ms). log may be nil (slog.Default() is used).
func NewEnhancer(resolver *pathfs.Resolver, hub *Hub, window time.Duration, log *slog.Logger) *Enhancer {
	if window <= 0 {
		window = 200 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Enhancer{
		resolver: resolver,
		hub:      hub,
		window:   window,
		log:      log,
		timers:   make(map[string]*time.Timer),
		seen:     make(map[string]bool),
	}
}

// OnChange is called by the change detector for every change touching
// jobID's directory tree. It (re)starts jobID's debounce timer.
func (e *Enhancer) OnChange(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[jobID]; ok {
		t.Stop()
	}
	e.timers[jobID] = time.AfterFunc(e.window, func() { e.fire(jobID) })
}

func (e *Enhancer) fire(jobID string) {
	e.mu.Lock()
	delete(e.timers, jobID)
	e.mu.Unlock()

	job, _, err := ReadJob(e.resolver, jobID)
	if err != nil {
		e.log.Debug("enhancer: read failed, suppressing broadcast", "jobId", jobID, "err", err)
		return
	}

	e.mu.Lock()
	first := !e.seen[jobID]
	e.seen[jobID] = true
	e.mu.Unlock()

	evType := EventJobUpdated
	if first {
		evType = EventJobCreated
	}
	e.hub.Broadcast(Event{Type: evType, JobID: jobID, Payload: job})
	e.hub.Broadcast(Event{Type: EventStatusChanged, JobID: jobID, Payload: StatusChangedPayload{JobID: jobID, Status: job.Status}})
}

// Forget removes jobID's "seen" marker, e.g. once a job:removed has been
// broadcast, so a later reappearance (operator resubmission) is announced
// as job:created again rather than job:updated.
func (e *Enhancer) Forget(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.seen, jobID)
	if t, ok := e.timers[jobID]; ok {
		t.Stop()
		delete(e.timers, jobID)
	}
}

// Cleanup cancels every pending debounce timer (spec.md §4.4: "cleanup()
// cancels all").
func (e *Enhancer) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = make(map[string]*time.Timer)
}
