// Package orchestrator implements the directory watcher and job dispatcher
// (spec.md §4.1): detects seed files appearing under pipeline-data/pending/,
// enforces at-most-one-worker-per-job, atomically promotes a seed into
// current/<jobId>/, and spawns an isolated child worker process per job.
//
// Grounded on the chainwatch daemon processor's Process() (other_examples:
// lstat to reject symlinks, validate, atomic move, emit a status document)
// for the dispatch algorithm, and on the teacher's pkg/queue.WorkerPool
// (map[string]context.CancelFunc guarded by sync.RWMutex, Register/
// Unregister/Cancel) for the single-worker exclusivity registry, repurposed
// here as a map[jobId]*trackedWorker.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pipeline"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
)

// Spawner launches a worker process for jobId and returns without waiting
// for it to finish; onExit is invoked exactly once, from a goroutine owned
// by the spawner, when the worker process terminates.
type Spawner func(ctx context.Context, jobID string, onExit func(error)) error

// Config controls orchestrator behavior (spec.md §4.1, §9 Open Question on
// resumption policy).
type Config struct {
	// ResumeOnStart, when true, scans <current>/*/tasks-status.json once at
	// Start and spawns a worker for any job with state=="running" and no
	// in-memory tracked worker (§9 resumption policy (c)). Default false.
	ResumeOnStart bool
	// WatcherBackoffMin/Max bound the exponential backoff applied when the
	// fsnotify watcher needs to be recreated after an error.
	WatcherBackoffMin time.Duration
	WatcherBackoffMax time.Duration
}

func (c Config) withDefaults() Config {
	if c.WatcherBackoffMin <= 0 {
		c.WatcherBackoffMin = 250 * time.Millisecond
	}
	if c.WatcherBackoffMax <= 0 {
		c.WatcherBackoffMax = 30 * time.Second
	}
	return c
}

type trackedWorker struct {
	cancel context.CancelFunc
}

// Orchestrator owns the pending-directory watcher and the in-memory
// exclusivity registry. One instance per process (cmd/pipelined).
type Orchestrator struct {
	resolver *pathfs.Resolver
	spawn    Spawner
	cfg      Config
	log      *slog.Logger

	mu      sync.RWMutex
	running map[string]*trackedWorker

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds an Orchestrator. log may be nil (slog.Default() is used).
func New(resolver *pathfs.Resolver, spawn Spawner, cfg Config, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		resolver: resolver,
		spawn:    spawn,
		cfg:      cfg.withDefaults(),
		log:      log,
		running:  make(map[string]*trackedWorker),
		stopCh:   make(chan struct{}),
	}
}

// IsActive reports whether jobId currently has a tracked worker.
func (o *Orchestrator) IsActive(jobID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.running[jobID]
	return ok
}

// Start begins watching the pending directory and, if configured, resumes
// jobs left running by a crashed process. Idempotent: safe to call after a
// prior Stop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if _, err := os.Stat(o.resolver.PipelineDataDir()); err != nil {
		return fmt.Errorf("%w: %v", ErrDataRootUnreachable, err)
	}
	if err := os.MkdirAll(o.resolver.Pending(), 0o755); err != nil {
		return fmt.Errorf("orchestrator: create pending dir: %w", err)
	}

	if o.cfg.ResumeOnStart {
		o.resumeRunningJobs(ctx)
	}

	o.wg.Add(1)
	go o.watchLoop(ctx)
	return nil
}

// Stop ceases watching and cancels every tracked worker's context. It does
// not itself wait for child processes to exit — that's the caller's
// responsibility via the grace-window/force-kill sequence in cmd/pipelined.
func (o *Orchestrator) Stop() {
	close(o.stopCh)
	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	for jobID, w := range o.running {
		o.log.Info("signaling worker for shutdown", "jobId", jobID)
		w.cancel()
	}
}

// resumeRunningJobs scans <current>/*/tasks-status.json once, before the
// watcher begins delivering new events, and spawns a worker for any job
// found running with no tracked worker — §9's resumption policy (c),
// preserving the single-worker invariant because this runs on the same
// goroutine that will start the watcher next.
func (o *Orchestrator) resumeRunningJobs(ctx context.Context) {
	entries, err := os.ReadDir(o.resolver.Current())
	if err != nil {
		if !os.IsNotExist(err) {
			o.log.Warn("resume scan: read current dir", "err", err)
		}
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		jobID := e.Name()
		jobDir := o.resolver.CurrentJobDir(jobID)
		snap, err := status.Load(o.resolver.StatusPath(jobDir))
		if err != nil {
			o.log.Warn("resume scan: load status", "jobId", jobID, "err", err)
			continue
		}
		if snap.State != status.JobRunning {
			continue
		}
		if o.IsActive(jobID) {
			continue
		}
		o.log.Info("resuming job left running by a prior process", "jobId", jobID)
		o.spawnWorker(ctx, jobID)
	}
}

// watchLoop runs fsnotify against the pending directory, recreating the
// watcher on a bounded exponential backoff whenever it errors (spec.md
// §4.1 "File watcher errors").
func (o *Orchestrator) watchLoop(ctx context.Context) {
	defer o.wg.Done()

	backoff := o.cfg.WatcherBackoffMin
	for {
		select {
		case <-o.stopCh:
			return
		default:
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			o.log.Error("create watcher", "err", err)
			if !o.sleepBackoff(&backoff) {
				return
			}
			continue
		}
		if err := watcher.Add(o.resolver.Pending()); err != nil {
			o.log.Error("watch pending dir", "err", err)
			_ = watcher.Close()
			if !o.sleepBackoff(&backoff) {
				return
			}
			continue
		}

		backoff = o.cfg.WatcherBackoffMin
		o.serve(ctx, watcher)
		_ = watcher.Close()

		select {
		case <-o.stopCh:
			return
		default:
		}
	}
}

// serve drains watcher events until it errors or stopCh closes.
func (o *Orchestrator) serve(ctx context.Context, watcher *fsnotify.Watcher) {
	debounced := newDebouncer(o.onSeedAppeared, 200*time.Millisecond)
	defer debounced.stopAll()

	for {
		select {
		case <-o.stopCh:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			debounced.trigger(ctx, ev.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			o.log.Error("watcher error", "err", err)
			return
		}
	}
}

func (o *Orchestrator) sleepBackoff(backoff *time.Duration) bool {
	select {
	case <-o.stopCh:
		return false
	case <-time.After(*backoff):
	}
	*backoff *= 2
	if *backoff > o.cfg.WatcherBackoffMax {
		*backoff = o.cfg.WatcherBackoffMax
	}
	return true
}

// onSeedAppeared is the only mutating path (spec.md §4.1): the dispatch
// algorithm for one matched pending-file path.
func (o *Orchestrator) onSeedAppeared(ctx context.Context, path string) {
	m := pipeline.SeedFilePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		o.log.Warn("ignoring non-seed file in pending dir", "path", path)
		return
	}
	jobID := m[1]

	if o.IsActive(jobID) {
		return // coalesced duplicate
	}

	jobDir := o.resolver.CurrentJobDir(jobID)
	destPath := o.resolver.SeedPath(jobDir)
	if _, err := os.Stat(destPath); err == nil {
		return // already picked up; resumption path owns it now
	}

	info, err := os.Lstat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			o.log.Error("stat seed file", "path", path, "err", err)
		}
		return
	}
	if info.Mode()&os.ModeSymlink != 0 {
		o.log.Error("refusing to promote symlinked seed file", "path", path)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		o.log.Error("read seed file", "path", path, "err", err)
		return
	}
	seed, err := pipeline.ParseSeed(data)
	if err != nil {
		o.log.Warn("malformed seed left in place", "path", path, "err", err)
		return
	}

	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		o.log.Error("create job dir", "jobId", jobID, "err", err)
		return
	}
	if err := os.Rename(path, destPath); err != nil {
		o.log.Error("promote seed to current", "jobId", jobID, "err", err)
		return
	}

	if err := o.initStatus(jobDir, jobID, seed); err != nil {
		o.log.Error("initialize status snapshot", "jobId", jobID, "err", err)
		return
	}

	o.log.Info("dispatching job", "jobId", jobID, "name", seed.Name)
	o.spawnWorker(ctx, jobID)
}

// initStatus writes the initial tasks-status.json for a freshly promoted
// job (spec.md §4.1 step 5). Pipeline tasks may not yet be known (the
// worker reconciles against pipeline.json on startup per §4.2), so the
// initial snapshot carries no tasks — the worker's reconcile step adds them.
func (o *Orchestrator) initStatus(jobDir, jobID string, seed *pipeline.Seed) error {
	statusPath := o.resolver.StatusPath(jobDir)
	if _, err := os.Stat(statusPath); err == nil {
		return nil // resumed after a crash between rename and this step
	}
	snap := status.NewSnapshot(jobID, seed.Name, seed.Pipeline, nil, time.Now().UTC())
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return pathfs.AtomicWrite(statusPath, data, 0o644)
}

func (o *Orchestrator) spawnWorker(ctx context.Context, jobID string) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.running[jobID] = &trackedWorker{cancel: cancel}
	o.mu.Unlock()

	onExit := func(err error) {
		o.mu.Lock()
		delete(o.running, jobID)
		o.mu.Unlock()
		if err != nil {
			o.log.Error("worker exited with error", "jobId", jobID, "err", err)
		} else {
			o.log.Info("worker completed", "jobId", jobID)
		}
	}

	if err := o.spawn(workerCtx, jobID, onExit); err != nil {
		o.log.Error("spawn worker", "jobId", jobID, "err", err)
		cancel()
		o.mu.Lock()
		delete(o.running, jobID)
		o.mu.Unlock()
		return
	}
}

// ErrDataRootUnreachable is returned by Start when the data root does not
// exist or is not a directory.
var ErrDataRootUnreachable = errors.New("orchestrator: data root unreachable")
