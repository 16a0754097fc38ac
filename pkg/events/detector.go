package events

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pipeline"
)

// Detector watches the pipeline-data tree (pending/, current/, complete/)
// and turns raw filesystem events into per-job notifications, forwarding
// them to an Enhancer for debouncing and, for a small set of coarse-grained
// transitions, broadcasting directly to the Hub (spec.md §4.4 "change
// detector").
//
// Grounded on the orchestrator's own fsnotify watch loop
// (pkg/orchestrator/orchestrator.go's watchLoop/debouncer), generalized to
// also watch current/ and complete/ job subdirectories instead of only
// pending/.
type Detector struct {
	resolver *pathfs.Resolver
	enhancer *Enhancer
	hub      *Hub
	log      *slog.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	watched map[string]bool
}

// NewDetector builds a Detector. log may be nil (slog.Default() is used).
func NewDetector(resolver *pathfs.Resolver, enhancer *Enhancer, hub *Hub, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{resolver: resolver, enhancer: enhancer, hub: hub, log: log, watched: make(map[string]bool)}
}

// Start begins watching and blocks until ctx is cancelled or an
// unrecoverable setup error occurs. Run it in its own goroutine.
func (d *Detector) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	d.watcher = w
	defer w.Close()

	for _, dir := range []string{d.resolver.Pending(), d.resolver.Current(), d.resolver.Complete()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		d.addWatch(dir)
	}
	d.adoptExistingJobDirs(d.resolver.Current())
	d.adoptExistingJobDirs(d.resolver.Complete())

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			d.handle(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.log.Warn("detector: watch error", "err", err)
		}
	}
}

func (d *Detector) addWatch(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.watched[dir] {
		return
	}
	if err := d.watcher.Add(dir); err != nil {
		d.log.Warn("detector: failed to watch directory", "dir", dir, "err", err)
		return
	}
	d.watched[dir] = true
}

func (d *Detector) adoptExistingJobDirs(phaseDir string) {
	entries, err := os.ReadDir(phaseDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			d.addWatch(filepath.Join(phaseDir, e.Name()))
		}
	}
}

func (d *Detector) handle(ev fsnotify.Event) {
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return
	}

	category, jobID, ok := d.classify(ev.Name)
	if !ok {
		return
	}

	switch category {
	case "pending":
		if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
			d.hub.Broadcast(Event{Type: EventSeedUploaded, JobID: jobID, Payload: SeedUploadedPayload{JobName: jobID}})
		}
		return
	case "current":
		// A newly promoted job directory: start watching it so writes to
		// its tasks-status.json are observed directly.
		if ev.Op&fsnotify.Create != 0 && ev.Name == d.resolver.CurrentJobDir(jobID) {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				d.addWatch(ev.Name)
			}
		}
		if ev.Op&fsnotify.Remove != 0 && ev.Name == d.resolver.CurrentJobDir(jobID) {
			d.hub.Broadcast(Event{Type: EventJobRemoved, JobID: jobID, Payload: JobRemovedPayload{JobID: jobID}})
			d.enhancer.Forget(jobID)
			return
		}
	case "complete":
		if ev.Op&fsnotify.Create != 0 && ev.Name == d.resolver.CompleteJobDir(jobID) {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				d.addWatch(ev.Name)
			}
		}
	}

	d.hub.Broadcast(Event{Type: EventStateChange, JobID: jobID, Payload: StateChangePayload{Path: ev.Name}})
	d.enhancer.OnChange(jobID)
}

// classify derives {category, jobID} from an absolute path under
// pipeline-data/, per spec.md §4.4's change classification rule.
func (d *Detector) classify(path string) (category, jobID string, ok bool) {
	rel, err := filepath.Rel(d.resolver.PipelineDataDir(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", false
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	if len(segments) == 0 {
		return "", "", false
	}

	switch segments[0] {
	case "pending":
		if len(segments) != 2 {
			return "", "", false
		}
		m := pipeline.SeedFilePattern.FindStringSubmatch(segments[1])
		if m == nil {
			return "", "", false
		}
		return "pending", m[1], true
	case "current", "complete":
		if len(segments) < 2 || !pipeline.JobIDPattern.MatchString(segments[1]) {
			return "", "", false
		}
		return segments[0], segments[1], true
	default:
		return "", "", false
	}
}
