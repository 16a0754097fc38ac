package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/status"
)

func startDetector(t *testing.T, r *pathfs.Resolver, hub *Hub, enhancer *Enhancer) {
	t.Helper()
	d := NewDetector(r, enhancer, hub, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// give the watcher a moment to register its initial watches
	time.Sleep(50 * time.Millisecond)
}

func TestDetector_SeedCreationBroadcastsSeedUploaded(t *testing.T) {
	dataRoot := t.TempDir()
	r := pathfs.NewResolver(dataRoot)
	hub := NewHub(time.Second, nil)
	enhancer := NewEnhancer(r, hub, 20*time.Millisecond, nil)
	ch, unsub := hub.Subscribe("")
	defer unsub()

	startDetector(t, r, hub, enhancer)

	require.NoError(t, os.MkdirAll(r.Pending(), 0o755))
	require.NoError(t, os.WriteFile(r.PendingSeedPath("abc123de"), []byte(`{}`), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == EventSeedUploaded && ev.JobID == "abc123de" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for seed:uploaded")
		}
	}
}

func TestDetector_JobDirChangeTriggersEnhancerFire(t *testing.T) {
	dataRoot := t.TempDir()
	r := pathfs.NewResolver(dataRoot)
	hub := NewHub(time.Second, nil)
	enhancer := NewEnhancer(r, hub, 20*time.Millisecond, nil)
	ch, unsub := hub.Subscribe("job-live")
	defer unsub()

	require.NoError(t, os.MkdirAll(r.CurrentJobDir("job-live"), 0o755))
	writeSnapshot(t, r.StatusPath(r.CurrentJobDir("job-live")), &status.Snapshot{
		ID: "job-live", State: status.JobComplete, CreatedAt: time.Now(), LastUpdated: time.Now(),
		Tasks: map[string]*status.TaskStatus{"a": {State: status.TaskDone}},
	})

	startDetector(t, r, hub, enhancer)

	// touch the status file again to trigger a Write event
	writeSnapshot(t, r.StatusPath(r.CurrentJobDir("job-live")), &status.Snapshot{
		ID: "job-live", State: status.JobComplete, CreatedAt: time.Now(), LastUpdated: time.Now().Add(time.Second),
		Tasks: map[string]*status.TaskStatus{"a": {State: status.TaskDone}},
	})

	deadline := time.After(2 * time.Second)
	sawJobEvent := false
	for !sawJobEvent {
		select {
		case ev := <-ch:
			if ev.Type == EventJobCreated || ev.Type == EventJobUpdated {
				sawJobEvent = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for a coalesced job event")
		}
	}
	assert.True(t, sawJobEvent)
}

func TestDetector_Classify(t *testing.T) {
	dataRoot := t.TempDir()
	r := pathfs.NewResolver(dataRoot)
	d := NewDetector(r, nil, nil, nil)

	cat, jobID, ok := d.classify(r.PendingSeedPath("abc123de"))
	require.True(t, ok)
	assert.Equal(t, "pending", cat)
	assert.Equal(t, "abc123de", jobID)

	cat, jobID, ok = d.classify(r.StatusPath(r.CurrentJobDir("job-live")))
	require.True(t, ok)
	assert.Equal(t, "current", cat)
	assert.Equal(t, "job-live", jobID)

	_, _, ok = d.classify(dataRoot + "/pending/not-a-seed-file.json")
	assert.False(t, ok)

	_, _, ok = d.classify(dataRoot + "/unrelated/file.txt")
	assert.False(t, ok)
}
