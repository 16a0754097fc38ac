package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastDeliversToMatchingSubscriber(t *testing.T) {
	h := NewHub(time.Second, nil)
	ch, unsub := h.Subscribe("job-1")
	defer unsub()

	h.Broadcast(Event{Type: EventJobUpdated, JobID: "job-1", Payload: "x"})

	select {
	case ev := <-ch:
		assert.Equal(t, EventJobUpdated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_BroadcastSkipsNonMatchingJobFilter(t *testing.T) {
	h := NewHub(time.Second, nil)
	ch, unsub := h.Subscribe("job-1")
	defer unsub()

	h.Broadcast(Event{Type: EventJobUpdated, JobID: "job-2", Payload: "x"})

	select {
	case <-ch:
		t.Fatal("should not have received an event for a different jobId")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnfilteredSubscriberReceivesEverything(t *testing.T) {
	h := NewHub(time.Second, nil)
	ch, unsub := h.Subscribe("")
	defer unsub()

	h.Broadcast(Event{Type: EventJobUpdated, JobID: "any-job", Payload: "x"})

	select {
	case ev := <-ch:
		assert.Equal(t, "any-job", ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(time.Second, nil)
	ch, unsub := h.Subscribe("job-1")
	unsub()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestHub_SlowSubscriberDropsRatherThanBlocks(t *testing.T) {
	h := NewHub(time.Second, nil)
	_, unsub := h.Subscribe("job-1")
	defer unsub()

	for i := 0; i < 64; i++ {
		h.Broadcast(Event{Type: EventJobUpdated, JobID: "job-1", Payload: i})
	}
	// No assertion beyond "this returns promptly" — a blocking send here
	// would hang the test.
}

func TestEncodeSSE_FormatsEventAndDataLines(t *testing.T) {
	frame, err := EncodeSSE(Event{Type: EventJobCreated, Payload: map[string]string{"id": "job-1"}})
	require.NoError(t, err)
	assert.Contains(t, string(frame), "event: job:created\n")
	assert.Contains(t, string(frame), `"id":"job-1"`)
	assert.True(t, len(frame) > 0 && frame[len(frame)-1] == '\n')
}

func TestHub_ConnectionCount(t *testing.T) {
	h := NewHub(time.Second, nil)
	assert.Equal(t, 0, h.ConnectionCount())
	_, unsub1 := h.Subscribe("")
	_, unsub2 := h.Subscribe("job-1")
	assert.Equal(t, 2, h.ConnectionCount())
	unsub1()
	assert.Equal(t, 1, h.ConnectionCount())
	unsub2()
}
