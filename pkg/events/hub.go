package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscriber is one connected SSE client's delivery channel.
type subscriber struct {
	id    string
	jobID string // "" means unfiltered, receives every event
	ch    chan Event
}

// Hub maintains the set of connected SSE clients and fans out typed events
// to them, optionally pre-filtered by jobId (spec.md §4.4 "SSE hub").
//
// Grounded on the teacher's pkg/events.ConnectionManager
// (map[string]*Connection guarded by sync.RWMutex) with WebSocket replaced
// by one-directional SSE channels.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber

	heartbeat time.Duration
	log       *slog.Logger
}

// NewHub builds a Hub. heartbeat is the interval at which a keep-alive
// comment is sent to every client (spec.md §4.4, default 15s). log may be
// nil (slog.Default() is used).
func NewHub(heartbeat time.Duration, log *slog.Logger) *Hub {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{subs: make(map[string]*subscriber), heartbeat: heartbeat, log: log}
}

// Subscribe registers a new client, optionally filtered to jobID (empty
// string means unfiltered). The returned channel and unsubscribe func must
// both be used by the caller's connection handler.
func (h *Hub) Subscribe(jobID string) (<-chan Event, func()) {
	sub := &subscriber{id: uuid.New().String(), jobID: jobID, ch: make(chan Event, 32)}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	return sub.ch, func() {
		h.mu.Lock()
		if s, ok := h.subs[sub.id]; ok {
			delete(h.subs, sub.id)
			close(s.ch)
		}
		h.mu.Unlock()
	}
}

// Broadcast delivers ev to every subscriber whose filter matches. When a
// subscriber's channel is full, ev is dropped for that subscriber only; the
// subscriber stays registered until its connection handler calls the
// unsubscribe func (on client disconnect or a failed write to the client).
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.jobID != "" && sub.jobID != ev.JobID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.log.Warn("dropping event for slow subscriber", "subscriberId", sub.id, "type", ev.Type)
		}
	}
}

// Heartbeat returns the configured heartbeat interval.
func (h *Hub) Heartbeat() time.Duration { return h.heartbeat }

// ConnectionCount reports the number of currently subscribed clients, for
// /api/state diagnostics.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// EncodeSSE renders an Event as a Server-Sent Events frame.
func EncodeSSE(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, data)), nil
}
