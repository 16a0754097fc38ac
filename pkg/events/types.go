// Package events implements the change detector, debounced coalescing
// enhancer, SSE hub, and read path of spec.md §4.4: filesystem change
// notifications become coalesced per-job broadcasts, shaped into the
// canonical API schema before being sent to clients.
//
// Grounded on the teacher's pkg/events.ConnectionManager
// (map[string]*Connection guarded by sync.RWMutex, per-channel subscriber
// sets) with the transport narrowed from github.com/coder/websocket to
// Server-Sent Events, since §4.4's /api/events contract is one-directional.
// The catchup-on-reconnect machinery (CatchupQuerier, catchupLimit) is
// deliberately not ported: the file-based snapshot is always re-readable in
// full, so a reconnecting SSE client simply receives a fresh job:updated on
// the next change rather than a replayed event log.
package events

// EventType names one of the typed events the hub emits (spec.md §4.4).
type EventType string

const (
	EventJobCreated    EventType = "job:created"
	EventJobUpdated    EventType = "job:updated"
	EventJobRemoved    EventType = "job:removed"
	EventStatusChanged EventType = "status:changed"
	EventStateChange   EventType = "state:change"
	EventSeedUploaded  EventType = "seed:uploaded"
)

// Event is one message written to an SSE stream: `event: <Type>` followed
// by `data: <json(Payload)>`.
type Event struct {
	Type    EventType `json:"-"`
	JobID   string    `json:"-"` // used for the hub's optional ?jobId= filter; not serialized
	Payload any       `json:"-"`
}

// JobRemovedPayload is the payload of a job:removed event.
type JobRemovedPayload struct {
	JobID string `json:"jobId"`
}

// StatusChangedPayload is the payload of a status:changed event.
type StatusChangedPayload struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// StateChangePayload is the payload of a coarse-grained state:change event.
type StateChangePayload struct {
	Path string `json:"path"`
}

// SeedUploadedPayload is the payload of a seed:uploaded event.
type SeedUploadedPayload struct {
	JobName string `json:"jobName"`
}
