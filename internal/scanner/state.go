package scanner

import "time"

// State is a step of one scan request.
type State string

const (
	StateValidating  State = "validating"
	StateAcquiring   State = "acquiring"
	StateNavigating  State = "navigating"
	StateAuditing    State = "auditing"
	StateCapturing   State = "capturing"
	StateNormalizing State = "normalizing"
	StateReleasing   State = "releasing"
	StateResponding  State = "responding"
	StateFailed      State = "failed"
)

// Event reports a state transition.
type Event struct {
	ScanID string    `json:"scan_id"`
	URL    string    `json:"url"`
	State  State     `json:"state"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// Progress receives transitions synchronously; it must not block.
type Progress func(Event)
