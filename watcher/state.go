package watcher

import "time"

// State is where the watcher is in the life of the current session.
type State int

const (
	// StateIdle means there is no session to monitor.
	StateIdle State = iota
	// StateActive means the token has more than the warning lead left.
	StateActive
	// StateWarningPending means the warning window was entered and the prompt
	// is about to be shown.
	StateWarningPending
	// StateWarningShown means the prompt is up and the user has not answered.
	StateWarningShown
	// StateExpired is passed through on every forced logout.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateWarningPending:
		return "warning_pending"
	case StateWarningShown:
		return "warning_shown"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of the watcher for display.
type Status struct {
	State           State         `json:"state"`
	Active          bool          `json:"active"`
	Remaining       time.Duration `json:"remaining"`
	WarningLatched  bool          `json:"warningLatched"`
	RenewalInFlight bool          `json:"renewalInFlight"`
}
