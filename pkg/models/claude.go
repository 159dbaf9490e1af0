package models

import "time"

// ProcessState is the lifecycle status of the external assistant process.
type ProcessState string

const (
	ProcessStopped  ProcessState = "stopped"
	ProcessStarting ProcessState = "starting"
	ProcessRunning  ProcessState = "running"
	ProcessError    ProcessState = "error"
)

// MatchType describes how a detected assistant process relates to the open
// project: "project" means its working directory or window corresponds to
// the open session, "global" means a live process tied to a different
// project, "none" means no process found.
type MatchType string

const (
	MatchNone    MatchType = "none"
	MatchProject MatchType = "project"
	MatchGlobal  MatchType = "global"
)

// ClaudeStatus is the derived, transient assistant snapshot. Never persisted.
type ClaudeStatus struct {
	Status       ProcessState `json:"status"`
	PID          int          `json:"pid,omitempty"`
	Cwd          string       `json:"cwd,omitempty"`
	WindowTitle  string       `json:"windowTitle,omitempty"`
	MatchType    MatchType    `json:"matchType"`
	StartedAt    *time.Time   `json:"startedAt,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	// Signal names the detection signal that produced this status. Volatile
	// diagnostic detail: excluded from change comparison.
	Signal string `json:"signal,omitempty"`
}

// Equal reports structural equality over the fields clients render. Signal
// and StartedAt are volatile and ignored so re-detection by a different
// signal does not trigger a redundant broadcast.
func (c *ClaudeStatus) Equal(other *ClaudeStatus) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Status == other.Status &&
		c.PID == other.PID &&
		c.Cwd == other.Cwd &&
		c.WindowTitle == other.WindowTitle &&
		c.MatchType == other.MatchType &&
		c.ErrorMessage == other.ErrorMessage
}
