package models

// EventType names one live-update event. Clients treat unknown types as
// ignorable so new types can be added without breaking old clients.
type EventType string

const (
	EventConnected      EventType = "connected"
	EventWorkflowUpdate EventType = "workflow_update"
	EventSprintUpdate   EventType = "sprint_update"
	EventClaudeStatus   EventType = "claude_status"
	EventHeartbeat      EventType = "heartbeat"
)

// Event is one message on the live-update channel.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}
