// Package models defines the canonical state shapes shared by the pull (HTTP)
// and push (event stream) paths. All derivation produces these types so the
// two paths can never disagree on shape.
package models

import "strings"

// WorkflowState is the status of a single workflow step or phase.
type WorkflowState string

const (
	WorkflowPending     WorkflowState = "pending"
	WorkflowInProgress  WorkflowState = "in_progress"
	WorkflowCompleted   WorkflowState = "completed"
	WorkflowBlocked     WorkflowState = "blocked"
	WorkflowOptional    WorkflowState = "optional"
	WorkflowRecommended WorkflowState = "recommended"
	WorkflowConditional WorkflowState = "conditional"
	WorkflowSkipped     WorkflowState = "skipped"
)

// NonBlocking reports whether the state is excluded from phase completion
// counts (optional-style states never gate a phase).
func (s WorkflowState) NonBlocking() bool {
	switch s {
	case WorkflowSkipped, WorkflowOptional, WorkflowRecommended, WorkflowConditional:
		return true
	}
	return false
}

// MapRawStatus converts a raw manifest status value to a WorkflowState.
// The manifest records completion by replacing the status with the output
// artifact path, so path-like values map to completed.
func MapRawStatus(raw string) WorkflowState {
	if raw == "" {
		return WorkflowPending
	}
	lower := strings.ToLower(raw)
	switch lower {
	case "required":
		return WorkflowPending
	case "optional":
		return WorkflowOptional
	case "recommended":
		return WorkflowRecommended
	case "conditional":
		return WorkflowConditional
	case "skipped":
		return WorkflowSkipped
	case "in_progress":
		return WorkflowInProgress
	case "blocked":
		return WorkflowBlocked
	}
	if strings.Contains(raw, "/") || strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".yaml") {
		return WorkflowCompleted
	}
	return WorkflowPending
}

// TrackMode distinguishes the 4-phase standard track from the 3-phase quick track.
type TrackMode string

const (
	TrackStandard TrackMode = "standard"
	TrackQuick    TrackMode = "quick"
)

// Workflow is a single actionable step within a phase, owned by one agent.
type Workflow struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Status     WorkflowState `json:"status"`
	Agent      string        `json:"agent"`
	OutputPath string        `json:"outputPath,omitempty"`
}

// Phase is a named stage of the methodology's workflow.
type Phase struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	Status         WorkflowState `json:"status"`
	CompletedCount int           `json:"completedCount"`
	TotalCount     int           `json:"totalCount"`
	Workflows      []Workflow    `json:"workflows"`
}

// FlowStep is one gate of the implementation flow, derived from the
// presence of its output artifact.
type FlowStep struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// FlowNext names the first incomplete step and the command that advances it.
type FlowNext struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Command string `json:"command"`
}

// ImplementationFlow summarizes implementation-phase progress for a track.
type ImplementationFlow struct {
	TrackMode    TrackMode  `json:"trackMode"`
	Steps        []FlowStep `json:"steps"`
	NextStep     *FlowNext  `json:"nextStep"`
	AllCompleted bool       `json:"allCompleted"`
}

// WorkflowStatus is the derived workflow snapshot for one project.
type WorkflowStatus struct {
	Project   string    `json:"project"`
	Track     string    `json:"track"`
	TrackMode TrackMode `json:"trackMode"`
	Phases    []Phase   `json:"phases"`
}

// Equal reports structural equality over all visible fields.
func (w *WorkflowStatus) Equal(other *WorkflowStatus) bool {
	if w == nil || other == nil {
		return w == other
	}
	if w.Project != other.Project || w.Track != other.Track || w.TrackMode != other.TrackMode {
		return false
	}
	if len(w.Phases) != len(other.Phases) {
		return false
	}
	for i := range w.Phases {
		if !w.Phases[i].equal(&other.Phases[i]) {
			return false
		}
	}
	return true
}

func (p *Phase) equal(other *Phase) bool {
	if p.ID != other.ID || p.Name != other.Name || p.Status != other.Status ||
		p.CompletedCount != other.CompletedCount || p.TotalCount != other.TotalCount {
		return false
	}
	if len(p.Workflows) != len(other.Workflows) {
		return false
	}
	for i := range p.Workflows {
		if p.Workflows[i] != other.Workflows[i] {
			return false
		}
	}
	return true
}
