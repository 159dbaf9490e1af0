package models

// StoryState is the sprint-board status of a story. States form a forward
// flow; automated reconciliation never moves a story backward, only the
// explicit override endpoint can.
type StoryState string

const (
	StoryBacklog     StoryState = "backlog"
	StoryDrafted     StoryState = "drafted"
	StoryReadyForDev StoryState = "ready-for-dev"
	StoryInProgress  StoryState = "in-progress"
	StoryReview      StoryState = "review"
	StoryDone        StoryState = "done"
)

// storyRank orders states along the forward flow. in-progress and review
// share a rank: both are "being worked".
var storyRank = map[StoryState]int{
	StoryBacklog:     0,
	StoryDrafted:     1,
	StoryReadyForDev: 2,
	StoryInProgress:  3,
	StoryReview:      3,
	StoryDone:        4,
}

// Rank returns the story state's position in the forward flow, or -1 for an
// unknown state.
func (s StoryState) Rank() int {
	if r, ok := storyRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is a known story state.
func (s StoryState) Valid() bool {
	_, ok := storyRank[s]
	return ok
}

// Story is the smallest trackable unit of work.
type Story struct {
	// Key is the raw manifest key, e.g. "6-1-user-login".
	Key string `json:"id"`
	// StoryID is the human key, e.g. "6-1".
	StoryID string     `json:"storyId"`
	Name    string     `json:"name"`
	Status  StoryState `json:"status"`
}

// Epic groups stories for sprint tracking.
type Epic struct {
	ID            string  `json:"id"`
	Number        int     `json:"number"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	Retrospective string  `json:"retrospective,omitempty"`
	Stories       []Story `json:"stories"`
}

// SprintStatus is the derived sprint snapshot for one project. A missing
// manifest is a legitimate state reported with FileCreated=false, never an
// error.
type SprintStatus struct {
	Project     string `json:"project"`
	Epics       []Epic `json:"epics"`
	FileCreated bool   `json:"fileCreated"`
	Message     string `json:"message,omitempty"`
}

// Equal reports structural equality over all visible fields.
func (s *SprintStatus) Equal(other *SprintStatus) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Project != other.Project || s.FileCreated != other.FileCreated || s.Message != other.Message {
		return false
	}
	if len(s.Epics) != len(other.Epics) {
		return false
	}
	for i := range s.Epics {
		if !s.Epics[i].equal(&other.Epics[i]) {
			return false
		}
	}
	return true
}

func (e *Epic) equal(other *Epic) bool {
	if e.ID != other.ID || e.Number != other.Number || e.Name != other.Name ||
		e.Status != other.Status || e.Retrospective != other.Retrospective {
		return false
	}
	if len(e.Stories) != len(other.Stories) {
		return false
	}
	for i := range e.Stories {
		if e.Stories[i] != other.Stories[i] {
			return false
		}
	}
	return true
}

// NextActiveStory returns the first story that is not done, scanning epics in
// number order and stories in key order, or nil when everything is done.
func (s *SprintStatus) NextActiveStory() *Story {
	for i := range s.Epics {
		for j := range s.Epics[i].Stories {
			if s.Epics[i].Stories[j].Status != StoryDone {
				return &s.Epics[i].Stories[j]
			}
		}
	}
	return nil
}
