// Package store provides the in-memory state store for the dash daemon.
package store

import (
	"sync"

	"github.com/bmad-tools/dash/pkg/models"
	"github.com/google/uuid"
)

// Snapshot is the daemon's complete view of the active project at one
// moment.
type Snapshot struct {
	ProjectPath string                  `json:"projectPath"`
	ProjectName string                  `json:"projectName"`
	Workflow    *models.WorkflowStatus  `json:"workflow,omitempty"`
	Sprint      *models.SprintStatus    `json:"sprint,omitempty"`
	Claude      *models.ClaudeStatus    `json:"claude,omitempty"`
}

// Store is the in-memory state store for the daemon.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	snap        Snapshot
	subscribers map[string]chan models.Event
}

// New creates a new Store instance.
func New() *Store {
	return &Store{
		subscribers: make(map[string]chan models.Event),
	}
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// SetProject resets the snapshot for a newly opened project. Status fields
// start empty until the first reconciliation publishes them.
func (s *Store) SetProject(path, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{ProjectPath: path, ProjectName: name}
}

// SetWorkflow replaces the workflow view and notifies subscribers.
func (s *Store) SetWorkflow(w *models.WorkflowStatus) {
	s.mu.Lock()
	s.snap.Workflow = w
	s.mu.Unlock()
	s.Publish(models.Event{Type: models.EventWorkflowUpdate, Data: w})
}

// SetSprint replaces the sprint view and notifies subscribers.
func (s *Store) SetSprint(sp *models.SprintStatus) {
	s.mu.Lock()
	s.snap.Sprint = sp
	s.mu.Unlock()
	s.Publish(models.Event{Type: models.EventSprintUpdate, Data: sp})
}

// SetClaude replaces the assistant process view and notifies subscribers.
func (s *Store) SetClaude(c *models.ClaudeStatus) {
	s.mu.Lock()
	s.snap.Claude = c
	s.mu.Unlock()
	s.Publish(models.Event{Type: models.EventClaudeStatus, Data: c})
}

// Publish fans an event out to every subscriber. Sends are non-blocking so
// a stalled client can never back-pressure the reconciliation loop; a full
// channel drops the event for that subscriber only.
func (s *Store) Publish(ev models.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its ID and channel.
func (s *Store) Subscribe() (string, chan models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan models.Event, 100)
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Calling it twice
// with the same ID is safe.
func (s *Store) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.subscribers[id]
	if !ok {
		return
	}
	delete(s.subscribers, id)
	close(ch)
}

// SubscriberCount reports the number of live subscriptions.
func (s *Store) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
