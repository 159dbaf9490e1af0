// Package recent persists the recent-projects list as a small JSON document
// outside the project directories.
package recent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmad-tools/dash/pkg/models"
)

// List is a bounded, most-recent-first project list with a single-writer
// discipline: every read-modify-write runs under one mutex so concurrent
// open/delete operations never interleave their writes.
type List struct {
	mu   sync.Mutex
	path string
	max  int
}

// NewList creates a list persisted at path, keeping at most max entries.
func NewList(path string, max int) *List {
	if max <= 0 {
		max = 10
	}
	return &List{path: path, max: max}
}

// All returns the persisted entries, most recent first. A missing or
// unreadable file yields an empty list.
func (l *List) All() []models.RecentProject {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Touch moves a project to the front of the list, inserting it if absent and
// evicting the oldest entry beyond the cap.
func (l *List) Touch(path, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load()
	filtered := make([]models.RecentProject, 0, len(entries)+1)
	filtered = append(filtered, models.RecentProject{
		Path:       path,
		Name:       name,
		LastOpened: time.Now().UTC(),
	})
	for _, entry := range entries {
		if entry.Path == path {
			continue
		}
		filtered = append(filtered, entry)
	}
	if len(filtered) > l.max {
		filtered = filtered[:l.max]
	}
	return l.save(filtered)
}

// Remove deletes a project from the list and returns how many entries were
// removed. Removing an absent path is a no-op, not an error.
func (l *List) Remove(path string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load()
	filtered := make([]models.RecentProject, 0, len(entries))
	for _, entry := range entries {
		if entry.Path == path {
			continue
		}
		filtered = append(filtered, entry)
	}
	removed := len(entries) - len(filtered)
	if removed == 0 {
		return 0, nil
	}
	return removed, l.save(filtered)
}

// MostRecent returns the front entry, or nil when the list is empty.
func (l *List) MostRecent() *models.RecentProject {
	entries := l.All()
	if len(entries) == 0 {
		return nil
	}
	return &entries[0]
}

func (l *List) load() []models.RecentProject {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return []models.RecentProject{}
	}
	var entries []models.RecentProject
	if err := json.Unmarshal(data, &entries); err != nil {
		return []models.RecentProject{}
	}
	return entries
}

func (l *List) save(entries []models.RecentProject) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0644)
}
