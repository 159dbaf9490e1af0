// Package session manages the daemon's active project: validation on open,
// the watcher lifecycle bound to it, and the recent-projects list.
package session

import (
	"context"
	"os"
	"sync"

	"github.com/bmad-tools/dash/config"
	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/internal/daemon/reconcile"
	"github.com/bmad-tools/dash/internal/daemon/store"
	"github.com/bmad-tools/dash/internal/daemon/watch"
	"github.com/bmad-tools/dash/logging"
	"github.com/bmad-tools/dash/pkg/manifest"
	"github.com/bmad-tools/dash/pkg/models"
	"github.com/bmad-tools/dash/pkg/probe"
	"github.com/bmad-tools/dash/pkg/recent"
	"github.com/sirupsen/logrus"
)

// Manager owns the single active project session. Opening a project while
// another is open closes the old one first.
type Manager struct {
	mu      sync.Mutex
	cfg     *config.Config
	store   *store.Store
	prober  *probe.Prober
	rec     *reconcile.Reconciler
	recent  *recent.List
	watcher *watch.Watcher
	logger  *logrus.Entry
}

// NewManager wires a session manager over the shared store and prober.
func NewManager(cfg *config.Config, st *store.Store, prober *probe.Prober) *Manager {
	return &Manager{
		cfg:    cfg,
		store:  st,
		prober: prober,
		rec:    reconcile.New(st, prober),
		recent: recent.NewList(cfg.Recent.File, cfg.Recent.Max),
		logger: logging.NewLogger("session"),
	}
}

// Reconciler exposes the session's reconciler for override registration and
// on-demand passes.
func (m *Manager) Reconciler() *reconcile.Reconciler { return m.rec }

// Recent exposes the recent-projects list.
func (m *Manager) Recent() *recent.List { return m.recent }

// Open validates path as a BMAD project, makes it the active session and
// starts watching it. The previous session, if any, is stopped first.
func (m *Manager) Open(ctx context.Context, path string) (store.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return store.Snapshot{}, errors.ProjectNotFound(path)
	}
	if !manifest.IsProject(path) {
		return store.Snapshot{}, errors.NotBmadProject(path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopWatcherLocked()

	name := manifest.Name(path)
	m.store.SetProject(path, name)
	if err := m.recent.Touch(path, name); err != nil {
		m.logger.WithError(err).Warn("Failed to update recent projects")
	}

	watcher, err := watch.New(path, m.cfg.Watch, m.rec)
	if err != nil {
		m.logger.WithError(err).Warn("File watching unavailable, falling back to polling only")
	} else {
		m.watcher = watcher
		// The watcher outlives the request that opened the project; its
		// lifecycle belongs to the session, ended by Stop.
		watcher.Start(context.Background())
	}

	// The watcher's initial pass runs asynchronously; do a synchronous one
	// so the caller's response already carries status.
	m.rec.Run(ctx)

	m.logger.WithFields(logrus.Fields{"path": path, "name": name}).Info("Opened project")
	return m.store.Get(), nil
}

// Create scaffolds a new BMAD project at path and opens it.
func (m *Manager) Create(ctx context.Context, path string, opts manifest.ScaffoldOptions) (store.Snapshot, error) {
	if err := manifest.Scaffold(path, opts); err != nil {
		return store.Snapshot{}, err
	}
	return m.Open(ctx, path)
}

// Close stops the active session's watcher. The store keeps its last
// snapshot so late requests do not observe a half-cleared state.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopWatcherLocked()
}

func (m *Manager) stopWatcherLocked() {
	if m.watcher != nil {
		m.watcher.Stop()
		m.watcher = nil
	}
}

// OverrideStory applies a manual story-status change: the artifact and
// manifest are rewritten first, then the override is registered so the next
// file pass does not bounce the status back.
func (m *Manager) OverrideStory(ctx context.Context, storyID string, status models.StoryState) (*manifest.OverrideResult, error) {
	snap := m.store.Get()
	if snap.ProjectPath == "" {
		return nil, errors.InvalidRequest("no project is open")
	}
	result, err := manifest.OverrideStoryStatus(snap.ProjectPath, storyID, status)
	if err != nil {
		return nil, err
	}
	m.rec.RegisterOverride(storyID, status)
	m.rec.RunFiles(ctx)
	return result, nil
}
