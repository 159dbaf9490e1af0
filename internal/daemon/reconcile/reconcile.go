// Package reconcile derives the daemon's canonical status snapshot from its
// sources of truth: manifest files for workflow and sprint state, the
// process probe for the assistant. A reconciliation pass is idempotent and
// publishes only the sub-snapshots that actually changed.
package reconcile

import (
	"context"
	"sync"

	"github.com/bmad-tools/dash/internal/daemon/store"
	"github.com/bmad-tools/dash/logging"
	"github.com/bmad-tools/dash/pkg/manifest"
	"github.com/bmad-tools/dash/pkg/models"
	"github.com/bmad-tools/dash/pkg/probe"
	"github.com/sirupsen/logrus"
)

// Changed reports which sub-snapshots a pass updated.
type Changed struct {
	Workflow bool
	Sprint   bool
	Claude   bool
}

// Any reports whether anything changed.
func (c Changed) Any() bool { return c.Workflow || c.Sprint || c.Claude }

// Reconciler compares freshly derived state against the store and publishes
// deltas. File and probe passes are serialized per kind; overlapping triggers
// of the same kind collapse into the pass already in flight, and a file pass
// never waits on a probe pass.
type Reconciler struct {
	store  *store.Store
	prober *probe.Prober
	logger *logrus.Entry

	filesMu sync.Mutex
	probeMu sync.Mutex

	// overrides tracks stories whose status the user set manually in this
	// session. While an override is live, file state that disagrees with it
	// is held back; once the file catches up the override is dropped.
	ovMu      sync.Mutex
	overrides map[string]models.StoryState
}

// New creates a Reconciler bound to a store and prober.
func New(st *store.Store, prober *probe.Prober) *Reconciler {
	return &Reconciler{
		store:     st,
		prober:    prober,
		logger:    logging.NewLogger("reconcile"),
		overrides: make(map[string]models.StoryState),
	}
}

// RegisterOverride records a manual story-status change so the next file
// pass does not immediately revert it.
func (r *Reconciler) RegisterOverride(storyID string, status models.StoryState) {
	r.ovMu.Lock()
	defer r.ovMu.Unlock()
	r.overrides[storyID] = status
}

// Run executes one full reconciliation pass: a file pass and a probe pass.
// Each half collapses into an in-flight pass of the same kind. Failures in
// one sub-snapshot never block the others.
func (r *Reconciler) Run(ctx context.Context) Changed {
	files := r.RunFiles(ctx)
	process := r.RunProbe(ctx)
	return Changed{
		Workflow: files.Workflow,
		Sprint:   files.Sprint,
		Claude:   process.Claude,
	}
}

// RunFiles reconciles only the manifest-derived snapshots. Used for file
// events, where probing the process list would be wasted work. If a file
// pass is already running the call returns immediately with no changes.
func (r *Reconciler) RunFiles(ctx context.Context) Changed {
	if !r.filesMu.TryLock() {
		return Changed{}
	}
	defer r.filesMu.Unlock()

	snap := r.store.Get()
	if snap.ProjectPath == "" {
		return Changed{}
	}
	return Changed{
		Workflow: r.reconcileWorkflow(snap),
		Sprint:   r.reconcileSprint(snap),
	}
}

// RunProbe reconciles only the assistant process snapshot. If a probe pass
// is already running the call returns immediately with no changes.
func (r *Reconciler) RunProbe(ctx context.Context) Changed {
	if !r.probeMu.TryLock() {
		return Changed{}
	}
	defer r.probeMu.Unlock()

	snap := r.store.Get()
	if snap.ProjectPath == "" {
		return Changed{}
	}
	return Changed{Claude: r.reconcileClaude(ctx, snap)}
}

func (r *Reconciler) reconcileWorkflow(snap store.Snapshot) bool {
	fresh, err := manifest.ReadWorkflow(snap.ProjectPath)
	if err != nil {
		r.logger.WithError(err).Warn("Workflow manifest read failed, keeping last known state")
		return false
	}
	if fresh.Equal(snap.Workflow) {
		return false
	}
	r.store.SetWorkflow(fresh)
	return true
}

func (r *Reconciler) reconcileSprint(snap store.Snapshot) bool {
	fresh, err := manifest.ReadSprint(snap.ProjectPath)
	if err != nil {
		r.logger.WithError(err).Warn("Sprint manifest read failed, keeping last known state")
		return false
	}
	r.applyOverrides(snap.Sprint, fresh)
	if fresh.Equal(snap.Sprint) {
		return false
	}
	r.store.SetSprint(fresh)
	return true
}

// applyOverrides merges session overrides into the freshly read sprint
// state. For an overridden story the override wins until the file agrees
// with it. For every other story the file may move it forward but a
// regression (e.g. done back to backlog from a stale write) is clamped to
// the previously known status.
func (r *Reconciler) applyOverrides(prev, fresh *models.SprintStatus) {
	if fresh == nil {
		return
	}
	r.ovMu.Lock()
	defer r.ovMu.Unlock()

	prevStatus := make(map[string]models.StoryState)
	if prev != nil {
		for _, e := range prev.Epics {
			for _, st := range e.Stories {
				prevStatus[st.StoryID] = st.Status
			}
		}
	}

	for ei := range fresh.Epics {
		stories := fresh.Epics[ei].Stories
		for si := range stories {
			story := &stories[si]
			if want, ok := r.overrides[story.StoryID]; ok {
				if story.Status == want {
					delete(r.overrides, story.StoryID)
				} else {
					story.Status = want
				}
				continue
			}
			if before, ok := prevStatus[story.StoryID]; ok {
				if story.Status.Rank() < before.Rank() {
					story.Status = before
				}
			}
		}
	}
}

func (r *Reconciler) reconcileClaude(ctx context.Context, snap store.Snapshot) bool {
	det := r.prober.Detect(ctx, snap.ProjectPath)
	// An indeterminate probe carries no evidence either way. Keep the last
	// known state when there is one; "stopped" requires positive evidence
	// of absence.
	if det.Indeterminate && snap.Claude != nil {
		return false
	}
	fresh := statusFromDetection(det)
	if fresh.Equal(snap.Claude) {
		return false
	}
	r.store.SetClaude(fresh)
	return true
}

func statusFromDetection(det probe.Detection) *models.ClaudeStatus {
	if det.Indeterminate {
		return &models.ClaudeStatus{
			Status:       models.ProcessError,
			MatchType:    models.MatchNone,
			ErrorMessage: det.Reason,
		}
	}
	if !det.Found {
		return &models.ClaudeStatus{
			Status:       models.ProcessStopped,
			MatchType:    models.MatchNone,
			Signal:       det.Signal,
			ErrorMessage: det.Reason,
		}
	}
	return &models.ClaudeStatus{
		Status:      models.ProcessRunning,
		PID:         det.PID,
		Cwd:         det.Cwd,
		WindowTitle: det.WindowTitle,
		MatchType:   det.MatchType,
		Signal:      det.Signal,
	}
}
