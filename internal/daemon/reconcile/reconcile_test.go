package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bmad-tools/dash/internal/daemon/store"
	"github.com/bmad-tools/dash/pkg/models"
	"github.com/bmad-tools/dash/pkg/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDetector struct {
	result probe.Detection
	err    error
}

func (d *scriptedDetector) Name() string { return "scripted" }

func (d *scriptedDetector) Detect(ctx context.Context, hint probe.Hint) (probe.Detection, error) {
	return d.result, d.err
}

func newTestReconciler(t *testing.T, det *scriptedDetector) (*Reconciler, *store.Store, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "md"), 0755))

	st := store.New()
	st.SetProject(root, "demo")
	prober := probe.NewWithDetectors(time.Second, det)
	return New(st, prober), st, root
}

func writeSprint(t *testing.T, root, status string) {
	t.Helper()
	manifest := "project: demo\ndevelopment_status:\n  epic-1: in-progress\n  1-1-login: " + status + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "md", "sprint-status.yaml"), []byte(manifest), 0644))
}

func writeWorkflow(t *testing.T, root, status string) {
	t.Helper()
	manifest := `
project: demo
workflow_status:
  - name: Planning
    phase: 1
    workflows:
      - id: prd
        status: ` + status + `
        agent: pm
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "md", "bmm-workflow-status.yaml"), []byte(manifest), 0644))
}

func TestRunWithoutProjectDoesNothing(t *testing.T) {
	st := store.New()
	r := New(st, probe.NewWithDetectors(time.Second, &scriptedDetector{}))
	assert.False(t, r.Run(context.Background()).Any())
}

func TestRunPublishesOnlyOnChange(t *testing.T) {
	det := &scriptedDetector{result: probe.Detection{Found: true, PID: 9, MatchType: models.MatchProject}}
	r, st, root := newTestReconciler(t, det)
	writeWorkflow(t, root, "required")
	writeSprint(t, root, "in-progress")

	changed := r.Run(context.Background())
	assert.True(t, changed.Workflow)
	assert.True(t, changed.Sprint)
	assert.True(t, changed.Claude)

	// Nothing moved; a second pass must be silent.
	assert.False(t, r.Run(context.Background()).Any())

	snap := st.Get()
	require.NotNil(t, snap.Claude)
	assert.Equal(t, models.ProcessRunning, snap.Claude.Status)
}

func TestFileChangeTriggersSprintUpdate(t *testing.T) {
	det := &scriptedDetector{}
	r, st, root := newTestReconciler(t, det)
	writeSprint(t, root, "in-progress")
	r.Run(context.Background())

	writeSprint(t, root, "review")
	changed := r.RunFiles(context.Background())
	assert.True(t, changed.Sprint)
	assert.Equal(t, models.StoryReview, st.Get().Sprint.Epics[0].Stories[0].Status)
}

func TestSprintRegressionIsClamped(t *testing.T) {
	det := &scriptedDetector{}
	r, st, root := newTestReconciler(t, det)
	writeSprint(t, root, "in-progress")
	r.Run(context.Background())

	// A stale write moves the story backwards; reconciliation holds the line.
	writeSprint(t, root, "backlog")
	changed := r.RunFiles(context.Background())
	assert.False(t, changed.Sprint)
	assert.Equal(t, models.StoryInProgress, st.Get().Sprint.Epics[0].Stories[0].Status)
}

func TestOverrideHoldsUntilFileAgrees(t *testing.T) {
	det := &scriptedDetector{}
	r, st, root := newTestReconciler(t, det)
	writeSprint(t, root, "in-progress")
	r.Run(context.Background())

	// The user pulled the story back to drafted; the file still disagrees.
	r.RegisterOverride("1-1", models.StoryDrafted)
	r.RunFiles(context.Background())
	assert.Equal(t, models.StoryDrafted, st.Get().Sprint.Epics[0].Stories[0].Status)

	// Once the manifest catches up the override is retired and normal
	// forward flow resumes.
	writeSprint(t, root, "drafted")
	r.RunFiles(context.Background())
	writeSprint(t, root, "ready-for-dev")
	r.RunFiles(context.Background())
	assert.Equal(t, models.StoryReadyForDev, st.Get().Sprint.Epics[0].Stories[0].Status)
}

func TestIndeterminateProbeKeepsLastState(t *testing.T) {
	det := &scriptedDetector{result: probe.Detection{Found: true, PID: 9, MatchType: models.MatchProject}}
	r, st, _ := newTestReconciler(t, det)
	require.True(t, r.RunProbe(context.Background()).Claude)

	det.result = probe.Detection{}
	det.err = assert.AnError

	changed := r.RunProbe(context.Background())
	assert.False(t, changed.Claude)
	assert.Equal(t, models.ProcessRunning, st.Get().Claude.Status)
}

func TestIndeterminateProbeWithoutHistoryReportsError(t *testing.T) {
	det := &scriptedDetector{err: assert.AnError}
	r, st, _ := newTestReconciler(t, det)

	// No prior snapshot exists, so the ambiguity must be surfaced as an
	// error state rather than coerced to stopped.
	changed := r.RunProbe(context.Background())
	assert.True(t, changed.Claude)
	snap := st.Get()
	require.NotNil(t, snap.Claude)
	assert.Equal(t, models.ProcessError, snap.Claude.Status)
	assert.NotEmpty(t, snap.Claude.ErrorMessage)

	// Positive evidence of absence replaces the error state.
	det.err = nil
	det.result = probe.Detection{MatchType: models.MatchNone}
	require.True(t, r.RunProbe(context.Background()).Claude)
	assert.Equal(t, models.ProcessStopped, st.Get().Claude.Status)
}

type blockingDetector struct {
	started chan struct{}
	release chan struct{}
}

func (d *blockingDetector) Name() string { return "blocking" }

func (d *blockingDetector) Detect(ctx context.Context, hint probe.Hint) (probe.Detection, error) {
	close(d.started)
	select {
	case <-d.release:
	case <-ctx.Done():
	}
	return probe.Detection{MatchType: models.MatchNone}, nil
}

func TestFilePassDoesNotWaitOnProbePass(t *testing.T) {
	det := &blockingDetector{started: make(chan struct{}), release: make(chan struct{})}
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "md"), 0755))

	st := store.New()
	st.SetProject(root, "demo")
	r := New(st, probe.NewWithDetectors(time.Second, det))

	done := make(chan Changed, 1)
	go func() { done <- r.RunProbe(context.Background()) }()
	<-det.started

	// A debounced file trigger lands while the probe is still in flight.
	writeSprint(t, root, "in-progress")
	changed := r.RunFiles(context.Background())
	assert.True(t, changed.Sprint)
	assert.Equal(t, models.StoryInProgress, st.Get().Sprint.Epics[0].Stories[0].Status)

	close(det.release)
	<-done
}

func TestProcessExitIsReported(t *testing.T) {
	det := &scriptedDetector{result: probe.Detection{Found: true, PID: 9, MatchType: models.MatchProject}}
	r, st, _ := newTestReconciler(t, det)
	r.RunProbe(context.Background())

	det.result = probe.Detection{MatchType: models.MatchNone}
	changed := r.RunProbe(context.Background())
	assert.True(t, changed.Claude)
	assert.Equal(t, models.ProcessStopped, st.Get().Claude.Status)
}
