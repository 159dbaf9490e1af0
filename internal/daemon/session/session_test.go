package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bmad-tools/dash/config"
	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/internal/daemon/store"
	"github.com/bmad-tools/dash/pkg/manifest"
	"github.com/bmad-tools/dash/pkg/models"
	"github.com/bmad-tools/dash/pkg/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleDetector struct{}

func (idleDetector) Name() string { return "idle" }

func (idleDetector) Detect(ctx context.Context, hint probe.Hint) (probe.Detection, error) {
	return probe.Detection{}, nil
}

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Recent.File = filepath.Join(t.TempDir(), "recent-projects.json")

	st := store.New()
	m := NewManager(cfg, st, probe.NewWithDetectors(time.Second, idleDetector{}))
	t.Cleanup(m.Close)
	return m, st
}

func newProjectDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".bmad"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "md"), 0755))
	return root
}

func TestOpenRejectsMissingPath(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Open(context.Background(), "/does/not/exist")
	assert.True(t, errors.Is(err, errors.ErrCodeProjectNotFound))
}

func TestOpenRejectsNonProject(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Open(context.Background(), t.TempDir())
	assert.True(t, errors.Is(err, errors.ErrCodeNotBmadProject))
}

func TestOpenSetsSnapshotAndRecents(t *testing.T) {
	m, st := newTestManager(t)
	root := newProjectDir(t)

	snap, err := m.Open(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, root, snap.ProjectPath)
	assert.Equal(t, root, st.Get().ProjectPath)

	entries := m.Recent().All()
	require.Len(t, entries, 1)
	assert.Equal(t, root, entries[0].Path)
}

func TestOpenReplacesPreviousSession(t *testing.T) {
	m, st := newTestManager(t)
	first := newProjectDir(t)
	second := newProjectDir(t)

	_, err := m.Open(context.Background(), first)
	require.NoError(t, err)
	_, err = m.Open(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, second, st.Get().ProjectPath)
	assert.Len(t, m.Recent().All(), 2)
}

func TestOverrideStoryRequiresProject(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.OverrideStory(context.Background(), "1-1", models.StoryDone)
	assert.Error(t, err)
}

func TestOverrideStoryUpdatesManifest(t *testing.T) {
	m, st := newTestManager(t)
	root := newProjectDir(t)
	sprint := "project: demo\ndevelopment_status:\n  epic-1: in-progress\n  1-1-login: in-progress\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "md", "sprint-status.yaml"), []byte(sprint), 0644))

	_, err := m.Open(context.Background(), root)
	require.NoError(t, err)

	result, err := m.OverrideStory(context.Background(), "1-1", models.StoryDone)
	require.NoError(t, err)
	assert.Equal(t, models.StoryDone, result.Status)

	snap := st.Get()
	require.NotNil(t, snap.Sprint)
	assert.Equal(t, models.StoryDone, snap.Sprint.Epics[0].Stories[0].Status)
}

func TestCreateScaffoldsAndOpens(t *testing.T) {
	m, st := newTestManager(t)
	root := t.TempDir()

	snap, err := m.Create(context.Background(), root, manifest.ScaffoldOptions{UserName: "sam"})
	require.NoError(t, err)
	assert.Equal(t, root, snap.ProjectPath)
	assert.Equal(t, root, st.Get().ProjectPath)
	assert.DirExists(t, filepath.Join(root, ".bmad", "bmm", "agents"))
}
