package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmad-tools/dash/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sprintYAML = `
project: demo-app
story_location: md/sprint-artifacts
development_status:
  epic-1: in-progress
  1-1-user-login: done
  1-2-session-handling: in-progress
  epic-1-retrospective: pending
  epic-2: backlog
  2-1-billing: backlog
`

func TestReadSprintMissingManifest(t *testing.T) {
	dir := t.TempDir()
	sp, err := ReadSprint(dir)
	require.NoError(t, err)
	assert.False(t, sp.FileCreated)
	assert.Empty(t, sp.Epics)
}

func TestParseSprintEmptyDevelopmentStatus(t *testing.T) {
	sp, err := ParseSprint([]byte("project: demo\ndevelopment_status: {}\n"), "")
	require.NoError(t, err)
	assert.True(t, sp.FileCreated)
	assert.Empty(t, sp.Epics)
	assert.NotEmpty(t, sp.Message)
}

func TestParseSprint(t *testing.T) {
	sp, err := ParseSprint([]byte(sprintYAML), "")
	require.NoError(t, err)

	assert.Equal(t, "demo-app", sp.Project)
	assert.True(t, sp.FileCreated)
	require.Len(t, sp.Epics, 2)

	epic1 := sp.Epics[0]
	assert.Equal(t, 1, epic1.Number)
	assert.Equal(t, "in-progress", epic1.Status)
	assert.Equal(t, "pending", epic1.Retrospective)
	require.Len(t, epic1.Stories, 2)
	assert.Equal(t, "1-1", epic1.Stories[0].StoryID)
	assert.Equal(t, "User Login", epic1.Stories[0].Name)
	assert.Equal(t, models.StoryDone, epic1.Stories[0].Status)
	assert.Equal(t, "1-2", epic1.Stories[1].StoryID)

	epic2 := sp.Epics[1]
	assert.Equal(t, 2, epic2.Number)
	require.Len(t, epic2.Stories, 1)
	assert.Equal(t, models.StoryBacklog, epic2.Stories[0].Status)
}

func TestParseSprintPreservesStoryOrder(t *testing.T) {
	manifest := "project: demo\ndevelopment_status:\n  epic-2: in-progress\n"
	for i := 1; i <= 10; i++ {
		manifest += fmt.Sprintf("  2-%d-step: backlog\n", i)
	}

	sp, err := ParseSprint([]byte(manifest), "")
	require.NoError(t, err)
	require.Len(t, sp.Epics, 1)
	require.Len(t, sp.Epics[0].Stories, 10)
	// Double-digit stories must not sort between 2-1 and 2-2.
	for i, story := range sp.Epics[0].Stories {
		assert.Equal(t, fmt.Sprintf("2-%d", i+1), story.StoryID)
	}
}

func TestParseSprintIgnoresMalformedKeys(t *testing.T) {
	sp, err := ParseSprint([]byte(`
development_status:
  not-a-story: done
  3-x-broken: done
  3-1-valid: drafted
`), "")
	require.NoError(t, err)
	require.Len(t, sp.Epics, 1)
	require.Len(t, sp.Epics[0].Stories, 1)
	assert.Equal(t, "3-1", sp.Epics[0].Stories[0].StoryID)
}

func TestStoryFileStatusOverride(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "md", "sprint-artifacts")
	require.NoError(t, os.MkdirAll(artifacts, 0755))
	story := "# Story 1-2\n\n**Status:** review\n"
	require.NoError(t, os.WriteFile(filepath.Join(artifacts, "1-2-session-handling.md"), []byte(story), 0644))

	// The manifest names the directory with an underscore; lookup tolerates
	// the drift.
	withDrift := `
project: demo-app
story_location: md/sprint_artifacts
development_status:
  1-2-session-handling: in-progress
`
	sp, err := ParseSprint([]byte(withDrift), dir)
	require.NoError(t, err)
	require.Len(t, sp.Epics, 1)
	assert.Equal(t, models.StoryReview, sp.Epics[0].Stories[0].Status)
}

func TestStoryFileStatusIgnoresInvalidValue(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "md", "sprint-artifacts")
	require.NoError(t, os.MkdirAll(artifacts, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(artifacts, "2-1-billing.md"), []byte("Status: shipped-it\n"), 0644))

	sp, err := ParseSprint([]byte(`
development_status:
  2-1-billing: drafted
`), dir)
	require.NoError(t, err)
	assert.Equal(t, models.StoryDrafted, sp.Epics[0].Stories[0].Status)
}
