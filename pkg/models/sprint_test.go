package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStoryStateRank(t *testing.T) {
	assert.Equal(t, 0, StoryBacklog.Rank())
	assert.Equal(t, 1, StoryDrafted.Rank())
	assert.Equal(t, 2, StoryReadyForDev.Rank())
	assert.Equal(t, 4, StoryDone.Rank())
	assert.Equal(t, -1, StoryState("bogus").Rank())

	// in-progress and review are both "being worked"; neither outranks the
	// other so flipping between them is never a regression.
	assert.Equal(t, StoryInProgress.Rank(), StoryReview.Rank())
}

func TestStoryStateValid(t *testing.T) {
	assert.True(t, StoryInProgress.Valid())
	assert.False(t, StoryState("").Valid())
	assert.False(t, StoryState("paused").Valid())
}

func TestNextActiveStory(t *testing.T) {
	sprint := &SprintStatus{
		Epics: []Epic{
			{Number: 1, Stories: []Story{
				{StoryID: "1-1", Status: StoryDone},
				{StoryID: "1-2", Status: StoryDone},
			}},
			{Number: 2, Stories: []Story{
				{StoryID: "2-1", Status: StoryDone},
				{StoryID: "2-2", Status: StoryInProgress},
				{StoryID: "2-3", Status: StoryBacklog},
			}},
		},
	}

	story := sprint.NextActiveStory()
	if assert.NotNil(t, story) {
		assert.Equal(t, "2-2", story.StoryID)
	}

	for i := range sprint.Epics {
		for j := range sprint.Epics[i].Stories {
			sprint.Epics[i].Stories[j].Status = StoryDone
		}
	}
	assert.Nil(t, sprint.NextActiveStory())
}

func TestSprintStatusEqual(t *testing.T) {
	build := func() *SprintStatus {
		return &SprintStatus{
			Project:     "demo",
			FileCreated: true,
			Epics: []Epic{
				{ID: "epic-1", Number: 1, Name: "Auth", Status: "in-progress", Stories: []Story{
					{Key: "1-1-login", StoryID: "1-1", Name: "Login", Status: StoryDone},
				}},
			},
		}
	}

	a, b := build(), build()
	assert.True(t, a.Equal(b))

	b.Epics[0].Stories[0].Status = StoryReview
	assert.False(t, a.Equal(b))

	c := build()
	c.FileCreated = false
	assert.False(t, a.Equal(c))
}

func TestClaudeStatusEqualIgnoresVolatileFields(t *testing.T) {
	now := time.Now()
	a := &ClaudeStatus{Status: ProcessRunning, PID: 42, MatchType: MatchProject, Signal: "cmdline"}
	b := &ClaudeStatus{Status: ProcessRunning, PID: 42, MatchType: MatchProject, Signal: "window", StartedAt: &now}
	assert.True(t, a.Equal(b))

	b.PID = 43
	assert.False(t, a.Equal(b))
}
