package manifest

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/pkg/models"
)

// OverrideResult reports what a manual story-status override touched.
type OverrideResult struct {
	StoryID          string            `json:"storyId"`
	Status           models.StoryState `json:"status"`
	StoryFileUpdated bool              `json:"storyFileUpdated"`
	StoryFileDeleted bool              `json:"storyFileDeleted"`
	Message          string            `json:"message"`
}

var statusLineRe = regexp.MustCompile(`(Status:\s*)(\S+)`)

// OverrideStoryStatus manually sets a story's status in the sprint manifest,
// bypassing the forward-flow invariant, and syncs the story artifact file:
// moving to backlog deletes the artifact, any state from ready-for-dev
// onward rewrites its Status line. storyID is the human key ("6-1").
func OverrideStoryStatus(root, storyID string, status models.StoryState) (*OverrideResult, error) {
	if !status.Valid() {
		return nil, errors.InvalidRequest("invalid status value: " + string(status))
	}

	path := FindSprintFile(root)
	if path == "" {
		return nil, errors.New(errors.ErrCodeProjectNotFound, "sprint manifest not found")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ParseError(SprintFileName, err)
	}

	// Rewrite only the matched story line. The manifest belongs to the
	// methodology's own tooling; key order and comments must survive.
	keyRe := regexp.MustCompile(`^(\s*)(` + regexp.QuoteMeta(storyID) + `(?:-[^:\s]*)?)(:\s*)(\S*)(.*)$`)
	lines := strings.Split(string(data), "\n")
	found := false
	for i, line := range lines {
		if m := keyRe.FindStringSubmatch(line); m != nil {
			lines[i] = m[1] + m[2] + m[3] + string(status) + m[5]
			found = true
			break
		}
	}
	if !found {
		return nil, errors.StoryNotFound(storyID)
	}

	result := &OverrideResult{StoryID: storyID, Status: status}

	storyFile := findStoryFile(root, storyID)
	switch {
	case status == models.StoryBacklog:
		if storyFile != "" {
			if err := os.Remove(storyFile); err == nil {
				result.StoryFileDeleted = true
			}
		}
	case status != models.StoryDrafted:
		if storyFile != "" {
			result.StoryFileUpdated = rewriteStoryStatus(storyFile, status)
		}
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSaveError, "failed to save sprint manifest")
	}

	result.Message = "status updated"
	switch {
	case result.StoryFileDeleted:
		result.Message += ", story file deleted"
	case result.StoryFileUpdated:
		result.Message += ", story file updated"
	case storyFile == "" && status != models.StoryBacklog:
		result.Message += " (no story file found)"
	}
	return result, nil
}

// findStoryFile locates the story artifact for a storyID under the
// conventional artifact directories.
func findStoryFile(root, storyID string) string {
	for _, rel := range []string{"md/sprint-artifacts", "md/sprint_artifacts"} {
		dir := filepath.Join(root, filepath.FromSlash(rel))
		if matches, err := filepath.Glob(filepath.Join(dir, storyID+"-*.md")); err == nil && len(matches) > 0 {
			return matches[0]
		}
		direct := filepath.Join(dir, storyID+".md")
		if _, err := os.Stat(direct); err == nil {
			return direct
		}
	}
	return ""
}

func rewriteStoryStatus(path string, status models.StoryState) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if !statusLineRe.Match(content) {
		return false
	}
	updated := statusLineRe.ReplaceAll(content, []byte("${1}"+string(status)))
	return os.WriteFile(path, updated, 0644) == nil
}
