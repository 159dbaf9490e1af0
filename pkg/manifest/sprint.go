package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/pkg/models"
	"gopkg.in/yaml.v3"
)

// rawSprintDoc mirrors the top level of sprint-status.yaml. development_status
// is an ordered map: epic keys ("epic-2"), retrospective keys
// ("epic-2-retrospective"), and story keys ("2-1-user-login").
type rawSprintDoc struct {
	Project           string    `yaml:"project"`
	StoryLocation     string    `yaml:"story_location"`
	DevelopmentStatus yaml.Node `yaml:"development_status"`
}

type statusEntry struct {
	key    string
	status string
}

// mappingEntries flattens a YAML mapping node into key/value pairs in
// document order. Non-scalar entries are skipped.
func mappingEntries(node yaml.Node) []statusEntry {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	entries := make([]statusEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			continue
		}
		entries = append(entries, statusEntry{key: k.Value, status: v.Value})
	}
	return entries
}

var epicKeyRe = regexp.MustCompile(`^epic-(\d+)$`)
var retroKeyRe = regexp.MustCompile(`^epic-(\d+)-retrospective$`)

// ReadSprint locates and parses the sprint manifest. A missing file is a
// legitimate state (sprint planning not run yet) reported as
// FileCreated=false with no epics, not an error.
func ReadSprint(root string) (*models.SprintStatus, error) {
	path := FindSprintFile(root)
	if path == "" {
		return &models.SprintStatus{
			Project:     filepath.Base(root),
			Epics:       []models.Epic{},
			FileCreated: false,
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ParseError(SprintFileName, err)
	}
	return ParseSprint(data, root)
}

// ParseSprint converts raw sprint YAML into the canonical snapshot. root may
// be empty; when set, story artifact files override the manifest status.
func ParseSprint(data []byte, root string) (*models.SprintStatus, error) {
	var doc rawSprintDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ParseError(SprintFileName, err)
	}

	project := doc.Project
	if project == "" {
		project = "Unknown Project"
	}

	entries := mappingEntries(doc.DevelopmentStatus)
	if len(entries) == 0 {
		return &models.SprintStatus{
			Project:     project,
			Epics:       []models.Epic{},
			FileCreated: true,
			Message:     "sprint file created, waiting for epics and stories",
		}, nil
	}

	storyLocation := doc.StoryLocation
	if storyLocation == "" {
		storyLocation = "md/sprint_artifacts"
	}

	epics := make(map[int]*models.Epic)

	for _, e := range entries {
		if m := epicKeyRe.FindStringSubmatch(e.key); m != nil {
			num, _ := strconv.Atoi(m[1])
			epic := ensureEpic(epics, num)
			epic.ID = e.key
			epic.Status = e.status
		}
	}

	for _, e := range entries {
		if m := retroKeyRe.FindStringSubmatch(e.key); m != nil {
			num, _ := strconv.Atoi(m[1])
			if epic, ok := epics[num]; ok {
				epic.Retrospective = e.status
			}
			continue
		}
		if strings.HasPrefix(e.key, "epic-") {
			continue
		}
		story, epicNum, ok := parseStoryKey(e.key)
		if !ok {
			continue
		}
		story.Status = models.StoryState(e.status)
		if root != "" {
			if fileStatus := storyFileStatus(root, storyLocation, story.StoryID); fileStatus != "" {
				story.Status = fileStatus
			}
		}
		ensureEpic(epics, epicNum).Stories = append(epics[epicNum].Stories, story)
	}

	nums := make([]int, 0, len(epics))
	for num := range epics {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	// Stories keep their manifest order; the file is the board's layout.
	ordered := make([]models.Epic, 0, len(nums))
	for _, num := range nums {
		ordered = append(ordered, *epics[num])
	}

	return &models.SprintStatus{
		Project:     project,
		Epics:       ordered,
		FileCreated: true,
	}, nil
}

func ensureEpic(epics map[int]*models.Epic, num int) *models.Epic {
	if epic, ok := epics[num]; ok {
		return epic
	}
	epic := &models.Epic{
		ID:      fmt.Sprintf("epic-%d", num),
		Number:  num,
		Name:    fmt.Sprintf("Epic %d", num),
		Status:  string(models.StoryBacklog),
		Stories: []models.Story{},
	}
	epics[num] = epic
	return epic
}

// parseStoryKey splits a "2-1-user-login" manifest key into a Story and its
// epic number. Keys that do not start with two numeric segments are ignored.
func parseStoryKey(key string) (models.Story, int, bool) {
	parts := strings.Split(key, "-")
	if len(parts) < 2 {
		return models.Story{}, 0, false
	}
	epicNum, err := strconv.Atoi(parts[0])
	if err != nil {
		return models.Story{}, 0, false
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return models.Story{}, 0, false
	}

	name := key
	if len(parts) > 2 {
		name = titleWords(parts[2:])
	}
	return models.Story{
		Key:     key,
		StoryID: parts[0] + "-" + parts[1],
		Name:    name,
	}, epicNum, true
}

// titleWords renders story key segments as a display name ("user login" ->
// "User Login").
func titleWords(words []string) string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		out = append(out, strings.ToUpper(w[:1])+w[1:])
	}
	return strings.Join(out, " ")
}

var storyStatusRe = regexp.MustCompile(`(?i)\*?\*?Status:?\*?\*?\s*(\S+)`)

// storyFileStatus reads the Status field from the story artifact for a
// storyID, tolerating underscore/hyphen drift in the configured location.
func storyFileStatus(root, storyLocation, storyID string) models.StoryState {
	dir := filepath.Join(root, filepath.FromSlash(storyLocation))
	if _, err := os.Stat(dir); err != nil {
		alt := storyLocation
		if strings.Contains(alt, "_") {
			alt = strings.ReplaceAll(alt, "_", "-")
		} else {
			alt = strings.ReplaceAll(alt, "-", "_")
		}
		dir = filepath.Join(root, filepath.FromSlash(alt))
		if _, err := os.Stat(dir); err != nil {
			return ""
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, storyID+"-*.md"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	content, err := os.ReadFile(matches[0])
	if err != nil {
		return ""
	}
	if m := storyStatusRe.FindSubmatch(content); m != nil {
		state := models.StoryState(strings.ToLower(strings.Trim(string(m[1]), "*")))
		if state.Valid() {
			return state
		}
	}
	return ""
}
