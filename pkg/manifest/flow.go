package manifest

import (
	"os"
	"path/filepath"

	"github.com/bmad-tools/dash/pkg/models"
	"gopkg.in/yaml.v3"
)

type flowStep struct {
	id          string
	name        string
	files       []string
	sprintCheck bool
}

var quickImplFlow = []flowStep{
	{id: "tech-spec", name: "Tech Spec", files: []string{"md/tech-spec.md", "tech-spec.md"}},
	{id: "create-epics-and-stories", name: "Epic Breakdown", files: []string{"md/epics.md", "epics.md"}},
	{id: "sprint-planning", name: "Sprint Planning", sprintCheck: true},
}

var standardImplFlow = []flowStep{
	{id: "product-brief", name: "Product Brief", files: []string{"md/product-brief.md", "product-brief.md"}},
	{id: "prd", name: "PRD", files: []string{"md/prd.md", "prd.md"}},
	{id: "architecture", name: "Architecture", files: []string{"md/architecture.md", "architecture.md"}},
	{id: "create-epics-and-stories", name: "Epic Breakdown", files: []string{"md/epics.md", "epics.md"}},
	{id: "sprint-planning", name: "Sprint Planning", sprintCheck: true},
}

// ImplementationFlow derives implementation-phase progress from the output
// artifacts on disk. The first incomplete step becomes the suggested next
// command. Without a workflow manifest the quick track is assumed.
func ImplementationFlow(root string) (*models.ImplementationFlow, error) {
	mode := models.TrackQuick
	if FindWorkflowFile(root) != "" {
		wf, err := ReadWorkflow(root)
		if err != nil {
			return nil, err
		}
		mode = wf.TrackMode
	}

	flow := standardImplFlow
	if mode == models.TrackQuick {
		flow = quickImplFlow
	}

	out := &models.ImplementationFlow{
		TrackMode:    mode,
		Steps:        make([]models.FlowStep, 0, len(flow)),
		AllCompleted: true,
	}
	for _, step := range flow {
		done := false
		if step.sprintCheck {
			done = sprintHasStories(root)
		} else {
			for _, rel := range step.files {
				if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err == nil {
					done = true
					break
				}
			}
		}

		status := "pending"
		if done {
			status = "completed"
		} else {
			out.AllCompleted = false
			if out.NextStep == nil {
				out.NextStep = &models.FlowNext{ID: step.id, Name: step.name, Command: step.id}
			}
		}
		out.Steps = append(out.Steps, models.FlowStep{ID: step.id, Name: step.name, Status: status})
	}
	return out, nil
}

// sprintHasStories reports whether the sprint manifest carries any
// development_status entries.
func sprintHasStories(root string) bool {
	path := FindSprintFile(root)
	if path == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var doc rawSprintDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false
	}
	return len(mappingEntries(doc.DevelopmentStatus)) > 0
}
