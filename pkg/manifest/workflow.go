package manifest

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/pkg/models"
	"gopkg.in/yaml.v3"
)

// workflowOutputFiles maps workflow IDs to the artifact locations that signal
// completion even when the manifest still records the step as pending.
var workflowOutputFiles = map[string][]string{
	"workflow-init":            {"md/bmm-workflow-status.yaml", "bmm-workflow-status.yaml"},
	"brainstorm-project":       {"md/brainstorm.md", "brainstorm.md"},
	"research":                 {"md/research.md", "research.md"},
	"tech-spec":                {"md/tech-spec.md", "tech-spec.md"},
	"product-brief":            {"md/product-brief.md", "product-brief.md"},
	"prd":                      {"md/prd.md", "prd.md"},
	"architecture":             {"md/architecture.md", "architecture.md"},
	"create-epics-and-stories": {"md/epics.md", "epics.md"},
	"sprint-planning":          {"md/sprint-status.yaml", "sprint-status.yaml"},
}

// standardPhaseNames are the phase labels for the 4-phase standard track.
var standardPhaseNames = map[int]string{
	0: "Discovery",
	1: "Planning",
	2: "Solutioning",
	3: "Implementation",
}

// quickPhaseNames are the phase labels for the 3-phase quick track, which has
// no Solutioning phase.
var quickPhaseNames = map[int]string{
	0: "Discovery",
	1: "Planning",
	2: "Implementation",
}

// rawWorkflowDoc mirrors the top level of bmm-workflow-status.yaml. The
// workflow_status field is kept raw because manifests use three shapes:
// a nested phase list, a flat workflow list, and a YAML block string that
// itself contains one of the two.
type rawWorkflowDoc struct {
	Project        string    `yaml:"project"`
	SelectedTrack  string    `yaml:"selected_track"`
	WorkflowStatus yaml.Node `yaml:"workflow_status"`
}

type rawWorkflowEntry struct {
	ID        string             `yaml:"id"`
	Name      string             `yaml:"name"`
	Command   string             `yaml:"command"`
	Status    string             `yaml:"status"`
	Agent     string             `yaml:"agent"`
	Phase     int                `yaml:"phase"`
	Workflows []rawWorkflowEntry `yaml:"workflows"`
}

// ReadWorkflow locates and parses the workflow manifest for a project root.
// A missing manifest yields an empty snapshot (project not yet initialized),
// not an error.
func ReadWorkflow(root string) (*models.WorkflowStatus, error) {
	path := FindWorkflowFile(root)
	if path == "" {
		return &models.WorkflowStatus{
			Project:   filepath.Base(root),
			TrackMode: models.TrackStandard,
			Phases:    []models.Phase{},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ParseError(WorkflowFileName, err)
	}
	return ParseWorkflow(data, root)
}

// ParseWorkflow converts raw manifest YAML into the canonical snapshot.
// root may be empty; when set it enables output-artifact auto-detection.
func ParseWorkflow(data []byte, root string) (*models.WorkflowStatus, error) {
	var doc rawWorkflowDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ParseError(WorkflowFileName, err)
	}

	project := doc.Project
	if project == "" {
		project = "Unknown Project"
	}
	track := doc.SelectedTrack
	if track == "" {
		track = "bmad-method"
	}
	mode := models.TrackStandard
	if strings.Contains(strings.ToLower(track), "quick") {
		mode = models.TrackQuick
	}

	entries, err := decodeWorkflowEntries(&doc.WorkflowStatus)
	if err != nil {
		return nil, err
	}

	var phases []models.Phase
	if isFlat(entries) {
		phases = buildFlatPhases(entries, mode, root)
	} else {
		phases = buildNestedPhases(entries, root)
	}

	return &models.WorkflowStatus{
		Project:   project,
		Track:     track,
		TrackMode: mode,
		Phases:    phases,
	}, nil
}

// decodeWorkflowEntries handles the three manifest shapes for workflow_status.
func decodeWorkflowEntries(node *yaml.Node) ([]rawWorkflowEntry, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}

	// Block-string manifests wrap the real document inside a scalar.
	if node.Kind == yaml.ScalarNode {
		var inner struct {
			Phases []rawWorkflowEntry `yaml:"phases"`
		}
		if err := yaml.Unmarshal([]byte(node.Value), &inner); err == nil && len(inner.Phases) > 0 {
			return inner.Phases, nil
		}
		var list []rawWorkflowEntry
		if err := yaml.Unmarshal([]byte(node.Value), &list); err != nil {
			return nil, errors.ParseError(WorkflowFileName, err)
		}
		return list, nil
	}

	var list []rawWorkflowEntry
	if err := node.Decode(&list); err != nil {
		return nil, errors.ParseError(WorkflowFileName, err)
	}
	return list, nil
}

// isFlat reports whether entries are individual workflows carrying a phase
// field rather than phases carrying workflow lists.
func isFlat(entries []rawWorkflowEntry) bool {
	if len(entries) == 0 {
		return false
	}
	return entries[0].ID != "" && len(entries[0].Workflows) == 0
}

func buildFlatPhases(entries []rawWorkflowEntry, mode models.TrackMode, root string) []models.Phase {
	names := standardPhaseNames
	if mode == models.TrackQuick {
		names = quickPhaseNames
	}

	grouped := make(map[int][]models.Workflow)
	for _, entry := range entries {
		grouped[entry.Phase] = append(grouped[entry.Phase], convertWorkflow(entry, root))
	}

	ids := make([]int, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	phases := make([]models.Phase, 0, len(ids))
	for _, id := range ids {
		name, ok := names[id]
		if !ok {
			name = "Phase " + strconv.Itoa(id)
		}
		phases = append(phases, assemblePhase(id, name, grouped[id]))
	}
	return phases
}

func buildNestedPhases(entries []rawWorkflowEntry, root string) []models.Phase {
	phases := make([]models.Phase, 0, len(entries))
	for _, raw := range entries {
		name := raw.Name
		if name == "" {
			name = "Phase " + strconv.Itoa(raw.Phase)
		}
		workflows := make([]models.Workflow, 0, len(raw.Workflows))
		for _, wf := range raw.Workflows {
			workflows = append(workflows, convertWorkflow(wf, root))
		}
		phases = append(phases, assemblePhase(raw.Phase, name, workflows))
	}
	return phases
}

func convertWorkflow(entry rawWorkflowEntry, root string) models.Workflow {
	status := models.MapRawStatus(entry.Status)
	outputPath := ""
	if status == models.WorkflowCompleted && strings.Contains(entry.Status, "/") {
		outputPath = entry.Status
	}

	// A workflow the manifest still records as pending counts as completed
	// once its known output artifact exists on disk.
	if status == models.WorkflowPending && root != "" {
		if detected := detectOutputFile(root, entry.ID); detected != "" {
			status = models.WorkflowCompleted
			if strings.Contains(detected, "/") {
				outputPath = detected
			}
		}
	}

	name := entry.Command
	if name == "" {
		name = entry.Name
	}
	if name == "" {
		name = entry.ID
	}

	return models.Workflow{
		ID:         entry.ID,
		Name:       name,
		Status:     status,
		Agent:      entry.Agent,
		OutputPath: outputPath,
	}
}

func detectOutputFile(root, workflowID string) string {
	for _, rel := range workflowOutputFiles[workflowID] {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err == nil {
			return rel
		}
	}
	return ""
}

func assemblePhase(id int, name string, workflows []models.Workflow) models.Phase {
	completed, total := 0, 0
	for _, wf := range workflows {
		if wf.Status.NonBlocking() {
			continue
		}
		total++
		if wf.Status == models.WorkflowCompleted {
			completed++
		}
	}
	return models.Phase{
		ID:             id,
		Name:           name,
		Status:         phaseStatus(workflows),
		CompletedCount: completed,
		TotalCount:     total,
		Workflows:      workflows,
	}
}

// phaseStatus derives a phase's status from its workflows: any in-progress
// workflow marks the phase in progress, any blocked one marks it blocked,
// and a phase with all required workflows completed (or none required) is
// completed.
func phaseStatus(workflows []models.Workflow) models.WorkflowState {
	required := 0
	completedRequired := 0
	for _, wf := range workflows {
		switch wf.Status {
		case models.WorkflowInProgress:
			return models.WorkflowInProgress
		case models.WorkflowBlocked:
			return models.WorkflowBlocked
		}
		if wf.Status.NonBlocking() {
			continue
		}
		required++
		if wf.Status == models.WorkflowCompleted {
			completedRequired++
		}
	}
	if required == 0 || completedRequired == required {
		return models.WorkflowCompleted
	}
	return models.WorkflowPending
}

