// Package manifest reads and derives structured state from the BMAD project
// artifacts on disk: the workflow manifest, the sprint manifest, story
// artifact files, and the agent catalog. All reads are idempotent and safe
// to call concurrently; no function keeps mutable state between calls.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmad-tools/dash/errors"
	"gopkg.in/yaml.v3"
)

// Well-known manifest file names.
const (
	WorkflowFileName = "bmm-workflow-status.yaml"
	SprintFileName   = "sprint-status.yaml"
)

// manifestDirs is the lookup order for manifest files inside a project.
var manifestDirs = []string{"md", ""}

// FindWorkflowFile returns the path of the workflow manifest, or "" when the
// project has none.
func FindWorkflowFile(root string) string {
	return findManifest(root, WorkflowFileName)
}

// FindSprintFile returns the path of the sprint manifest, or "" when the
// project has none.
func FindSprintFile(root string) string {
	return findManifest(root, SprintFileName)
}

func findManifest(root, name string) string {
	for _, dir := range manifestDirs {
		candidate := filepath.Join(root, dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// IsProject reports whether the directory carries a .bmad marker.
func IsProject(root string) bool {
	info, err := os.Stat(filepath.Join(root, ".bmad"))
	return err == nil && info.IsDir()
}

// ProjectConfig is the subset of .bmad/bmm/config.yaml the dashboard reads.
type ProjectConfig struct {
	ProjectName           string `yaml:"project_name"`
	UserName              string `yaml:"user_name"`
	CommunicationLanguage string `yaml:"communication_language"`
	OutputFolder          string `yaml:"output_folder"`
}

// projectConfigFiles is the lookup order for the project config.
var projectConfigFiles = []string{
	filepath.Join(".bmad", "bmm", "config.yaml"),
	filepath.Join(".bmad", "_cfg", "config.yaml"),
	filepath.Join(".bmad", "config.yaml"),
}

// ParseConfig loads the project's BMAD configuration. A missing config file
// yields an empty config, not an error; malformed YAML is a parse error.
func ParseConfig(root string) (*ProjectConfig, error) {
	for _, rel := range projectConfigFiles {
		path := filepath.Join(root, rel)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		cfg := &ProjectConfig{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.ParseError(rel, err)
		}
		return cfg, nil
	}
	return &ProjectConfig{}, nil
}

// Name returns the display name for a project: configured name, falling back
// to the directory base name.
func Name(root string) string {
	if cfg, err := ParseConfig(root); err == nil && cfg.ProjectName != "" {
		return cfg.ProjectName
	}
	return filepath.Base(root)
}

// ScaffoldOptions configures project creation.
type ScaffoldOptions struct {
	UserName              string
	CommunicationLanguage string
	OutputFolder          string
	Modules               []string
}

// Scaffold initializes a BMAD project in an existing directory. It fails if
// the directory already holds a .bmad project.
func Scaffold(root string, opts ScaffoldOptions) error {
	info, err := os.Stat(root)
	if err != nil {
		return errors.ProjectNotFound(root)
	}
	if !info.IsDir() {
		return errors.InvalidPath("not a directory")
	}
	bmadDir := filepath.Join(root, ".bmad")
	if _, err := os.Stat(bmadDir); err == nil {
		return errors.New(errors.ErrCodeAlreadyExists, "directory already holds a .bmad project")
	}
	if opts.UserName == "" {
		return errors.InvalidRequest("user_name must not be empty")
	}

	modules := opts.Modules
	if len(modules) == 0 {
		modules = []string{"bmm", "core"}
	}
	if opts.OutputFolder == "" {
		opts.OutputFolder = "md/"
	}
	if opts.CommunicationLanguage == "" {
		opts.CommunicationLanguage = "english"
	}

	for _, module := range modules {
		dir := filepath.Join(bmadDir, module)
		if module == "bmm" {
			dir = filepath.Join(dir, "agents")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			if os.IsPermission(err) {
				return errors.New(errors.ErrCodePermissionDenied, "insufficient permissions to create project structure")
			}
			return errors.Wrap(err, errors.ErrCodeCreateFailed, "failed to create project structure")
		}
	}

	for _, module := range modules {
		if module != "bmm" {
			continue
		}
		cfg := fmt.Sprintf(
			"project_name: %s\nuser_name: %s\ncommunication_language: %s\noutput_folder: %s\n",
			filepath.Base(root), opts.UserName, opts.CommunicationLanguage, opts.OutputFolder,
		)
		cfgPath := filepath.Join(bmadDir, "bmm", "config.yaml")
		if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
			return errors.Wrap(err, errors.ErrCodeCreateFailed, "failed to write project config")
		}
	}

	outputDir := filepath.Join(root, strings.TrimSuffix(opts.OutputFolder, "/"))
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeCreateFailed, "failed to create output folder")
	}
	return nil
}
