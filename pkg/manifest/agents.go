package manifest

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/pkg/models"
	"gopkg.in/yaml.v3"
)

const (
	defaultAgentIcon   = "🤖"
	defaultCommandIcon = "📋"
)

var (
	agentTagRe = regexp.MustCompile(`<agent[^>]*\s+name="([^"]*)"[^>]*\s+title="([^"]*)"[^>]*\s+icon="([^"]*)"`)
	menuItemRe = regexp.MustCompile(`(?s)<item\s+cmd="([^"]+)"[^>]*>([^<]+)</item>`)
)

// agentFrontmatter is the YAML header of an agent definition file.
type agentFrontmatter struct {
	Title       string `yaml:"title"`
	Icon        string `yaml:"icon"`
	Description string `yaml:"description"`
}

// ListAgents reads the agent catalog from .bmad/bmm/agents. Catalog entries
// carry no commands; use ReadAgent for the full detail.
func ListAgents(root string) ([]models.Agent, error) {
	dir := filepath.Join(root, ".bmad", "bmm", "agents")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.New(errors.ErrCodeProjectNotFound, "agents directory not found")
	}

	agents := make([]models.Agent, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		agent, err := parseAgentFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		agent.Commands = nil
		agents = append(agents, *agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

// ReadAgent returns one agent's full definition including its command menu.
func ReadAgent(root, name string) (*models.Agent, error) {
	path := filepath.Join(root, ".bmad", "bmm", "agents", name+".md")
	if _, err := os.Stat(path); err != nil {
		return nil, errors.New(errors.ErrCodeProjectNotFound, "agent '"+name+"' not found")
	}
	return parseAgentFile(path)
}

func parseAgentFile(path string) (*models.Agent, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ParseError(filepath.Base(path), err)
	}
	text := string(content)

	name := strings.TrimSuffix(filepath.Base(path), ".md")
	agent := &models.Agent{
		Name:  name,
		Title: strings.ToUpper(name[:1]) + name[1:],
		Icon:  defaultAgentIcon,
	}

	if strings.HasPrefix(text, "---") {
		parts := strings.SplitN(text, "---", 3)
		if len(parts) >= 3 {
			var fm agentFrontmatter
			// Tolerate broken frontmatter; the tag fallback below still applies.
			if yaml.Unmarshal([]byte(parts[1]), &fm) == nil {
				if fm.Title != "" {
					agent.Title = fm.Title
				}
				if fm.Icon != "" {
					agent.Icon = fm.Icon
				}
				agent.Description = fm.Description
			}
		}
	}

	if m := agentTagRe.FindStringSubmatch(text); m != nil {
		if m[2] != "" {
			agent.Title = m[2]
		}
		if m[3] != "" {
			agent.Icon = m[3]
		}
	}

	for _, m := range menuItemRe.FindAllStringSubmatch(text, -1) {
		cmd := strings.TrimSpace(m[1])
		if cmd == "*help" || cmd == "*exit" {
			continue
		}
		agent.Commands = append(agent.Commands, models.Command{
			Name:  strings.TrimPrefix(cmd, "*"),
			Label: strings.TrimSpace(m[2]),
			Icon:  defaultCommandIcon,
		})
	}

	return agent, nil
}
