// Package agents loads delegate agent definitions. An agent is a
// directory agent-<id>/ holding agent.json plus prompt parts; the
// agent-delegate directive hands a task to one of them, optionally on
// a different model.
//
// Prompt assembly order: soul.md, mood.md, skill.md. Only skill.md is
// required.
package agents

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dirigent/internal/logging"
)

// agentConfig is the on-disk agent.json.
type agentConfig struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Model        string `json:"model"`
	Orchestrator bool   `json:"orchestrator"`
	Enabled      *bool  `json:"enabled"`
}

// Agent is one loaded delegate.
type Agent struct {
	ID           string
	Name         string
	Slug         string
	Model        string
	Orchestrator bool
	Prompt       string
}

// Load reads all enabled agents under dir. Directories that do not
// match agent-<id> or lack agent.json/skill.md are skipped with a log
// line.
func Load(dir string) []Agent {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	log := logging.Get(logging.CategoryRouter)
	var out []Agent
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, ok := strings.CutPrefix(e.Name(), "agent-")
		if !ok || id == "" {
			continue
		}

		a, err := loadOne(filepath.Join(dir, e.Name()), id)
		if err != nil {
			log.Debugw("skipping agent", "id", id, "error", err)
			continue
		}
		if a != nil {
			out = append(out, *a)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func loadOne(dir, id string) (*Agent, error) {
	cfgData, err := os.ReadFile(filepath.Join(dir, "agent.json"))
	if err != nil {
		return nil, err
	}
	var cfg agentConfig
	if err := json.Unmarshal(cfgData, &cfg); err != nil {
		return nil, err
	}
	if cfg.Enabled != nil && !*cfg.Enabled {
		return nil, nil
	}

	skill, err := os.ReadFile(filepath.Join(dir, "skill.md"))
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, name := range []string{"soul.md", "mood.md"} {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			if s := strings.TrimSpace(string(data)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	parts = append(parts, strings.TrimSpace(string(skill)))

	name := cfg.Name
	if name == "" {
		name = id
	}
	return &Agent{
		ID:           id,
		Name:         name,
		Slug:         cfg.Slug,
		Model:        cfg.Model,
		Orchestrator: cfg.Orchestrator,
		Prompt:       strings.Join(parts, "\n\n"),
	}, nil
}

// Find selects an agent by id, slug, or name, case-insensitively.
func Find(agents []Agent, selector string) (Agent, bool) {
	selector = strings.ToLower(strings.TrimSpace(selector))
	if selector == "" {
		return Agent{}, false
	}
	for _, a := range agents {
		if strings.ToLower(a.ID) == selector ||
			strings.ToLower(a.Slug) == selector ||
			strings.ToLower(a.Name) == selector {
			return a, true
		}
	}
	return Agent{}, false
}

// Catalog renders the agent list for the system prompt.
func Catalog(agents []Agent) string {
	var sb strings.Builder
	for _, a := range agents {
		sb.WriteString(a.ID)
		if a.Name != a.ID {
			sb.WriteString(" (")
			sb.WriteString(a.Name)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
