// Package skills loads prompt overlays from markdown files. A skill
// file is named skill-<number>-<topic>.md; its content is injected
// into the system prompt when the model (or a user) selects it.
package skills

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"dirigent/internal/logging"
)

// Skill is one loaded overlay.
type Skill struct {
	Number  int
	Topic   string
	Content string
}

// Load reads all skills under dir. Files that do not match the naming
// scheme or cannot be read are skipped.
func Load(dir string) []Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	log := logging.Get(logging.CategoryRouter)
	var out []Skill
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		number, topic, ok := parseFilename(strings.TrimSuffix(e.Name(), ".md"))
		if !ok {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Debugw("skipping unreadable skill", "file", e.Name(), "error", err)
			continue
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		out = append(out, Skill{Number: number, Topic: topic, Content: content})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// parseFilename splits "skill-123-topic-name" into (123, "topic-name").
func parseFilename(stem string) (int, string, bool) {
	rest, ok := strings.CutPrefix(stem, "skill-")
	if !ok {
		return 0, "", false
	}
	numStr, topic, ok := strings.Cut(rest, "-")
	if !ok || topic == "" {
		return 0, "", false
	}
	number, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, "", false
	}
	return number, topic, true
}

// Find selects a skill by number or topic. Topic matching is
// case-insensitive, exact before substring.
func Find(skills []Skill, selector string) (Skill, bool) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return Skill{}, false
	}

	if n, err := strconv.Atoi(selector); err == nil {
		for _, s := range skills {
			if s.Number == n {
				return s, true
			}
		}
		return Skill{}, false
	}

	lower := strings.ToLower(selector)
	for _, s := range skills {
		if strings.ToLower(s.Topic) == lower {
			return s, true
		}
	}
	for _, s := range skills {
		if strings.Contains(strings.ToLower(s.Topic), lower) {
			return s, true
		}
	}
	return Skill{}, false
}

// Catalog renders a one-line-per-skill list for the system prompt.
func Catalog(skills []Skill) string {
	var sb strings.Builder
	for _, s := range skills {
		sb.WriteString(strconv.Itoa(s.Number))
		sb.WriteString(": ")
		sb.WriteString(s.Topic)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
