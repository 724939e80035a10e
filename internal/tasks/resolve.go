package tasks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrOutsideRoot is returned for any path that does not resolve under
// the task root.
var ErrOutsideRoot = errors.New("path must be under the task root")

// ErrNotFound is returned when nothing matches a path or id.
var ErrNotFound = errors.New("no task file found")

// Resolve turns a path, filename, id, or topic into a file path under
// the root. Precedence: explicit path (confined), exact filename, id
// header, topic, filename substring. Among several matches the most
// active task wins: pending before wip before closed.
func (s *Store) Resolve(pathOrID string) (string, error) {
	pathOrID = strings.TrimSpace(pathOrID)
	if pathOrID == "" {
		return "", fmt.Errorf("%w: empty reference", ErrNotFound)
	}

	rootCanon := canonical(s.root)

	if strings.ContainsRune(pathOrID, os.PathSeparator) || strings.HasPrefix(pathOrID, "~") {
		p := expandTilde(pathOrID)
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, pathOrID)
		}
		canon := canonical(abs)
		if canon != rootCanon && !strings.HasPrefix(canon, rootCanon+string(os.PathSeparator)) {
			return "", ErrOutsideRoot
		}
		if _, err := os.Stat(canon); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, pathOrID)
		}
		return canon, nil
	}

	paths, err := s.taskFiles()
	if err != nil {
		return "", err
	}

	// Exact filename or stem, with or without the .md suffix.
	for _, p := range paths {
		name := filepath.Base(p)
		stem := strings.TrimSuffix(name, ".md")
		if name == pathOrID || stem == pathOrID || name == pathOrID+".md" {
			return p, nil
		}
	}

	byID := filterPaths(paths, func(p string) bool {
		t, err := s.load(p, false)
		return err == nil && t.ID == pathOrID
	})

	candidates := byID
	if len(candidates) == 0 {
		candidates = filterPaths(paths, func(p string) bool {
			t, err := s.load(p, false)
			if err != nil {
				return false
			}
			return t.Topic == pathOrID || slug(t.Topic) == pathOrID
		})
	}
	if len(candidates) == 0 {
		candidates = filterPaths(paths, func(p string) bool {
			return strings.Contains(filepath.Base(p), pathOrID)
		})
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("%w for %q; use the task filename or a path under %s", ErrNotFound, pathOrID, s.root)
	}
	if len(candidates) > 1 {
		sort.SliceStable(candidates, func(i, j int) bool {
			return statusRank(candidates[i]) < statusRank(candidates[j])
		})
	}
	return candidates[0], nil
}

func statusRank(path string) int {
	switch statusFromPath(path) {
	case StatusPending:
		return 0
	case StatusWIP:
		return 1
	default:
		return 2
	}
}

func filterPaths(paths []string, keep func(string) bool) []string {
	var out []string
	for _, p := range paths {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// taskFiles lists every file under the root whose name parses as a
// task file.
func (s *Store) taskFiles() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read task root: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(s.root, e.Name())
		if statusFromPath(p) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// statusFromPath parses the status suffix out of a task filename;
// empty means the file is not a task.
func statusFromPath(path string) Status {
	name := filepath.Base(path)
	stem, ok := strings.CutSuffix(name, ".md")
	if !ok || !strings.HasPrefix(stem, "task-") {
		return ""
	}
	parts := strings.Split(stem, "-")
	last := parts[len(parts)-1]
	if isStatus(last) {
		return Status(last)
	}
	return ""
}

// load reads a task's headers, and its content when withContent is
// set.
func (s *Store) load(path string, withContent bool) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Task{}, fmt.Errorf("failed to read task file: %w", err)
	}
	content := string(data)

	t := Task{
		Path:   path,
		Status: statusFromPath(path),
		ID:     headerValue(content, idHeader),
		Topic:  headerValue(content, topicHeader),
	}
	if a, ok := ParseAssignee(headerValue(content, assignedHeader)); ok {
		t.AssignedTo = a
	} else {
		t.AssignedTo = AssigneeDefault
	}
	if withContent {
		t.Content = content
	}
	return t, nil
}

func headerValue(content, header string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, header) {
			return strings.TrimSpace(strings.TrimPrefix(line, header))
		}
	}
	return ""
}

func (s *Store) findByTopicID(topicSlug, id string) string {
	paths, err := s.taskFiles()
	if err != nil {
		return ""
	}
	for _, p := range paths {
		t, err := s.load(p, false)
		if err != nil {
			continue
		}
		if slug(t.Topic) == topicSlug && t.ID == id {
			return p
		}
	}
	return ""
}

// slug normalizes a topic for matching and duplicate detection.
func slug(topic string) string {
	var b strings.Builder
	for i, r := range topic {
		if i >= 60 {
			break
		}
		switch {
		case r == ' ':
			b.WriteRune('-')
		case r == '-' || r == '_':
			b.WriteRune(r)
		case 'a' <= r && r <= 'z' || '0' <= r && r <= '9':
			b.WriteRune(r)
		case 'A' <= r && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "task"
	}
	return out
}

// sanitizeID keeps ids filename-safe.
func sanitizeID(id string) string {
	var b strings.Builder
	for i, r := range id {
		if i >= 80 {
			break
		}
		switch {
		case r == '"' || r == '\'' || r == '/' || r == '\\' || r == '\n' || r == '\r':
			// dropped
		case r == '-' || r == '_',
			'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_ ")
	if out == "" {
		return "1"
	}
	return out
}

func expandTilde(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
		}
	}
	return p
}

// canonical resolves symlinks where possible so confinement checks
// compare real locations.
func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}
