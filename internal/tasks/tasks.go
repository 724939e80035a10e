// Package tasks is the durable task store: one markdown file per task
// under a fixed root, with the status carried in the filename and
// topic/id/assignee carried as header lines. Models address tasks by
// path, filename, id, or topic; every path resolves under the root or
// not at all.
//
// File naming: task-<datetime>-<status>.md
// Headers: "## Assigned:", "## Topic:", "## Id:".
package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dirigent/internal/logging"
)

// Status is a task's lifecycle state, encoded in the filename.
type Status string

const (
	StatusPending      Status = "pending"
	StatusWIP          Status = "wip"
	StatusFinished     Status = "finished"
	StatusUnsuccessful Status = "unsuccessful"
)

// ParseStatus recognizes the states a directive may set. New tasks
// start pending; a directive cannot move one back.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusWIP:
		return StatusWIP, true
	case StatusFinished:
		return StatusFinished, true
	case StatusUnsuccessful:
		return StatusUnsuccessful, true
	}
	return "", false
}

func isStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusWIP, StatusFinished, StatusUnsuccessful:
		return true
	}
	return false
}

// Assignee is who a task is routed to.
type Assignee string

const (
	AssigneeScheduler Assignee = "scheduler"
	AssigneeDiscord   Assignee = "discord"
	AssigneeCPU       Assignee = "cpu"
	AssigneeDefault   Assignee = "default"
)

// ParseAssignee recognizes a routing target.
func ParseAssignee(s string) (Assignee, bool) {
	switch Assignee(strings.ToLower(strings.TrimSpace(s))) {
	case AssigneeScheduler:
		return AssigneeScheduler, true
	case AssigneeDiscord:
		return AssigneeDiscord, true
	case AssigneeCPU:
		return AssigneeCPU, true
	case AssigneeDefault:
		return AssigneeDefault, true
	}
	return "", false
}

const (
	assignedHeader = "## Assigned:"
	topicHeader    = "## Topic:"
	idHeader       = "## Id:"
)

// Task is one task record.
type Task struct {
	Path       string
	ID         string
	Topic      string
	Status     Status
	AssignedTo Assignee
	Content    string
}

// Filename returns the task's file name without directory.
func (t Task) Filename() string {
	return filepath.Base(t.Path)
}

// Store manages task files under a fixed root directory.
type Store struct {
	root string
}

// NewStore creates the root directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create task root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the confinement root.
func (s *Store) Root() string {
	return s.root
}

// Create writes a new pending task file and returns its path. Topics
// that look like existing task filenames are refused so the model
// appends instead of forking duplicates.
func (s *Store) Create(topic, id, content string, assignedTo Assignee) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("task topic is required")
	}
	if strings.Contains(topic, ".md") || (strings.HasPrefix(topic, "task-") && strings.Count(topic, "-") >= 4) {
		return "", fmt.Errorf("topic looks like a task filename; use task-append to add to that task, or pick a short topic")
	}

	id = sanitizeID(id)
	if existing := s.findByTopicID(slug(topic), id); existing != "" {
		return "", fmt.Errorf("a task with this topic and id already exists: %s; use task-append or task-status", filepath.Base(existing))
	}

	if assignedTo == "" {
		assignedTo = AssigneeDefault
	}

	ts := time.Now().Format("20060102-150405")
	name := fmt.Sprintf("task-%s-%s.md", ts, StatusPending)
	path := filepath.Join(s.root, name)
	for n := 2; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("task-%s-%d-%s.md", ts, n, StatusPending)
		path = filepath.Join(s.root, name)
	}

	header := fmt.Sprintf("%s %s\n%s %s\n%s %s\n\n",
		assignedHeader, assignedTo, topicHeader, topic, idHeader, id)
	body := header + strings.TrimSpace(content)

	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", fmt.Errorf("failed to write task file: %w", err)
	}

	logging.Get(logging.CategoryTasks).Infow("task created",
		"file", name, "topic", topic, "id", id, "assigned_to", assignedTo)
	return path, nil
}

// List returns tasks filtered by scope: empty for all, a status name,
// or an assignee name. Content is not loaded.
func (s *Store) List(scope string) ([]Task, error) {
	paths, err := s.taskFiles()
	if err != nil {
		return nil, err
	}

	scope = strings.ToLower(strings.TrimSpace(scope))
	var out []Task
	for _, p := range paths {
		t, err := s.load(p, false)
		if err != nil {
			continue
		}
		switch {
		case scope == "" || scope == "all":
		case isStatus(scope):
			if t.Status != Status(scope) {
				continue
			}
		default:
			if string(t.AssignedTo) != scope {
				continue
			}
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Show resolves the task and returns it with full content.
func (s *Store) Show(pathOrID string) (Task, error) {
	path, err := s.Resolve(pathOrID)
	if err != nil {
		return Task{}, err
	}
	return s.load(path, true)
}

// Append adds a timestamped feedback block to the task and returns the
// path it wrote to.
func (s *Store) Append(pathOrID, block string) (string, error) {
	path, err := s.Resolve(pathOrID)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read task file: %w", err)
	}

	ts := time.Now().Format("2006-01-02 15:04")
	section := fmt.Sprintf("\n\n## Feedback %s\n\n%s\n", ts, strings.TrimSpace(block))
	if err := os.WriteFile(path, append(data, []byte(section)...), 0644); err != nil {
		return "", fmt.Errorf("failed to write task file: %w", err)
	}
	return path, nil
}

// SetStatus renames the task file to carry the new status and returns
// the new path.
func (s *Store) SetStatus(pathOrID string, status Status) (string, error) {
	path, err := s.Resolve(pathOrID)
	if err != nil {
		return "", err
	}

	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, ".md")
	i := strings.LastIndex(stem, "-")
	if i < 0 {
		return "", fmt.Errorf("malformed task filename: %s", name)
	}

	newPath := filepath.Join(filepath.Dir(path), stem[:i]+"-"+string(status)+".md")
	if newPath == path {
		return path, nil
	}
	if err := os.Rename(path, newPath); err != nil {
		return "", fmt.Errorf("failed to rename task file: %w", err)
	}

	logging.Get(logging.CategoryTasks).Infow("task status changed",
		"file", filepath.Base(newPath), "status", status)
	return newPath, nil
}

// Assign rewrites the task's assignee header.
func (s *Store) Assign(pathOrID string, target Assignee) error {
	path, err := s.Resolve(pathOrID)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read task file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(line, assignedHeader) {
			lines[i] = assignedHeader + " " + string(target)
			replaced = true
			break
		}
	}
	out := strings.Join(lines, "\n")
	if !replaced {
		out = assignedHeader + " " + string(target) + "\n\n" + strings.TrimLeft(out, "\n")
	}

	if err := os.WriteFile(path, []byte(strings.TrimRight(out, "\n")), 0644); err != nil {
		return fmt.Errorf("failed to write task file: %w", err)
	}
	return nil
}
