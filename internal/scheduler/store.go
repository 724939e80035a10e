// Package scheduler persists and fires scheduled tasks. Entries live
// in a schedules.json file the user may also edit by hand; the runner
// watches the file and picks up outside edits without a restart.
package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Entry is one scheduled task. Exactly one of Cron or At is set.
type Entry struct {
	ID   string `json:"id"`
	Cron string `json:"cron,omitempty"`
	At   string `json:"at,omitempty"`
	Task string `json:"task"`

	// ReplyToChannelID routes the task's result back to the chat
	// channel that asked for the schedule.
	ReplyToChannelID string `json:"reply_to_channel_id,omitempty"`
}

type schedulesFile struct {
	Schedules []Entry `json:"schedules"`
}

// Store is the schedules file with safe concurrent access.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore manages the schedules file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the schedules file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads all entries. A missing or unreadable file is an empty
// list, never an error: the scheduler must keep running through a
// half-finished hand edit.
func (s *Store) Load() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var f schedulesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}

	out := f.Schedules[:0]
	for _, e := range f.Schedules {
		if strings.TrimSpace(e.Task) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Add appends an entry, generating its ID, and reports whether it was
// new. An entry with the same spec and task is a duplicate and is not
// added again.
func (s *Store) Add(e Entry) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadLocked()
	norm := normalizeTask(e.Task)
	for _, existing := range entries {
		if existing.Cron == e.Cron && existing.At == e.At && normalizeTask(existing.Task) == norm {
			return existing, false, nil
		}
	}

	e.ID = uuid.NewString()
	entries = append(entries, e)
	if err := s.saveLocked(entries); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Remove deletes the entry with the given ID and reports whether it
// existed.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadLocked()
	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return false, nil
	}
	return true, s.saveLocked(kept)
}

func (s *Store) saveLocked(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create schedules directory: %w", err)
	}

	data, err := json.MarshalIndent(schedulesFile{Schedules: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize schedules: %w", err)
	}

	// Write-then-rename keeps the file parseable for the watcher.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write schedules file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace schedules file: %w", err)
	}
	return nil
}

func normalizeTask(task string) string {
	return strings.ToLower(strings.Join(strings.Fields(task), " "))
}
