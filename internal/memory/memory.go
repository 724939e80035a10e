// Package memory is the append-only notes file. The model uses it to
// remember small durable facts across sessions; nothing here is ever
// rewritten or deleted by the system.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Notes appends to and reads a single markdown file.
type Notes struct {
	mu   sync.Mutex
	path string
}

// New manages the notes file at path.
func New(path string) *Notes {
	return &Notes{path: path}
}

// Append adds one timestamped note.
func (n *Notes) Append(note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return fmt.Errorf("empty note")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(n.path), 0755); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}

	f, err := os.OpenFile(n.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open notes file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("- %s %s\n", time.Now().Format("2006-01-02 15:04"), note)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append note: %w", err)
	}
	return nil
}

// Tail returns up to maxChars of the most recent notes for prompt
// inclusion. A missing file is empty, not an error.
func (n *Notes) Tail(maxChars int) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	data, err := os.ReadFile(n.path)
	if err != nil {
		return ""
	}
	s := strings.TrimSpace(string(data))
	if maxChars > 0 && len(s) > maxChars {
		// Cut at a line boundary so no note arrives half-eaten.
		cut := s[len(s)-maxChars:]
		if i := strings.IndexByte(cut, '\n'); i >= 0 {
			cut = cut[i+1:]
		}
		s = cut
	}
	return s
}
