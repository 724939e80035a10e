package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAppendAndTail(t *testing.T) {
	n := New(filepath.Join(t.TempDir(), "memory.md"))

	if err := n.Append("prefers answers in German"); err != nil {
		t.Fatal(err)
	}
	if err := n.Append("works UTC+2"); err != nil {
		t.Fatal(err)
	}

	got := n.Tail(0)
	if !strings.Contains(got, "prefers answers in German") || !strings.Contains(got, "works UTC+2") {
		t.Errorf("Tail = %q", got)
	}
	if strings.Count(got, "- 20") != 2 {
		t.Errorf("expected two timestamped lines, got %q", got)
	}
}

func TestAppendRejectsEmpty(t *testing.T) {
	n := New(filepath.Join(t.TempDir(), "memory.md"))
	if err := n.Append("  "); err == nil {
		t.Error("empty note should be rejected")
	}
}

func TestTailCutsAtLineBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.md")
	n := New(path)

	for i := 0; i < 10; i++ {
		if err := n.Append(strings.Repeat("x", 50)); err != nil {
			t.Fatal(err)
		}
	}

	got := n.Tail(120)
	if len(got) > 120 {
		t.Errorf("Tail returned %d chars, want <= 120", len(got))
	}
	if !strings.HasPrefix(got, "- ") {
		t.Errorf("Tail should start at a note line, got %q", got[:20])
	}
}

func TestTailMissingFile(t *testing.T) {
	n := New(filepath.Join(t.TempDir(), "missing.md"))
	if got := n.Tail(100); got != "" {
		t.Errorf("Tail on missing file = %q, want empty", got)
	}
}

func TestNotesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.md")

	if err := New(path).Append("first"); err != nil {
		t.Fatal(err)
	}
	if err := New(path).Append("second"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "\n") != 2 {
		t.Errorf("file = %q, want two lines", data)
	}
}
