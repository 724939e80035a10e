package runcmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledRunnerRejectsEverything(t *testing.T) {
	r := New(false, t.TempDir(), "")
	_, err := r.Run(context.Background(), "date")
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestAllowlist(t *testing.T) {
	r := New(true, t.TempDir(), "")

	denied := []string{
		"rm -rf /",
		"curl https://example.com",
		"bash -c id",
		"sh",
		"python3 -c print(1)",
	}
	for _, cmd := range denied {
		if _, err := r.Run(context.Background(), cmd); !errors.Is(err, ErrNotAllowed) {
			t.Errorf("Run(%q) err = %v, want ErrNotAllowed", cmd, err)
		}
	}

	if _, err := r.Run(context.Background(), ""); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty command err = %v, want ErrEmpty", err)
	}
}

func TestAllowedReportsAgentRunner(t *testing.T) {
	r := New(true, t.TempDir(), "aider")
	if !r.Allowed("aider") {
		t.Error("configured agent runner should be allowed")
	}
	if r.Allowed("goose") {
		t.Error("unconfigured binary should not be allowed")
	}

	r = New(true, t.TempDir(), "")
	if r.Allowed("aider") {
		t.Error("agent runner disabled, verb should be rejected")
	}
}

func TestVerbsListsFixedSetPlusRunner(t *testing.T) {
	r := New(true, t.TempDir(), "aider")
	got := r.Verbs()
	if len(got) != len(verbs)+1 {
		t.Fatalf("Verbs() returned %d entries, want %d", len(got), len(verbs)+1)
	}
	found := false
	for _, v := range got {
		if v == "aider" {
			found = true
		}
	}
	if !found {
		t.Error("agent runner missing from verb list")
	}
}

func TestConcatenateReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello from disk\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(true, dir, "")
	out, err := r.Run(context.Background(), "concatenate note.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "hello from disk") {
		t.Errorf("output = %q, want file content", out)
	}
}

func TestSearchFindsPattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta\ngamma\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(true, dir, "")
	out, err := r.Run(context.Background(), "search beta log.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "beta") {
		t.Errorf("output = %q, want match line", out)
	}
}

func TestFailedCommandKeepsStderrOutOfOutput(t *testing.T) {
	r := New(true, t.TempDir(), "")
	_, err := r.Run(context.Background(), "concatenate does-not-exist.txt")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "concatenate failed") {
		t.Errorf("err = %v, want verb-prefixed failure", err)
	}
}
