package agents

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeAgent(t *testing.T, root, id string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, "agent-"+id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoadAssemblesPrompt(t *testing.T) {
	root := t.TempDir()
	writeAgent(t, root, "reviewer", map[string]string{
		"agent.json": `{"name":"Reviewer","slug":"rev","model":"llama3.1:8b"}`,
		"soul.md":    "You are meticulous.",
		"mood.md":    "Calm today.",
		"skill.md":   "Review patches line by line.",
	})

	got := Load(root)
	if len(got) != 1 {
		t.Fatalf("Load returned %d agents, want 1", len(got))
	}
	a := got[0]
	if a.ID != "reviewer" || a.Name != "Reviewer" || a.Model != "llama3.1:8b" {
		t.Errorf("agent = %+v", a)
	}

	wantOrder := []string{"You are meticulous.", "Calm today.", "Review patches line by line."}
	last := -1
	for _, part := range wantOrder {
		i := strings.Index(a.Prompt, part)
		if i < 0 || i < last {
			t.Fatalf("prompt parts out of order: %q", a.Prompt)
		}
		last = i
	}
}

func TestLoadSkipsDisabledAndBroken(t *testing.T) {
	root := t.TempDir()
	writeAgent(t, root, "off", map[string]string{
		"agent.json": `{"name":"Off","enabled":false}`,
		"skill.md":   "x",
	})
	writeAgent(t, root, "noskill", map[string]string{
		"agent.json": `{"name":"NoSkill"}`,
	})
	writeAgent(t, root, "ok", map[string]string{
		"agent.json": `{"name":"OK"}`,
		"skill.md":   "do things",
	})
	// Directory without the agent- prefix is ignored.
	if err := os.MkdirAll(filepath.Join(root, "misc"), 0755); err != nil {
		t.Fatal(err)
	}

	got := Load(root)
	if len(got) != 1 || got[0].ID != "ok" {
		t.Fatalf("Load = %+v, want just agent ok", got)
	}
}

func TestFind(t *testing.T) {
	agents := []Agent{
		{ID: "reviewer", Name: "Reviewer", Slug: "rev"},
		{ID: "writer", Name: "Writer"},
	}

	for _, sel := range []string{"reviewer", "REV", "Reviewer"} {
		if a, ok := Find(agents, sel); !ok || a.ID != "reviewer" {
			t.Errorf("Find(%q) = %+v, %v", sel, a, ok)
		}
	}
	if _, ok := Find(agents, "editor"); ok {
		t.Error("unknown selector should not match")
	}
}
