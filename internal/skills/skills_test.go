package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadParsesAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "skill-2-code-review.md", "Review code carefully.")
	writeSkill(t, dir, "skill-1-summarize.md", "Summarize in three lines.")
	writeSkill(t, dir, "skill-x-bad.md", "ignored")
	writeSkill(t, dir, "notes.md", "ignored")
	writeSkill(t, dir, "skill-3-empty.md", "   ")

	got := Load(dir)
	if len(got) != 2 {
		t.Fatalf("Load returned %d skills, want 2", len(got))
	}
	if got[0].Number != 1 || got[0].Topic != "summarize" {
		t.Errorf("first skill = %+v, want number 1 topic summarize", got[0])
	}
	if got[1].Content != "Review code carefully." {
		t.Errorf("content = %q", got[1].Content)
	}
}

func TestLoadMissingDir(t *testing.T) {
	if got := Load(filepath.Join(t.TempDir(), "nope")); got != nil {
		t.Errorf("Load on missing dir = %v, want nil", got)
	}
}

func TestFind(t *testing.T) {
	skills := []Skill{
		{Number: 1, Topic: "summarize"},
		{Number: 2, Topic: "code-review"},
	}

	if s, ok := Find(skills, "2"); !ok || s.Topic != "code-review" {
		t.Errorf("Find by number = %+v, %v", s, ok)
	}
	if s, ok := Find(skills, "Summarize"); !ok || s.Number != 1 {
		t.Errorf("Find by topic = %+v, %v", s, ok)
	}
	if s, ok := Find(skills, "review"); !ok || s.Number != 2 {
		t.Errorf("Find by substring = %+v, %v", s, ok)
	}
	if _, ok := Find(skills, "9"); ok {
		t.Error("unknown number should not match")
	}
	if _, ok := Find(skills, ""); ok {
		t.Error("empty selector should not match")
	}
}

func TestCatalog(t *testing.T) {
	skills := []Skill{{Number: 1, Topic: "summarize"}, {Number: 2, Topic: "code-review"}}
	want := "1: summarize\n2: code-review"
	if got := Catalog(skills); got != want {
		t.Errorf("Catalog = %q, want %q", got, want)
	}
}
