package main

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"dirigent/internal/config"
	"dirigent/internal/scheduler"
)

func TestTaskCommandLifecycle(t *testing.T) {
	cfg = config.DefaultConfig(t.TempDir())

	out := captureOutput(t, func() {
		if err := taskCreateCmd.RunE(taskCreateCmd, []string{"deploy", "ship", "the", "release"}); err != nil {
			t.Fatalf("create returned error: %v", err)
		}
	})
	if !strings.Contains(out, "Created ") {
		t.Fatalf("expected creation notice, got: %s", out)
	}

	out = captureOutput(t, func() {
		if err := taskListCmd.RunE(taskListCmd, nil); err != nil {
			t.Fatalf("list returned error: %v", err)
		}
	})
	if !strings.Contains(out, "deploy") || !strings.Contains(out, "pending") {
		t.Fatalf("expected pending deploy task in listing, got: %s", out)
	}

	out = captureOutput(t, func() {
		if err := taskStatusCmd.RunE(taskStatusCmd, []string{"deploy", "finished"}); err != nil {
			t.Fatalf("status returned error: %v", err)
		}
	})
	if !strings.Contains(out, "finished") {
		t.Fatalf("expected finished path, got: %s", out)
	}
}

func TestTaskStatusRejectsUnknown(t *testing.T) {
	cfg = config.DefaultConfig(t.TempDir())

	if _, err := captureError(t, func() error {
		return taskStatusCmd.RunE(taskStatusCmd, []string{"whatever", "done"})
	}); err == nil {
		t.Fatal("expected an error for unknown status")
	}
}

func TestScheduleAddListRemove(t *testing.T) {
	cfg = config.DefaultConfig(t.TempDir())

	out := captureOutput(t, func() {
		if err := scheduleAddCmd.RunE(scheduleAddCmd, []string{"every", "5", "minutes", "check", "the", "build"}); err != nil {
			t.Fatalf("add returned error: %v", err)
		}
	})
	if !strings.Contains(out, "Scheduled ") {
		t.Fatalf("expected schedule confirmation, got: %s", out)
	}

	out = captureOutput(t, func() {
		if err := scheduleListCmd.RunE(scheduleListCmd, nil); err != nil {
			t.Fatalf("list returned error: %v", err)
		}
	})
	if !strings.Contains(out, "check the build") {
		t.Fatalf("expected task in listing, got: %s", out)
	}

	entries := scheduler.NewStore(cfg.Scheduler.File).Load()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}

	out = captureOutput(t, func() {
		if err := scheduleRemoveCmd.RunE(scheduleRemoveCmd, []string{entries[0].ID}); err != nil {
			t.Fatalf("remove returned error: %v", err)
		}
	})
	if !strings.Contains(out, "Removed.") {
		t.Fatalf("expected removal notice, got: %s", out)
	}
}

func TestScheduleAddDuplicateSuppressed(t *testing.T) {
	cfg = config.DefaultConfig(t.TempDir())

	spec := []string{"every", "10", "minutes", "ping"}
	captureOutput(t, func() {
		if err := scheduleAddCmd.RunE(scheduleAddCmd, spec); err != nil {
			t.Fatalf("first add returned error: %v", err)
		}
	})
	out := captureOutput(t, func() {
		if err := scheduleAddCmd.RunE(scheduleAddCmd, spec); err != nil {
			t.Fatalf("second add returned error: %v", err)
		}
	})
	if !strings.Contains(out, "Already scheduled") {
		t.Fatalf("expected duplicate notice, got: %s", out)
	}
}

func TestCurrentUserName(t *testing.T) {
	if currentUserName() == "" {
		t.Fatal("expected a non-empty user name")
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut, origErr := os.Stdout, os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to open pipe: %v", err)
	}
	os.Stdout, os.Stderr = w, w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout, os.Stderr = origOut, origErr
	return <-done
}

func captureError(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	var err error
	out := captureOutput(t, func() { err = fn() })
	return out, err
}
