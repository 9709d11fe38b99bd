package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/zhubert/claudway/internal/manager"
	"github.com/zhubert/claudway/internal/session"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"lowercase y", "y\n", true},
		{"uppercase Y", "Y\n", true},
		{"lowercase yes", "yes\n", true},
		{"uppercase YES", "YES\n", true},
		{"mixed case Yes", "Yes\n", true},
		{"lowercase n", "n\n", false},
		{"lowercase no", "no\n", false},
		{"empty input", "\n", false},
		{"random text", "maybe\n", false},
		{"y with spaces", "  y  \n", true},
		{"yes with spaces", "  yes  \n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := strings.NewReader(tt.input)
			result := confirm(reader, io.Discard, "Test?")
			if result != tt.expected {
				t.Errorf("confirm(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestConfirm_EOF(t *testing.T) {
	reader := strings.NewReader("")
	if confirm(reader, io.Discard, "Test?") {
		t.Error("confirm(EOF) = true, want false")
	}
}

func TestConfirm_ErrorReader(t *testing.T) {
	if confirm(&errorReader{}, io.Discard, "Test?") {
		t.Error("confirm(error) = true, want false")
	}
}

// errorReader is a reader that always returns an error
type errorReader struct{}

func (e *errorReader) Read(p []byte) (n int, err error) {
	return 0, io.ErrUnexpectedEOF
}

type fakeCleaner struct {
	plan    manager.CleanPlan
	planErr error
	result  manager.CleanResult
	cleaned bool
}

func (f *fakeCleaner) PlanClean(ctx context.Context) (manager.CleanPlan, error) {
	return f.plan, f.planErr
}

func (f *fakeCleaner) Clean(ctx context.Context, plan manager.CleanPlan) manager.CleanResult {
	f.cleaned = true
	return f.result
}

func withCleanFlags(t *testing.T, yes, logs bool) {
	t.Helper()
	origYes, origLogs := skipConfirm, cleanLogs
	t.Cleanup(func() { skipConfirm, cleanLogs = origYes, origLogs })
	skipConfirm, cleanLogs = yes, logs
}

func samplePlan() manager.CleanPlan {
	return manager.CleanPlan{
		Repo:      "/work/repo",
		StaleDirs: []string{"/data/worktrees/repo-1234/gone"},
		Abandoned: []session.Session{{Branch: "old", Path: "/tmp/cw-old"}},
		Dirty:     []session.Session{{Branch: "wip", Path: "/tmp/cw-wip"}},
	}
}

func TestRunClean_NothingToClean(t *testing.T) {
	withCleanFlags(t, false, false)
	c := &fakeCleaner{plan: manager.CleanPlan{Dirty: []session.Session{{Branch: "wip", Path: "/tmp/cw-wip"}}}}
	var out bytes.Buffer

	if err := runCleanWith(context.Background(), c, strings.NewReader(""), &out); err != nil {
		t.Fatal(err)
	}
	if c.cleaned {
		t.Error("Clean must not run for an empty plan")
	}
	got := out.String()
	if !strings.Contains(got, "Nothing to clean.") || !strings.Contains(got, "wip") {
		t.Errorf("output:\n%s", got)
	}
}

func TestRunClean_Aborted(t *testing.T) {
	withCleanFlags(t, false, false)
	c := &fakeCleaner{plan: samplePlan()}
	var out bytes.Buffer

	if err := runCleanWith(context.Background(), c, strings.NewReader("n\n"), &out); err != nil {
		t.Fatal(err)
	}
	if c.cleaned {
		t.Error("declined confirmation must not clean")
	}
	got := out.String()
	for _, want := range []string{"This will clean:", "1 stale worktree directory", "1 abandoned temporary session", "Aborted."} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunClean_Confirmed(t *testing.T) {
	withCleanFlags(t, false, false)
	c := &fakeCleaner{
		plan:   samplePlan(),
		result: manager.CleanResult{RemovedDirs: 1, RemovedSessions: 1},
	}
	var out bytes.Buffer

	if err := runCleanWith(context.Background(), c, strings.NewReader("y\n"), &out); err != nil {
		t.Fatal(err)
	}
	if !c.cleaned {
		t.Fatal("confirmed clean should run")
	}
	got := out.String()
	for _, want := range []string{"Cleaned:", "1 stale directory removed", "1 session removed", "Kept (uncommitted changes):", "/tmp/cw-wip"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunClean_ReportsSkipped(t *testing.T) {
	withCleanFlags(t, true, false)
	c := &fakeCleaner{plan: samplePlan(), result: manager.CleanResult{RemovedDirs: 1, Skipped: 1}}
	var out bytes.Buffer

	if err := runCleanWith(context.Background(), c, &errorReader{}, &out); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); !strings.Contains(got, "1 session skipped") || strings.Contains(got, "session removed") {
		t.Errorf("output:\n%s", got)
	}
}

func TestRunClean_SkipConfirm(t *testing.T) {
	withCleanFlags(t, true, false)
	c := &fakeCleaner{plan: samplePlan()}
	var out bytes.Buffer

	if err := runCleanWith(context.Background(), c, &errorReader{}, &out); err != nil {
		t.Fatal(err)
	}
	if !c.cleaned {
		t.Error("--yes should clean without reading input")
	}
	if strings.Contains(out.String(), "[y/N]") {
		t.Error("--yes must not prompt")
	}
}

func TestRunClean_PlanError(t *testing.T) {
	withCleanFlags(t, true, false)
	want := errors.New("boom")
	c := &fakeCleaner{planErr: want}

	if err := runCleanWith(context.Background(), c, strings.NewReader(""), io.Discard); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
	if c.cleaned {
		t.Error("Clean must not run after a planning error")
	}
}

func TestPlural(t *testing.T) {
	if got := "director" + plural(1, "y", "ies"); got != "directory" {
		t.Errorf("got %q", got)
	}
	if got := "director" + plural(2, "y", "ies"); got != "directories" {
		t.Errorf("got %q", got)
	}
	if got := "session" + plural(0, "", "s"); got != "sessions" {
		t.Errorf("got %q", got)
	}
}
