package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/droverlabs/drover/internal/config"
	"github.com/droverlabs/drover/internal/loop"
	"github.com/droverlabs/drover/internal/tui"
)

func TestBuildLoopConfig(t *testing.T) {
	base := config.Defaults()
	base.Loop.MaxIterations = 25
	base.Loop.DoneSignal = "CONFIG DONE"
	base.Agent.TimeoutSeconds = 120
	base.Agent.Model = "sonnet"

	t.Run("config values flow through", func(t *testing.T) {
		got := buildLoopConfig(&base, runOptions{timeout: -1}, "do it", "/proj")

		if got.MaxIterations != 25 {
			t.Errorf("MaxIterations = %d, want 25", got.MaxIterations)
		}
		if got.DoneSignal != "CONFIG DONE" {
			t.Errorf("DoneSignal = %q", got.DoneSignal)
		}
		if got.Timeout != 120*time.Second {
			t.Errorf("Timeout = %v, want 2m", got.Timeout)
		}
		if got.Prompt != "do it" || got.Dir != "/proj" {
			t.Errorf("prompt/dir not carried: %+v", got)
		}
	})

	t.Run("flags override config", func(t *testing.T) {
		opts := runOptions{
			max:        5,
			unbounded:  true,
			timeout:    0,
			sandbox:    true,
			doneSignal: "FLAG DONE",
		}
		got := buildLoopConfig(&base, opts, "p", "/proj")

		if got.MaxIterations != 5 {
			t.Errorf("MaxIterations = %d, want 5", got.MaxIterations)
		}
		if !got.Unbounded {
			t.Error("Unbounded should be set from the flag")
		}
		if got.Timeout != 0 {
			t.Errorf("Timeout = %v, want 0 (flag disables)", got.Timeout)
		}
		if !got.Sandbox {
			t.Error("Sandbox should be set from the flag")
		}
		if got.DoneSignal != "FLAG DONE" {
			t.Errorf("DoneSignal = %q, want flag override", got.DoneSignal)
		}
	})
}

func TestReadPrompt(t *testing.T) {
	cfg := config.Defaults()

	t.Run("reads the configured file", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "PROMPT.md"), []byte("build the thing\n"), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := readPrompt(dir, &cfg, "")
		if err != nil {
			t.Fatalf("readPrompt: %v", err)
		}
		if got != "build the thing" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("positional override wins", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "OTHER.md"), []byte("other task"), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := readPrompt(dir, &cfg, "OTHER.md")
		if err != nil {
			t.Fatalf("readPrompt: %v", err)
		}
		if got != "other task" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("missing file names drover init", func(t *testing.T) {
		_, err := readPrompt(t.TempDir(), &cfg, "")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "drover init") {
			t.Errorf("error should point at drover init: %v", err)
		}
	})

	t.Run("empty file is an error", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "PROMPT.md"), []byte("  \n"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := readPrompt(dir, &cfg, ""); err == nil {
			t.Error("expected error for empty prompt")
		}
	})
}

func TestResolvePath(t *testing.T) {
	if got := resolvePath("/proj", ".drover/runs"); got != filepath.Join("/proj", ".drover/runs") {
		t.Errorf("relative path not rooted: %q", got)
	}
	if got := resolvePath("/proj", "/abs/runs"); got != "/abs/runs" {
		t.Errorf("absolute path mangled: %q", got)
	}
}

func TestFormatLogLine(t *testing.T) {
	at := time.Date(2026, 8, 28, 9, 30, 15, 0, time.UTC)

	tests := []struct {
		name     string
		ev       tui.Event
		contains []string
		empty    bool
	}{
		{
			name:     "iteration start",
			ev:       tui.Event{Time: at, Kind: tui.EventIterationStart, Iteration: 2},
			contains: []string{"[09:30:15]", "iteration 2"},
		},
		{
			name:     "iteration end",
			ev:       tui.Event{Time: at, Kind: tui.EventIterationEnd, Iteration: 2, Duration: 90 * time.Second},
			contains: []string{"iteration 2 done", "90.0s"},
		},
		{
			name:     "failed iteration",
			ev:       tui.Event{Time: at, Kind: tui.EventIterationEnd, Iteration: 3, Failed: true, Text: "exit status 1"},
			contains: []string{"iteration 3 failed", "exit status 1"},
		},
		{
			name:     "status with detail",
			ev:       tui.Event{Time: at, Kind: tui.EventStatus, Status: loop.StatusBlocked, Text: "no creds"},
			contains: []string{"status: blocked", "no creds"},
		},
		{
			name:     "output passes through",
			ev:       tui.Event{Time: at, Kind: tui.EventOutput, Text: "agent says hi\n"},
			contains: []string{"agent says hi"},
		},
		{
			name:  "blank output suppressed",
			ev:    tui.Event{Time: at, Kind: tui.EventOutput, Text: "   \n"},
			empty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatLogLine(tt.ev)
			if tt.empty {
				if got != "" {
					t.Errorf("expected empty line, got %q", got)
				}
				return
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("line %q missing %q", got, want)
				}
			}
		})
	}
}

func TestRootCmd(t *testing.T) {
	root := rootCmd()

	want := map[string]bool{"run": false, "status": false, "history": false, "init": false}
	for _, c := range root.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestRunCmdFlags(t *testing.T) {
	cmd := runCmd()
	for _, flag := range []string{"max", "unbounded", "no-tui", "timeout", "sandbox", "done-signal"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("run command missing --%s", flag)
		}
	}
}
