package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/droverlabs/drover/internal/marker"
)

// init runs as a fake agent subprocess when _FAKE_AGENT=1 is set. Placing
// the guard in init() (before flag.Parse in m.Run) avoids flag-parse
// failures caused by CLI arguments such as --output-format that the Go test
// runner does not recognise.
func init() {
	if os.Getenv("_FAKE_AGENT") != "1" {
		return
	}
	if f := os.Getenv("_FAKE_AGENT_STDOUT_FILE"); f != "" {
		if data, err := os.ReadFile(f); err == nil {
			_, _ = os.Stdout.Write(data)
		}
	}
	if s := os.Getenv("_FAKE_AGENT_STDERR"); s != "" {
		_, _ = fmt.Fprint(os.Stderr, s)
	}
	if os.Getenv("_FAKE_AGENT_SLEEP") == "1" {
		time.Sleep(time.Minute)
	}
	code := 0
	if s := os.Getenv("_FAKE_AGENT_EXIT"); s != "" {
		_, _ = fmt.Sscan(s, &code)
	}
	os.Exit(code)
}

// setUpFakeAgent configures the test binary (exe) as a fake agent subprocess
// via env vars and returns a CLIRunner pointing at it.
func setUpFakeAgent(t *testing.T, exe string, exitCode int, stdout, stderr string) *CLIRunner {
	t.Helper()
	dir := t.TempDir()
	stdoutFile := filepath.Join(dir, "stdout.txt")
	if err := os.WriteFile(stdoutFile, []byte(stdout), 0644); err != nil {
		t.Fatalf("write stdout file: %v", err)
	}
	t.Setenv("_FAKE_AGENT", "1")
	t.Setenv("_FAKE_AGENT_STDOUT_FILE", stdoutFile)
	if exitCode != 0 {
		t.Setenv("_FAKE_AGENT_EXIT", fmt.Sprintf("%d", exitCode))
	}
	if stderr != "" {
		t.Setenv("_FAKE_AGENT_STDERR", stderr)
	}
	return &CLIRunner{Executable: exe}
}

func TestNewCLIRunner(t *testing.T) {
	r := NewCLIRunner()
	if r.Executable != "claude" {
		t.Errorf("expected executable %q, got %q", "claude", r.Executable)
	}
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		opts     Options
		contains []string
		excludes []string
	}{
		{
			name:     "defaults use acceptEdits permission mode",
			prompt:   "do the thing",
			opts:     Options{},
			contains: []string{"--permission-mode", "acceptEdits", "--output-format", "text", "-p", "do the thing"},
			excludes: []string{"--model", "--dangerously-skip-permissions", "--sandbox"},
		},
		{
			name:     "model flag",
			prompt:   "p",
			opts:     Options{Model: "opus"},
			contains: []string{"--model", "opus"},
		},
		{
			name:     "skip permissions replaces permission mode",
			prompt:   "p",
			opts:     Options{SkipPermissions: true},
			contains: []string{"--dangerously-skip-permissions"},
			excludes: []string{"--permission-mode"},
		},
		{
			name:     "sandbox flag",
			prompt:   "p",
			opts:     Options{Sandbox: true},
			contains: []string{"--sandbox"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := buildArgs(tt.prompt, tt.opts)
			for _, want := range tt.contains {
				if !containsArg(args, want) {
					t.Errorf("args %v missing expected %q", args, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if containsArg(args, unwanted) {
					t.Errorf("args %v should not contain %q", args, unwanted)
				}
			}
			if args[len(args)-1] != tt.prompt {
				t.Errorf("prompt must be the final argument, got %v", args)
			}
		})
	}
}

func TestCLIRunnerRun(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}

	t.Run("streams and accumulates stdout", func(t *testing.T) {
		r := setUpFakeAgent(t, exe, 0, "hello from the agent\n<<<LOOP_COMPLETE>>>\n", "")

		var mu sync.Mutex
		var chunks []string
		res, err := r.Run(context.Background(), "prompt", Options{}, func(c string) {
			mu.Lock()
			chunks = append(chunks, c)
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Failed {
			t.Fatalf("unexpected failure: %s", res.ErrorMsg)
		}
		if !strings.Contains(res.Output, "hello from the agent") {
			t.Errorf("accumulated output missing text: %q", res.Output)
		}
		mu.Lock()
		joined := strings.Join(chunks, "")
		mu.Unlock()
		if joined != res.Output {
			t.Errorf("streamed chunks %q != accumulated output %q", joined, res.Output)
		}
		if res.Signal.Kind != marker.Complete {
			t.Errorf("expected complete signal, got %+v", res.Signal)
		}
	})

	t.Run("non-zero exit with signal is success", func(t *testing.T) {
		r := setUpFakeAgent(t, exe, 1, "<<<LOOP_BLOCKED: need input>>>", "")

		res, err := r.Run(context.Background(), "p", Options{}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Failed {
			t.Errorf("exit 1 with a recognized signal must not fail: %s", res.ErrorMsg)
		}
		if res.ExitCode != 1 {
			t.Errorf("expected exit code 1, got %d", res.ExitCode)
		}
		if res.Signal.Kind != marker.Blocked {
			t.Errorf("expected blocked signal, got %+v", res.Signal)
		}
	})

	t.Run("non-zero exit without signal fails with stderr detail", func(t *testing.T) {
		r := setUpFakeAgent(t, exe, 2, "partial output", "API rate limit exceeded")

		res, err := r.Run(context.Background(), "p", Options{}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Failed {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.ErrorMsg, "API rate limit exceeded") {
			t.Errorf("error should carry stderr detail, got: %s", res.ErrorMsg)
		}
		if res.Signal.Kind != marker.None {
			t.Errorf("expected no signal, got %+v", res.Signal)
		}
	})

	t.Run("spawn failure reports failed result", func(t *testing.T) {
		r := &CLIRunner{Executable: "/nonexistent/binary"}
		res, err := r.Run(context.Background(), "p", Options{}, nil)
		if err != nil {
			t.Fatalf("spawn failure must be a result, not an error: %v", err)
		}
		if !res.Failed {
			t.Fatal("expected failed result")
		}
		if res.ErrorMsg == "" {
			t.Error("expected underlying error message")
		}
		if res.Signal.Kind != marker.None {
			t.Errorf("expected empty signal, got %+v", res.Signal)
		}
	})

	t.Run("custom done string detected", func(t *testing.T) {
		r := setUpFakeAgent(t, exe, 0, "EVERYTHING SHIPPED", "")
		r.CustomDone = "EVERYTHING SHIPPED"

		res, err := r.Run(context.Background(), "p", Options{}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Signal.Kind != marker.Complete {
			t.Errorf("expected complete via custom string, got %+v", res.Signal)
		}
	})

	t.Run("context cancellation unwinds run", func(t *testing.T) {
		t.Setenv("_FAKE_AGENT", "1")
		t.Setenv("_FAKE_AGENT_SLEEP", "1")
		r := &CLIRunner{Executable: exe}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = r.Run(ctx, "p", Options{}, nil)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not unwind after context cancel")
		}
	})
}

func TestKill(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}

	t.Run("returns false with nothing active", func(t *testing.T) {
		r := NewCLIRunner()
		if r.Kill() {
			t.Error("Kill with no active process must return false")
		}
	})

	t.Run("kills an active invocation", func(t *testing.T) {
		t.Setenv("_FAKE_AGENT", "1")
		t.Setenv("_FAKE_AGENT_SLEEP", "1")
		r := &CLIRunner{Executable: exe}

		done := make(chan Result, 1)
		go func() {
			res, _ := r.Run(context.Background(), "p", Options{}, nil)
			done <- res
		}()

		// Give the subprocess time to start before killing it.
		deadline := time.Now().Add(5 * time.Second)
		for !r.Kill() {
			if time.Now().After(deadline) {
				t.Fatal("process never became active")
			}
			time.Sleep(10 * time.Millisecond)
		}

		select {
		case res := <-done:
			if !res.Failed {
				t.Error("killed invocation should report failure")
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after Kill")
		}

		// Second kill is a no-op once Run has unwound.
		if r.Kill() {
			t.Error("Kill after unwind must return false")
		}
	})
}

// Verify CLIRunner satisfies Runner at compile time.
var _ Runner = (*CLIRunner)(nil)

func containsArg(args []string, target string) bool {
	for _, a := range args {
		if a == target {
			return true
		}
	}
	return false
}
