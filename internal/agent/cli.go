package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/droverlabs/drover/internal/marker"
)

// ErrInvocationActive is returned when Run is called while another
// invocation is still in flight. The control loop serializes invocations,
// so hitting this indicates a caller bug.
var ErrInvocationActive = errors.New("agent: an invocation is already active")

// CLIRunner runs the agent CLI (Claude by default) as a subprocess.
// At most one invocation is active per instance; the active process slot is
// shared with Kill, which may be called from a signal-handler path.
type CLIRunner struct {
	// Executable is the agent binary. Defaults to "claude".
	Executable string

	// CustomDone is an optional user-supplied completion string that counts
	// as a complete signal when found anywhere in the output.
	CustomDone string

	mu     sync.Mutex
	active *exec.Cmd
}

// NewCLIRunner creates a CLIRunner for the default "claude" binary.
func NewCLIRunner() *CLIRunner {
	return &CLIRunner{Executable: "claude"}
}

// Run spawns the agent with the given prompt, streaming stdout chunks to
// sink as they arrive. Spawn failures and unrecognized non-zero exits are
// reported in the Result, not as an error; the returned error is reserved
// for caller misuse.
func (r *CLIRunner) Run(ctx context.Context, prompt string, opts Options, sink Sink) (Result, error) {
	exe := r.Executable
	if exe == "" {
		exe = "claude"
	}

	cmd := exec.CommandContext(ctx, exe, buildArgs(prompt, opts)...)
	cmd.Dir = opts.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Failed: true, ErrorMsg: fmt.Sprintf("stdout pipe: %v", err), Signal: marker.Signal{Kind: marker.None}}, nil
	}

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	start := time.Now()
	if err := r.setActive(cmd); err != nil {
		return Result{}, err
	}
	if err := cmd.Start(); err != nil {
		r.clearActive()
		return Result{Failed: true, ErrorMsg: fmt.Sprintf("start %s: %v", exe, err), Signal: marker.Signal{Kind: marker.None}}, nil
	}

	var out strings.Builder
	buf := make([]byte, 32*1024)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			out.WriteString(chunk)
			if sink != nil {
				sink(chunk)
			}
		}
		if readErr != nil {
			// EOF or pipe closure; Wait reports the real cause either way.
			break
		}
	}

	waitErr := cmd.Wait()
	r.clearActive()

	res := Result{
		Output:   out.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}
	res.Signal = marker.Detect(res.Output, r.CustomDone)

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		if res.Signal.Kind == marker.None {
			res.Failed = true
			res.ErrorMsg = fmt.Sprintf("%s exited: %v", exe, waitErr)
			if detail := strings.TrimSpace(res.Stderr); detail != "" {
				res.ErrorMsg = fmt.Sprintf("%s exited: %v: %s", exe, waitErr, detail)
			}
		}
	}
	return res, nil
}

// Kill terminates the currently active invocation. It returns false when
// nothing is running and never panics, so it is safe to call from a signal
// handler concurrently with Run.
func (r *CLIRunner) Kill() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.Process == nil {
		return false
	}
	_ = r.active.Process.Kill() // process may already be gone
	return true
}

func (r *CLIRunner) setActive(cmd *exec.Cmd) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return ErrInvocationActive
	}
	r.active = cmd
	return nil
}

func (r *CLIRunner) clearActive() {
	r.mu.Lock()
	r.active = nil
	r.mu.Unlock()
}

// buildArgs constructs the CLI argument list: model selection, permission
// mode, sandbox flag, output format, and the prompt last.
func buildArgs(prompt string, opts Options) []string {
	var args []string
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	} else {
		args = append(args, "--permission-mode", "acceptEdits")
	}
	if opts.Sandbox {
		args = append(args, "--sandbox")
	}
	args = append(args, "--output-format", "text")
	args = append(args, "-p", prompt)
	return args
}
