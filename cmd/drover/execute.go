package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/droverlabs/drover/internal/agent"
	"github.com/droverlabs/drover/internal/config"
	"github.com/droverlabs/drover/internal/git"
	"github.com/droverlabs/drover/internal/history"
	"github.com/droverlabs/drover/internal/loop"
	"github.com/droverlabs/drover/internal/marker"
	"github.com/droverlabs/drover/internal/notify"
	"github.com/droverlabs/drover/internal/runstate"
)

// runOptions carries `drover run` flag overrides. Zero values (or -1 for
// timeout) defer to drover.toml.
type runOptions struct {
	promptFile string
	max        int
	unbounded  bool
	noTUI      bool
	timeout    int // seconds; -1 = use config
	sandbox    bool
	doneSignal string
}

// executeRun loads config, assembles the loop, and drives it to a terminal
// state, with or without the TUI.
func executeRun(opts runOptions) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	prompt, err := readPrompt(dir, cfg, opts.promptFile)
	if err != nil {
		return err
	}

	loopCfg := buildLoopConfig(cfg, opts, prompt, dir)

	runner := agent.NewCLIRunner()
	runner.Executable = cfg.Agent.Binary
	runner.CustomDone = loopCfg.DoneSignal

	historyDir := resolvePath(dir, cfg.History.Dir)
	store := history.NewStore(historyDir)

	lp := loop.New(runner, store)

	if cfg.Notifications.URL != "" {
		n := notify.New(cfg.Notifications.URL, cfg.Project.Name,
			cfg.Notifications.OnComplete, cfg.Notifications.OnBlocked,
			cfg.Notifications.OnDecide, cfg.Notifications.OnStop)
		lp.Notify = n.Send
	}

	if loopCfg.AutoCommit {
		gitRunner := git.NewRunner(dir)
		if gitRunner.IsRepo() {
			lp.Commit = gitRunner
		} else {
			fmt.Fprintln(os.Stderr, "auto-commit enabled but not a git repository; disabling")
			loopCfg.AutoCommit = false
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	tracker := runstate.NewTracker(dir, "")

	var runErr error
	if opts.noTUI {
		runErr = runPlain(ctx, lp, tracker, loopCfg)
	} else {
		runErr = runWithTUI(ctx, lp, tracker, cfg, loopCfg)
	}

	if retErr := history.EnforceRetention(historyDir, cfg.History.Retention); retErr != nil {
		fmt.Fprintf(os.Stderr, "history retention: %v\n", retErr)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// readPrompt resolves and reads the prompt file. A positional argument
// overrides drover.toml's loop.prompt_file.
func readPrompt(dir string, cfg *config.Config, override string) (string, error) {
	file := cfg.Loop.PromptFile
	if override != "" {
		file = override
	}
	path := resolvePath(dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("prompt file %s not found (run `drover init` to scaffold one)", path)
		}
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return prompt, nil
}

// buildLoopConfig merges drover.toml with run flags; flags win.
func buildLoopConfig(cfg *config.Config, opts runOptions, prompt, dir string) loop.Config {
	max := cfg.Loop.MaxIterations
	if opts.max > 0 {
		max = opts.max
	}
	doneSignal := cfg.Loop.DoneSignal
	if opts.doneSignal != "" {
		doneSignal = opts.doneSignal
	}
	timeoutSecs := cfg.Agent.TimeoutSeconds
	if opts.timeout >= 0 {
		timeoutSecs = opts.timeout
	}
	return loop.Config{
		Prompt:          prompt,
		MaxIterations:   max,
		Unbounded:       cfg.Loop.Unbounded || opts.unbounded,
		DoneSignal:      doneSignal,
		Model:           cfg.Agent.Model,
		SkipPermissions: cfg.Agent.SkipPermissions,
		Sandbox:         cfg.Agent.Sandbox || opts.sandbox,
		Dir:             dir,
		Timeout:         time.Duration(timeoutSecs) * time.Second,
		AutoCommit:      cfg.Loop.AutoCommit,
	}
}

// resolvePath keeps absolute paths and roots relative ones at dir.
func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
	return ctx, cancel
}

// showStatus reads .drover/state.json and prints a summary.
func showStatus() error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	state, err := runstate.Load(dir)
	if err != nil {
		return err
	}
	if state.PID == 0 {
		fmt.Println("No run state found. Run `drover run` first.")
		return nil
	}

	fmt.Println("Drover Status")
	fmt.Println("─────────────")
	fmt.Printf("  %-14s %s\n", "Status:", state.Status)
	fmt.Printf("  %-14s %d\n", "Iteration:", state.Iteration)
	if state.RunID != "" {
		fmt.Printf("  %-14s %s\n", "Run:", state.RunID)
	}

	running := state.Alive()
	if running {
		elapsed := time.Since(state.StartedAt).Round(time.Second)
		fmt.Printf("  %-14s %s (running, pid %d)\n", "Duration:", elapsed, state.PID)
		if !state.LastOutputAt.IsZero() {
			ago := time.Since(state.LastOutputAt).Round(time.Second)
			fmt.Printf("  %-14s %s ago\n", "Last output:", ago)
		}
	} else if !state.FinishedAt.IsZero() {
		dur := state.FinishedAt.Sub(state.StartedAt).Round(time.Second)
		fmt.Printf("  %-14s %s\n", "Duration:", dur)
	}

	return nil
}

// showHistoryList prints the run index, newest first.
func showHistoryList(limit int) error {
	store, err := historyStore()
	if err != nil {
		return err
	}

	rows, err := store.List(limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Printf("%-36s  %-16s  %-11s  %5s  %8s\n", "ID", "STARTED", "RESULT", "ITERS", "DURATION")
	for _, r := range rows {
		fmt.Printf("%-36s  %-16s  %-11s  %5d  %8s\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04"),
			r.Result,
			r.Iterations,
			r.TotalDuration.Round(time.Second))
	}
	return nil
}

// showHistoryEntry prints one run in full.
func showHistoryEntry(id string) error {
	store, err := historyStore()
	if err != nil {
		return err
	}

	e, err := store.Load(id)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", e.ID)
	fmt.Printf("  %-14s %s\n", "Started:", e.StartedAt.Format(time.RFC3339))
	fmt.Printf("  %-14s %s\n", "Directory:", e.Dir)
	fmt.Printf("  %-14s %s\n", "Result:", e.Result)
	fmt.Printf("  %-14s %s\n", "Duration:", e.TotalDuration.Round(time.Second))
	fmt.Printf("  %-14s %d\n", "Iterations:", len(e.Iterations))
	fmt.Println()
	for _, it := range e.Iterations {
		fmt.Printf("── iteration %d  (%s)\n", it.Number, it.Duration.Round(time.Second))
		if it.Signal.Kind != marker.None {
			fmt.Printf("   signal: %s\n", it.Signal.Raw)
		}
		out := strings.TrimSpace(it.Output)
		if out != "" {
			fmt.Println(indent(out, "   "))
		}
	}
	return nil
}

// historyStore builds a Store from drover.toml, falling back to the default
// directory when no config exists.
func historyStore() (*history.Store, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	historyDir := config.Defaults().History.Dir
	if cfg, loadErr := config.Load(""); loadErr == nil {
		historyDir = cfg.History.Dir
	}
	return history.NewStore(resolvePath(dir, historyDir)), nil
}

// indent prefixes every line of s.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
