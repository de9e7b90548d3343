// Package config parses drover.toml project configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultAccentColor is the default TUI accent color (teal).
const DefaultAccentColor = "#2BB3A3"

// hexColorRe matches a 6-digit hex color string like "#2BB3A3".
var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Config is the top-level drover.toml configuration.
type Config struct {
	Project       ProjectConfig       `toml:"project"`
	Agent         AgentConfig         `toml:"agent"`
	Loop          LoopConfig          `toml:"loop"`
	History       HistoryConfig       `toml:"history"`
	TUI           TUIConfig           `toml:"tui"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// ProjectConfig identifies the project.
type ProjectConfig struct {
	Name string `toml:"name"`
}

// AgentConfig controls the agent CLI invocation.
type AgentConfig struct {
	Binary          string `toml:"binary"`
	Model           string `toml:"model"`
	SkipPermissions bool   `toml:"skip_permissions"`
	Sandbox         bool   `toml:"sandbox"`
	TimeoutSeconds  int    `toml:"timeout_seconds"` // per-invocation ceiling; 0 = none
}

// LoopConfig controls the iteration loop.
type LoopConfig struct {
	PromptFile    string `toml:"prompt_file"`
	MaxIterations int    `toml:"max_iterations"`
	Unbounded     bool   `toml:"unbounded"`
	DoneSignal    string `toml:"done_signal"` // custom completion string; empty = markers only
	AutoCommit    bool   `toml:"auto_commit"`
}

// HistoryConfig controls run history persistence.
type HistoryConfig struct {
	Dir       string `toml:"dir"`       // relative to the project root
	Retention int    `toml:"retention"` // number of run files to keep; 0 = unlimited
}

// TUIConfig controls the terminal UI appearance.
type TUIConfig struct {
	AccentColor string `toml:"accent_color"`
}

// NotificationsConfig controls webhook/ntfy.sh notifications.
type NotificationsConfig struct {
	URL        string `toml:"url"`
	OnComplete bool   `toml:"on_complete"`
	OnBlocked  bool   `toml:"on_blocked"`
	OnDecide   bool   `toml:"on_decide"`
	OnStop     bool   `toml:"on_stop"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Agent: AgentConfig{
			Binary:         "claude",
			Model:          "sonnet",
			TimeoutSeconds: 0,
		},
		Loop: LoopConfig{
			PromptFile:    "PROMPT.md",
			MaxIterations: 25,
		},
		History: HistoryConfig{
			Dir:       filepath.Join(".drover", "runs"),
			Retention: 50,
		},
		TUI: TUIConfig{
			AccentColor: DefaultAccentColor,
		},
		Notifications: NotificationsConfig{
			OnComplete: true,
			OnBlocked:  true,
			OnDecide:   true,
			OnStop:     true,
		},
	}
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if c.Agent.Binary == "" {
		errs = append(errs, fmt.Errorf("agent.binary must not be empty"))
	}
	if c.Agent.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("agent.timeout_seconds must be >= 0 (0 = no timeout)"))
	}
	if c.Loop.PromptFile == "" {
		errs = append(errs, fmt.Errorf("loop.prompt_file must not be empty"))
	}
	if c.Loop.MaxIterations <= 0 && !c.Loop.Unbounded {
		errs = append(errs, fmt.Errorf("loop.max_iterations must be > 0 unless loop.unbounded is true"))
	}
	if c.History.Dir == "" {
		errs = append(errs, fmt.Errorf("history.dir must not be empty"))
	}
	if c.History.Retention < 0 {
		errs = append(errs, fmt.Errorf("history.retention must be >= 0 (0 = unlimited)"))
	}
	if c.TUI.AccentColor != "" && !hexColorRe.MatchString(c.TUI.AccentColor) {
		errs = append(errs, fmt.Errorf("tui.accent_color must be a hex color (e.g. \"#2BB3A3\")"))
	}
	if c.Notifications.URL != "" {
		u, parseErr := url.ParseRequestURI(c.Notifications.URL)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("notifications.url must be a valid http or https URL"))
		}
	}

	return errors.Join(errs...)
}

// Load reads drover.toml from the given path. If path is empty, it walks up
// from the current working directory looking for drover.toml. Returns an
// error if the file contains unknown keys (likely typos).
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := findConfig()
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := Defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, strings.Join(keys, ", "))
	}

	if cfg.Project.Name == "" {
		cfg.Project.Name = DetectProjectName(filepath.Dir(path))
	}

	return &cfg, nil
}

// findConfig walks up from the current directory looking for drover.toml.
func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, "drover.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: drover.toml not found (searched up from %s)", dir)
		}
		dir = parent
	}
}
