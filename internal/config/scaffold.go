package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// droverTomlTemplate is written by InitFile / drover init.
const droverTomlTemplate = `# drover.toml — drover project configuration
# Place this file in the root of your project.

[project]
name = ""

[agent]
binary = "claude"
model = "sonnet"
skip_permissions = false  # true = --dangerously-skip-permissions
sandbox = false
timeout_seconds = 0       # per-invocation ceiling; 0 = none

[loop]
prompt_file = "PROMPT.md"
max_iterations = 25
unbounded = false    # true = ignore max_iterations
done_signal = ""     # custom completion string (empty = markers only)
auto_commit = false  # commit when the agent emits a commit-message marker

[history]
dir = ".drover/runs"
retention = 50  # run files to keep; 0 = unlimited

[tui]
accent_color = "#2BB3A3"

[notifications]
url = ""           # ntfy.sh topic URL or any HTTP webhook (empty = disabled)
on_complete = true
on_blocked = true
on_decide = true
on_stop = true
`

// promptTemplate seeds the run prompt file.
const promptTemplate = `# Task

Describe the work here. The agent is invoked with this prompt every
iteration and tracks its own progress in the project files, so write the
prompt as a standing instruction, not a conversation.
`

// InitFile writes a default drover.toml to the given directory.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, "drover.toml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: drover.toml already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(droverTomlTemplate), 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}

// ScaffoldProject creates the drover project structure in dir: drover.toml,
// the prompt file, and a .gitignore entry for the state directory. Files
// that already exist are left untouched. Returns the created paths.
func ScaffoldProject(dir string) ([]string, error) {
	var created []string

	tomlPath := filepath.Join(dir, "drover.toml")
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		if _, initErr := InitFile(dir); initErr != nil {
			return created, initErr
		}
		created = append(created, tomlPath)
	}

	promptPath := filepath.Join(dir, "PROMPT.md")
	if _, err := os.Stat(promptPath); os.IsNotExist(err) {
		if writeErr := os.WriteFile(promptPath, []byte(promptTemplate), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", promptPath, writeErr)
		}
		created = append(created, promptPath)
	}

	const gitignoreEntry = ".drover/"
	gitignorePath := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(gitignorePath)
	if os.IsNotExist(err) {
		if writeErr := os.WriteFile(gitignorePath, []byte(gitignoreEntry+"\n"), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	} else if err == nil && !strings.Contains(string(existing), gitignoreEntry) {
		content := string(existing)
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += gitignoreEntry + "\n"
		if writeErr := os.WriteFile(gitignorePath, []byte(content), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: update %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	}

	return created, nil
}
