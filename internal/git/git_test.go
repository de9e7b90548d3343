package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// initTestRepo creates a temporary git repo with one commit and returns
// its path. It configures local user.name and user.email so commits work.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cmds := [][]string{
		{"git", "init"},
		{"git", "config", "user.email", "test@test.com"},
		{"git", "config", "user.name", "Test"},
		{"git", "checkout", "-b", "main"},
	}
	for _, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%v failed: %s (%v)", args, out, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"git", "add", "."},
		{"git", "commit", "-m", "initial commit"},
	} {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%v failed: %s (%v)", args, out, err)
		}
	}

	return dir
}

func TestIsRepo(t *testing.T) {
	t.Run("inside a repo", func(t *testing.T) {
		r := NewRunner(initTestRepo(t))
		if !r.IsRepo() {
			t.Error("expected IsRepo true")
		}
	})

	t.Run("plain directory", func(t *testing.T) {
		r := NewRunner(t.TempDir())
		if r.IsRepo() {
			t.Error("expected IsRepo false")
		}
	})
}

func TestHasUncommittedChanges(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	t.Run("clean repo", func(t *testing.T) {
		has, err := r.HasUncommittedChanges()
		if err != nil {
			t.Fatal(err)
		}
		if has {
			t.Error("expected no uncommitted changes")
		}
	})

	t.Run("dirty repo", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("dirty"), 0644); err != nil {
			t.Fatal(err)
		}
		has, err := r.HasUncommittedChanges()
		if err != nil {
			t.Fatal(err)
		}
		if !has {
			t.Error("expected uncommitted changes")
		}
	})
}

func TestCommitAll(t *testing.T) {
	t.Run("commits dirty tree", func(t *testing.T) {
		dir := initTestRepo(t)
		r := NewRunner(dir)
		if err := os.WriteFile(filepath.Join(dir, "work.txt"), []byte("done"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := r.CommitAll("add work output"); err != nil {
			t.Fatalf("CommitAll: %v", err)
		}

		has, err := r.HasUncommittedChanges()
		if err != nil {
			t.Fatal(err)
		}
		if has {
			t.Error("tree still dirty after CommitAll")
		}

		last, err := r.LastCommit()
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(last, "add work output") {
			t.Errorf("LastCommit = %q, want commit message present", last)
		}
	})

	t.Run("clean tree is a no-op", func(t *testing.T) {
		dir := initTestRepo(t)
		r := NewRunner(dir)

		before, err := r.LastCommit()
		if err != nil {
			t.Fatal(err)
		}
		if err := r.CommitAll("nothing to commit"); err != nil {
			t.Fatalf("CommitAll on clean tree: %v", err)
		}
		after, err := r.LastCommit()
		if err != nil {
			t.Fatal(err)
		}
		if before != after {
			t.Errorf("commit created on clean tree: %q -> %q", before, after)
		}
	})
}

func TestLastCommit(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	last, err := r.LastCommit()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(last, "initial commit") {
		t.Errorf("got %q, want initial commit message", last)
	}
}
