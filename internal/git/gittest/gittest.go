// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Run executes git in dir and fails the test on a non-zero exit.
func Run(t testing.TB, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return string(output)
}

// Head returns the commit SHA of ref in dir.
func Head(t testing.TB, dir, ref string) string {
	t.Helper()
	return strings.TrimSpace(Run(t, dir, "rev-parse", ref))
}

// Commit writes content to file inside dir and commits it.
func Commit(t testing.TB, dir, file, content, message string) {
	t.Helper()

	path := filepath.Join(dir, file)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	Run(t, dir, "add", file)
	Run(t, dir, "commit", "-m", message)
}

// configure sets a local identity so commits and rebases work where no
// global git config exists.
func configure(t testing.TB, dir string) {
	t.Helper()
	Run(t, dir, "config", "user.email", "test@example.com")
	Run(t, dir, "config", "user.name", "Test User")
	Run(t, dir, "config", "commit.gpgsign", "false")
}

// NewRepo creates a repository with one commit on branch develop.
func NewRepo(t testing.TB) string {
	t.Helper()

	dir := t.TempDir()
	Run(t, dir, "init")
	Run(t, dir, "symbolic-ref", "HEAD", "refs/heads/develop")
	configure(t, dir)
	Commit(t, dir, "README.md", "# Test Repo\n", "initial commit")
	return dir
}

// Remote is a bare "origin" plus a clone of it.
type Remote struct {
	// Origin is the bare repository path.
	Origin string

	// Clone is a working clone with origin configured.
	Clone string
}

// NewRemote creates a bare origin holding develop, stage and main at the
// same initial commit, and a fresh clone of it checked out on develop.
func NewRemote(t testing.TB) Remote {
	t.Helper()

	seed := NewRepo(t)
	Run(t, seed, "branch", "stage")
	Run(t, seed, "branch", "main")

	origin := filepath.Join(t.TempDir(), "origin.git")
	Run(t, seed, "init", "--bare", origin)
	Run(t, seed, "push", origin, "develop", "stage", "main")
	Run(t, origin, "symbolic-ref", "HEAD", "refs/heads/develop")

	clone := filepath.Join(t.TempDir(), "clone")
	Run(t, seed, "clone", "--branch", "develop", origin, clone)
	configure(t, clone)

	return Remote{Origin: origin, Clone: clone}
}

// PushFrom clones origin into a scratch folder, commits file on branch
// and pushes it, simulating work by another developer.
func (r Remote) PushFrom(t testing.TB, branch, file, content string) {
	t.Helper()

	scratch := filepath.Join(t.TempDir(), "scratch")
	Run(t, r.Clone, "clone", "--branch", branch, r.Origin, scratch)
	configure(t, scratch)
	Commit(t, scratch, file, content, "update "+file)
	Run(t, scratch, "push", "origin", branch)
}
