package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// WorktreeInfo is one entry of `git worktree list --porcelain`:
//
//	worktree /path/to/checkout
//	HEAD abc123def456
//	branch refs/heads/develop
type WorktreeInfo struct {
	Path string

	// Branch is the full ref, empty when detached.
	Branch string

	HEAD string

	IsBare   bool
	Detached bool
}

// AddDetachedWorktree checks out ref in a new detached worktree at path.
// Isolated promotions run there so the caller's checkout and index are
// never touched.
func (r *Runner) AddDetachedWorktree(ctx context.Context, repoPath, path, ref string) error {
	_, err := r.Run(ctx, repoPath, "worktree", "add", "--detach", path, ref)
	return err
}

// RemoveWorktree deletes the worktree at path. force discards local
// modifications, which a failed rebase usually leaves behind.
func (r *Runner) RemoveWorktree(ctx context.Context, repoPath, path string, force bool) error {
	args := []string{"worktree", "remove", path}
	if force {
		args = []string{"worktree", "remove", "--force", path}
	}
	_, err := r.Run(ctx, repoPath, args...)
	return err
}

// PruneWorktrees drops administrative entries of worktrees whose folder no
// longer exists.
func (r *Runner) PruneWorktrees(ctx context.Context, repoPath string) error {
	_, err := r.Run(ctx, repoPath, "worktree", "prune")
	return err
}

// ListWorktrees returns every worktree of the repository at repoPath.
func (r *Runner) ListWorktrees(ctx context.Context, repoPath string) ([]WorktreeInfo, error) {
	out, err := r.Run(ctx, repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parsePorcelainOutput(out), nil
}

// IsWorktree reports whether path is a linked worktree. Linked worktrees
// have a .git file with a "gitdir:" pointer; the main checkout has a .git
// directory.
func IsWorktree(path string) bool {
	gitPath := filepath.Join(path, ".git")
	info, err := os.Lstat(gitPath)
	if err != nil || info.IsDir() {
		return false
	}
	content, err := os.ReadFile(gitPath)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(content), "gitdir:")
}

// parsePorcelainOutput splits porcelain output into blocks separated by
// blank lines. Standalone markers ("bare", "detached") have no value.
func parsePorcelainOutput(output string) []WorktreeInfo {
	var worktrees []WorktreeInfo
	var current *WorktreeInfo

	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line == "" {
			if current != nil {
				worktrees = append(worktrees, *current)
				current = nil
			}
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		if key == "worktree" {
			current = &WorktreeInfo{Path: value}
			continue
		}
		if current == nil {
			continue
		}
		switch key {
		case "HEAD":
			current.HEAD = value
		case "branch":
			current.Branch = value
		case "bare":
			current.IsBare = true
		case "detached":
			current.Detached = true
		}
	}

	if current != nil {
		worktrees = append(worktrees, *current)
	}
	return worktrees
}
