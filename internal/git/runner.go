package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/logging"
	"github.com/biomech/coretex/internal/model"
)

// Runner executes git commands.
type Runner struct {
	// Binary is the git executable. Empty means "git" from PATH.
	Binary string

	// Env is appended to the process environment of every command, e.g.
	// GIT_COMMITTER_NAME for rebases in CI.
	Env []string

	logger *zap.Logger
}

// NewRunner creates a Runner that logs every command at debug level.
// A nil logger disables logging.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logging.OrNop(logger)}
}

func (r *Runner) log() *zap.Logger { return logging.OrNop(r.logger) }

// Run executes `git -C dir args...` and returns stdout.
//
// The directory is passed with -C rather than exec.Cmd.Dir so git resolves
// it itself, which behaves the same for worktrees and the main checkout.
// On a non-zero exit the stderr text is folded into the CLIError message.
func (r *Runner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 -- arguments are built by this module
	cmd := exec.CommandContext(ctx, bin, fullArgs...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log().Debug("running git", zap.String("dir", dir), zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return stdout.String(), nil
}

// IsShallow reports whether the repository at dir is a shallow clone.
// CI checkouts are usually shallow and must be unshallowed before a rebase.
func (r *Runner) IsShallow(ctx context.Context, dir string) (bool, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--is-shallow-repository")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "true", nil
}

// CurrentBranch returns the short name of the checked-out branch, or
// "HEAD" when detached.
func (r *Runner) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RevParse resolves ref to a full commit SHA.
func (r *Runner) RevParse(ctx context.Context, dir, ref string) (string, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RepoRoot returns the top-level directory of the working tree that
// contains dir.
func (r *Runner) RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// BranchExists reports whether the local branch exists.
func (r *Runner) BranchExists(ctx context.Context, dir, branch string) bool {
	_, err := r.Run(ctx, dir, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// RemoteBranchExists reports whether remote/branch is known locally, i.e.
// has been fetched.
func (r *Runner) RemoteBranchExists(ctx context.Context, dir, remote, branch string) bool {
	_, err := r.Run(ctx, dir, "rev-parse", "--verify", "--quiet", "refs/remotes/"+remote+"/"+branch)
	return err == nil
}
