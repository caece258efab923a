package promote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/logging"
	"github.com/biomech/coretex/internal/model"
)

// GitRunner is the subset of git.Runner a promotion needs.
type GitRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
	IsShallow(ctx context.Context, dir string) (bool, error)
	AddDetachedWorktree(ctx context.Context, repoPath, path, ref string) error
	RemoveWorktree(ctx context.Context, repoPath, path string, force bool) error
}

// Input is what the caller of a promotion supplies.
type Input struct {
	// Actor is the identity requesting the promotion.
	Actor string `json:"actor"`

	// Destination is the raw destination; empty means the policy default.
	Destination string `json:"destination"`
}

// StepResult records one executed (or planned) step.
type StepResult struct {
	Step
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
	Executed bool          `json:"executed"`
}

// Result summarises a promotion run.
type Result struct {
	Actor       string                  `json:"actor"`
	Destination model.DestinationBranch `json:"destination"`
	DryRun      bool                    `json:"dryRun"`
	Isolated    bool                    `json:"isolated"`
	Steps       []StepResult            `json:"steps"`
}

// Promoter runs promotions in a repository.
type Promoter struct {
	Runner GitRunner
	Policy Policy

	// Dir is the repository working directory.
	Dir string

	// Isolated runs the steps in a temporary detached worktree that is
	// removed afterwards, leaving the checkout at Dir untouched.
	Isolated bool

	Logger *zap.Logger
}

// Run authorizes and validates in, then executes the promotion plan.
//
// Both guards run before any git command. With dryRun the plan is resolved
// and returned without executing anything that changes refs. On the first
// failing step Run returns the partial Result together with the error.
func (p *Promoter) Run(ctx context.Context, in Input, dryRun bool) (*Result, error) {
	logger := logging.OrNop(p.Logger)

	if err := p.Policy.Authorize(in.Actor); err != nil {
		return nil, err
	}
	dest, err := p.Policy.ValidateDestination(in.Destination)
	if err != nil {
		return nil, err
	}

	result := &Result{Actor: in.Actor, Destination: dest, DryRun: dryRun, Isolated: p.Isolated}

	dir := p.Dir
	if p.Isolated && !dryRun {
		wt, cleanup, err := p.isolate(ctx)
		if err != nil {
			return result, err
		}
		defer cleanup()
		dir = wt
	}

	shallow, err := p.Runner.IsShallow(ctx, dir)
	if err != nil {
		return result, err
	}

	logger.Info("promoting",
		zap.String("actor", in.Actor),
		zap.String("destination", dest.String()),
		zap.Bool("dryRun", dryRun),
		zap.Bool("shallow", shallow))

	for _, step := range p.Policy.Plan(dest, shallow) {
		if dryRun {
			result.Steps = append(result.Steps, StepResult{Step: step})
			continue
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		start := time.Now()
		out, err := p.Runner.Run(ctx, dir, step.Args...)
		sr := StepResult{Step: step, Output: out, Duration: time.Since(start), Executed: true}
		result.Steps = append(result.Steps, sr)
		if err != nil {
			logger.Error("promotion step failed", zap.String("step", step.Name), zap.Error(err))
			return result, err
		}
		logger.Debug("promotion step done", zap.String("step", step.Name), zap.Duration("duration", sr.Duration))
	}

	return result, nil
}

// isolate creates a detached worktree at HEAD in a temporary folder and
// returns its path and a cleanup function that removes it.
func (p *Promoter) isolate(ctx context.Context) (string, func(), error) {
	tmp, err := os.MkdirTemp("", "coretex-promote-")
	if err != nil {
		return "", nil, model.WrapCLIError(model.ExitGitError, "failed to create temporary directory", err)
	}
	wt := filepath.Join(tmp, "worktree")

	if err := p.Runner.AddDetachedWorktree(ctx, p.Dir, wt, "HEAD"); err != nil {
		_ = os.RemoveAll(tmp)
		return "", nil, err
	}

	cleanup := func() {
		// A failed rebase leaves the worktree dirty, so removal is forced.
		// The caller's context may already be canceled at this point.
		if err := p.Runner.RemoveWorktree(context.WithoutCancel(ctx), p.Dir, wt, true); err != nil {
			logging.OrNop(p.Logger).Warn("failed to remove isolated worktree", zap.String("path", wt), zap.Error(err))
		}
		_ = os.RemoveAll(tmp)
	}
	return wt, cleanup, nil
}

// Summary returns a one-line description of a finished result.
func (r *Result) Summary() string {
	executed := 0
	for _, s := range r.Steps {
		if s.Executed {
			executed++
		}
	}
	if r.DryRun {
		return fmt.Sprintf("dry run: promotion to %s would run %d git steps", r.Destination, len(r.Steps))
	}
	return fmt.Sprintf("promoted to %s (%d git steps)", r.Destination, executed)
}
