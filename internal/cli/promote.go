package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/git"
	"github.com/biomech/coretex/internal/logging"
	"github.com/biomech/coretex/internal/model"
	"github.com/biomech/coretex/internal/promote"
)

// promoteFlags holds the flag values for the promote command.
type promoteFlags struct {
	destination  string
	actor        string
	owner        string
	allowedActor string
	workflow     string
	repo         string
	dryRun       bool
	isolated     bool
}

// NewPromoteCommand creates the "promote" cobra command.
func NewPromoteCommand() *cobra.Command {
	flags := &promoteFlags{}

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote develop to stage, and optionally stage to main",
		Long: `Rebase stage onto develop and force-push it. With --destination main,
main is then rebased onto the new stage and force-pushed as well.

The actor must be the allowed actor or the repository owner, and the
destination must be one of the options of the workflow input
"destination_branch". Both are checked before any git command runs.

Inside GitHub Actions the actor and owner default to GITHUB_ACTOR and
GITHUB_REPOSITORY_OWNER, and guard failures are written as error
annotations.

Examples:
  coretex promote --actor octocat --owner octocat
  coretex promote --destination main --workflow .github/workflows/promote.yml
  coretex promote --dry-run --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runPromote(cmd, flags)
			if err != nil && os.Getenv("GITHUB_ACTIONS") == "true" {
				promote.Annotate(annotationWriter(cmd), err)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&flags.destination, "destination", "",
		"Destination branch: stage or main (default: the workflow default)")
	cmd.Flags().StringVar(&flags.actor, "actor", os.Getenv("GITHUB_ACTOR"),
		"Identity requesting the promotion")
	cmd.Flags().StringVar(&flags.owner, "owner", os.Getenv("GITHUB_REPOSITORY_OWNER"),
		"Repository owner, always allowed to promote")
	cmd.Flags().StringVar(&flags.allowedActor, "allowed-actor", "",
		"Actor allowed to promote (default: the actor named in the workflow)")
	cmd.Flags().StringVar(&flags.workflow, "workflow", "",
		"Workflow file declaring the destination_branch input")
	cmd.Flags().StringVar(&flags.repo, "repo", ".",
		"Repository working directory")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false,
		"Print the git steps without running them")
	cmd.Flags().BoolVar(&flags.isolated, "isolated", false,
		"Run in a temporary detached worktree, leaving the checkout untouched")

	return cmd
}

// annotationWriter keeps stdout a single JSON document in --json mode;
// the Actions runner reads workflow commands from stderr as well.
func annotationWriter(cmd *cobra.Command) io.Writer {
	if IsJSONOutput() {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// runPromote builds the policy, runs the promotion and prints the result.
func runPromote(cmd *cobra.Command, flags *promoteFlags) error {
	ctx := cmd.Context()

	policy := promote.DefaultPolicy()
	if flags.workflow != "" {
		p, err := promote.LoadPolicy(flags.workflow)
		if err != nil {
			return err
		}
		policy = p
		VerboseLog("Loaded policy from %s: options %v, default %s", flags.workflow, policy.Options, policy.Default)
	}
	if flags.allowedActor != "" {
		policy.AllowedActor = flags.allowedActor
	}
	policy.Owner = flags.owner

	logger, err := newCommandLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	promoter := &promote.Promoter{
		Runner:   git.NewRunner(logger),
		Policy:   policy,
		Dir:      flags.repo,
		Isolated: flags.isolated,
		Logger:   logger,
	}

	result, err := promoter.Run(ctx, promote.Input{Actor: flags.actor, Destination: flags.destination}, flags.dryRun)
	if result != nil {
		if printErr := printPromoteResult(cmd.OutOrStdout(), result, err == nil); printErr != nil {
			return printErr
		}
	}
	return err
}

// newCommandLogger builds a stderr-only logger for commands that run
// without a Coretex configuration.
func newCommandLogger() (*zap.Logger, error) {
	severity := logging.SeverityWarning
	if verbose {
		severity = logging.SeverityDebug
	}
	logger, err := logging.New(severity, "")
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to create logger", err)
	}
	return logger, nil
}

func printPromoteResult(w io.Writer, result *promote.Result, ok bool) error {
	if IsJSONOutput() {
		return printJSON(w, result)
	}

	for i, s := range result.Steps {
		fmt.Fprintf(w, "%d. %-16s %s\n", i+1, s.Name, s.String())
	}
	if ok {
		successEcho(w, "%s", result.Summary())
	}
	return nil
}
