// Package git runs git commands for the promotion workflow.
//
// The package shells out to the git binary (via os/exec) instead of using a
// Go git library: promotion needs rebase, force-push with the caller's
// credential helpers and shallow-clone handling, all of which only the git
// CLI supports completely.
//
// Every failure is returned as a model.CLIError with ExitGitError that
// includes git's stderr, so the CLI can report exactly which step broke.
package git
