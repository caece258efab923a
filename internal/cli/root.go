// Package cli implements the cobra-based CLI commands for coretex.
//
// Each command group (promote, manifest, config, node, experiment,
// dataset) is defined in its own file within this package. This file
// defines the root command that serves as the parent for all subcommands
// and handles global flags and exit codes.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/biomech/coretex/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	jsonOutput bool

	// verbose lowers the log level to debug and prints [verbose] traces.
	verbose bool
)

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action. It only provides
// help text and global flags; subcommands do the work.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coretex",
		Short: "Coretex.ai command line tool",
		Long: `coretex manages a Coretex Node on this machine, talks to the Coretex.ai
platform, and automates the release chores of the coretex repository.

Branch promotion (develop → stage → main) and manifest checks run without
any Coretex configuration; node, experiment and dataset commands read the
configuration created by "coretex config".`,

		// Errors are printed by Execute in text or JSON form, never by cobra.
		SilenceUsage:  true,
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	// PersistentFlags are inherited by all subcommands.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewPromoteCommand())
	rootCmd.AddCommand(NewManifestCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewNodeCommand())
	rootCmd.AddCommand(NewExperimentCommand())
	rootCmd.AddCommand(NewDatasetCommand())

	return rootCmd
}

// Execute runs the root command and exits with the code carried by a
// returned CLIError, or ExitGeneralError for any other error. SIGINT and
// SIGTERM cancel the command's context.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	printError(os.Stderr, err)
	os.Exit(int(ExitCode(err)))
}

// ExitCode maps err to the process exit code. A CLIError anywhere in the
// chain decides; nil is success.
func ExitCode(err error) model.ExitCode {
	if err == nil {
		return model.ExitSuccess
	}
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return model.ExitGeneralError
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(w io.Writer, err error) {
	message, detail := err.Error(), ""
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		message = cliErr.Message
		if cliErr.Err != nil {
			detail = cliErr.Err.Error()
		}
	}

	if jsonOutput {
		errObj := map[string]any{"message": message}
		if detail != "" {
			errObj["detail"] = detail
		}
		data, _ := json.MarshalIndent(map[string]any{"error": errObj}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if detail != "" {
		errorEcho(w, "Error: %s: %s", message, detail)
		return
	}
	errorEcho(w, "Error: %s", message)
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
func VerboseLog(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
