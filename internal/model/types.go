package model

import (
	"fmt"
	"strings"
)

// DestinationBranch is the environment a promotion run targets.
// The promotion chain is fixed:
//
//	develop → stage → main
//
// Promoting to "stage" moves develop into stage only. Promoting to "main"
// moves develop into stage first and then stage into main.
type DestinationBranch string

const (
	// DestinationStage promotes develop into stage.
	DestinationStage DestinationBranch = "stage"

	// DestinationMain promotes develop into stage and then stage into main.
	DestinationMain DestinationBranch = "main"

	// DefaultDestination is used when no destination was supplied.
	DefaultDestination = DestinationStage
)

// AllDestinations lists every destination accepted by the promotion guard,
// in promotion order.
func AllDestinations() []DestinationBranch {
	return []DestinationBranch{DestinationStage, DestinationMain}
}

// String returns the branch name.
func (d DestinationBranch) String() string {
	return string(d)
}

// IsValid reports whether d is one of the known destinations.
// Branch names are case-sensitive in git, so "Stage" is not valid.
func (d DestinationBranch) IsValid() bool {
	switch d {
	case DestinationStage, DestinationMain:
		return true
	default:
		return false
	}
}

// IncludesMain reports whether the main-branch block of a promotion runs.
func (d DestinationBranch) IncludesMain() bool {
	return d == DestinationMain
}

// ParseDestinationBranch converts user input into a DestinationBranch.
// An empty string yields DefaultDestination; anything else outside
// {stage, main}, including padded input, is an error.
func ParseDestinationBranch(s string) (DestinationBranch, error) {
	if s == "" {
		return DefaultDestination, nil
	}
	d := DestinationBranch(s)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid destination branch: %q (valid: stage, main)", s)
	}
	return d, nil
}

// NodeMode selects what a Coretex Node does once it is running.
// The numeric values are what the node container reads from CTX_NODE_MODE.
type NodeMode int

const (
	// NodeModeExecution runs workflows (worker mode).
	NodeModeExecution NodeMode = 1

	// NodeModeFunctionExclusive serves a single endpoint (dedicated inference).
	NodeModeFunctionExclusive NodeMode = 2

	// NodeModeFunctionShared serves multiple endpoints (shared inference).
	NodeModeFunctionShared NodeMode = 3
)

// String returns a human-readable name of the node mode.
func (m NodeMode) String() string {
	switch m {
	case NodeModeExecution:
		return "execution"
	case NodeModeFunctionExclusive:
		return "function-exclusive"
	case NodeModeFunctionShared:
		return "function-shared"
	default:
		return fmt.Sprintf("NodeMode(%d)", int(m))
	}
}

// IsValid checks whether m is one of the predefined node modes.
func (m NodeMode) IsValid() bool {
	switch m {
	case NodeModeExecution, NodeModeFunctionExclusive, NodeModeFunctionShared:
		return true
	default:
		return false
	}
}

// ParseNodeMode converts a mode name (as printed by String) to a NodeMode.
func ParseNodeMode(s string) (NodeMode, error) {
	for _, m := range []NodeMode{NodeModeExecution, NodeModeFunctionExclusive, NodeModeFunctionShared} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid node mode: %q (valid: execution, function-exclusive, function-shared)", s)
}

// ImageType tells whether the node runs the official Coretex image or a
// user supplied one.
type ImageType string

const (
	// ImageOfficial is coretexai/coretex-node with a cpu/gpu tag picked automatically.
	ImageOfficial ImageType = "official"

	// ImageCustom is any image reference provided by the user.
	ImageCustom ImageType = "custom"
)

// ParseImageType converts a string to an ImageType.
func ParseImageType(s string) (ImageType, error) {
	t := ImageType(strings.ToLower(s))
	switch t {
	case ImageOfficial, ImageCustom:
		return t, nil
	default:
		return "", fmt.Errorf("invalid image type: %q (valid: official, custom)", s)
	}
}

// ExitCode defines standard CLI exit codes.
// These codes allow scripts and CI systems to programmatically determine
// the outcome of a command. The promotion guards use dedicated codes so a
// CI step can tell an authorization failure from a bad input.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitUnauthorized indicates the invoking actor may not run a promotion.
	ExitUnauthorized ExitCode = 2

	// ExitInvalidBranch indicates the destination branch is outside the
	// allowed set.
	ExitInvalidBranch ExitCode = 3

	// ExitConfigError indicates the configuration file is missing required
	// keys or cannot be parsed.
	ExitConfigError ExitCode = 4

	// ExitGitError indicates a git operation (fetch, rebase, push) failed.
	ExitGitError ExitCode = 5

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 6

	// ExitNetworkError indicates a request to the Coretex API failed.
	ExitNetworkError ExitCode = 7

	// ExitNodeError indicates a node lifecycle operation failed.
	ExitNodeError ExitCode = 8

	// ExitManifestInvalid indicates the package manifest check found problems.
	ExitManifestInvalid ExitCode = 9
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
