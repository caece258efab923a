// Package model defines the domain types and value objects shared by the
// coretex CLI and its library packages.
//
// This package contains pure data structures with no external dependencies:
// the promotion destination enum, node modes and image types, and the exit
// codes (ExitCode) carried by the custom error type (CLIError) so the CLI can
// translate failures into proper OS process exit codes.
package model
