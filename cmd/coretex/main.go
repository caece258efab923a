// Package main is the entry point for the coretex CLI.
//
// It delegates all functionality to the internal/cli package, which
// defines the cobra commands.
//
// Build-time variables (version, commit, date) are injected via ldflags:
//
//	go build -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse --short HEAD)" ./cmd/coretex
//
// During development, they default to "dev", "none", and "unknown".
package main

import (
	"github.com/biomech/coretex/internal/api"
	"github.com/biomech/coretex/internal/cli"
)

// version, commit, and date are set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date
	api.Version = version

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
