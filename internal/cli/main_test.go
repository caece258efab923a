package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/biomech/coretex/internal/config"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// execute runs the root command with args and returns everything written
// to stdout and stderr.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)

	t.Cleanup(func() {
		jsonOutput = false
		verbose = false
	})

	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// useConfig points the configuration at a temporary folder holding cfg.
func useConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	for _, key := range []string{config.EnvAPIURL, config.EnvStoragePath, config.EnvNodeName, config.EnvOrganizationID} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)

	path := filepath.Join(dir, "config.json")
	require.NoError(t, config.Save(path, cfg))
	return path
}
