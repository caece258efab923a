package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomech/coretex/internal/git/gittest"
	"github.com/biomech/coretex/internal/model"
)

func TestPromote_Guards(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")

	tests := []struct {
		name  string
		args  []string
		code  model.ExitCode
		title string
	}{
		{
			name:  "unknown actor",
			args:  []string{"--actor", "mallory", "--owner", "biomech", "--allowed-actor", "release-manager"},
			code:  model.ExitUnauthorized,
			title: "::error title=Unauthorized actor::",
		},
		{
			name:  "invalid destination",
			args:  []string{"--actor", "biomech", "--owner", "biomech", "--destination", "production"},
			code:  model.ExitInvalidBranch,
			title: "::error title=Invalid destination branch::",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"promote", "--repo", t.TempDir()}, tt.args...)
			out, err := execute(t, args...)
			assert.Equal(t, tt.code, ExitCode(err))
			assert.Contains(t, out, tt.title)
		})
	}
}

func TestPromote_JSONAnnotationOnStderr(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"promote", "--json", "--repo", t.TempDir(),
		"--actor", "mallory", "--owner", "biomech", "--allowed-actor", "release-manager"})
	t.Cleanup(func() { jsonOutput = false })

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ExitUnauthorized, ExitCode(err))

	assert.NotContains(t, stdout.String(), "::error")
	if stdout.Len() > 0 {
		assert.True(t, json.Valid(stdout.Bytes()), stdout.String())
	}
	assert.Contains(t, stderr.String(), "::error title=Unauthorized actor::")
}

func TestPromote_DryRun(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "")
	repo := gittest.NewRepo(t)

	out, err := execute(t, "promote", "--json", "--dry-run", "--repo", repo,
		"--actor", "biomech", "--owner", "biomech", "--destination", "main")
	require.NoError(t, err)

	var result struct {
		Destination string `json:"destination"`
		DryRun      bool   `json:"dryRun"`
		Steps       []struct {
			Name     string `json:"name"`
			Executed bool   `json:"executed"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "main", result.Destination)
	assert.True(t, result.DryRun)
	require.Len(t, result.Steps, 7)
	assert.Equal(t, "fetch", result.Steps[0].Name)
	assert.Equal(t, "push-main", result.Steps[6].Name)
	for _, s := range result.Steps {
		assert.False(t, s.Executed)
	}

	assert.Equal(t, "develop\n", gittest.Run(t, repo, "rev-parse", "--abbrev-ref", "HEAD"))
}
