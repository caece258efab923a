package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseDestinationBranch verifies that only "stage" and "main" pass the
// destination guard and that an empty input falls back to the default.
func TestParseDestinationBranch(t *testing.T) {
	tests := []struct {
		input    string
		expected DestinationBranch
		hasError bool
	}{
		{"stage", DestinationStage, false},
		{"main", DestinationMain, false},
		{"", DefaultDestination, false}, // default
		{"  main ", "", true},           // padded input is not a branch name
		{"main\n", "", true},
		{"Stage", "", true},   // branch names are case-sensitive
		{"develop", "", true}, // source branch is never a destination
		{"master", "", true},
		{"main; rm -rf /", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseDestinationBranch(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestDestinationBranch_IncludesMain checks that only the main destination
// enables the second promotion block.
func TestDestinationBranch_IncludesMain(t *testing.T) {
	assert.False(t, DestinationStage.IncludesMain())
	assert.True(t, DestinationMain.IncludesMain())
	assert.Equal(t, []DestinationBranch{DestinationStage, DestinationMain}, AllDestinations())
}

// TestNodeMode covers String, IsValid and ParseNodeMode round trips for
// every defined mode.
func TestNodeMode(t *testing.T) {
	for _, m := range []NodeMode{NodeModeExecution, NodeModeFunctionExclusive, NodeModeFunctionShared} {
		t.Run(m.String(), func(t *testing.T) {
			assert.True(t, m.IsValid())
			parsed, err := ParseNodeMode(m.String())
			require.NoError(t, err)
			assert.Equal(t, m, parsed)
		})
	}

	assert.False(t, NodeMode(0).IsValid())
	assert.Equal(t, "NodeMode(9)", NodeMode(9).String())
	_, err := ParseNodeMode("inference")
	assert.Error(t, err)
}

// TestParseImageType verifies image type parsing including case folding.
func TestParseImageType(t *testing.T) {
	got, err := ParseImageType("Official")
	require.NoError(t, err)
	assert.Equal(t, ImageOfficial, got)

	got, err = ParseImageType("custom")
	require.NoError(t, err)
	assert.Equal(t, ImageCustom, got)

	_, err = ParseImageType("nightly")
	assert.Error(t, err)
}

// TestCLIError verifies the custom error type used for exit code mapping.
func TestCLIError(t *testing.T) {
	t.Run("simple error", func(t *testing.T) {
		err := NewCLIError(ExitUnauthorized, "actor is not allowed to promote")
		assert.Equal(t, ExitUnauthorized, err.Code)
		assert.Equal(t, "actor is not allowed to promote", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := WrapCLIError(ExitDockerNotRunning, "Docker daemon is not running", inner)
		assert.Equal(t, ExitDockerNotRunning, err.Code)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, inner, err.Unwrap())
	})

	// Verify errors.Is works with unwrapped errors (Go 1.13+ error chain).
	t.Run("errors.Is chain", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := WrapCLIError(ExitGitError, "git push failed", inner)
		assert.True(t, errors.Is(err, inner))
	})
}
