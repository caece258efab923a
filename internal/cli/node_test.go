package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomech/coretex/internal/docker"
	"github.com/biomech/coretex/internal/model"
	"github.com/biomech/coretex/internal/node"
)

func TestPrintNodeStatus(t *testing.T) {
	modelID := 5
	running := node.Status{
		Exists:  true,
		Running: true,
		ID:      "abc123",
		Image:   "coretexai/coretex-node:latest-cpu",
		Labels: &docker.NodeLabels{
			NodeName:  "worker-1",
			NodeMode:  model.NodeModeFunctionExclusive,
			ModelID:   &modelID,
			StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printNodeStatus(&buf, running))
		assert.Contains(t, buf.String(), "Coretex Node is running.")
		assert.Contains(t, buf.String(), "worker-1")
		assert.Contains(t, buf.String(), "Model ID     5")
	})

	t.Run("json", func(t *testing.T) {
		jsonOutput = true
		t.Cleanup(func() { jsonOutput = false })

		var buf bytes.Buffer
		require.NoError(t, printNodeStatus(&buf, running))

		var got nodeStatusJSON
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "running", got.Status)
		assert.Equal(t, "function-exclusive", got.Mode)
		require.NotNil(t, got.ModelID)
		assert.Equal(t, 5, *got.ModelID)
	})

	t.Run("not started", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printNodeStatus(&buf, node.Status{}))
		assert.Equal(t, "Coretex Node is not started.\n", buf.String())
	})
}

func TestNodeStatusString(t *testing.T) {
	assert.Equal(t, "running", nodeStatusString(node.Status{Exists: true, Running: true}))
	assert.Equal(t, "stopped", nodeStatusString(node.Status{Exists: true}))
	assert.Equal(t, "not started", nodeStatusString(node.Status{}))
}
