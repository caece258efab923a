package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomech/coretex/internal/model"
)

// TestBuildLabels verifies that BuildLabels encodes every field of the
// node metadata, including the optional model id.
func TestBuildLabels(t *testing.T) {
	modelID := 42
	labels := BuildLabels(NodeLabels{
		NodeName:  "lab-gpu-1",
		NodeMode:  model.NodeModeFunctionExclusive,
		Image:     "coretexai/coretex-node:latest-gpu",
		ModelID:   &modelID,
		StartedAt: time.Date(2026, 2, 28, 11, 0, 0, 0, time.FixedZone("CET", 3600)),
	})

	assert.Equal(t, ManagedByValue, labels[LabelManagedBy],
		"managed-by label should always be set to the constant value")
	assert.Equal(t, "lab-gpu-1", labels[LabelNodeName])
	assert.Equal(t, "2", labels[LabelNodeMode])
	assert.Equal(t, "coretexai/coretex-node:latest-gpu", labels[LabelImage])
	assert.Equal(t, "42", labels[LabelModelID])
	assert.Equal(t, "2026-02-28T10:00:00Z", labels[LabelStartedAt], "timestamps are stored in UTC")
	assert.Len(t, labels, 6)
}

// TestBuildLabels_NoModel verifies that the model label is omitted for
// nodes that do not serve a model.
func TestBuildLabels_NoModel(t *testing.T) {
	labels := BuildLabels(NodeLabels{
		NodeName: "worker",
		NodeMode: model.NodeModeExecution,
		Image:    "coretexai/coretex-node:latest-cpu",
	})

	_, ok := labels[LabelModelID]
	assert.False(t, ok)
	assert.Len(t, labels, 5)
}

// TestParseLabels_RoundTrip verifies ParseLabels restores what
// BuildLabels wrote.
func TestParseLabels_RoundTrip(t *testing.T) {
	modelID := 7
	want := NodeLabels{
		NodeName:  "lab",
		NodeMode:  model.NodeModeFunctionShared,
		Image:     "registry.example.com/team/node:v1",
		ModelID:   &modelID,
		StartedAt: time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC),
	}

	got, err := ParseLabels(BuildLabels(want))
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

// TestParseLabels_Errors covers missing and malformed labels.
func TestParseLabels_Errors(t *testing.T) {
	valid := func() map[string]string {
		return BuildLabels(NodeLabels{
			NodeName: "n",
			NodeMode: model.NodeModeExecution,
			Image:    "img",
		})
	}

	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantMsg string
	}{
		{
			name: "missing labels are all listed",
			mutate: func(l map[string]string) {
				delete(l, LabelNodeName)
				delete(l, LabelImage)
			},
			wantMsg: LabelNodeName + ", " + LabelImage,
		},
		{
			name:    "foreign container",
			mutate:  func(l map[string]string) { l[LabelManagedBy] = "someone-else" },
			wantMsg: "unexpected value",
		},
		{
			name:    "node mode not a number",
			mutate:  func(l map[string]string) { l[LabelNodeMode] = "worker" },
			wantMsg: LabelNodeMode,
		},
		{
			name:    "unknown node mode",
			mutate:  func(l map[string]string) { l[LabelNodeMode] = "9" },
			wantMsg: LabelNodeMode,
		},
		{
			name:    "bad timestamp",
			mutate:  func(l map[string]string) { l[LabelStartedAt] = "yesterday" },
			wantMsg: LabelStartedAt,
		},
		{
			name:    "bad model id",
			mutate:  func(l map[string]string) { l[LabelModelID] = "abc" },
			wantMsg: LabelModelID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := valid()
			tt.mutate(labels)

			_, err := ParseLabels(labels)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

// TestFilterLabels verifies the filter selects managed containers only.
func TestFilterLabels(t *testing.T) {
	assert.Equal(t, map[string]string{LabelManagedBy: ManagedByValue}, FilterLabels())
}
