package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/biomech/coretex/internal/model"
)

// Label key constants record the node configuration a container was
// started with, so `coretex node status` can report it without reading
// the configuration file the container was started from.
//
// All keys share the "coretex." prefix to avoid collisions with labels
// set by other tools.
const (
	// LabelPrefix is the common prefix for all coretex labels.
	LabelPrefix = "coretex."

	// LabelManagedBy identifies containers started by the coretex CLI.
	// Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelNodeName stores the node name registered on the platform.
	LabelNodeName = LabelPrefix + "node-name"

	// LabelNodeMode stores the numeric node mode (see model.NodeMode).
	LabelNodeMode = LabelPrefix + "node-mode"

	// LabelImage stores the image reference as configured, before the
	// daemon resolves it to an id.
	LabelImage = LabelPrefix + "image"

	// LabelModelID stores the model served by a function-exclusive node.
	// Absent for other modes.
	LabelModelID = LabelPrefix + "model-id"

	// LabelStartedAt stores the RFC3339 UTC timestamp of the start.
	LabelStartedAt = LabelPrefix + "started-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "coretex-cli"

// NodeLabels is the node metadata stored on the container.
type NodeLabels struct {
	NodeName  string
	NodeMode  model.NodeMode
	Image     string
	ModelID   *int
	StartedAt time.Time
}

// BuildLabels encodes l as a Docker label map.
func BuildLabels(l NodeLabels) map[string]string {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelNodeName:  l.NodeName,
		LabelNodeMode:  strconv.Itoa(int(l.NodeMode)),
		LabelImage:     l.Image,
		LabelStartedAt: l.StartedAt.UTC().Format(time.RFC3339),
	}
	if l.ModelID != nil {
		labels[LabelModelID] = strconv.Itoa(*l.ModelID)
	}
	return labels
}

// ParseLabels is the inverse of BuildLabels. All labels except
// LabelModelID are required, and the container must be managed by the
// coretex CLI.
func ParseLabels(labels map[string]string) (*NodeLabels, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelNodeName,
		LabelNodeMode,
		LabelImage,
		LabelStartedAt,
	}

	// Collect every missing key so the error lists them all at once.
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	mode, err := strconv.Atoi(labels[LabelNodeMode])
	if err != nil || !model.NodeMode(mode).IsValid() {
		return nil, fmt.Errorf("invalid label %s: %q", LabelNodeMode, labels[LabelNodeMode])
	}

	startedAt, err := time.Parse(time.RFC3339, labels[LabelStartedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelStartedAt, err)
	}

	l := &NodeLabels{
		NodeName:  labels[LabelNodeName],
		NodeMode:  model.NodeMode(mode),
		Image:     labels[LabelImage],
		StartedAt: startedAt,
	}

	if raw, ok := labels[LabelModelID]; ok {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid label %s: %w", LabelModelID, err)
		}
		l.ModelID = &id
	}
	return l, nil
}

// FilterLabels returns the labels that mark a Docker object (container or
// network) as created by the coretex CLI.
func FilterLabels() map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
	}
}
