package docker

import (
	"context"
	"fmt"
	"math"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/network"

	"github.com/biomech/coretex/internal/model"
)

// NetworkCreate creates a bridge network named name unless it already
// exists.
func (c *Client) NetworkCreate(ctx context.Context, name string) error {
	_, err := c.inner.NetworkInspect(ctx, name, network.InspectOptions{})
	if err == nil {
		return nil
	}
	if !cerrdefs.IsNotFound(err) {
		return model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to inspect network %q", name), err)
	}

	_, err = c.inner.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Labels: FilterLabels(),
	})
	if err != nil && !cerrdefs.IsConflict(err) {
		return model.WrapCLIError(model.ExitNodeError, fmt.Sprintf("failed to create network %q", name), err)
	}
	return nil
}

// NetworkRemove removes the network named name. A missing network is not
// an error.
func (c *Client) NetworkRemove(ctx context.Context, name string) error {
	if err := c.inner.NetworkRemove(ctx, name); err != nil && !cerrdefs.IsNotFound(err) {
		return model.WrapCLIError(model.ExitNodeError, fmt.Sprintf("failed to remove network %q", name), err)
	}
	return nil
}

// Limits are the resources the daemon can hand out to containers. On
// Docker Desktop these are the VM settings, not the host's.
type Limits struct {
	CPUCount int
	MemoryGB int
}

// ResourceLimits reads the CPU count and total memory of the daemon.
// Memory is rounded to whole GB.
func (c *Client) ResourceLimits(ctx context.Context) (Limits, error) {
	info, err := c.inner.Info(ctx)
	if err != nil {
		return Limits{}, model.WrapCLIError(model.ExitDockerNotRunning, "failed to read Docker resource limits", err)
	}
	return Limits{
		CPUCount: info.NCPU,
		MemoryGB: int(math.Round(float64(info.MemTotal) / GiB)),
	}, nil
}
