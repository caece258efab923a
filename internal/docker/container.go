// container.go implements the container lifecycle of the Coretex Node.
//
// The node runs as a single long-lived container created through the
// Docker SDK (ContainerCreate + ContainerStart) so resource limits and the
// GPU device request can be set as typed HostConfig fields. Containers
// started by the CLI carry the "coretex.managed-by" label.
package docker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"

	"github.com/biomech/coretex/internal/model"
)

// GiB is one gibibyte; node memory limits are configured in GB.
const GiB = 1024 * 1024 * 1024

// ErrNotFound is returned when a container, image or network does not
// exist.
var ErrNotFound = errors.New("not found")

// Container is the CLI view of a Docker container.
type Container struct {
	ID     string
	Name   string
	Image  string
	State  string
	Labels map[string]string
}

// Running reports whether the container state is "running".
func (c Container) Running() bool { return c.State == "running" }

// Mount is a host path bind-mounted into a container.
type Mount struct {
	Source string
	Target string
}

// Resources are the limits applied to the node container. Memory values
// are in GB.
type Resources struct {
	CPUCount       int
	MemoryGB       int
	SwapGB         int
	SharedMemoryGB int
	GPU            bool
}

// RunSpec describes a container to create and start.
type RunSpec struct {
	Name      string
	Image     string
	Network   string
	Env       map[string]string
	Mounts    []Mount
	Labels    map[string]string
	Resources Resources
}

// configs translates the RunSpec into the SDK create arguments. Environment
// variables are sorted so the result is deterministic.
func (s RunSpec) configs() (*container.Config, *container.HostConfig, *network.NetworkingConfig) {
	env := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	binds := make([]string, 0, len(s.Mounts))
	for _, m := range s.Mounts {
		binds = append(binds, m.Source+":"+m.Target)
	}

	cfg := &container.Config{
		Image:  s.Image,
		Env:    env,
		Labels: s.Labels,
	}

	host := &container.HostConfig{
		Binds:         binds,
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyAlways},
		ShmSize:       int64(s.Resources.SharedMemoryGB) * GiB,
		Resources: container.Resources{
			NanoCPUs:   int64(s.Resources.CPUCount) * 1e9,
			Memory:     int64(s.Resources.MemoryGB) * GiB,
			MemorySwap: int64(s.Resources.SwapGB) * GiB,
		},
	}
	if s.Resources.GPU {
		host.Resources.DeviceRequests = []container.DeviceRequest{{
			Count:        -1,
			Capabilities: [][]string{{"gpu"}},
		}}
	}

	var netCfg *network.NetworkingConfig
	if s.Network != "" {
		host.NetworkMode = container.NetworkMode(s.Network)
		netCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{s.Network: {}},
		}
	}
	return cfg, host, netCfg
}

// RunContainer creates and starts a detached container and returns its
// id. A container that fails to start is removed again.
func (c *Client) RunContainer(ctx context.Context, spec RunSpec) (string, error) {
	cfg, host, netCfg := spec.configs()

	created, err := c.inner.ContainerCreate(ctx, cfg, host, netCfg, nil, spec.Name)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitNodeError,
			fmt.Sprintf("failed to create container %q from image %q", spec.Name, spec.Image),
			err,
		)
	}

	if err := c.inner.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = c.inner.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})
		return "", model.WrapCLIError(
			model.ExitNodeError,
			fmt.Sprintf("failed to start container %q", spec.Name),
			err,
		)
	}
	return created.ID, nil
}

// InspectContainer returns the container named name. A missing container
// returns an error wrapping ErrNotFound.
func (c *Client) InspectContainer(ctx context.Context, name string) (Container, error) {
	info, err := c.inner.ContainerInspect(ctx, name)
	if cerrdefs.IsNotFound(err) {
		return Container{}, fmt.Errorf("container %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Container{}, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to inspect container %q", name),
			err,
		)
	}

	ctr := Container{
		ID:   info.ID,
		Name: strings.TrimPrefix(info.Name, "/"),
	}
	if info.Config != nil {
		ctr.Image = info.Config.Image
		ctr.Labels = info.Config.Labels
	}
	if info.State != nil {
		ctr.State = string(info.State.Status)
	}
	return ctr, nil
}

// ContainerExists reports whether a container named name exists in any
// state.
func (c *Client) ContainerExists(ctx context.Context, name string) (bool, error) {
	_, err := c.InspectContainer(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ContainerRunning reports whether the container named name is running.
func (c *Client) ContainerRunning(ctx context.Context, name string) (bool, error) {
	ctr, err := c.InspectContainer(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ctr.Running(), nil
}

// StopContainer stops a running container, giving its main process the
// daemon's default grace period before it is killed.
func (c *Client) StopContainer(ctx context.Context, name string) error {
	if err := c.inner.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("container %q: %w", name, ErrNotFound)
		}
		return model.WrapCLIError(
			model.ExitNodeError,
			fmt.Sprintf("failed to stop container %q", name),
			err,
		)
	}
	return nil
}

// RemoveContainer removes a container. A running container is only
// removed when force is true. Removing a missing container is not an
// error.
func (c *Client) RemoveContainer(ctx context.Context, name string, force bool) error {
	err := c.inner.ContainerRemove(ctx, name, container.RemoveOptions{Force: force})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return model.WrapCLIError(
			model.ExitNodeError,
			fmt.Sprintf("failed to remove container %q", name),
			err,
		)
	}
	return nil
}
