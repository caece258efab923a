package docker

import (
	"context"
	"fmt"
	"io"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/biomech/coretex/internal/model"
)

// ImagePull pulls ref and writes the daemon's progress to w. A nil w
// discards the progress. Errors reported inside the progress stream are
// returned.
func (c *Client) ImagePull(ctx context.Context, ref string, w io.Writer) error {
	rc, err := c.inner.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(model.ExitNodeError, fmt.Sprintf("failed to pull image %q", ref), err)
	}
	defer rc.Close()

	if w == nil {
		w = io.Discard
	}
	if err := jsonmessage.DisplayJSONMessagesStream(rc, w, 0, false, nil); err != nil {
		return model.WrapCLIError(model.ExitNodeError, fmt.Sprintf("failed to pull image %q", ref), err)
	}
	return nil
}

// ImageDigests returns the repo digests ("repo@sha256:...") of the local
// image ref. A missing image returns an error wrapping ErrNotFound.
func (c *Client) ImageDigests(ctx context.Context, ref string) ([]string, error) {
	info, err := c.inner.ImageInspect(ctx, ref)
	if cerrdefs.IsNotFound(err) {
		return nil, fmt.Errorf("image %q: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to inspect image %q", ref), err)
	}
	return info.RepoDigests, nil
}

// RemoteDigest asks the registry for the manifest digest of ref.
func (c *Client) RemoteDigest(ctx context.Context, ref string) (string, error) {
	info, err := c.inner.DistributionInspect(ctx, ref, "")
	if err != nil {
		return "", fmt.Errorf("failed to inspect manifest of %q: %w", ref, err)
	}
	return info.Descriptor.Digest.String(), nil
}
