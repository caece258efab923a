package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/config"
	"github.com/biomech/coretex/internal/docker"
	"github.com/biomech/coretex/internal/logging"
	"github.com/biomech/coretex/internal/model"
)

// Paths inside the node container.
const (
	ContainerStoragePath = "/root/.coretex"
	ContainerInitScript  = "/script/init.sh"
)

// Environment variables read by the node container.
const (
	EnvAPIURL          = "CTX_API_URL"
	EnvStoragePath     = "CTX_STORAGE_PATH"
	EnvNodeAccessToken = "CTX_NODE_ACCESS_TOKEN"
	EnvNodeMode        = "CTX_NODE_MODE"
	EnvModelID         = "CTX_MODEL_ID"
	EnvSecretsKey      = "CTX_SECRETS_KEY"
)

// ErrAlreadyRunning is returned by Start when the node container runs.
var ErrAlreadyRunning = errors.New("Coretex Node is already running")

// Engine is the container runtime the Manager drives. *docker.Client
// implements it.
type Engine interface {
	ImagePull(ctx context.Context, ref string, w io.Writer) error
	ImageDigests(ctx context.Context, ref string) ([]string, error)
	RemoteDigest(ctx context.Context, ref string) (string, error)
	NetworkCreate(ctx context.Context, name string) error
	NetworkRemove(ctx context.Context, name string) error
	RunContainer(ctx context.Context, spec docker.RunSpec) (string, error)
	InspectContainer(ctx context.Context, name string) (docker.Container, error)
	ContainerExists(ctx context.Context, name string) (bool, error)
	ContainerRunning(ctx context.Context, name string) (bool, error)
	StopContainer(ctx context.Context, name string) error
	RemoveContainer(ctx context.Context, name string, force bool) error
	ResourceLimits(ctx context.Context) (docker.Limits, error)
	SocketPath() string
}

var _ Engine = (*docker.Client)(nil)

// Manager runs the node container.
type Manager struct {
	Docker Engine

	// Container and Network default to the config package names.
	Container string
	Network   string

	// Progress receives image pull progress. Nil discards it.
	Progress io.Writer
	Logger   *zap.Logger

	now func() time.Time
}

// NewManager returns a Manager for the default container and network.
func NewManager(engine Engine, logger *zap.Logger) *Manager {
	return &Manager{
		Docker:    engine,
		Container: config.DockerContainerName,
		Network:   config.DockerNetworkName,
		Logger:    logging.OrNop(logger),
		now:       time.Now,
	}
}

func (m *Manager) log() *zap.Logger { return logging.OrNop(m.Logger) }

// Status describes the node container.
type Status struct {
	Exists  bool
	Running bool
	ID      string
	Image   string

	// Labels is nil for containers not started by this CLI.
	Labels *docker.NodeLabels
}

// Status inspects the node container.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	ctr, err := m.Docker.InspectContainer(ctx, m.Container)
	if errors.Is(err, docker.ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}

	st := Status{Exists: true, Running: ctr.Running(), ID: ctr.ID, Image: ctr.Image}
	if labels, err := docker.ParseLabels(ctr.Labels); err == nil {
		st.Labels = labels
	}
	return st, nil
}

// IsRunning reports whether the node container runs.
func (m *Manager) IsRunning(ctx context.Context) (bool, error) {
	return m.Docker.ContainerRunning(ctx, m.Container)
}

// ShouldUpdate reports whether image differs from the registry. A missing
// local image always needs an update; an unreachable registry never does.
// Otherwise the image is current when one of its repo digests carries both
// the repository and the remote digest.
func (m *Manager) ShouldUpdate(ctx context.Context, image string) bool {
	repo := RepoFromImage(image)

	digests, err := m.Docker.ImageDigests(ctx, image)
	if err != nil {
		m.log().Debug("local image not available", zap.String("image", image), zap.Error(err))
		return true
	}

	remote, err := m.Docker.RemoteDigest(ctx, image)
	if err != nil {
		m.log().Debug("remote manifest not available", zap.String("image", image), zap.Error(err))
		return false
	}

	for _, d := range digests {
		if strings.Contains(d, repo) && strings.Contains(d, remote) {
			return false
		}
	}
	return true
}

// Pull fetches image.
func (m *Manager) Pull(ctx context.Context, image string) error {
	m.log().Info("fetching image", zap.String("image", image))
	if err := m.Docker.ImagePull(ctx, image, m.Progress); err != nil {
		return model.WrapCLIError(model.ExitNodeError, "failed to fetch latest node version", err)
	}
	m.log().Info("image fetched", zap.String("image", image))
	return nil
}

// Spec builds the container spec for running image with cfg.
func (m *Manager) Spec(image string, cfg *config.Config) (docker.RunSpec, error) {
	storage, err := config.ExpandHome(cfg.StoragePath)
	if err != nil {
		return docker.RunSpec{}, err
	}

	env := map[string]string{
		EnvAPIURL:          cfg.APIURL(),
		EnvStoragePath:     ContainerStoragePath,
		EnvNodeAccessToken: cfg.NodeAccessToken,
		EnvNodeMode:        strconv.Itoa(int(cfg.NodeMode)),
	}
	if cfg.ModelID != nil {
		env[EnvModelID] = strconv.Itoa(*cfg.ModelID)
	}
	if cfg.SecretsKey != config.DefaultSecretsKey {
		env[EnvSecretsKey] = cfg.SecretsKey
	}

	mounts := []docker.Mount{{Source: storage, Target: ContainerStoragePath}}
	if cfg.AllowDocker {
		mounts = append(mounts, docker.Mount{Source: m.Docker.SocketPath(), Target: docker.DefaultSocketPath})
	}
	if script, ok, err := initScript(cfg); err != nil {
		return docker.RunSpec{}, err
	} else if ok {
		mounts = append(mounts, docker.Mount{Source: script, Target: ContainerInitScript})
	}

	now := time.Now
	if m.now != nil {
		now = m.now
	}

	return docker.RunSpec{
		Name:    m.Container,
		Image:   image,
		Network: m.Network,
		Env:     env,
		Mounts:  mounts,
		Labels: docker.BuildLabels(docker.NodeLabels{
			NodeName:  cfg.NodeName,
			NodeMode:  cfg.NodeMode,
			Image:     image,
			ModelID:   cfg.ModelID,
			StartedAt: now(),
		}),
		Resources: docker.Resources{
			CPUCount:       cfg.CPUCount,
			MemoryGB:       cfg.NodeRAM,
			SwapGB:         cfg.NodeSwap,
			SharedMemoryGB: cfg.NodeSharedMemory,
			GPU:            cfg.AllowGPU,
		},
	}, nil
}

// initScript resolves the configured init script. An empty setting means
// no script; a configured path must be an existing file.
func initScript(cfg *config.Config) (string, bool, error) {
	if cfg.InitScript == config.DefaultInitScript {
		return "", false, nil
	}
	path, err := config.ExpandHome(cfg.InitScript)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", false, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("init script %s is not accessible", path), err)
	}
	if info.IsDir() {
		return "", false, model.NewCLIError(model.ExitConfigError, fmt.Sprintf("init script %s is a directory, file expected", path))
	}
	return path, true, nil
}

// Start runs image as the node container. A stopped leftover container is
// cleaned first; a running one is refused with ErrAlreadyRunning.
func (m *Manager) Start(ctx context.Context, image string, cfg *config.Config) error {
	running, err := m.IsRunning(ctx)
	if err != nil {
		return err
	}
	if running {
		return model.WrapCLIError(model.ExitNodeError, "run \"coretex node stop\" first", ErrAlreadyRunning)
	}
	exists, err := m.Docker.ContainerExists(ctx, m.Container)
	if err != nil {
		return err
	}
	if exists {
		if err := m.Clean(ctx); err != nil {
			return err
		}
	}

	spec, err := m.Spec(image, cfg)
	if err != nil {
		return err
	}

	m.log().Info("starting Coretex Node", zap.String("image", image), zap.String("node", cfg.NodeName))
	if err := m.Docker.NetworkCreate(ctx, m.Network); err != nil {
		return err
	}
	id, err := m.Docker.RunContainer(ctx, spec)
	if err != nil {
		return err
	}
	m.log().Info("Coretex Node started", zap.String("container", id))
	return nil
}

// Clean removes the node container and its network.
func (m *Manager) Clean(ctx context.Context) error {
	if err := m.Docker.RemoveContainer(ctx, m.Container, true); err != nil {
		return model.WrapCLIError(model.ExitNodeError, "failed to clean inactive Coretex Node", err)
	}
	if err := m.Docker.NetworkRemove(ctx, m.Network); err != nil {
		return model.WrapCLIError(model.ExitNodeError, "failed to clean inactive Coretex Node", err)
	}
	return nil
}

// Stop stops the node container and cleans it up.
func (m *Manager) Stop(ctx context.Context) error {
	m.log().Info("stopping Coretex Node")
	if err := m.Docker.StopContainer(ctx, m.Container); err != nil && !errors.Is(err, docker.ErrNotFound) {
		return model.WrapCLIError(model.ExitNodeError, "failed to stop Coretex Node", err)
	}
	if err := m.Clean(ctx); err != nil {
		return err
	}
	m.log().Info("Coretex Node stopped")
	return nil
}

// Update pulls a newer node image and restarts the node with it. It
// returns false without touching the node when the image is current. A
// node that was not running is not started.
func (m *Manager) Update(ctx context.Context, cfg *config.Config) (bool, error) {
	if !cfg.IsNodeConfigured() {
		return false, model.NewCLIError(model.ExitConfigError, "node is not configured, run \"coretex node config\" first")
	}

	if !m.ShouldUpdate(ctx, cfg.Image) {
		m.log().Info("node is already up to date", zap.String("image", cfg.Image))
		return false, nil
	}
	if err := m.Pull(ctx, cfg.Image); err != nil {
		return false, err
	}

	running, err := m.IsRunning(ctx)
	if err != nil {
		return false, err
	}
	if !running {
		return true, nil
	}

	if err := m.Stop(ctx); err != nil {
		return false, err
	}
	if err := m.Start(ctx, cfg.Image, cfg); err != nil {
		return false, err
	}
	return true, nil
}
