package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/config"
	"github.com/biomech/coretex/internal/docker"
	"github.com/biomech/coretex/internal/model"
	"github.com/biomech/coretex/internal/node"
)

// NewNodeCommand creates the "node" command group.
func NewNodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run the Coretex Node container",
	}
	cmd.AddCommand(newNodeStartCommand())
	cmd.AddCommand(newNodeStopCommand())
	cmd.AddCommand(newNodeUpdateCommand())
	cmd.AddCommand(newNodeStatusCommand())
	return cmd
}

// nodeSession is a session with a connected Docker client and a node
// manager.
type nodeSession struct {
	*session
	docker  *docker.Client
	manager *node.Manager
}

func openNodeSession(ctx context.Context, progress io.Writer) (*nodeSession, error) {
	s, err := openSession()
	if err != nil {
		return nil, err
	}

	dockerClient, err := docker.NewClient()
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := dockerClient.Ping(ctx); err != nil {
		_ = dockerClient.Close()
		s.Close()
		return nil, err
	}
	VerboseLog("Connected to Docker daemon at %s", dockerClient.Host)

	manager := node.NewManager(dockerClient, s.logger)
	manager.Progress = progress
	return &nodeSession{session: s, docker: dockerClient, manager: manager}, nil
}

func (s *nodeSession) Close() {
	_ = s.docker.Close()
	s.session.Close()
}

// requireNodeConfigured fails unless "coretex config node" has been run.
func requireNodeConfigured(cfg *config.Config) error {
	if !cfg.IsNodeConfigured() {
		return model.NewCLIError(model.ExitConfigError, "node is not configured, run \"coretex config node\" first")
	}
	return nil
}

// nodeStartFlags holds the flag values for "node start".
type nodeStartFlags struct {
	image        string
	noAutoUpdate bool
}

func newNodeStartCommand() *cobra.Command {
	flags := &nodeStartFlags{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Coretex Node",
		Long: `Pull the node image when a newer one is published, start the node
container and schedule the automatic update job in the user's crontab.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			s, err := openNodeSession(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := requireNodeConfigured(s.cfg); err != nil {
				return err
			}
			image := s.cfg.Image
			if flags.image != "" {
				image = flags.image
			}

			limits, err := s.docker.ResourceLimits(ctx)
			if err != nil {
				return err
			}
			for _, w := range node.ResourceWarnings(s.cfg, limits) {
				progressEcho(out, "Warning: %s", w)
			}
			if err := node.ValidateConfiguration(s.cfg, limits); err != nil {
				return err
			}

			if s.manager.ShouldUpdate(ctx, image) {
				progressEcho(out, "Fetching image %s...", image)
				if err := s.manager.Pull(ctx, image); err != nil {
					return err
				}
			}

			progressEcho(out, "Starting Coretex Node %s...", s.cfg.NodeName)
			if err := s.manager.Start(ctx, image, s.cfg); err != nil {
				return err
			}
			successEcho(out, "Coretex Node %s started.", highlight(s.cfg.NodeName))

			if !flags.noAutoUpdate {
				scheduleAutoUpdate(ctx, out, s.logger)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.image, "image", "", "Run this image instead of the configured one")
	cmd.Flags().BoolVar(&flags.noAutoUpdate, "no-auto-update", false, "Do not schedule the automatic update job")

	return cmd
}

// scheduleAutoUpdate installs the cron job. Failures only warn since the
// node is already running.
func scheduleAutoUpdate(ctx context.Context, out io.Writer, logger *zap.Logger) {
	configDir, err := config.Dir()
	if err == nil {
		err = node.NewCron().ScheduleJob(ctx, configDir)
	}
	if err != nil {
		logger.Warn("failed to schedule automatic updates", zap.Error(err))
		progressEcho(out, "Warning: automatic updates are not scheduled: %v", err)
		return
	}
	VerboseLog("Automatic update job scheduled")
}

func newNodeStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the Coretex Node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			s, err := openNodeSession(ctx, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			running, err := s.manager.IsRunning(ctx)
			if err != nil {
				return err
			}
			if !running {
				progressEcho(out, "Coretex Node is not running.")
				return s.manager.Clean(ctx)
			}

			progressEcho(out, "Stopping Coretex Node...")
			if err := s.manager.Stop(ctx); err != nil {
				return err
			}
			successEcho(out, "Coretex Node stopped.")
			return nil
		},
	}
}

func newNodeUpdateCommand() *cobra.Command {
	var auto bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the Coretex Node image and restart the node",
		Long: `Pull the configured node image when the registry has a newer version and
restart a running node with it. A stopped node is not started.

--auto is used by the scheduled cron job: pull progress is not printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var progress io.Writer
			if !auto {
				progress = cmd.ErrOrStderr()
			}
			s, err := openNodeSession(ctx, progress)
			if err != nil {
				return err
			}
			defer s.Close()

			if auto {
				s.logger.Info("automatic node update", zap.Time("at", time.Now()))
			}

			updated, err := s.manager.Update(ctx, s.cfg)
			if err != nil {
				return err
			}
			if !updated {
				successEcho(out, "Coretex Node is up to date.")
				return nil
			}
			successEcho(out, "Coretex Node updated to the latest %s.", highlight(s.cfg.Image))
			return nil
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "Run unattended")
	return cmd
}

// nodeStatusJSON is the JSON output of "node status".
type nodeStatusJSON struct {
	Status    string     `json:"status"`
	Container string     `json:"container,omitempty"`
	Image     string     `json:"image,omitempty"`
	Name      string     `json:"name,omitempty"`
	Mode      string     `json:"mode,omitempty"`
	ModelID   *int       `json:"modelId,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

func newNodeStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the Coretex Node is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openNodeSession(ctx, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.manager.Status(ctx)
			if err != nil {
				return err
			}
			return printNodeStatus(cmd.OutOrStdout(), st)
		},
	}
}

func nodeStatusString(st node.Status) string {
	switch {
	case st.Running:
		return "running"
	case st.Exists:
		return "stopped"
	default:
		return "not started"
	}
}

func printNodeStatus(w io.Writer, st node.Status) error {
	result := nodeStatusJSON{
		Status:    nodeStatusString(st),
		Container: st.ID,
		Image:     st.Image,
	}
	if st.Labels != nil {
		startedAt := st.Labels.StartedAt
		result.Name = st.Labels.NodeName
		result.Mode = st.Labels.NodeMode.String()
		result.ModelID = st.Labels.ModelID
		result.StartedAt = &startedAt
	}

	if IsJSONOutput() {
		return printJSON(w, result)
	}

	if !st.Exists {
		fmt.Fprintln(w, "Coretex Node is not started.")
		return nil
	}
	fmt.Fprintf(w, "Coretex Node is %s.\n", highlight(result.Status))
	fmt.Fprintf(w, "%-12s %s\n", "Image", result.Image)
	if result.Name != "" {
		fmt.Fprintf(w, "%-12s %s\n", "Name", result.Name)
		fmt.Fprintf(w, "%-12s %s\n", "Mode", result.Mode)
		if result.ModelID != nil {
			fmt.Fprintf(w, "%-12s %d\n", "Model ID", *result.ModelID)
		}
		fmt.Fprintf(w, "%-12s %s\n", "Started", result.StartedAt.Local().Format(time.DateTime))
	}
	return nil
}
