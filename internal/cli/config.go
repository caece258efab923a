package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biomech/coretex/internal/api"
	"github.com/biomech/coretex/internal/config"
	"github.com/biomech/coretex/internal/docker"
	"github.com/biomech/coretex/internal/model"
	"github.com/biomech/coretex/internal/node"
)

// NewConfigCommand creates the "config" command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the Coretex configuration",
	}
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigUserCommand())
	cmd.AddCommand(newConfigNodeCommand())
	return cmd
}

// readConfigFile returns the configuration file path and its content
// without environment overrides, ready to be modified and saved.
func readConfigFile() (string, *config.Config, error) {
	path, err := config.Path()
	if err != nil {
		return "", nil, model.WrapCLIError(model.ExitConfigError, "failed to locate configuration", err)
	}
	cfg, err := config.Read(path)
	if err != nil {
		return "", nil, err
	}
	return path, cfg, nil
}

// mask hides all but the first characters of a secret.
func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", 8)
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return model.WrapCLIError(model.ExitConfigError, "failed to locate configuration", err)
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			shown := *cfg
			shown.Password = mask(cfg.Password)
			shown.Token = mask(cfg.Token)
			shown.RefreshToken = mask(cfg.RefreshToken)
			shown.NodeAccessToken = mask(cfg.NodeAccessToken)
			shown.SecretsKey = mask(cfg.SecretsKey)

			out := cmd.OutOrStdout()
			if IsJSONOutput() {
				return printJSON(out, &shown)
			}
			printConfigText(out, path, &shown)
			return nil
		},
	}
}

func printConfigText(w io.Writer, path string, cfg *config.Config) {
	row := func(key string, value any) {
		fmt.Fprintf(w, "%-20s %v\n", key, value)
	}

	fmt.Fprintf(w, "Configuration %s\n\n", highlight(path))
	row("Server URL", cfg.ServerURL)
	row("Storage path", cfg.StoragePath)
	row("Username", cfg.Username)
	row("Password", cfg.Password)
	row("User configured", cfg.IsUserConfigured())
	fmt.Fprintln(w)
	row("Node name", cfg.NodeName)
	row("Node image", cfg.Image)
	row("Node mode", cfg.NodeMode)
	if cfg.ModelID != nil {
		row("Model ID", *cfg.ModelID)
	}
	row("CPU count", cfg.CPUCount)
	row("RAM (GB)", cfg.NodeRAM)
	row("Swap (GB)", cfg.NodeSwap)
	row("Shared memory (GB)", cfg.NodeSharedMemory)
	row("GPU", cfg.AllowGPU)
	row("Docker access", cfg.AllowDocker)
	row("Init script", cfg.InitScript)
	row("Node configured", cfg.IsNodeConfigured())
}

// userFlags holds the flag values for "config user".
type userFlags struct {
	username  string
	password  string
	serverURL string
}

func newConfigUserCommand() *cobra.Command {
	flags := &userFlags{}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Log in and store the user credentials",
		Long: `Authenticate against the Coretex server and store the credentials and
API tokens in the configuration file.

Examples:
  coretex config user --username me@example.com --password secret
  coretex config user --username me@example.com --password secret --server-url https://api.coretex.ai/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.username == "" || flags.password == "" {
				return model.NewCLIError(model.ExitConfigError, "--username and --password are required")
			}

			path, cfg, err := readConfigFile()
			if err != nil {
				return err
			}
			if flags.serverURL != "" {
				cfg.ServerURL = flags.serverURL
			}

			out := cmd.OutOrStdout()
			progressEcho(out, "Authenticating %s at %s...", flags.username, cfg.APIURL())

			client := api.New(cfg.APIURL())
			if err := login(cmd.Context(), client, flags.username, flags.password); err != nil {
				return err
			}

			cfg.Username = flags.username
			cfg.Password = flags.password
			cfg.Token = client.Token()
			cfg.RefreshToken = client.RefreshTokenValue()
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			successEcho(out, "User %s configured successfully.", highlight(flags.username))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.username, "username", "", "Coretex account e-mail")
	cmd.Flags().StringVar(&flags.password, "password", "", "Coretex account password")
	cmd.Flags().StringVar(&flags.serverURL, "server-url", "", "Coretex server URL (default: keep the configured one)")

	return cmd
}

// nodeFlags holds the raw flag values for "config node".
type nodeFlags struct {
	opts      node.Options
	imageType string
	mode      string
	modelID   int
}

func newConfigNodeCommand() *cobra.Command {
	flags := &nodeFlags{}

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Configure and register the Coretex Node of this machine",
		Long: `Write the node settings to the configuration file and register the node
on the platform. Resources above the limits of the Docker daemon are
lowered to the limit.

Examples:
  coretex config node --name lab-gpu-1 --allow-gpu
  coretex config node --name lab-1 --image-type custom --image me/node:dev --cpu 4 --ram 16
  coretex config node --name infer-1 --mode function-exclusive --model-id 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigNode(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.opts.Name, "name", "", "Node name")
	f.StringVar(&flags.imageType, "image-type", string(model.ImageOfficial), "Image type: official or custom")
	f.StringVar(&flags.opts.Image, "image", "", "Image reference, required for --image-type custom")
	f.BoolVar(&flags.opts.AllowGPU, "allow-gpu", false, "Give the node access to the GPUs")
	f.StringVar(&flags.opts.StoragePath, "storage-path", "", "Storage folder mounted into the node (default: "+config.DefaultStoragePath+")")
	f.IntVar(&flags.opts.CPUCount, "cpu", 0, "CPUs available to the node (default: all but one)")
	f.IntVar(&flags.opts.RAMGB, "ram", 0, "Memory in GB")
	f.IntVar(&flags.opts.SwapGB, "swap", 0, "Swap memory in GB")
	f.IntVar(&flags.opts.SharedMemoryGB, "shm", 0, "Shared memory in GB")
	f.BoolVar(&flags.opts.AllowDocker, "allow-docker", false, "Mount the Docker socket into the node")
	f.StringVar(&flags.opts.SecretsKey, "secrets-key", "", "Key decrypting project secrets")
	f.StringVar(&flags.opts.InitScript, "init-script", "", "Script run when the node starts")
	f.StringVar(&flags.mode, "mode", model.NodeModeExecution.String(), "Node mode: execution, function-exclusive or function-shared")
	f.IntVar(&flags.modelID, "model-id", 0, "Model served by a function-exclusive node")

	return cmd
}

func runConfigNode(cmd *cobra.Command, flags *nodeFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	opts := flags.opts
	imageType, err := model.ParseImageType(flags.imageType)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid --image-type", err)
	}
	opts.ImageType = imageType
	mode, err := model.ParseNodeMode(flags.mode)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid --mode", err)
	}
	opts.Mode = mode
	if cmd.Flags().Changed("model-id") {
		id := flags.modelID
		opts.ModelID = &id
	}
	opts.GPUAvailable = node.GPUAvailable()
	if opts.AllowGPU && !opts.GPUAvailable {
		progressEcho(out, "No NVIDIA GPU found, the node will run on the CPU.")
	}

	path, cfg, err := readConfigFile()
	if err != nil {
		return err
	}
	if !cfg.IsUserConfigured() {
		return model.NewCLIError(model.ExitConfigError, "user is not configured, run \"coretex config user\" first")
	}

	dockerClient, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = dockerClient.Close() }()
	if err := dockerClient.Ping(ctx); err != nil {
		return err
	}
	limits, err := dockerClient.ResourceLimits(ctx)
	if err != nil {
		return err
	}
	VerboseLog("Docker limits: %d CPUs, %d GB RAM", limits.CPUCount, limits.MemoryGB)

	warnings, err := node.Configure(cfg, opts, limits)
	for _, w := range warnings {
		progressEcho(out, "Warning: %s", w)
	}
	if err != nil {
		return err
	}

	progressEcho(out, "Registering node %s...", cfg.NodeName)
	client := api.New(cfg.APIURL(), api.WithTokens(cfg.Token, cfg.RefreshToken))
	if cfg.Token == "" {
		if err := login(ctx, client, cfg.Username, cfg.Password); err != nil {
			return err
		}
	}
	token, err := node.Register(ctx, client, cfg.NodeName)
	if err != nil {
		return model.WrapCLIError(model.ExitNetworkError, "failed to register node", err)
	}
	cfg.NodeAccessToken = token
	cfg.Token = client.Token()
	cfg.RefreshToken = client.RefreshTokenValue()

	if err := config.Save(path, cfg); err != nil {
		return err
	}
	successEcho(out, "Node %s configured with image %s.", highlight(cfg.NodeName), highlight(cfg.Image))
	return nil
}
