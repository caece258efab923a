package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/biomech/coretex/internal/model"
)

// Environment variable names read by the configuration layer.
const (
	EnvConfigDir      = "CTX_CONFIG_DIR"
	EnvAPIURL         = "CTX_API_URL"
	EnvStoragePath    = "CTX_STORAGE_PATH"
	EnvNodeName       = "CTX_NODE_NAME"
	EnvOrganizationID = "CTX_ORGANIZATION_ID"
)

// Defaults used when creating a new configuration or configuring a node
// without explicit values.
const (
	DefaultServerURL     = "https://devext.biomechservices.com:29007/"
	DefaultStoragePath   = "~/.coretex"
	DefaultImage         = "coretexai/coretex-node"
	DefaultRAMMemory     = 8 // GB
	DefaultSwapMemory    = 8 // GB
	DefaultSharedMemory  = 2 // GB
	DefaultNodeMode      = model.NodeModeExecution
	DefaultAllowDocker   = false
	DefaultSecretsKey    = ""
	DefaultInitScript    = ""
	DockerContainerName  = "coretex_node"
	DockerNetworkName    = "coretex_node"
	configFileName       = "config.json"
	configDirPermissions = 0o755
	configFilePerms      = 0o600
)

// DefaultCPUCount is the number of CPUs a new node may use: all but one,
// and at least one.
func DefaultCPUCount() int {
	if n := runtime.NumCPU() - 1; n > 0 {
		return n
	}
	return 1
}

// requiredKeys must be present in a configuration file for it to be
// considered valid. Values may be null.
var requiredKeys = []string{
	"username",
	"password",
	"token",
	"refreshToken",
	"serverUrl",
	"storagePath",
	"nodeName",
	"organizationID",
	"image",
}

// Config mirrors the JSON configuration file.
type Config struct {
	// User credentials and API tokens.
	Username                   string `json:"username"`
	Password                   string `json:"password"`
	Token                      string `json:"token"`
	RefreshToken               string `json:"refreshToken"`
	TokenExpirationDate        string `json:"tokenExpirationDate"`
	RefreshTokenExpirationDate string `json:"refreshTokenExpirationDate"`

	// ServerURL is the Coretex server root, always with a trailing slash.
	ServerURL   string `json:"serverUrl"`
	StoragePath string `json:"storagePath"`

	// Coretex Node settings.
	NodeName         string         `json:"nodeName"`
	OrganizationID   string         `json:"organizationID"`
	Image            string         `json:"image"`
	NodeAccessToken  string         `json:"nodeAccessToken"`
	AllowGPU         bool           `json:"allowGpu"`
	NodeRAM          int            `json:"nodeRam"`
	NodeSwap         int            `json:"nodeSwap"`
	NodeSharedMemory int            `json:"nodeSharedMemory"`
	CPUCount         int            `json:"cpuCount"`
	NodeMode         model.NodeMode `json:"nodeMode"`
	AllowDocker      bool           `json:"allowDocker"`
	SecretsKey       string         `json:"secretsKey"`
	InitScript       string         `json:"initScript"`
	ModelID          *int           `json:"modelId,omitempty"`
}

// Default returns a configuration populated with default values.
// Server URL and storage path honour the environment so a freshly created
// file points at the same server the caller is already using.
func Default() *Config {
	return &Config{
		ServerURL:        envOr(EnvAPIURL, DefaultServerURL),
		StoragePath:      envOr(EnvStoragePath, DefaultStoragePath),
		NodeName:         os.Getenv(EnvNodeName),
		OrganizationID:   os.Getenv(EnvOrganizationID),
		NodeRAM:          DefaultRAMMemory,
		NodeSwap:         DefaultSwapMemory,
		NodeSharedMemory: DefaultSharedMemory,
		CPUCount:         DefaultCPUCount(),
		NodeMode:         DefaultNodeMode,
		AllowDocker:      DefaultAllowDocker,
		SecretsKey:       DefaultSecretsKey,
		InitScript:       DefaultInitScript,
	}
}

// Dir returns the directory holding config.json. CTX_CONFIG_DIR overrides
// the default ~/.config/coretex location.
func Dir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "coretex"), nil
}

// Path returns the full path of the configuration file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadDefault loads the configuration from Path().
func LoadDefault() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "failed to locate configuration", err)
	}
	return Load(path)
}

// Load reads the configuration at path. When the file does not exist a
// default configuration is written there first. Environment overrides are
// applied to the returned value; use Read for a value that is safe to Save.
//
// Returns a CLIError with ExitConfigError when the file cannot be parsed
// or lacks required keys.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// Read is Load without the environment overrides, so that saving the
// result never writes CTX_* values into the file.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if saveErr := Save(path, cfg); saveErr != nil {
			return nil, saveErr
		}
		return cfg, nil
	}
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to read configuration %s", path), err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, invalidConfigMessage, err)
	}
	return cfg, nil
}

const invalidConfigMessage = `configuration is invalid; run "coretex config user" to configure the user or "coretex config node" to configure the node`

// Parse decodes configuration bytes. Comments and trailing commas are
// stripped first. Every key in requiredKeys must be present.
func Parse(data []byte) (*Config, error) {
	clean := jsonc.ToJSON(data)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(clean, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("configuration is missing required keys: %s", strings.Join(missing, ", "))
	}

	// Decode on top of the defaults so optional node keys that are absent
	// from older files keep sensible values.
	cfg := Default()
	if err := json.Unmarshal(clean, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON, creating the parent directory.
// The file may contain credentials, so it is readable by the owner only.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPermissions); err != nil {
		return model.WrapCLIError(model.ExitConfigError, "failed to create configuration directory", err)
	}

	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "failed to encode configuration", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), configFilePerms); err != nil {
		return model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to write configuration %s", path), err)
	}
	return nil
}

// ApplyEnv overrides file values with CTX_* environment variables that are
// set to a non-empty value.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(EnvStoragePath); v != "" {
		c.StoragePath = v
	}
	if v := os.Getenv(EnvNodeName); v != "" {
		c.NodeName = v
	}
	if v := os.Getenv(EnvOrganizationID); v != "" {
		c.OrganizationID = v
	}
}

// APIURL returns ServerURL with a guaranteed trailing slash.
func (c *Config) APIURL() string {
	if strings.HasSuffix(c.ServerURL, "/") {
		return c.ServerURL
	}
	return c.ServerURL + "/"
}

// IsUserConfigured reports whether credentials are stored.
func (c *Config) IsUserConfigured() bool {
	return c.Username != "" && (c.Password != "" || c.RefreshToken != "")
}

// IsNodeConfigured reports whether the node has been registered and an
// image selected.
func (c *Config) IsNodeConfigured() bool {
	return c.NodeName != "" && c.Image != "" && c.NodeAccessToken != ""
}

// ResolvedStoragePath returns StoragePath with a leading "~" expanded.
func (c *Config) ResolvedStoragePath() (string, error) {
	return ExpandHome(c.StoragePath)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
