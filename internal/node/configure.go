package node

import (
	"fmt"
	"os"

	"github.com/biomech/coretex/internal/config"
	"github.com/biomech/coretex/internal/docker"
	"github.com/biomech/coretex/internal/model"
)

// Options are the node settings supplied on the command line. Zero values
// keep the defaults.
type Options struct {
	Name      string
	ImageType model.ImageType

	// Image is required for ImageCustom and ignored otherwise.
	Image string

	AllowGPU     bool
	GPUAvailable bool

	StoragePath    string
	CPUCount       int
	RAMGB          int
	SwapGB         int
	SharedMemoryGB int
	AllowDocker    bool
	SecretsKey     string
	InitScript     string
	Mode           model.NodeMode
	ModelID        *int
}

// Configure writes the node section of cfg from opts. CPU and RAM above
// the Docker limits are lowered to the limit and reported as warnings.
// The access token is not touched; see Register.
func Configure(cfg *config.Config, opts Options, limits docker.Limits) ([]string, error) {
	if opts.Name == "" {
		return nil, model.NewCLIError(model.ExitConfigError, "node name is required")
	}

	cfg.NodeName = opts.Name
	cfg.AllowGPU = opts.AllowGPU && opts.GPUAvailable

	switch opts.ImageType {
	case model.ImageCustom:
		if opts.Image == "" {
			return nil, model.NewCLIError(model.ExitConfigError, "custom image type requires an image reference")
		}
		cfg.Image = opts.Image
	case model.ImageOfficial, "":
		cfg.Image = OfficialImage(config.DefaultImage, cfg.AllowGPU)
	default:
		return nil, model.NewCLIError(model.ExitConfigError, fmt.Sprintf("invalid image type %q", opts.ImageType))
	}

	cfg.StoragePath = valueOr(opts.StoragePath, config.DefaultStoragePath)
	cfg.CPUCount = valueOr(opts.CPUCount, config.DefaultCPUCount())
	cfg.NodeRAM = valueOr(opts.RAMGB, config.DefaultRAMMemory)
	cfg.NodeSwap = valueOr(opts.SwapGB, config.DefaultSwapMemory)
	cfg.NodeSharedMemory = valueOr(opts.SharedMemoryGB, config.DefaultSharedMemory)
	cfg.AllowDocker = opts.AllowDocker
	cfg.SecretsKey = valueOr(opts.SecretsKey, config.DefaultSecretsKey)
	cfg.NodeMode = valueOr(opts.Mode, config.DefaultNodeMode)
	cfg.ModelID = nil

	cfg.InitScript = config.DefaultInitScript
	if opts.InitScript != "" {
		cfg.InitScript = opts.InitScript
		if _, _, err := initScript(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.NodeMode == model.NodeModeFunctionExclusive {
		if opts.ModelID == nil {
			return nil, model.NewCLIError(model.ExitConfigError, "function-exclusive nodes require a model id")
		}
		id := *opts.ModelID
		cfg.ModelID = &id
	}

	var warnings []string
	if limits.CPUCount > 0 && cfg.CPUCount > limits.CPUCount {
		warnings = append(warnings, limitWarning("CPU", limits.CPUCount, cfg.CPUCount))
		cfg.CPUCount = limits.CPUCount
	}
	if limits.MemoryGB > 0 && cfg.NodeRAM > limits.MemoryGB {
		warnings = append(warnings, limitWarning("RAM", limits.MemoryGB, cfg.NodeRAM))
		cfg.NodeRAM = limits.MemoryGB
	}

	if err := ValidateConfiguration(cfg, limits); err != nil {
		return warnings, err
	}
	return warnings, nil
}

func valueOr[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

func limitWarning(resource string, limit, configured int) string {
	return fmt.Sprintf(
		"%s limit in Docker (%d) is lower than the configured value (%d). Please adjust resource limitations in Docker settings.",
		resource, limit, configured,
	)
}

// ValidateConfiguration checks the node settings of cfg against each other
// and against the Docker limits.
func ValidateConfiguration(cfg *config.Config, limits docker.Limits) error {
	invalid := func(format string, args ...any) error {
		return model.NewCLIError(model.ExitConfigError, "configuration not valid: "+fmt.Sprintf(format, args...))
	}

	switch {
	case cfg.NodeName == "":
		return invalid("node name is empty")
	case cfg.Image == "":
		return invalid("node image is empty")
	case !cfg.NodeMode.IsValid():
		return invalid("unknown node mode %d", int(cfg.NodeMode))
	case cfg.NodeMode == model.NodeModeFunctionExclusive && cfg.ModelID == nil:
		return invalid("node mode %s requires a model id", cfg.NodeMode)
	case cfg.CPUCount < 1:
		return invalid("cpuCount must be at least 1, got %d", cfg.CPUCount)
	case cfg.NodeRAM < 1:
		return invalid("nodeRam must be at least 1 GB, got %d", cfg.NodeRAM)
	case cfg.NodeSwap < 0:
		return invalid("nodeSwap must not be negative, got %d", cfg.NodeSwap)
	case cfg.NodeSharedMemory < 0:
		return invalid("nodeSharedMemory must not be negative, got %d", cfg.NodeSharedMemory)
	case limits.CPUCount > 0 && limits.CPUCount < cfg.CPUCount:
		return invalid("CPU limit in Docker (%d) is lower than the configured value (%d)", limits.CPUCount, cfg.CPUCount)
	case limits.MemoryGB > 0 && limits.MemoryGB < cfg.NodeRAM:
		return invalid("RAM limit in Docker (%d) is lower than the configured value (%d)", limits.MemoryGB, cfg.NodeRAM)
	}
	return nil
}

// ResourceWarnings lists configured resources above the Docker limits.
// Swap is compared with total memory, which bounds it on Docker Desktop.
func ResourceWarnings(cfg *config.Config, limits docker.Limits) []string {
	var warnings []string
	if limits.CPUCount < cfg.CPUCount {
		warnings = append(warnings, limitWarning("CPU", limits.CPUCount, cfg.CPUCount))
	}
	if limits.MemoryGB < cfg.NodeRAM {
		warnings = append(warnings, limitWarning("RAM", limits.MemoryGB, cfg.NodeRAM))
	}
	if limits.MemoryGB < cfg.NodeSwap {
		warnings = append(warnings, limitWarning("Swap", limits.MemoryGB, cfg.NodeSwap))
	}
	return warnings
}

// GPUAvailable reports whether an NVIDIA GPU is visible on this machine.
func GPUAvailable() bool {
	for _, path := range []string{"/dev/nvidiactl", "/proc/driver/nvidia/version"} {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}
