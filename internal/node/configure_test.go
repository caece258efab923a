package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomech/coretex/internal/config"
	"github.com/biomech/coretex/internal/docker"
	"github.com/biomech/coretex/internal/model"
)

var roomyLimits = docker.Limits{CPUCount: 16, MemoryGB: 64}

func TestConfigure_Defaults(t *testing.T) {
	cfg := config.Default()

	warnings, err := Configure(cfg, Options{Name: "worker-1", CPUCount: 4}, roomyLimits)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "worker-1", cfg.NodeName)
	assert.Equal(t, "coretexai/coretex-node:latest-cpu", cfg.Image)
	assert.Equal(t, 4, cfg.CPUCount)
	assert.Equal(t, config.DefaultRAMMemory, cfg.NodeRAM)
	assert.Equal(t, config.DefaultSwapMemory, cfg.NodeSwap)
	assert.Equal(t, config.DefaultSharedMemory, cfg.NodeSharedMemory)
	assert.Equal(t, model.NodeModeExecution, cfg.NodeMode)
	assert.Nil(t, cfg.ModelID)
}

func TestConfigure_Image(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"gpu allowed and available", Options{AllowGPU: true, GPUAvailable: true}, "coretexai/coretex-node:latest-gpu"},
		{"gpu allowed but missing", Options{AllowGPU: true}, "coretexai/coretex-node:latest-cpu"},
		{"custom", Options{ImageType: model.ImageCustom, Image: "me/node:dev"}, "me/node:dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.opts.Name = "worker-1"
			tt.opts.CPUCount = 2

			_, err := Configure(cfg, tt.opts, roomyLimits)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Image)
		})
	}
}

func TestConfigure_ClampsToLimits(t *testing.T) {
	cfg := config.Default()

	warnings, err := Configure(cfg, Options{Name: "worker-1", CPUCount: 32, RAMGB: 128}, docker.Limits{CPUCount: 8, MemoryGB: 16})
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "CPU limit in Docker (8)")
	assert.Contains(t, warnings[1], "RAM limit in Docker (16)")
	assert.Equal(t, 8, cfg.CPUCount)
	assert.Equal(t, 16, cfg.NodeRAM)
}

func TestConfigure_Errors(t *testing.T) {
	modelID := 3

	tests := []struct {
		name string
		opts Options
	}{
		{"missing name", Options{}},
		{"custom without image", Options{Name: "n", ImageType: model.ImageCustom}},
		{"unknown image type", Options{Name: "n", ImageType: "nightly"}},
		{"exclusive without model", Options{Name: "n", Mode: model.NodeModeFunctionExclusive}},
		{"missing init script", Options{Name: "n", InitScript: "/does/not/exist.sh"}},
		{"negative swap", Options{Name: "n", SwapGB: -1, ModelID: &modelID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.CPUCount = 2
			_, err := Configure(config.Default(), tt.opts, roomyLimits)

			var cliErr *model.CLIError
			require.ErrorAs(t, err, &cliErr)
			assert.Equal(t, model.ExitConfigError, cliErr.Code)
		})
	}
}

func TestConfigure_FunctionExclusive(t *testing.T) {
	cfg := config.Default()
	modelID := 11

	_, err := Configure(cfg, Options{Name: "n", CPUCount: 2, Mode: model.NodeModeFunctionExclusive, ModelID: &modelID}, roomyLimits)
	require.NoError(t, err)
	require.NotNil(t, cfg.ModelID)
	assert.Equal(t, 11, *cfg.ModelID)

	modelID = 12
	assert.Equal(t, 11, *cfg.ModelID)
}

func TestValidateConfiguration(t *testing.T) {
	valid := func() *config.Config {
		cfg := config.Default()
		cfg.NodeName = "n"
		cfg.Image = "img"
		cfg.CPUCount = 2
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		limits  docker.Limits
		wantErr string
	}{
		{"valid", func(*config.Config) {}, roomyLimits, ""},
		{"unknown limits are ignored", func(c *config.Config) { c.CPUCount = 100 }, docker.Limits{}, ""},
		{"empty name", func(c *config.Config) { c.NodeName = "" }, roomyLimits, "node name is empty"},
		{"bad mode", func(c *config.Config) { c.NodeMode = 9 }, roomyLimits, "unknown node mode 9"},
		{"zero cpu", func(c *config.Config) { c.CPUCount = 0 }, roomyLimits, "cpuCount must be at least 1"},
		{"cpu above limit", func(c *config.Config) { c.CPUCount = 17 }, roomyLimits, "CPU limit in Docker (16)"},
		{"ram above limit", func(c *config.Config) { c.NodeRAM = 65 }, roomyLimits, "RAM limit in Docker (64)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := ValidateConfiguration(cfg, tt.limits)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResourceWarnings(t *testing.T) {
	cfg := config.Default()
	cfg.CPUCount = 4
	cfg.NodeRAM = 8
	cfg.NodeSwap = 8

	assert.Empty(t, ResourceWarnings(cfg, roomyLimits))

	warnings := ResourceWarnings(cfg, docker.Limits{CPUCount: 2, MemoryGB: 6})
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[2], "Swap limit in Docker (6)")
}
