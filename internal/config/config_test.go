package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/gpuburn/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
runtime = 3600
memory = "50%"
doubles = true
tensor = true
device = 2
log_level = "debug"
threshold_mode = "S"
threshold = 100.0
metrics = true
metrics_db = "/path/to/metrics.db"
`)
	configPath := filepath.Join(tempDir, "gpuburn.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("GPUBURN_CONFIG", configPath)
	setArgs(t, "gpuburn")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3600, cfg.Runtime, "Expected Runtime 3600")
	assert.Equal(t, "50%", cfg.Memory, "Expected Memory 50%")
	assert.Equal(t, int64(-50), cfg.MemoryBytes, "Expected MemoryBytes -50 (percent)")
	assert.True(t, cfg.Doubles, "Expected Doubles true")
	assert.True(t, cfg.Tensor, "Expected Tensor true")
	assert.Equal(t, 2, cfg.Device, "Expected Device 2")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
	assert.Equal(t, "S", cfg.ThresholdMode, "Expected static threshold mode")
	assert.InDelta(t, 100.0, cfg.Threshold, 1e-9, "Expected Threshold 100")
	assert.True(t, cfg.Metrics, "Expected Metrics true")
	assert.Equal(t, "/path/to/metrics.db", cfg.MetricsDB, "Expected MetricsDB /path/to/metrics.db")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GPUBURN_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	setArgs(t, "gpuburn")

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultRuntime, cfg.Runtime, "Expected default Runtime")
	assert.Equal(t, -1, cfg.Device, "Expected default Device -1 (all devices)")
	assert.Equal(t, int64(0), cfg.MemoryBytes, "Expected default memory policy")
	assert.False(t, cfg.Doubles, "Expected default Doubles false")
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
	assert.Equal(t, "D", cfg.ThresholdMode, "Expected default dynamic threshold mode")
	assert.InDelta(t, config.DefaultThreshold, cfg.Threshold, 1e-9, "Expected default Threshold 1.5")
	assert.False(t, cfg.Metrics, "Expected default Metrics false")
}

func TestPositionalRuntime(t *testing.T) {
	t.Setenv("GPUBURN_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	setArgs(t, "gpuburn", "--doubles", "120")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Runtime, "Expected positional Runtime 120")
	assert.True(t, cfg.Doubles)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "gpuburn.toml")
	err := os.WriteFile(configPath, []byte(`log_level = "error"`), 0o600)
	require.NoError(t, err)

	t.Setenv("GPUBURN_CONFIG", configPath)
	setArgs(t, "gpuburn", "--log-level", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "gpuburn.toml")
	err := os.WriteFile(configPath, []byte("This is not a valid TOML file"), 0o600)
	require.NoError(t, err)

	t.Setenv("GPUBURN_CONFIG", configPath)
	setArgs(t, "gpuburn")

	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	t.Setenv("GPUBURN_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	setArgs(t, "gpuburn", "--log-level", "loud")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid log level")
}

func TestInvalidThresholdMode(t *testing.T) {
	t.Setenv("GPUBURN_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	setArgs(t, "gpuburn", "--threshold-mode", "X")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Threshold mode")
}

func TestInvalidRuntime(t *testing.T) {
	t.Setenv("GPUBURN_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	setArgs(t, "gpuburn", "--runtime", "0")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive")
}

func TestParseMemorySpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"1024", 1024 * 1024 * 1024, false},
		{"90%", -90, false},
		{"0", 0, true},
		{"101%", 0, true},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := config.ParseMemorySpec(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func setArgs(t *testing.T, args ...string) {
	t.Helper()
	oldArgs := os.Args
	os.Args = args
	t.Cleanup(func() { os.Args = oldArgs })
}
