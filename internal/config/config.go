package config

import (
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/gpuburn/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultRuntime   = 10
	DefaultThreshold = 1.5
	DefaultLogLevel  = "info"
	defaultMetricsDB = "/var/lib/gpuburn/metrics.db"

	// Fraction of available device memory used when no selector is given
	DefaultMemoryPercent = 90
)

type Config struct {
	Runtime       int     `mapstructure:"runtime"`
	Memory        string  `mapstructure:"memory"`
	Doubles       bool    `mapstructure:"doubles"`
	Tensor        bool    `mapstructure:"tensor"`
	Device        int     `mapstructure:"device"`
	Kernel        string  `mapstructure:"kernel"`
	LogLevel      string  `mapstructure:"log_level"`
	Verbose       bool    `mapstructure:"verbose"`
	Debug         bool    `mapstructure:"debug"`
	ThresholdMode string  `mapstructure:"threshold_mode"`
	Threshold     float64 `mapstructure:"threshold"`
	Metrics       bool    `mapstructure:"metrics"`
	MetricsDB     string  `mapstructure:"metrics_db"`
	List          bool    `mapstructure:"list"`

	// MemoryBytes is the resolved memory selector: a byte count,
	// or a negative percentage of available device memory.
	MemoryBytes int64 `mapstructure:"-"`
}

func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("gpuburn", pflag.ContinueOnError)
	fs.Int("runtime", DefaultRuntime, "Run length in seconds (may also be given as the positional argument)")
	fs.StringP("memory", "m", "", "Use X MB of memory, or N% of the available device memory")
	fs.BoolP("doubles", "d", false, "Use double precision")
	fs.Bool("tensor", false, "Try to use tensor cores")
	fs.IntP("device", "i", -1, "Execute only on the device with this index")
	fs.StringP("kernel", "c", "", "Use FILE as the compare kernel")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning, error")
	fs.BoolP("verbose", "v", false, "Show Gflops/s and temperature in the final output")
	fs.Bool("debug", false, "Enable debug logging")
	fs.StringP("threshold-mode", "g", "D", "Low throughput threshold mode: 'D' (dynamic IQR) or 'S' (static)")
	fs.Float64P("threshold", "t", DefaultThreshold, "IQR window (dynamic mode) or Gflops/s floor (static mode)")
	fs.Bool("metrics", false, "Record per-report samples to the metrics database")
	fs.String("metrics-db", defaultMetricsDB, "Path to the metrics database")
	fs.BoolP("list", "l", false, "List all devices in the system and exit")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	v := viper.New()
	v.SetDefault("runtime", DefaultRuntime)
	v.SetDefault("device", -1)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("threshold_mode", "D")
	v.SetDefault("threshold", DefaultThreshold)
	v.SetDefault("metrics_db", defaultMetricsDB)

	if path := os.Getenv("GPUBURN_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gpuburn")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Command line flags override config file values
	fs.Visit(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		v.Set(key, f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	// The run length may be given as a bare positional argument
	if fs.NArg() > 0 {
		runtime, err := strconv.Atoi(fs.Arg(0))
		if err != nil {
			return nil, errFactory.WithData(errors.ErrInvalidRuntime, fs.Arg(0))
		}
		config.Runtime = runtime
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	errFactory := errors.New()

	if c.Runtime <= 0 {
		return errFactory.WithData(errors.ErrInvalidRuntime, c.Runtime)
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if !ThresholdMode(c.ThresholdMode).IsValid() {
		return errFactory.WithData(errors.ErrInvalidThresholdMode, c.ThresholdMode)
	}

	bytes, err := ParseMemorySpec(c.Memory)
	if err != nil {
		return err
	}
	c.MemoryBytes = bytes

	return nil
}

// ParseMemorySpec decodes a memory selector: a plain number is a size in MB,
// a trailing '%' selects a percentage of the available device memory and is
// returned negated. An empty selector returns 0, meaning the default policy.
func ParseMemorySpec(spec string) (int64, error) {
	errFactory := errors.New()

	if spec == "" {
		return 0, nil
	}

	numeric := spec
	percent := false
	if strings.HasSuffix(spec, "%") {
		numeric = strings.TrimSuffix(spec, "%")
		percent = true
	}

	n, err := strconv.ParseInt(numeric, 10, 64)
	if err != nil || n <= 0 {
		return 0, errFactory.WithData(errors.ErrInvalidMemorySpec, spec)
	}

	if percent {
		if n > 100 {
			return 0, errFactory.WithData(errors.ErrInvalidMemorySpec, spec)
		}
		return -n, nil
	}

	return n * 1024 * 1024, nil
}
