package metrics

import "codeberg.org/mutker/gpuburn/internal/errors"

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/gpuburn/metrics.db"
)

type Config struct {
	DBPath  string
	Enabled bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:  defaultDBPath,
		Enabled: false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if metrics collection is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(errors.ErrInvalidDBPath)
	}
	return nil
}
