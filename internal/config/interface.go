package config

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// ThresholdMode selects how the low-throughput bound is determined
type ThresholdMode string

const (
	// ThresholdDynamic derives the bound from the fleet's throughput
	// distribution: Q1 - window*IQR over the non-faulty samples.
	ThresholdDynamic ThresholdMode = "D"
	// ThresholdStatic uses the configured threshold as an absolute
	// Gflops/s floor.
	ThresholdStatic ThresholdMode = "S"
)

// IsValid returns whether the threshold mode is valid
func (m ThresholdMode) IsValid() bool {
	switch m {
	case ThresholdDynamic, ThresholdStatic:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (m ThresholdMode) String() string {
	return string(m)
}
