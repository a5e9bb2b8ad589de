package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig        ErrorCode = "invalid_configuration"
	ErrReadConfig           ErrorCode = "read_config_failed"
	ErrInvalidLogLevel      ErrorCode = "invalid_log_level"
	ErrInvalidRuntime       ErrorCode = "invalid_runtime"
	ErrInvalidMemorySpec    ErrorCode = "invalid_memory_spec"
	ErrInvalidThresholdMode ErrorCode = "invalid_threshold_mode"

	// Fleet errors
	ErrZeroDevices     ErrorCode = "zero_devices"
	ErrSpawnFailed     ErrorCode = "worker_spawn_failed"
	ErrAllWorkersDead  ErrorCode = "all_workers_dead"
	ErrDeviceCountRead ErrorCode = "device_count_read_failed"
	ErrPipeRead        ErrorCode = "worker_pipe_read_failed"

	// Telemetry errors
	ErrPollerStart ErrorCode = "temperature_poller_start_failed"
	ErrPollerStop  ErrorCode = "temperature_poller_stop_failed"

	// Statistics errors
	ErrEmptyInput ErrorCode = "empty_sample_set"

	// Metrics errors
	ErrInvalidDBPath   ErrorCode = "metrics_invalid_db_path"
	ErrInvalidMetrics  ErrorCode = "metrics_invalid_sample"
	ErrStorageInit     ErrorCode = "metrics_storage_init_failed"
	ErrStorageAccess   ErrorCode = "metrics_storage_access_failed"
	ErrStorageClose    ErrorCode = "metrics_storage_close_failed"
	ErrMetricsShutdown ErrorCode = "metrics_shutdown_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:             "Internal error occurred",
	ErrInvalidArgument:      "Invalid argument provided",
	ErrInvalidConfig:        "Invalid configuration",
	ErrReadConfig:           "Failed to read config file",
	ErrInvalidLogLevel:      "Invalid log level",
	ErrInvalidRuntime:       "Run length must be a positive number of seconds",
	ErrInvalidMemorySpec:    "Memory selector must be a size in MB or a percentage",
	ErrInvalidThresholdMode: "Threshold mode must be 'D' (dynamic) or 'S' (static)",
	ErrZeroDevices:          "No GPU devices found",
	ErrSpawnFailed:          "Failed to spawn worker process",
	ErrAllWorkersDead:       "No clients are alive",
	ErrDeviceCountRead:      "Failed to read device count from bootstrap worker",
	ErrPipeRead:             "Failed to read worker report",
	ErrPollerStart:          "Failed to start temperature poller",
	ErrPollerStop:           "Failed to stop temperature poller",
	ErrEmptyInput:           "Sample set must contain at least one element",
	ErrInvalidDBPath:        "Invalid metrics database path",
	ErrInvalidMetrics:       "Invalid metrics sample",
	ErrStorageInit:          "Failed to initialize metrics storage",
	ErrStorageAccess:        "Failed to write metrics sample",
	ErrStorageClose:         "Failed to close metrics storage",
	ErrMetricsShutdown:      "Failed to shut down metrics collector",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
