package device

import (
	"codeberg.org/mutker/gpuburn/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	ErrNotInitialized        = errors.ErrorCode("device_not_initialized")
	ErrInitFailed            = errors.ErrorCode("device_init_failed")
	ErrShutdownFailed        = errors.ErrorCode("device_shutdown_failed")
	ErrDeviceNotFound        = errors.ErrorCode("device_not_found")
	ErrDeviceCountFailed     = errors.ErrorCode("device_count_failed")
	ErrDeviceInfoFailed      = errors.ErrorCode("device_info_failed")
	ErrTemperatureReadFailed = errors.ErrorCode("device_temperature_read_failed")
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// isSuccess checks if a Return value indicates success
func isSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
