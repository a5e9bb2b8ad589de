// Package device wraps the NVML operations the supervisor and the bootstrap
// worker need: discovery, identification, and out-of-band temperature reads.
package device

import (
	"codeberg.org/mutker/gpuburn/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

type Manager struct {
	initialized bool
}

func New() (*Manager, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); !isSuccess(ret) {
		return nil, errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	return &Manager{initialized: true}, nil
}

func (m *Manager) Shutdown() error {
	errFactory := errors.New()

	if !m.initialized {
		return nil
	}

	if ret := nvml.Shutdown(); !isSuccess(ret) {
		return errFactory.Wrap(ErrShutdownFailed, newNVMLError(ret))
	}
	m.initialized = false

	return nil
}

func (m *Manager) DeviceCount() (int, error) {
	errFactory := errors.New()

	if !m.initialized {
		return 0, errFactory.New(ErrNotInitialized)
	}

	count, ret := nvml.DeviceGetCount()
	if !isSuccess(ret) {
		return 0, errFactory.Wrap(ErrDeviceCountFailed, newNVMLError(ret))
	}

	return count, nil
}

func (m *Manager) Name(index int) (string, error) {
	device, err := m.handle(index)
	if err != nil {
		return "", err
	}

	name, ret := device.GetName()
	if !isSuccess(ret) {
		return "", errors.New().Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}

	return name, nil
}

// TotalMemory returns the device's total memory in bytes.
func (m *Manager) TotalMemory(index int) (uint64, error) {
	device, err := m.handle(index)
	if err != nil {
		return 0, err
	}

	info, ret := device.GetMemoryInfo()
	if !isSuccess(ret) {
		return 0, errors.New().Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}

	return info.Total, nil
}

func (m *Manager) Temperature(index int) (int, error) {
	device, err := m.handle(index)
	if err != nil {
		return 0, err
	}

	temp, ret := device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !isSuccess(ret) {
		return 0, errors.New().Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
	}

	return int(temp), nil
}

func (m *Manager) handle(index int) (nvml.Device, error) {
	errFactory := errors.New()

	if !m.initialized {
		return nil, errFactory.New(ErrNotInitialized)
	}

	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !isSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	return device, nil
}
