package supervisor

import (
	"io"
	"os"
	"os/exec"
	"strconv"

	"codeberg.org/mutker/gpuburn/internal/config"
	"codeberg.org/mutker/gpuburn/internal/errors"
	"codeberg.org/mutker/gpuburn/internal/logger"
	"codeberg.org/mutker/gpuburn/internal/report"
)

// WorkerHandle is the supervisor's view of one running worker process: its
// target device, the process itself, and the read end of its report pipe.
// The fleet listener owns the pipe until the worker is reaped at shutdown.
type WorkerHandle struct {
	Device int
	Cmd    *exec.Cmd
	Pipe   io.ReadCloser
}

// Launcher spawns one isolated worker process per target device by
// re-executing the running binary with the burn-worker entry point. Each
// worker's stdout is its private report pipe.
type Launcher struct {
	cfg *config.Config
	exe string
}

func NewLauncher(cfg *config.Config) (*Launcher, error) {
	errFactory := errors.New()

	exe, err := os.Executable()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrSpawnFailed, err)
	}

	return &Launcher{cfg: cfg, exe: exe}, nil
}

// LaunchFleet produces the running fleet. With an explicitly selected
// device exactly one worker is launched. Otherwise a bootstrap worker is
// launched first; it performs device discovery and reports the device count
// as its first pipe message, and only then are workers for devices
// 1..count-1 added. Device 0 keeps using the bootstrap worker's pipe.
//
// Any spawn failure or a zero device count aborts the whole launch: partial
// fleets are never returned, and every already-started process is killed
// and reaped before the error comes back.
func (l *Launcher) LaunchFleet() ([]*WorkerHandle, error) {
	errFactory := errors.New()

	if l.cfg.Device >= 0 {
		handle, err := l.spawn(l.cfg.Device, true)
		if err != nil {
			return nil, err
		}

		count, err := report.ReadDeviceCount(handle.Pipe)
		if err != nil {
			killAndReap([]*WorkerHandle{handle})
			return nil, errFactory.Wrap(errors.ErrDeviceCountRead, err)
		}
		if count == 0 {
			killAndReap([]*WorkerHandle{handle})
			return nil, errFactory.New(errors.ErrZeroDevices)
		}

		logger.Debug().Int("device", l.cfg.Device).Msg("Launched single-device worker")

		return []*WorkerHandle{handle}, nil
	}

	bootstrap, err := l.spawn(0, true)
	if err != nil {
		return nil, err
	}
	handles := []*WorkerHandle{bootstrap}

	count, err := report.ReadDeviceCount(bootstrap.Pipe)
	if err != nil {
		killAndReap(handles)
		return nil, errFactory.Wrap(errors.ErrDeviceCountRead, err)
	}
	if count == 0 {
		killAndReap(handles)
		return nil, errFactory.New(errors.ErrZeroDevices)
	}

	logger.Info().Int("devices", int(count)).Msg("Devices discovered")

	for i := 1; i < int(count); i++ {
		handle, err := l.spawn(i, false)
		if err != nil {
			killAndReap(handles)
			return nil, err
		}
		handles = append(handles, handle)
	}

	return handles, nil
}

func (l *Launcher) spawn(deviceIndex int, announce bool) (*WorkerHandle, error) {
	errFactory := errors.New()

	args := []string{
		"burn-worker",
		"--device", strconv.Itoa(deviceIndex),
		"--mem-bytes", strconv.FormatInt(l.cfg.MemoryBytes, 10),
		"--log-level", l.cfg.LogLevel,
	}
	if announce {
		args = append(args, "--announce")
	}
	if l.cfg.Doubles {
		args = append(args, "--doubles")
	}
	if l.cfg.Tensor {
		args = append(args, "--tensor")
	}
	if l.cfg.Kernel != "" {
		args = append(args, "--kernel", l.cfg.Kernel)
	}

	cmd := exec.Command(l.exe, args...)
	cmd.Stderr = os.Stderr

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrSpawnFailed, err)
	}

	if err := cmd.Start(); err != nil {
		pipe.Close()
		return nil, errFactory.Wrap(errors.ErrSpawnFailed, err)
	}

	logger.Debug().
		Int("device", deviceIndex).
		Int("pid", cmd.Process.Pid).
		Bool("announce", announce).
		Msg("Worker spawned")

	return &WorkerHandle{Device: deviceIndex, Cmd: cmd, Pipe: pipe}, nil
}

// killAndReap force-terminates the given workers and blocks until each has
// been reaped, then releases their pipes. Used on every exit path so no
// descriptor or zombie outlives the run.
func killAndReap(handles []*WorkerHandle) {
	for _, h := range handles {
		if h.Cmd != nil && h.Cmd.Process != nil {
			h.Cmd.Process.Kill()
		}
	}
	for _, h := range handles {
		if h.Cmd != nil {
			h.Cmd.Wait()
		}
		h.Pipe.Close()
	}
}
