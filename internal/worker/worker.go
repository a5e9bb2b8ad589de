// Package worker implements the isolated per-device stress process. It is
// spawned by the supervisor with its stdout wired to a private pipe, runs
// the payload until told to stop, and reports progress with the binary
// report protocol.
package worker

import (
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"codeberg.org/mutker/gpuburn/internal/device"
	"codeberg.org/mutker/gpuburn/internal/logger"
	"codeberg.org/mutker/gpuburn/internal/report"
	"github.com/spf13/pflag"
)

// Config carries the per-worker settings the supervisor passes on the
// command line of the re-exec'd process.
type Config struct {
	Device      int
	Announce    bool // write the discovered device count before any report
	Doubles     bool
	Tensor      bool
	MemoryBytes int64 // bytes, or a negative percentage of device memory
	KernelFile  string
	LogLevel    string
}

// Main is the entry point of the burn-worker process. It parses the
// supervisor-provided arguments and returns the process exit code.
func Main(args []string) int {
	cfg := Config{}

	fs := pflag.NewFlagSet("burn-worker", pflag.ContinueOnError)
	fs.IntVar(&cfg.Device, "device", 0, "")
	fs.BoolVar(&cfg.Announce, "announce", false, "")
	fs.BoolVar(&cfg.Doubles, "doubles", false, "")
	fs.BoolVar(&cfg.Tensor, "tensor", false, "")
	fs.Int64Var(&cfg.MemoryBytes, "mem-bytes", 0, "")
	fs.StringVar(&cfg.KernelFile, "kernel", "", "")
	fs.StringVar(&cfg.LogLevel, "log-level", "warning", "")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	logger.Init(cfg.LogLevel, false, false)

	return Run(cfg, os.Stdout)
}

// Run executes the worker loop, writing reports to out. A termination
// signal sets a cooperative stop flag checked at the top of each batch;
// the handler itself does nothing else.
func Run(cfg Config, out io.Writer) int {
	var stopped atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		stopped.Store(true)
	}()

	mgr, budget := initDevice(cfg)
	if mgr != nil {
		defer mgr.Shutdown()
	}

	if cfg.Announce {
		count := 0
		if mgr != nil {
			count, _ = mgr.DeviceCount()
		}
		if err := report.WriteDeviceCount(out, int32(count)); err != nil {
			return 1
		}
		if count == 0 {
			logger.Error().Msg("No devices found during discovery")
			return 1
		}
	}

	payload, err := NewPayload(cfg.Doubles, cfg.Tensor, budget, cfg.KernelFile)
	if err != nil {
		logger.Error().Err(err).Int("device", cfg.Device).Msg("Couldn't init a burn payload")
		return 1
	}
	if err := payload.Init(); err != nil {
		logger.Error().Err(err).Int("device", cfg.Device).Msg("Couldn't init a burn payload")
		return 1
	}

	logger.Debug().Int("device", cfg.Device).Msg("Worker entering burn loop")

	for !stopped.Load() {
		completed, faults, err := payload.Batch()
		if err != nil {
			// Signal the supervisor that we failed, then die.
			logger.Error().Err(err).Int("device", cfg.Device).Msg("Failure during compute")
			report.WriteSentinel(out)
			return 1
		}

		if err := report.WritePair(out, completed, faults); err != nil {
			// Supervisor is gone; nothing left to report to.
			return 1
		}
	}

	logger.Debug().Int("device", cfg.Device).Msg("Worker stopping on signal")

	return 0
}

// initDevice initializes NVML and resolves the memory budget for this
// worker's device. Both are best-effort: without NVML the payload falls
// back to a fixed budget.
func initDevice(cfg Config) (*device.Manager, int64) {
	mgr, err := device.New()
	if err != nil {
		logger.Warn().Err(err).Msg("Device layer unavailable, using fallback memory budget")
		return nil, cfg.positiveBudget()
	}

	total, err := mgr.TotalMemory(cfg.Device)
	if err != nil {
		return mgr, cfg.positiveBudget()
	}

	switch {
	case cfg.MemoryBytes > 0:
		return mgr, cfg.MemoryBytes
	case cfg.MemoryBytes < 0:
		return mgr, int64(total) * (-cfg.MemoryBytes) / 100
	default:
		return mgr, int64(total) * defaultMemoryPercent / 100
	}
}

const defaultMemoryPercent = 90

// positiveBudget returns the explicit byte budget if one was given, or zero
// so the payload applies its fallback.
func (c Config) positiveBudget() int64 {
	if c.MemoryBytes > 0 {
		return c.MemoryBytes
	}
	return 0
}
