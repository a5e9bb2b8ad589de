package main

import (
	"fmt"
	"os"

	"codeberg.org/mutker/gpuburn/internal/config"
	"codeberg.org/mutker/gpuburn/internal/device"
	"codeberg.org/mutker/gpuburn/internal/logger"
	"codeberg.org/mutker/gpuburn/internal/supervisor"
	"codeberg.org/mutker/gpuburn/internal/worker"
)

// workerEntry is the hidden argv[1] the supervisor uses when re-executing
// itself as a per-device worker process.
const workerEntry = "burn-worker"

func main() {
	if len(os.Args) > 1 && os.Args[1] == workerEntry {
		os.Exit(worker.Main(os.Args[2:]))
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(supervisor.ExitConfig)
	}

	logger.Init(cfg.LogLevel, cfg.Debug, cfg.Verbose)
	logger.Debug().Msg("Config loaded")

	if cfg.List {
		os.Exit(listDevices())
	}

	os.Exit(supervisor.Run(cfg))
}

func listDevices() int {
	mgr, err := device.New()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize device management")
		return supervisor.ExitZeroDevices
	}
	defer mgr.Shutdown()

	count, err := mgr.DeviceCount()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to enumerate devices")
		return supervisor.ExitZeroDevices
	}

	for i := 0; i < count; i++ {
		name, err := mgr.Name(i)
		if err != nil {
			name = "unknown"
		}
		total, err := mgr.TotalMemory(i)
		if err != nil {
			total = 0
		}
		fmt.Printf("ID %d: %s, %dMB\n", i, name, total/(1024*1024))
	}

	return supervisor.ExitSuccess
}
