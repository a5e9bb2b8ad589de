// Package supervisor implements the fleet supervision core: launching one
// isolated worker per device, listening on all report pipes and the
// telemetry stream, classifying every device at the end of the run, and
// tearing the fleet down without leaking processes or descriptors.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/gpuburn/internal/config"
	"codeberg.org/mutker/gpuburn/internal/errors"
	"codeberg.org/mutker/gpuburn/internal/logger"
	"codeberg.org/mutker/gpuburn/internal/metrics"
	"codeberg.org/mutker/gpuburn/internal/telemetry"
)

// Process exit codes. Any faulty device fails the run; a low-throughput
// warning alone does not. The fatal paths each carry a distinct code.
const (
	ExitSuccess     = 0
	ExitFaulty      = 1
	ExitConfig      = 2
	ExitSpawnFailed = 3
	ExitZeroDevices = 4
	ExitAllDead     = 5
)

// Run executes one full burn: launch, listen, diagnose, shut down. It
// returns the process exit code.
func Run(cfg *config.Config) int {
	launcher, err := NewLauncher(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Initialization failed")
		return ExitSpawnFailed
	}

	handles, err := launcher.LaunchFleet()
	if err != nil {
		if errors.HasCode(err, errors.ErrZeroDevices) {
			logger.Error().Msg("No devices found")
			return ExitZeroDevices
		}
		logger.Error().Err(err).Msg("Failed to launch worker fleet")
		return ExitSpawnFailed
	}

	poller := telemetry.NewPoller(len(handles))
	if err := poller.Start(); err != nil {
		logger.Warn().Err(err).Msg("Could not start temperature poller, no temps available")
		poller = nil
	}

	collector, err := metrics.NewService(metrics.Config{
		Enabled: cfg.Metrics,
		DBPath:  cfg.MetricsDB,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize metrics collection")
		shutdown(handles, poller)
		return ExitConfig
	}
	defer collector.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	runLength := time.Duration(cfg.Runtime) * time.Second
	logger.Info().Int("seconds", cfg.Runtime).Int("workers", len(handles)).Msg("Burning")

	listener := NewListener(handles, poller, collector, runLength)
	runErr := listener.Run(ctx)

	if errors.HasCode(runErr, errors.ErrAllWorkersDead) {
		fmt.Fprintln(os.Stderr, "No clients are alive! Aborting")
		shutdown(handles, poller)
		return ExitAllDead
	}

	listener.FinalReport()

	clients := listener.Clients()
	results := Diagnose(clients, config.ThresholdMode(cfg.ThresholdMode), cfg.Threshold)

	logger.Debug().Msg("Killing processes with SIGKILL (force kill)...")
	shutdown(handles, poller)
	logger.Debug().Msg("Killed all the jobs.")

	printResults(handles, clients, results, listener.temps(), cfg.Verbose)

	for _, d := range results {
		if d.Faulty() {
			return ExitFaulty
		}
	}

	return ExitSuccess
}

// shutdown force-terminates every worker and the temperature poller and
// blocks until all children are reaped.
func shutdown(handles []*WorkerHandle, poller *telemetry.Poller) {
	killAndReap(handles)
	if poller != nil {
		if err := poller.Stop(); err != nil {
			logger.Warn().Err(err).Msg("Failed to stop temperature poller")
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	cancel()
}

// printResults writes the final one-line-per-device verdict.
func printResults(
	handles []*WorkerHandle,
	clients []ClientStats,
	results []Diagnosis,
	temps []int,
	verbose bool,
) {
	var b strings.Builder
	fmt.Fprintf(&b, "\nTested %d GPUs:", len(handles))
	for i := range handles {
		fmt.Fprintf(&b, "\nGPU %d: %s", handles[i].Device, results[i])
		if verbose {
			fmt.Fprintf(&b, " (Gflops/s: %.1f, temps: %dC)", clients[i].Gflops, temps[i])
		}
	}

	logger.Info().Msg(b.String())
}
