// Package telemetry polls device temperatures out-of-band by owning a
// long-running nvidia-smi subprocess and parsing its line stream.
package telemetry

import (
	"io"
	"os/exec"
	"strconv"
	"strings"

	"codeberg.org/mutker/gpuburn/internal/errors"
	"codeberg.org/mutker/gpuburn/internal/logger"
)

const (
	tempPrefix      = "GPU Current Temp"
	unavailableLine = "Gpu"

	pollIntervalSeconds = "5"
)

// Poller owns the temperature-reporting subprocess and the per-device
// temperature table.
//
// The table is updated round-robin: every recognized telemetry line advances
// a single shared cursor modulo the device count, so attribution relies on
// nvidia-smi emitting its per-device blocks in a fixed, repeating device
// order. A line whose reading is unavailable still advances the cursor to
// keep the rotation aligned.
type Poller struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	temps  []int
	cursor int
}

// NewPoller creates a poller tracking deviceCount devices.
func NewPoller(deviceCount int) *Poller {
	return &Poller{
		temps: make([]int, deviceCount),
	}
}

// Start spawns the temperature subprocess with its stdout piped back to the
// supervisor. The subprocess runs until Stop force-kills it.
func (p *Poller) Start() error {
	errFactory := errors.New()

	cmd := exec.Command("nvidia-smi", "-l", pollIntervalSeconds, "-q", "-d", "TEMPERATURE")
	out, err := cmd.StdoutPipe()
	if err != nil {
		return errFactory.Wrap(errors.ErrPollerStart, err)
	}

	if err := cmd.Start(); err != nil {
		out.Close()
		return errFactory.Wrap(errors.ErrPollerStart, err)
	}

	p.cmd = cmd
	p.out = out
	logger.Debug().Int("pid", cmd.Process.Pid).Msg("Temperature poller started")

	return nil
}

// Output returns the subprocess's stdout stream. The fleet listener scans it
// line by line and hands each line to ParseLine.
func (p *Poller) Output() io.Reader {
	return p.out
}

// ParseLine applies the parsing policy to one telemetry line:
// a current-temperature reading is stored at the cursor, which then
// advances; an unavailable reading advances the cursor without storing;
// anything else is ignored.
func (p *Poller) ParseLine(line string) {
	if len(p.temps) == 0 {
		return
	}

	trimmed := strings.TrimSpace(line)

	if value, ok := parseCurrentTemp(trimmed); ok {
		p.temps[p.cursor] = value
		p.advance()
		return
	}

	if isUnavailable(trimmed) {
		p.advance()
	}
}

func (p *Poller) advance() {
	p.cursor = (p.cursor + 1) % len(p.temps)
}

// Temps returns a snapshot of the temperature table.
func (p *Poller) Temps() []int {
	snapshot := make([]int, len(p.temps))
	copy(snapshot, p.temps)
	return snapshot
}

// Stop force-kills the subprocess and reaps it. The poller must never be
// allowed to outlive the run.
func (p *Poller) Stop() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	if err := p.cmd.Process.Kill(); err != nil {
		return errors.New().Wrap(errors.ErrPollerStop, err)
	}
	p.cmd.Wait() // Reap; the kill makes the exit status meaningless
	p.out.Close()
	p.cmd = nil

	logger.Debug().Msg("Temperature poller stopped")

	return nil
}

// parseCurrentTemp extracts the Celsius value from a line such as
// "GPU Current Temp : 47 C".
func parseCurrentTemp(trimmed string) (int, bool) {
	if !strings.HasPrefix(trimmed, tempPrefix) {
		return 0, false
	}

	_, rest, found := strings.Cut(trimmed, ":")
	if !found {
		return 0, false
	}

	fields := strings.Fields(rest)
	if len(fields) != 2 || fields[1] != "C" {
		return 0, false
	}

	value, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}

	return value, true
}

// isUnavailable matches the per-device "Gpu : N/A" shape nvidia-smi emits
// when a reading cannot be taken.
func isUnavailable(trimmed string) bool {
	name, rest, found := strings.Cut(trimmed, ":")
	if !found {
		return false
	}

	return strings.TrimSpace(name) == unavailableLine && strings.TrimSpace(rest) == "N/A"
}
