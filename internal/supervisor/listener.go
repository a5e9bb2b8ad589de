package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/gpuburn/internal/errors"
	"codeberg.org/mutker/gpuburn/internal/logger"
	"codeberg.org/mutker/gpuburn/internal/metrics"
	"codeberg.org/mutker/gpuburn/internal/report"
	"codeberg.org/mutker/gpuburn/internal/telemetry"
	"codeberg.org/mutker/gpuburn/internal/worker"
)

const progressStep = 10.0 // emit a progress report every 10% of elapsed runtime

// ClientStats tracks one worker's running state across a burn. Mutated only
// by the fleet listener on receipt of that worker's reports.
type ClientStats struct {
	Completed    int64
	TotalErrors  int64
	WindowErrors int64
	HadErrors    bool
	LastReport   time.Time
	Gflops       float64
	Alive        bool
}

// event is one unit of listener input: either a worker report pair or a
// telemetry line. A worker's pair arrives as a single event, so the two
// integers of one report are never interleaved with another worker's data.
type event struct {
	client int // index into the fleet; -1 for telemetry
	pair   report.Pair
	line   string
}

// Listener multiplexes all worker pipes and the telemetry stream, maintains
// per-worker statistics, and enforces the run deadline. It is the only
// goroutine that touches ClientStats and the temperature table; the reader
// goroutines do nothing but deliver raw events.
type Listener struct {
	handles    []*WorkerHandle
	poller     *telemetry.Poller
	collector  metrics.Collector
	runLength  time.Duration
	opsPerUnit float64

	clients []ClientStats
	events  chan event
	done    chan struct{}

	start       time.Time
	nextReport  float64
	childReport bool
}

func NewListener(
	handles []*WorkerHandle,
	poller *telemetry.Poller,
	collector metrics.Collector,
	runLength time.Duration,
) *Listener {
	return &Listener{
		handles:    handles,
		poller:     poller,
		collector:  collector,
		runLength:  runLength,
		opsPerUnit: worker.OpsPerMultiply,
		clients:    make([]ClientStats, len(handles)),
		events:     make(chan event, len(handles)*2+1),
		done:       make(chan struct{}),
		nextReport: progressStep,
	}
}

// Run drives the listen loop until the configured run length elapses, the
// context is cancelled, or every worker has died. The all-dead case returns
// an error; reaching the deadline is the normal outcome and returns nil.
func (l *Listener) Run(ctx context.Context) error {
	errFactory := errors.New()

	l.start = time.Now()
	for i := range l.clients {
		l.clients[i].Alive = true
		l.clients[i].LastReport = l.start
	}
	defer close(l.done)

	for i, h := range l.handles {
		go l.readReports(i, h)
	}
	if l.poller != nil && l.poller.Output() != nil {
		go l.readTelemetry()
	}

	deadline := time.NewTimer(l.runLength)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Received termination signal.")
			return nil
		case <-deadline.C:
			return nil
		case ev := <-l.events:
			if ev.client < 0 {
				l.poller.ParseLine(ev.line)
				l.maybeReportProgress(ctx)
				continue
			}

			l.applyReport(ev.client, ev.pair)
			l.maybeReportProgress(ctx)

			if !l.oneAlive() {
				return errFactory.New(errors.ErrAllWorkersDead)
			}
		}
	}
}

// readReports delivers one worker's report pairs. A failed or short read is
// conservatively treated as that worker's death sentinel; the protocol has
// no partial-message recovery.
func (l *Listener) readReports(client int, h *WorkerHandle) {
	for {
		pair, err := report.ReadPair(h.Pipe)
		if err != nil {
			logger.Debug().Int("device", h.Device).Err(err).Msg("Worker pipe closed")
			l.send(event{client: client, pair: pair})
			return
		}

		l.send(event{client: client, pair: pair})

		if pair.IsSentinel() {
			return
		}
	}
}

func (l *Listener) readTelemetry() {
	scanner := bufio.NewScanner(l.poller.Output())
	for scanner.Scan() {
		l.send(event{client: -1, line: scanner.Text()})
	}
}

func (l *Listener) send(ev event) {
	select {
	case l.events <- ev:
	case <-l.done:
	}
}

// applyReport folds one report pair into that worker's stats. The error
// count accumulates into both the rolling window and the lifetime total;
// a sentinel freezes the worker's contribution permanently, while a normal
// report recomputes instantaneous throughput from the wall-clock delta
// since this worker's previous report.
func (l *Listener) applyReport(client int, pair report.Pair) {
	now := time.Now()
	c := &l.clients[client]

	c.WindowErrors += int64(pair.ErrorCount)
	c.TotalErrors += int64(pair.ErrorCount)
	if c.TotalErrors != 0 {
		c.HadErrors = true
	}

	if pair.IsSentinel() {
		c.Alive = false
		return
	}

	delta := now.Sub(c.LastReport).Seconds()
	if delta > 0 {
		c.Gflops = float64(pair.Completed) * l.opsPerUnit / delta / 1e9
	}
	c.LastReport = now
	c.Completed += int64(pair.Completed)

	l.childReport = true
}

func (l *Listener) oneAlive() bool {
	for i := range l.clients {
		if l.clients[i].Alive {
			return true
		}
	}
	return false
}

// maybeReportProgress emits the consolidated progress block at most once
// per progressStep percent of elapsed runtime, once at least one report has
// arrived. Each emission resets every worker's rolling error window.
func (l *Listener) maybeReportProgress(ctx context.Context) {
	if !l.childReport {
		return
	}

	elapsed := l.elapsedPercent()
	if elapsed < l.nextReport {
		return
	}
	l.nextReport = elapsed + progressStep

	logger.Info().Msg(l.progressBlock(elapsed))
	l.recordSamples(ctx)

	for i := range l.clients {
		l.clients[i].WindowErrors = 0
	}
}

func (l *Listener) elapsedPercent() float64 {
	pct := time.Since(l.start).Seconds() / l.runLength.Seconds() * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (l *Listener) progressBlock(elapsed float64) string {
	temps := l.temps()

	var b strings.Builder
	fmt.Fprintf(&b, "Process Update:\n\tProgress (%%): %.1f", elapsed)

	b.WriteString("\n\tproc'd      : ")
	for i := range l.clients {
		if i > 0 {
			b.WriteString(", ")
		}
		if !l.clients[i].Alive {
			b.WriteString("-1")
		} else {
			fmt.Fprintf(&b, "%d", l.clients[i].Completed)
		}
	}

	b.WriteString("\n\tGflops/s    : ")
	for i := range l.clients {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.1f", l.clients[i].Gflops)
	}

	b.WriteString("\n\tnew errors  : ")
	for i := range l.clients {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", l.clients[i].WindowErrors)
		if !l.clients[i].Alive {
			b.WriteString(" (DIED!)")
		} else if l.clients[i].WindowErrors != 0 {
			b.WriteString(" (WARNING!)")
		}
	}

	b.WriteString("\n\ttemps (C)   : ")
	for i := range l.clients {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", temps[i])
	}

	return b.String()
}

// FinalReport logs the end-of-run summary block.
func (l *Listener) FinalReport() {
	temps := l.temps()

	var b strings.Builder
	b.WriteString("End of burn results:\n\tProgress (%): 100")

	b.WriteString("\n\tGflops/s    : ")
	for i := range l.clients {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.1f", l.clients[i].Gflops)
	}

	b.WriteString("\n\ttemps (C)   : ")
	for i := range l.clients {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", temps[i])
	}

	logger.Info().Msg(b.String())
}

func (l *Listener) recordSamples(ctx context.Context) {
	if l.collector == nil {
		return
	}

	now := time.Now()
	temps := l.temps()
	for i := range l.clients {
		sample := &metrics.Sample{
			Timestamp:    now,
			Device:       l.handles[i].Device,
			Completed:    l.clients[i].Completed,
			Gflops:       l.clients[i].Gflops,
			WindowErrors: l.clients[i].WindowErrors,
			Temperature:  temps[i],
		}
		if err := l.collector.Record(ctx, sample); err != nil {
			logger.Warn().Err(err).Msg("Failed to record metrics sample")
		}
	}
}

func (l *Listener) temps() []int {
	if l.poller != nil {
		return l.poller.Temps()
	}
	return make([]int, len(l.clients))
}

// Clients returns a snapshot of the per-worker statistics. Valid once Run
// has returned.
func (l *Listener) Clients() []ClientStats {
	snapshot := make([]ClientStats, len(l.clients))
	copy(snapshot, l.clients)
	return snapshot
}
