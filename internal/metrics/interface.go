package metrics

import (
	"context"
	"time"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, sample *Sample) error
	Close() error
}

// Repository defines the interface for sample storage
type Repository interface {
	Store(sample *Sample) error
	Close() error
}

// Sample is one worker progress report as seen by the fleet listener.
// Final diagnoses are never stored; a run's verdict lives only in its
// output and exit code.
type Sample struct {
	Timestamp    time.Time
	Device       int
	Completed    int64
	Gflops       float64
	WindowErrors int64
	Temperature  int
}
