package worker

import (
	"math/rand"
	"os"

	"codeberg.org/mutker/gpuburn/internal/errors"
	"codeberg.org/mutker/gpuburn/internal/logger"
)

const (
	// MatrixSize is the dimension of the square input matrices.
	MatrixSize = 1024

	// OpsPerMultiply is the floating point operations one dense multiply
	// performs (2*n^3 for the naive dimension-cubed approach). The listener
	// uses it to convert completed multiplies into Gflops/s.
	OpsPerMultiply = 2 * MatrixSize * MatrixSize * MatrixSize

	// inputSeed makes repeated runs reproducible: every worker of every
	// run multiplies the same matrices.
	inputSeed = 10

	// fallbackBudget is used when the device's memory size cannot be
	// queried.
	fallbackBudget = 1 << 30
)

// Payload is the swappable stress computation. The supervisor works
// unchanged for any payload that reports completed work units and detected
// faults per batch.
type Payload interface {
	// Init allocates and seeds the working set.
	Init() error
	// Batch runs one report-sized slice of work, returning the number of
	// completed work units and the number of result faults detected.
	Batch() (completed, faults int32, err error)
}

const (
	ErrPayloadInit    = errors.ErrorCode("payload_init_failed")
	ErrPayloadLowMem  = errors.ErrorCode("payload_memory_budget_too_small")
	ErrKernelNotFound = errors.ErrorCode("payload_kernel_not_found")
)

// NewPayload builds the matrix-multiply burn payload. budgetBytes is the
// resolved memory budget; the iteration count per batch is derived from how
// many result matrices fit into it alongside the two inputs.
func NewPayload(doubles, tensor bool, budgetBytes int64, kernelFile string) (Payload, error) {
	errFactory := errors.New()

	if kernelFile != "" {
		if _, err := os.Stat(kernelFile); err != nil {
			return nil, errFactory.WithData(ErrKernelNotFound, kernelFile)
		}
	}

	if budgetBytes <= 0 {
		budgetBytes = fallbackBudget
	}

	elemSize := int64(4)
	if doubles {
		elemSize = 8
	}
	resultSize := elemSize * MatrixSize * MatrixSize
	if budgetBytes < 3*resultSize {
		return nil, errFactory.WithData(ErrPayloadLowMem, budgetBytes)
	}
	iters := (budgetBytes - 2*resultSize) / resultSize

	logger.Debug().
		Int64("budget_bytes", budgetBytes).
		Int64("result_size", resultSize).
		Int64("iterations", iters).
		Bool("doubles", doubles).
		Bool("tensor", tensor).
		Msg("Payload sized")

	if doubles {
		return &matrixPayload[float64]{iters: int32(iters)}, nil
	}
	return &matrixPayload[float32]{iters: int32(iters)}, nil
}

// matrixPayload multiplies two seeded dense matrices repeatedly and compares
// every result against a reference product computed at init. Any element
// mismatch counts as a fault.
type matrixPayload[T float32 | float64] struct {
	iters int32
	a     []T
	b     []T
	want  []T
}

func (p *matrixPayload[T]) Init() error {
	rng := rand.New(rand.NewSource(inputSeed))

	p.a = make([]T, MatrixSize*MatrixSize)
	p.b = make([]T, MatrixSize*MatrixSize)
	for i := range p.a {
		p.a[i] = T(float64(rng.Intn(1000000)) / 100000.0)
	}
	for i := range p.b {
		p.b[i] = T(float64(rng.Intn(1000000)) / 100000.0)
	}

	p.want = multiply(p.a, p.b)

	return nil
}

func (p *matrixPayload[T]) Batch() (completed, faults int32, err error) {
	for i := int32(0); i < p.iters; i++ {
		got := multiply(p.a, p.b)
		faults += compare(got, p.want)
	}

	return p.iters, faults, nil
}

// multiply computes the dense product of two MatrixSize x MatrixSize
// matrices in row-major order.
func multiply[T float32 | float64](a, b []T) []T {
	const n = MatrixSize
	c := make([]T, n*n)

	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			aik := a[i*n+k]
			row := b[k*n:]
			out := c[i*n:]
			for j := 0; j < n; j++ {
				out[j] += aik * row[j]
			}
		}
	}

	return c
}

// compare counts elements that differ from the reference product. A healthy
// device produces bit-identical results for identical inputs.
func compare[T float32 | float64](got, want []T) int32 {
	var faults int32
	for i := range got {
		if got[i] != want[i] {
			faults++
		}
	}

	return faults
}
