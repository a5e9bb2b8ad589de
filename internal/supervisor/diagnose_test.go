package supervisor

import (
	"testing"

	"codeberg.org/mutker/gpuburn/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDiagnoseZeroThroughput(t *testing.T) {
	clients := []ClientStats{
		{Gflops: 100, Alive: true},
		{Gflops: 0, Alive: true},
		{Gflops: 98, Alive: true},
	}

	results := Diagnose(clients, config.ThresholdDynamic, 1.5)

	assert.Equal(t, DiagnosisOK, results[0])
	assert.Equal(t, DiagnosisFaultyZeroThroughput, results[1])
	assert.Equal(t, DiagnosisOK, results[2])
	assert.True(t, results[1].Faulty())
}

func TestDiagnoseErrorsWinOverZeroThroughput(t *testing.T) {
	clients := []ClientStats{
		{Gflops: 0, HadErrors: true},
	}

	results := Diagnose(clients, config.ThresholdDynamic, 1.5)
	assert.Equal(t, DiagnosisFaultyErrors, results[0])
	assert.True(t, results[0].Faulty())
}

func TestDiagnoseStaticThresholdIgnoresDistribution(t *testing.T) {
	clients := []ClientStats{
		{Gflops: 40},
		{Gflops: 45},
		{Gflops: 60},
	}

	results := Diagnose(clients, config.ThresholdStatic, 50)

	assert.Equal(t, DiagnosisWarningLowThroughput, results[0])
	assert.Equal(t, DiagnosisWarningLowThroughput, results[1])
	assert.Equal(t, DiagnosisOK, results[2])

	assert.False(t, results[0].Faulty(), "a low-throughput warning alone does not fail the run")
}

func TestDiagnoseDynamicFlagsOutlier(t *testing.T) {
	clients := []ClientStats{
		{Gflops: 100},
		{Gflops: 101},
		{Gflops: 99},
		{Gflops: 98},
		{Gflops: 10},
	}

	// Window 0 reduces the bound to Q1 of the non-faulty samples.
	results := Diagnose(clients, config.ThresholdDynamic, 0)

	assert.Equal(t, DiagnosisWarningLowThroughput, results[4])
	for i := 0; i < 4; i++ {
		assert.Equal(t, DiagnosisOK, results[i], "device %d", i)
	}
}

func TestDiagnoseExcludesFaultyFromSampleSet(t *testing.T) {
	// The errored worker's throughput must not drag the dynamic bound
	// down for its peers.
	clients := []ClientStats{
		{Gflops: 100},
		{Gflops: 102},
		{Gflops: 101},
		{Gflops: 0.1, HadErrors: true},
	}

	results := Diagnose(clients, config.ThresholdDynamic, 0)

	assert.Equal(t, DiagnosisFaultyErrors, results[3])
	assert.Equal(t, DiagnosisOK, results[0])
	assert.Equal(t, DiagnosisOK, results[1])
	assert.Equal(t, DiagnosisOK, results[2])
}

func TestDiagnosisStrings(t *testing.T) {
	assert.Equal(t, "OK", DiagnosisOK.String())
	assert.Equal(t, "FAULTY (errors)", DiagnosisFaultyErrors.String())
	assert.Equal(t, "FAULTY (zero Gflops/s)", DiagnosisFaultyZeroThroughput.String())
	assert.Equal(t, "WARNING (low Gflops/s)", DiagnosisWarningLowThroughput.String())
}
