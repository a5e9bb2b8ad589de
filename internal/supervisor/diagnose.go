package supervisor

import (
	"codeberg.org/mutker/gpuburn/internal/config"
	"codeberg.org/mutker/gpuburn/internal/stats"
)

// Diagnosis is a device's final health classification, ordered by severity.
type Diagnosis int

const (
	DiagnosisOK Diagnosis = iota
	DiagnosisWarningLowThroughput
	DiagnosisFaultyZeroThroughput
	DiagnosisFaultyErrors
)

func (d Diagnosis) String() string {
	switch d {
	case DiagnosisFaultyErrors:
		return "FAULTY (errors)"
	case DiagnosisFaultyZeroThroughput:
		return "FAULTY (zero Gflops/s)"
	case DiagnosisWarningLowThroughput:
		return "WARNING (low Gflops/s)"
	default:
		return "OK"
	}
}

// Faulty reports whether the diagnosis fails the run. A low-throughput
// warning alone does not.
func (d Diagnosis) Faulty() bool {
	return d == DiagnosisFaultyErrors || d == DiagnosisFaultyZeroThroughput
}

// Diagnose classifies every worker from its final stats and the fleet-wide
// throughput distribution. The low-throughput bound is the configured
// constant in static mode; in dynamic mode it is the IQR lower bound over
// the non-faulty workers' throughputs, so one slow outlier is judged
// against its healthy peers.
//
// Severity order, first match wins: errors observed at any point, zero
// final throughput, throughput below the bound, OK.
func Diagnose(clients []ClientStats, mode config.ThresholdMode, threshold float64) []Diagnosis {
	bound := threshold
	if mode == config.ThresholdDynamic {
		var nonFaulty []float64
		for i := range clients {
			if !clients[i].HadErrors && clients[i].Gflops != 0 {
				nonFaulty = append(nonFaulty, clients[i].Gflops)
			}
		}
		bound = stats.IQRLowerBound(nonFaulty, threshold)
	}

	results := make([]Diagnosis, len(clients))
	for i := range clients {
		switch {
		case clients[i].HadErrors:
			results[i] = DiagnosisFaultyErrors
		case clients[i].Gflops == 0:
			results[i] = DiagnosisFaultyZeroThroughput
		case clients[i].Gflops < bound:
			results[i] = DiagnosisWarningLowThroughput
		default:
			results[i] = DiagnosisOK
		}
	}

	return results
}
