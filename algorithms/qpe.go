package algorithms

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
)

/*
PhaseEstimation estimates φ for U = P(2πφ) acting on its |1⟩ eigenstate.
Counting qubit j controls U^(2^j), so an exact t-bit phase reads back as
the integer φ·2^t with probability 1.
*/
func PhaseEstimation(phase float64, counting int) (*circuit.Circuit, error) {
	if counting < 1 {
		return nil, errors.Errorf("phase estimation needs at least one counting qubit, got %d", counting)
	}
	if phase < 0 || phase >= 1 {
		return nil, errors.Errorf("phase %g outside [0, 1)", phase)
	}

	target := counting
	qc := circuit.New(counting+1, counting).Named("qpe")
	qc.X(target)
	qc.H(circuit.Range(counting)...)
	for j := 0; j < counting; j++ {
		qc.CP(2*math.Pi*phase*math.Pow(2, float64(j)), j, target)
	}
	qc.Compose(circuit.QFT(counting, true, true), circuit.Range(counting)...)
	qc.Measure(circuit.Range(counting), circuit.Range(counting))
	return qc, qc.Err()
}

// PhaseFromBits reads a measured counting register as k/2^t.
func PhaseFromBits(bits string) (float64, error) {
	k, err := strconv.ParseUint(bits, 2, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "counting register %q", bits)
	}
	return float64(k) / math.Pow(2, float64(len(bits))), nil
}

func PhaseEstimationDemo(phase float64, counting int) Demo {
	return Demo{
		Name:        "phase_estimation",
		Title:       "Phase Estimation Results",
		Description: fmt.Sprintf("estimate φ=%g with %d counting qubits", phase, counting),
		Shots:       1000,
		Target:      Local,
		Build: func() (*circuit.Circuit, error) {
			return PhaseEstimation(phase, counting)
		},
		Analyze: func(probs backend.Probabilities) (Report, error) {
			bits, p := probs.MostProbable()
			estimate, err := PhaseFromBits(bits)
			if err != nil {
				return Report{}, err
			}
			return Report{
				Summary: fmt.Sprintf("Estimated phase: %g", estimate),
				Details: []string{fmt.Sprintf("register %s with probability %.3f, exact %g", bits, p, phase)},
			}, nil
		},
	}
}
