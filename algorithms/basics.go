package algorithms

import (
	"fmt"

	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
)

// SuperpositionCircuit puts one qubit into |+⟩ and measures it.
func SuperpositionCircuit() *circuit.Circuit {
	qc := circuit.New(1, 1).Named("superposition")
	qc.H(0)
	qc.Measure([]int{0}, []int{0})
	return qc
}

// BellCircuit prepares (|00⟩ + |11⟩)/√2 and measures both qubits.
func BellCircuit() *circuit.Circuit {
	qc := circuit.New(2, 2).Named("bell")
	qc.H(0)
	qc.CX(0, 1)
	qc.Measure([]int{0, 1}, []int{0, 1})
	return qc
}

func Superposition() Demo {
	return Demo{
		Name:        "superposition",
		Title:       "Superposition",
		Description: "Hadamard on a single qubit, measured 500 times",
		Shots:       500,
		Target:      Local,
		Build: func() (*circuit.Circuit, error) {
			qc := SuperpositionCircuit()
			return qc, qc.Err()
		},
		Analyze: func(probs backend.Probabilities) (Report, error) {
			return Report{
				Summary: fmt.Sprintf("P(0)=%.3f P(1)=%.3f", probs["0"], probs["1"]),
			}, nil
		},
	}
}

func Entanglement() Demo {
	return Demo{
		Name:        "entanglement",
		Title:       "Bell State",
		Description: "Bell pair on the local simulator",
		Shots:       500,
		Target:      Local,
		Build: func() (*circuit.Circuit, error) {
			qc := BellCircuit()
			return qc, qc.Err()
		},
		Analyze: bellReport,
	}
}

// Noise runs the Bell pair on hardware, where the 01 and 10 outcomes show up.
func Noise() Demo {
	return Demo{
		Name:         "noise",
		Title:        "Measurement Results",
		Description:  "Bell pair on the least busy remote backend",
		Shots:        500,
		Target:       AnyRemote,
		ReadoutError: 0.02,
		Build: func() (*circuit.Circuit, error) {
			qc := BellCircuit().Named("bell_real")
			return qc, qc.Err()
		},
		Analyze: bellReport,
	}
}

func bellReport(probs backend.Probabilities) (Report, error) {
	correlated := probs["00"] + probs["11"]
	return Report{
		Summary: fmt.Sprintf("correlated outcomes: %.3f, error rate: %.3f", correlated, 1-correlated),
	}, nil
}
