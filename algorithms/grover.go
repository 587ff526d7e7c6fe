package algorithms

import (
	"fmt"
	"math"
	"strings"

	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
)

// MarkAllOnes is a phase oracle marking |1…1⟩ on n qubits.
func MarkAllOnes(n int) *circuit.Circuit {
	oracle := circuit.New(n, 0).Named("oracle")
	oracle.H(n - 1)
	oracle.MCX(circuit.Range(n-1), n-1)
	oracle.H(n - 1)
	return oracle
}

// GroverIterations is floor(π/4·√(2^n)).
func GroverIterations(n int) int {
	return int(math.Floor(math.Pi / 4 * math.Sqrt(math.Pow(2, float64(n)))))
}

// Grover amplifies the states marked by oracle.
func Grover(n int, oracle *circuit.Circuit, iterations int) (*circuit.Circuit, error) {
	qc := circuit.New(n, n).Named("grover")
	qc.H(circuit.Range(n)...)
	for i := 0; i < iterations; i++ {
		qc.Compose(oracle)
		qc.Compose(circuit.Diffuser(n))
	}
	qc.Measure(circuit.Range(n), circuit.Range(n))
	return qc, qc.Err()
}

func GroverDemo(n int) Demo {
	return Demo{
		Name:        "grover",
		Title:       "Quantum Search Results",
		Description: fmt.Sprintf("search %d items for |%s⟩", 1<<n, strings.Repeat("1", n)),
		Shots:       1000,
		Target:      AnyRemote,
		Build: func() (*circuit.Circuit, error) {
			return Grover(n, MarkAllOnes(n), GroverIterations(n))
		},
		Analyze: func(probs backend.Probabilities) (Report, error) {
			found, p := probs.MostProbable()
			return Report{
				Summary: fmt.Sprintf("Marked state found: %s", found),
				Details: []string{fmt.Sprintf("probability %.3f after %d iterations", p, GroverIterations(n))},
			}, nil
		},
	}
}
