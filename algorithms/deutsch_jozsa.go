package algorithms

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
)

const djInputs = 3

// ConstantOracle implements f(x) = 1 for every x.
func ConstantOracle() *circuit.Circuit {
	oracle := circuit.New(djInputs+1, 0).Named("constant_oracle")
	oracle.X(djInputs)
	return oracle
}

// BalancedOracle implements f(x) = x0 ⊕ x1 ⊕ x2.
func BalancedOracle() *circuit.Circuit {
	oracle := circuit.New(djInputs+1, 0).Named("balanced_oracle")
	for q := 0; q < djInputs; q++ {
		oracle.CX(q, djInputs)
	}
	return oracle
}

// Oracle looks up a Deutsch-Jozsa oracle by kind.
func Oracle(kind string) (*circuit.Circuit, error) {
	switch strings.ToLower(kind) {
	case "", "constant":
		return ConstantOracle(), nil
	case "balanced":
		return BalancedOracle(), nil
	}
	return nil, errors.Errorf("unknown oracle %q, want constant or balanced", kind)
}

// DeutschJozsa decides constant versus balanced for a 3-input oracle.
func DeutschJozsa(oracle *circuit.Circuit) (*circuit.Circuit, error) {
	n := djInputs
	qc := circuit.New(n+1, n).Named("deutsch_jozsa")
	qc.X(n)
	qc.H(n)
	for q := 0; q < n; q++ {
		qc.H(q)
	}
	qc.Compose(oracle)
	for q := 0; q < n; q++ {
		qc.H(q)
	}
	qc.Measure(circuit.Range(n), circuit.Range(n))
	return qc, qc.Err()
}

func DeutschJozsaDemo(kind string) Demo {
	return Demo{
		Name:        "deutsch_jozsa",
		Title:       "Deutsch-Jozsa Results",
		Description: fmt.Sprintf("classify the %s oracle", kind),
		Shots:       500,
		Target:      AnyRemote,
		Build: func() (*circuit.Circuit, error) {
			oracle, err := Oracle(kind)
			if err != nil {
				return nil, err
			}
			return DeutschJozsa(oracle)
		},
		Analyze: func(probs backend.Probabilities) (Report, error) {
			zero := strings.Repeat("0", djInputs)
			if probs[zero] > 0.95 {
				return Report{Summary: "Function is CONSTANT"}, nil
			}
			return Report{Summary: "Function is BALANCED"}, nil
		},
	}
}
