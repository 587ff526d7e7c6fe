package algorithms

import (
	"fmt"

	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
)

// BVOracle flips the ancilla (qubit n) by s·x. The secret is read with its
// last character on qubit 0.
func BVOracle(secret string) (*circuit.Circuit, error) {
	if err := validateSecret(secret); err != nil {
		return nil, err
	}

	n := len(secret)
	oracle := circuit.New(n+1, 0).Named("bv_oracle")
	for qubit := 0; qubit < n; qubit++ {
		if secret[n-1-qubit] == '1' {
			oracle.CX(qubit, n)
		}
	}
	return oracle, oracle.Err()
}

// BernsteinVazirani recovers secret in one oracle query.
func BernsteinVazirani(secret string) (*circuit.Circuit, error) {
	oracle, err := BVOracle(secret)
	if err != nil {
		return nil, err
	}

	n := len(secret)
	qc := circuit.New(n+1, n).Named("bernstein_vazirani")
	qc.X(n)
	qc.H(n)
	qc.H(circuit.Range(n)...)
	qc.Compose(oracle)
	qc.H(circuit.Range(n)...)
	qc.Measure(circuit.Range(n), circuit.Range(n))
	return qc, qc.Err()
}

func BernsteinVaziraniDemo(secret string) Demo {
	return Demo{
		Name:        "bernstein_vazirani",
		Title:       "Bernstein-Vazirani Results",
		Description: fmt.Sprintf("recover the secret %q with one query", secret),
		Shots:       1000,
		Target:      RealDevice,
		Build: func() (*circuit.Circuit, error) {
			return BernsteinVazirani(secret)
		},
		Analyze: func(probs backend.Probabilities) (Report, error) {
			found, p := probs.MostProbable()
			report := Report{Summary: fmt.Sprintf("Secret string found: %s", found)}
			report.Details = append(report.Details, fmt.Sprintf("probability %.3f, expected %s", p, secret))
			return report, nil
		},
	}
}
