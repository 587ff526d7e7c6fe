package algorithms

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
)

/*
SimonOracle maps |x⟩|0⟩ to |x⟩|f(x)⟩ where f(x) = f(x ⊕ s). Input qubit i
carries secret[i]. The output register copies x and then XORs s whenever the
first input qubit holding a '1' is set.
*/
func SimonOracle(secret string) (*circuit.Circuit, error) {
	if err := validateSecret(secret); err != nil {
		return nil, err
	}
	pivot := strings.IndexByte(secret, '1')
	if pivot < 0 {
		return nil, errors.Wrapf(ErrInvalidSecret, "%q has no 1 bit", secret)
	}

	n := len(secret)
	oracle := circuit.New(2*n, 0).Named("simon_oracle")
	for i := 0; i < n; i++ {
		oracle.CX(i, n+i)
	}
	for i := 0; i < n; i++ {
		if secret[i] == '1' {
			oracle.CX(pivot, n+i)
		}
	}
	return oracle, oracle.Err()
}

// Simon samples strings z orthogonal to secret.
func Simon(secret string) (*circuit.Circuit, error) {
	oracle, err := SimonOracle(secret)
	if err != nil {
		return nil, err
	}

	n := len(secret)
	qc := circuit.New(2*n, n).Named("simon")
	qc.H(circuit.Range(n)...)
	qc.Compose(oracle)
	qc.H(circuit.Range(n)...)
	qc.Measure(circuit.Range(n), circuit.Reversed(circuit.Range(n)))
	return qc, qc.Err()
}

// Dot is the bitwise inner product of two equal-length bit-strings mod 2.
func Dot(a, b string) int {
	var v int
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == '1' && b[i] == '1' {
			v ^= 1
		}
	}
	return v
}

/*
SolveSimon returns every non-zero n-bit string orthogonal to all of samples.
With enough independent samples the only survivor is the secret.
*/
func SolveSimon(n int, samples []string) []string {
	var out []string
	for candidate := 1; candidate < 1<<n; candidate++ {
		s := fmt.Sprintf("%0*b", n, candidate)
		ok := true
		for _, z := range samples {
			if Dot(s, z) != 0 {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, s)
		}
	}
	return out
}

func SimonDemo(secret string) Demo {
	return Demo{
		Name:        "simon",
		Title:       "Simon's Algorithm Results",
		Description: fmt.Sprintf("find the hidden period %q", secret),
		Shots:       1000,
		Target:      RealDevice,
		Build: func() (*circuit.Circuit, error) {
			return Simon(secret)
		},
		Analyze: func(probs backend.Probabilities) (Report, error) {
			zs := probs.Keys()
			report := Report{Summary: fmt.Sprintf("observed %d distinct z", len(zs))}
			for _, z := range zs {
				report.Details = append(report.Details, fmt.Sprintf("%s · %s = %d (mod 2)", secret, z, Dot(secret, z)))
			}
			if solved := SolveSimon(len(secret), zs); len(solved) == 1 {
				report.Details = append(report.Details, fmt.Sprintf("recovered secret: %s", solved[0]))
			}
			return report, nil
		},
	}
}
