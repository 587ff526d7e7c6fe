package algorithms

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
	"github.com/theapemachine/qdemo/sim"
	"gonum.org/v1/gonum/optimize"
)

// Ansatz is RY(θ) on qubit 0, CX(0,1), RY(φ) on qubit 1.
func Ansatz(theta, phi float64) *circuit.Circuit {
	qc := circuit.New(2, 2).Named("ansatz")
	qc.RY(theta, 0)
	qc.CX(0, 1)
	qc.RY(phi, 1)
	return qc
}

// zz is the eigenvalue of Z on qubit q for basis index i.
func zz(i, q int) float64 {
	return float64(1 - 2*(i>>q&1))
}

// IsingEnergy is ⟨Z0 + Z1 + Z0·Z1⟩ for the ansatz at (θ, φ).
func IsingEnergy(theta, phi float64) (float64, error) {
	state, err := sim.Statevector(Ansatz(theta, phi))
	if err != nil {
		return 0, err
	}
	return state.Expectation(func(i int) float64 {
		z0, z1 := zz(i, 0), zz(i, 1)
		return z0 + z1 + z0*z1
	}), nil
}

type VQEResult struct {
	Theta, Phi float64
	Energy     float64
	Evals      int
}

// OptimizeVQE minimizes the energy from (0, 0) with Nelder-Mead.
func OptimizeVQE() (VQEResult, error) {
	var evalErr error
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			e, err := IsingEnergy(x[0], x[1])
			if err != nil && evalErr == nil {
				evalErr = err
			}
			return e
		},
	}

	result, err := optimize.Minimize(problem, []float64{0, 0}, nil, &optimize.NelderMead{})
	if evalErr != nil {
		return VQEResult{}, errors.Wrap(evalErr, "energy evaluation")
	}
	if err != nil {
		return VQEResult{}, errors.Wrap(err, "nelder-mead")
	}

	return VQEResult{
		Theta:  result.X[0],
		Phi:    result.X[1],
		Energy: result.F,
		Evals:  result.Stats.FuncEvaluations,
	}, nil
}

// VQE is the optimized ansatz measured with qubit 0 into clbit 1 and qubit 1
// into clbit 0.
func VQE(res VQEResult) (*circuit.Circuit, error) {
	qc := circuit.New(2, 2).Named("vqe")
	qc.Compose(Ansatz(res.Theta, res.Phi))
	qc.Measure([]int{0, 1}, []int{1, 0})
	return qc, qc.Err()
}

func VQEDemo() Demo {
	var res VQEResult

	return Demo{
		Name:        "vqe",
		Title:       "VQE Results",
		Description: "ground state of Z0 + Z1 + Z0·Z1",
		Shots:       1000,
		Target:      Local,
		Build: func() (*circuit.Circuit, error) {
			var err error
			if res, err = OptimizeVQE(); err != nil {
				return nil, err
			}
			return VQE(res)
		},
		Analyze: func(probs backend.Probabilities) (Report, error) {
			return Report{
				Summary: fmt.Sprintf("Optimal energy: %.6f", res.Energy),
				Details: []string{
					fmt.Sprintf("optimal parameters θ=%.4f φ=%.4f", res.Theta, res.Phi),
					fmt.Sprintf("%d energy evaluations", res.Evals),
				},
			}, nil
		},
	}
}
