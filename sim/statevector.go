package sim

import (
	"math/cmplx"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/circuit"
)

// State is a dense state vector. Basis index bit i is qubit i.
type State struct {
	Amplitudes []complex128
	NumQubits  int
}

// Zero returns |0…0⟩ on n qubits.
func Zero(n int) *State {
	amps := make([]complex128, 1<<n)
	amps[0] = 1
	return &State{Amplitudes: amps, NumQubits: n}
}

func (s *State) Clone() *State {
	amps := make([]complex128, len(s.Amplitudes))
	copy(amps, s.Amplitudes)
	return &State{Amplitudes: amps, NumQubits: s.NumQubits}
}

// Probabilities returns |amplitude|² per basis index.
func (s *State) Probabilities() []float64 {
	probs := make([]float64, len(s.Amplitudes))
	for i, a := range s.Amplitudes {
		abs := cmplx.Abs(a)
		probs[i] = abs * abs
	}
	return probs
}

// Apply evolves the state by one gate. Measures and barriers are no-ops here;
// sampling handles measurement.
func (s *State) Apply(op circuit.Operation) error {
	switch op.Name {
	case "measure", "barrier":
		return nil
	case "swap":
		s.swap(op.Qubits[0], op.Qubits[1])
		return nil
	}

	m, err := op.Matrix()
	if err != nil {
		return err
	}
	s.controlled(op.ControlQubits(), op.TargetQubits(), m)
	return nil
}

/*
controlled applies m to targets on every basis state whose control bits are
all set. Amplitudes are visited in groups of 2^k that differ only in the
target bits, so each group is one small matrix-vector product.
*/
func (s *State) controlled(controls, targets []int, m circuit.Matrix) {
	var controlMask, targetMask int
	for _, c := range controls {
		controlMask |= 1 << c
	}
	for _, t := range targets {
		targetMask |= 1 << t
	}

	k := len(targets)
	group := make([]int, 1<<k)
	vec := make([]complex128, 1<<k)

	for base := range s.Amplitudes {
		if base&controlMask != controlMask || base&targetMask != 0 {
			continue
		}

		for sub := range group {
			idx := base
			for bit, t := range targets {
				if sub>>bit&1 == 1 {
					idx |= 1 << t
				}
			}
			group[sub] = idx
			vec[sub] = s.Amplitudes[idx]
		}

		out := m.Apply(vec)
		for sub, idx := range group {
			s.Amplitudes[idx] = out[sub]
		}
	}
}

func (s *State) swap(a, b int) {
	for i := range s.Amplitudes {
		bitA, bitB := i>>a&1, i>>b&1
		if bitA == 1 && bitB == 0 {
			j := i&^(1<<a) | 1<<b
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
}

// Statevector evolves |0…0⟩ through every gate of c.
func Statevector(c *circuit.Circuit) (*State, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}

	state := Zero(c.NumQubits())
	for i, op := range c.Operations() {
		if err := state.Apply(op); err != nil {
			return nil, errors.Wrapf(err, "operation %d", i)
		}
	}
	return state, nil
}

// Expectation sums f(index)·p(index) over the basis states.
func (s *State) Expectation(f func(index int) float64) float64 {
	var total float64
	for i, p := range s.Probabilities() {
		if p == 0 {
			continue
		}
		total += p * f(i)
	}
	return total
}
