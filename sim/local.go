package sim

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
	"gonum.org/v1/gonum/floats"
)

var ErrNoMeasurements = errors.New("circuit has no measurements")

const (
	DefaultName      = "local_qasm_simulator"
	DefaultMaxQubits = 16
)

/*
Local is an in-process sampling backend. It evolves the state vector once per
run and draws every shot from the final distribution, so measurements must be
terminal. A non-zero readout error flips each measured bit independently with
that probability, which is the only noise it models.
*/
type Local struct {
	name         string
	maxQubits    int
	readoutError float64

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Local)

// WithSeed makes sampling reproducible.
func WithSeed(seed uint64) Option {
	return func(l *Local) {
		l.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func WithReadoutError(p float64) Option {
	return func(l *Local) {
		l.readoutError = p
	}
}

func WithMaxQubits(n int) Option {
	return func(l *Local) {
		l.maxQubits = n
	}
}

func WithName(name string) Option {
	return func(l *Local) {
		l.name = name
	}
}

func NewLocal(opts ...Option) *Local {
	l := &Local{
		name:      DefaultName,
		maxQubits: DefaultMaxQubits,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.rng == nil {
		seed := rand.Uint64()
		l.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return l
}

func (l *Local) Name() string {
	return l.name
}

func (l *Local) Info(ctx context.Context) (backend.Info, error) {
	return backend.Info{
		Name:        l.name,
		NumQubits:   l.maxQubits,
		Simulator:   true,
		Operational: true,
		Version:     "statevector",
	}, nil
}

// Backends makes a Local usable wherever a Provider is expected.
func (l *Local) Backends(ctx context.Context) ([]backend.Backend, error) {
	return []backend.Backend{l}, nil
}

func (l *Local) Run(ctx context.Context, c *circuit.Circuit, shots int) (backend.Counts, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	if shots <= 0 {
		return nil, errors.Errorf("shots must be positive, got %d", shots)
	}
	if c.NumQubits() > l.maxQubits {
		return nil, errors.Wrapf(circuit.ErrTooWide, "%d qubits on %s (%d available)", c.NumQubits(), l.name, l.maxQubits)
	}

	measured := c.Measurements()
	if len(measured) == 0 {
		return nil, errors.Wrapf(ErrNoMeasurements, "circuit %q", c.Name)
	}
	qubits := make([]int, 0, len(measured))
	for q := range measured {
		qubits = append(qubits, q)
	}
	sort.Ints(qubits)

	state, err := Statevector(c)
	if err != nil {
		return nil, errors.Wrapf(err, "simulate %q", c.Name)
	}

	errnie.Info("sampling %d shots of %q on %s", shots, c.Name, l.name)

	probs := state.Probabilities()
	cumulative := floats.CumSum(make([]float64, len(probs)), probs)
	total := cumulative[len(cumulative)-1]

	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(backend.Counts)
	for shot := 0; shot < shots; shot++ {
		if shot%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		r := (1 - l.rng.Float64()) * total
		index := sort.SearchFloat64s(cumulative, r)
		if index >= len(cumulative) {
			index = len(cumulative) - 1
		}
		counts[l.bitstring(index, qubits, measured, c.NumClbits())]++
	}
	return counts, nil
}

// bitstring reads the measured qubits of a basis index into classical bits,
// clbit 0 rightmost. Unwritten classical bits stay 0.
func (l *Local) bitstring(index int, qubits []int, measured map[int]int, numClbits int) string {
	bits := []byte(strings.Repeat("0", numClbits))
	for _, q := range qubits {
		clbit := measured[q]
		bit := index >> q & 1
		if l.readoutError > 0 && l.rng.Float64() < l.readoutError {
			bit ^= 1
		}
		if bit == 1 {
			bits[numClbits-1-clbit] = '1'
		}
	}
	return string(bits)
}
