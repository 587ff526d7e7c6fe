package algorithms

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
)

var (
	ErrUnknownDemo   = errors.New("unknown demo")
	ErrInvalidSecret = errors.New("invalid secret string")
)

// Target says where a demo runs by default.
type Target int

const (
	// Local runs on the in-process simulator.
	Local Target = iota
	// RealDevice runs on the least busy operational non-simulator backend.
	RealDevice
	// AnyRemote runs on the least busy backend the account can see.
	AnyRemote
)

func (t Target) String() string {
	switch t {
	case RealDevice:
		return "real-device"
	case AnyRemote:
		return "any-remote"
	}
	return "local"
}

// Filter is the backend filter a remote target selects with.
func (t Target) Filter() backend.Filter {
	if t == RealDevice {
		return backend.Filter{RealOnly: true, OperationalOnly: true}
	}
	return backend.Filter{}
}

// Report is the classical reading of a demo's outcome.
type Report struct {
	Summary string
	Details []string
}

func (r Report) String() string {
	if len(r.Details) == 0 {
		return r.Summary
	}
	return r.Summary + "\n" + strings.Join(r.Details, "\n")
}

/*
Demo is one self-contained algorithm demonstration: how to build its circuit,
how many shots to take, where to run it and how to read the histogram.
*/
type Demo struct {
	Name        string
	Title       string
	Description string
	Shots       int
	Target      Target

	// ReadoutError is the per-bit flip probability used when a remote demo
	// is run on the local simulator instead.
	ReadoutError float64

	Build   func() (*circuit.Circuit, error)
	Analyze func(probs backend.Probabilities) (Report, error)
}

// Params are the tunable inputs shared across demos.
type Params struct {
	BVSecret     string
	SimonSecret  string
	Oracle       string // constant or balanced
	Phase        float64
	Counting     int
	N            int
	A            int
	WorkQubits   int
	SearchQubits int
}

func DefaultParams() Params {
	return Params{
		BVSecret:     "101",
		SimonSecret:  "101",
		Oracle:       "constant",
		Phase:        5.0 / 16.0,
		Counting:     4,
		N:            15,
		A:            7,
		WorkQubits:   4,
		SearchQubits: 3,
	}
}

// All returns every demo configured with p, in a stable order.
func All(p Params) []Demo {
	return []Demo{
		Superposition(),
		Entanglement(),
		Noise(),
		BernsteinVaziraniDemo(p.BVSecret),
		DeutschJozsaDemo(p.Oracle),
		GroverDemo(p.SearchQubits),
		SimonDemo(p.SimonSecret),
		PhaseEstimationDemo(p.Phase, p.Counting),
		ShorDemo(p.N, p.A, p.Counting, p.WorkQubits),
		VQEDemo(),
	}
}

// Names lists the demo names in All order.
func Names() []string {
	demos := All(DefaultParams())
	out := make([]string, len(demos))
	for i, d := range demos {
		out[i] = d.Name
	}
	return out
}

// Lookup finds a demo by name or alias.
func Lookup(name string, p Params) (Demo, error) {
	name = strings.ToLower(strings.ReplaceAll(name, "-", "_"))
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	for _, d := range All(p) {
		if d.Name == name {
			return d, nil
		}
	}

	known := Names()
	sort.Strings(known)
	return Demo{}, errors.Wrapf(ErrUnknownDemo, "%q (known: %s)", name, strings.Join(known, ", "))
}

var aliases = map[string]string{
	"bv":            "bernstein_vazirani",
	"dj":            "deutsch_jozsa",
	"search":        "grover",
	"bell":          "entanglement",
	"qpe":           "phase_estimation",
	"quantum_noise": "noise",
}

func validateSecret(secret string) error {
	if secret == "" || strings.Trim(secret, "01") != "" {
		return errors.Wrapf(ErrInvalidSecret, "%q", secret)
	}
	return nil
}
