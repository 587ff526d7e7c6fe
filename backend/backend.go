package backend

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/circuit"
)

var ErrNoBackend = errors.New("no quantum backend available")

// Info describes a backend at the moment it was queried.
type Info struct {
	Name        string
	NumQubits   int
	Simulator   bool
	Operational bool
	PendingJobs int
	BasisGates  []string
	Version     string
}

// Target converts the descriptor into transpiler input.
func (i Info) Target() circuit.Target {
	return circuit.Target{
		Name:       i.Name,
		NumQubits:  i.NumQubits,
		BasisGates: i.BasisGates,
		Simulator:  i.Simulator,
	}
}

/*
Backend executes circuits. Run blocks until the counts are available or ctx
is done; implementations decide whether the circuit must be transpiled first.
*/
type Backend interface {
	Name() string
	Info(ctx context.Context) (Info, error)
	Run(ctx context.Context, c *circuit.Circuit, shots int) (Counts, error)
}

// Provider lists the backends reachable through one account or process.
type Provider interface {
	Backends(ctx context.Context) ([]Backend, error)
}

// Filter narrows a backend listing.
type Filter struct {
	RealOnly        bool
	SimulatorOnly   bool
	OperationalOnly bool
	MinQubits       int
}

func (f Filter) Matches(info Info) bool {
	switch {
	case f.RealOnly && info.Simulator:
		return false
	case f.SimulatorOnly && !info.Simulator:
		return false
	case f.OperationalOnly && !info.Operational:
		return false
	case info.NumQubits > 0 && info.NumQubits < f.MinQubits:
		return false
	}
	return true
}

// Candidate pairs a backend with the status it reported.
type Candidate struct {
	Backend Backend
	Info    Info
}

/*
Survey queries every backend and keeps those matching f, ordered by queue
length and then name. Backends whose status cannot be read are skipped.
*/
func Survey(ctx context.Context, backends []Backend, f Filter) []Candidate {
	out := make([]Candidate, 0, len(backends))
	for _, b := range backends {
		info, err := b.Info(ctx)
		if err != nil {
			continue
		}
		if f.Matches(info) {
			out = append(out, Candidate{Backend: b, Info: info})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Info.PendingJobs != out[j].Info.PendingJobs {
			return out[i].Info.PendingJobs < out[j].Info.PendingJobs
		}
		return out[i].Info.Name < out[j].Info.Name
	})
	return out
}

// LeastBusy picks the matching backend with the shortest queue.
func LeastBusy(ctx context.Context, backends []Backend, f Filter) (Candidate, error) {
	candidates := Survey(ctx, backends, f)
	if len(candidates) == 0 {
		return Candidate{}, errors.Wrapf(ErrNoBackend, "%d backends surveyed", len(backends))
	}
	return candidates[0], nil
}
