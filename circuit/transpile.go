package circuit

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

var ErrTooWide = errors.New("circuit wider than target")

// DefaultBasis is the native gate set of current IBM devices.
var DefaultBasis = []string{"rz", "sx", "x", "cx", "measure", "barrier"}

// Target describes what a backend can execute.
type Target struct {
	Name       string
	NumQubits  int
	BasisGates []string
	Simulator  bool
}

func (t Target) basis() []string {
	if len(t.BasisGates) == 0 {
		return DefaultBasis
	}
	return t.BasisGates
}

/*
Transpile rewrites c into the target's basis gates. Every rewrite is an exact
identity up to a global phase, so measurement statistics are preserved.
Simulator targets without an explicit basis accept the circuit unchanged
apart from the width check. Measurements and barriers always pass through;
device basis lists do not name them. Qubit layout is the identity: qubit i of the
circuit runs on physical qubit i.
*/
func Transpile(c *Circuit, target Target) (*Circuit, error) {
	if c.err != nil {
		return nil, c.err
	}
	if target.NumQubits > 0 && c.numQubits > target.NumQubits {
		return nil, errors.Wrapf(
			ErrTooWide, "%d qubits on %s (%d available)", c.numQubits, target.Name, target.NumQubits,
		)
	}

	if target.Simulator && len(target.BasisGates) == 0 {
		out := New(c.numQubits, c.numClbits).Named(c.Name)
		out.Compose(c)
		return out, out.err
	}

	basis := target.basis()
	out := New(c.numQubits, c.numClbits).Named(c.Name)

	var lower func(op Operation, depth int) error
	lower = func(op Operation, depth int) error {
		if op.Name == "measure" || op.Name == "barrier" || slices.Contains(basis, op.Name) {
			if op.Name == "rz" && isZeroAngle(op.Params[0]) {
				return nil
			}
			out.add(op)
			return out.err
		}
		if depth > 8 {
			return errors.Wrapf(ErrUnsupportedGate, "%s does not reduce to %v", op.Name, basis)
		}

		steps, err := decompose(op, basis)
		if err != nil {
			return errors.Wrapf(err, "transpile for %s", target.Name)
		}
		for _, step := range steps {
			if err := lower(step, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, op := range c.ops {
		if err := lower(op.clone(), 0); err != nil {
			return nil, err
		}
	}
	return out, out.err
}

func isZeroAngle(angle float64) bool {
	r := math.Mod(angle, 2*math.Pi)
	return math.Abs(r) < 1e-12 || math.Abs(math.Abs(r)-2*math.Pi) < 1e-12
}

func gate(name string, params []float64, qubits ...int) Operation {
	return Operation{Name: name, Base: name, Qubits: qubits, Params: params}
}

func cx(control, target int) Operation {
	return Operation{Name: "cx", Base: "x", Qubits: []int{control, target}, Controls: 1}
}

func rz(phi float64, q int) Operation {
	return gate("rz", []float64{phi}, q)
}

func u(theta, phi, lambda float64, q int) Operation {
	return gate("u", []float64{theta, phi, lambda}, q)
}

/*
decompose rewrites one operation a single step closer to the basis. Two-qubit
entanglers go through cx, which in turn becomes cz or ecr when the basis has
no cx.
*/
func decompose(op Operation, basis []string) ([]Operation, error) {
	q := op.Qubits
	param := func() float64 { return op.Params[0] }

	switch op.Name {
	case "u":
		theta, phi, lambda := op.Params[0], op.Params[1], op.Params[2]
		return []Operation{
			rz(lambda, q[0]),
			gate("sx", nil, q[0]),
			rz(theta+math.Pi, q[0]),
			gate("sx", nil, q[0]),
			rz(phi+math.Pi, q[0]),
		}, nil
	case "h":
		return []Operation{u(math.Pi/2, 0, math.Pi, q[0])}, nil
	case "x":
		return []Operation{u(math.Pi, 0, math.Pi, q[0])}, nil
	case "y":
		return []Operation{u(math.Pi, math.Pi/2, math.Pi/2, q[0])}, nil
	case "sx":
		return []Operation{u(math.Pi/2, -math.Pi/2, math.Pi/2, q[0])}, nil
	case "sxdg":
		return []Operation{u(-math.Pi/2, -math.Pi/2, math.Pi/2, q[0])}, nil
	case "rx":
		return []Operation{u(param(), -math.Pi/2, math.Pi/2, q[0])}, nil
	case "ry":
		return []Operation{u(param(), 0, 0, q[0])}, nil
	case "z":
		return []Operation{rz(math.Pi, q[0])}, nil
	case "s":
		return []Operation{rz(math.Pi/2, q[0])}, nil
	case "sdg":
		return []Operation{rz(-math.Pi/2, q[0])}, nil
	case "t":
		return []Operation{rz(math.Pi/4, q[0])}, nil
	case "tdg":
		return []Operation{rz(-math.Pi/4, q[0])}, nil
	case "p":
		return []Operation{rz(param(), q[0])}, nil
	case "cx":
		switch {
		case slices.Contains(basis, "cz"):
			return []Operation{
				gate("h", nil, q[1]),
				{Name: "cz", Base: "z", Qubits: []int{q[0], q[1]}, Controls: 1},
				gate("h", nil, q[1]),
			}, nil
		case slices.Contains(basis, "ecr"):
			return []Operation{
				rz(-math.Pi/2, q[0]),
				gate("ry", []float64{math.Pi}, q[0]),
				gate("rx", []float64{math.Pi / 2}, q[1]),
				gate("ecr", nil, q[0], q[1]),
			}, nil
		}
	case "cz":
		return []Operation{gate("h", nil, q[1]), cx(q[0], q[1]), gate("h", nil, q[1])}, nil
	case "cp":
		half := param() / 2
		return []Operation{
			rz(half, q[0]),
			cx(q[0], q[1]),
			rz(-half, q[1]),
			cx(q[0], q[1]),
			rz(half, q[1]),
		}, nil
	case "swap":
		return []Operation{cx(q[0], q[1]), cx(q[1], q[0]), cx(q[0], q[1])}, nil
	case "ccx":
		a, b, t := q[0], q[1], q[2]
		return []Operation{
			gate("h", nil, t),
			cx(b, t), gate("tdg", nil, t),
			cx(a, t), gate("t", nil, t),
			cx(b, t), gate("tdg", nil, t),
			cx(a, t), gate("t", nil, b), gate("t", nil, t),
			gate("h", nil, t),
			cx(a, b), gate("t", nil, a), gate("tdg", nil, b),
			cx(a, b),
		}, nil
	case "rz":
		// Only reached when the basis omits it.
		return nil, errors.Wrapf(ErrUnsupportedGate, "%s missing from basis", op.Name)
	}
	return nil, errors.Wrapf(ErrUnsupportedGate, "%s on %v", op.Name, op.Qubits)
}
