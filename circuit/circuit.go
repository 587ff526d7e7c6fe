package circuit

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

var (
	ErrInvalidOperation = errors.New("invalid circuit operation")
	ErrNotExportable    = errors.New("operation cannot be exported")
	ErrUnsupportedGate  = errors.New("unsupported gate")
)

// Operation is one instruction placed on the circuit.
type Operation struct {
	Name     string    // exported name: h, cx, ccx, mcx, cp, unitary, measure, ...
	Base     string    // gate applied to the targets once all controls are set
	Qubits   []int     // controls first, then targets
	Controls int       // number of leading control qubits
	Clbits   []int     // measure only
	Params   []float64 // rotation angles
	Unitary  Matrix    // explicit matrix for unitary ops
	Label    string
}

// ControlQubits returns the control part of Qubits.
func (op Operation) ControlQubits() []int {
	return op.Qubits[:op.Controls]
}

// TargetQubits returns the target part of Qubits.
func (op Operation) TargetQubits() []int {
	return op.Qubits[op.Controls:]
}

// Matrix returns the matrix acting on the target qubits.
func (op Operation) Matrix() (Matrix, error) {
	if op.Unitary != nil {
		return op.Unitary, nil
	}
	if m, ok := gateMatrix(op.Base, op.Params); ok {
		return m, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedGate, "%s has no matrix", op.Name)
}

// IsGate reports whether the operation changes the quantum state.
func (op Operation) IsGate() bool {
	return op.Name != "measure" && op.Name != "barrier"
}

func (op Operation) clone() Operation {
	op.Qubits = slices.Clone(op.Qubits)
	op.Clbits = slices.Clone(op.Clbits)
	op.Params = slices.Clone(op.Params)
	return op
}

/*
Circuit is an ordered list of operations on a fixed register of qubits and
classical bits. Builder methods never panic: the first invalid operation is
remembered and reported by Err, and every later call is ignored.
*/
type Circuit struct {
	Name string

	numQubits int
	numClbits int
	ops       []Operation
	measured  map[int]int // qubit -> clbit
	written   map[int]bool
	err       error
}

// New creates an empty circuit.
func New(numQubits, numClbits int) *Circuit {
	c := &Circuit{
		numQubits: numQubits,
		numClbits: numClbits,
		measured:  make(map[int]int),
		written:   make(map[int]bool),
	}
	if numQubits <= 0 || numClbits < 0 {
		c.err = errors.Wrapf(ErrInvalidOperation, "register sizes %d/%d", numQubits, numClbits)
	}
	return c
}

// Named sets the circuit name and returns the circuit.
func (c *Circuit) Named(name string) *Circuit {
	c.Name = name
	return c
}

func (c *Circuit) NumQubits() int { return c.numQubits }
func (c *Circuit) NumClbits() int { return c.numClbits }
func (c *Circuit) Err() error     { return c.err }

// Operations returns a copy of the instruction list.
func (c *Circuit) Operations() []Operation {
	out := make([]Operation, len(c.ops))
	for i, op := range c.ops {
		out[i] = op.clone()
	}
	return out
}

// Measurements returns the qubit to classical bit map.
func (c *Circuit) Measurements() map[int]int {
	out := make(map[int]int, len(c.measured))
	for q, b := range c.measured {
		out[q] = b
	}
	return out
}

// Size counts the gate operations, ignoring measures and barriers.
func (c *Circuit) Size() int {
	n := 0
	for _, op := range c.ops {
		if op.IsGate() {
			n++
		}
	}
	return n
}

// Depth is the length of the critical path through the gate operations.
func (c *Circuit) Depth() int {
	levels := make([]int, c.numQubits)
	depth := 0
	for _, op := range c.ops {
		if op.Name == "barrier" {
			continue
		}
		level := 0
		for _, q := range op.Qubits {
			level = max(level, levels[q])
		}
		level++
		for _, q := range op.Qubits {
			levels[q] = level
		}
		depth = max(depth, level)
	}
	return depth
}

// Count tallies operations by name.
func (c *Circuit) Count() map[string]int {
	out := make(map[string]int)
	for _, op := range c.ops {
		out[op.Name]++
	}
	return out
}

/*
Validate returns the first builder error, or an error when a declared
classical bit is never written by a measurement.
*/
func (c *Circuit) Validate() error {
	if c.err != nil {
		return c.err
	}
	for b := 0; b < c.numClbits; b++ {
		if !c.written[b] {
			return errors.Wrapf(ErrInvalidOperation, "clbit %d is never measured", b)
		}
	}
	return nil
}

func (c *Circuit) fail(format string, args ...any) *Circuit {
	if c.err == nil {
		c.err = errors.Wrap(ErrInvalidOperation, fmt.Sprintf(format, args...))
	}
	return c
}

func (c *Circuit) add(op Operation) *Circuit {
	if c.err != nil {
		return c
	}

	seen := make(map[int]bool, len(op.Qubits))
	for _, q := range op.Qubits {
		if q < 0 || q >= c.numQubits {
			return c.fail("%s: qubit %d out of range [0,%d)", op.Name, q, c.numQubits)
		}
		if seen[q] {
			return c.fail("%s: duplicate qubit %d", op.Name, q)
		}
		seen[q] = true
		if _, ok := c.measured[q]; ok && op.IsGate() {
			return c.fail("%s: qubit %d already measured", op.Name, q)
		}
	}

	if op.Name == "measure" {
		if len(op.Qubits) != len(op.Clbits) {
			return c.fail("measure: %d qubits but %d clbits", len(op.Qubits), len(op.Clbits))
		}
		for i, b := range op.Clbits {
			if b < 0 || b >= c.numClbits {
				return c.fail("measure: clbit %d out of range [0,%d)", b, c.numClbits)
			}
			if c.written[b] {
				return c.fail("measure: clbit %d written twice", b)
			}
			if _, ok := c.measured[op.Qubits[i]]; ok {
				return c.fail("measure: qubit %d measured twice", op.Qubits[i])
			}
		}
		for i, q := range op.Qubits {
			c.measured[q] = op.Clbits[i]
			c.written[op.Clbits[i]] = true
		}
	}

	c.ops = append(c.ops, op)
	return c
}

func (c *Circuit) single(name string, params []float64, qubits []int) *Circuit {
	for _, q := range qubits {
		c.add(Operation{Name: name, Base: name, Qubits: []int{q}, Params: slices.Clone(params)})
	}
	return c
}

func (c *Circuit) H(qubits ...int) *Circuit    { return c.single("h", nil, qubits) }
func (c *Circuit) X(qubits ...int) *Circuit    { return c.single("x", nil, qubits) }
func (c *Circuit) Y(qubits ...int) *Circuit    { return c.single("y", nil, qubits) }
func (c *Circuit) Z(qubits ...int) *Circuit    { return c.single("z", nil, qubits) }
func (c *Circuit) S(qubits ...int) *Circuit    { return c.single("s", nil, qubits) }
func (c *Circuit) Sdg(qubits ...int) *Circuit  { return c.single("sdg", nil, qubits) }
func (c *Circuit) T(qubits ...int) *Circuit    { return c.single("t", nil, qubits) }
func (c *Circuit) Tdg(qubits ...int) *Circuit  { return c.single("tdg", nil, qubits) }
func (c *Circuit) SX(qubits ...int) *Circuit   { return c.single("sx", nil, qubits) }
func (c *Circuit) SXdg(qubits ...int) *Circuit { return c.single("sxdg", nil, qubits) }

func (c *Circuit) RX(theta float64, qubits ...int) *Circuit {
	return c.single("rx", []float64{theta}, qubits)
}

func (c *Circuit) RY(theta float64, qubits ...int) *Circuit {
	return c.single("ry", []float64{theta}, qubits)
}

func (c *Circuit) RZ(phi float64, qubits ...int) *Circuit {
	return c.single("rz", []float64{phi}, qubits)
}

func (c *Circuit) P(lambda float64, qubits ...int) *Circuit {
	return c.single("p", []float64{lambda}, qubits)
}

// U applies the generic single-qubit rotation U(θ, φ, λ).
func (c *Circuit) U(theta, phi, lambda float64, qubit int) *Circuit {
	return c.single("u", []float64{theta, phi, lambda}, []int{qubit})
}

func (c *Circuit) CX(control, target int) *Circuit {
	return c.add(Operation{Name: "cx", Base: "x", Qubits: []int{control, target}, Controls: 1})
}

func (c *Circuit) CZ(control, target int) *Circuit {
	return c.add(Operation{Name: "cz", Base: "z", Qubits: []int{control, target}, Controls: 1})
}

func (c *Circuit) CP(lambda float64, control, target int) *Circuit {
	return c.add(Operation{
		Name: "cp", Base: "p", Qubits: []int{control, target}, Controls: 1, Params: []float64{lambda},
	})
}

func (c *Circuit) CCX(control0, control1, target int) *Circuit {
	return c.add(Operation{Name: "ccx", Base: "x", Qubits: []int{control0, control1, target}, Controls: 2})
}

// MCX applies X to target when every control is set. One or two controls
// are recorded as cx and ccx respectively.
func (c *Circuit) MCX(controls []int, target int) *Circuit {
	switch len(controls) {
	case 0:
		return c.X(target)
	case 1:
		return c.CX(controls[0], target)
	case 2:
		return c.CCX(controls[0], controls[1], target)
	}
	qubits := append(slices.Clone(controls), target)
	return c.add(Operation{Name: "mcx", Base: "x", Qubits: qubits, Controls: len(controls)})
}

// ECR is the echoed cross-resonance gate native to IBM Eagle devices.
func (c *Circuit) ECR(a, b int) *Circuit {
	return c.add(Operation{Name: "ecr", Base: "ecr", Qubits: []int{a, b}})
}

func (c *Circuit) Swap(a, b int) *Circuit {
	return c.add(Operation{Name: "swap", Base: "swap", Qubits: []int{a, b}})
}

// Unitary applies an explicit matrix to targets.
func (c *Circuit) Unitary(m Matrix, label string, targets ...int) *Circuit {
	return c.ControlledUnitary(m, label, nil, targets...)
}

// ControlledUnitary applies m to targets when every control is set.
func (c *Circuit) ControlledUnitary(m Matrix, label string, controls []int, targets ...int) *Circuit {
	if c.err != nil {
		return c
	}
	if m.Qubits() != len(targets) {
		return c.fail("unitary %q: %dx%d matrix on %d qubits", label, m.Dim(), m.Dim(), len(targets))
	}
	if !m.IsUnitary(1e-9) {
		c.err = errors.Wrapf(ErrNotUnitary, "unitary %q", label)
		return c
	}
	qubits := append(slices.Clone(controls), targets...)
	return c.add(Operation{
		Name: "unitary", Base: "unitary", Qubits: qubits, Controls: len(controls),
		Unitary: m.Clone(), Label: label,
	})
}

// Measure records qubits[i] into clbits[i].
func (c *Circuit) Measure(qubits, clbits []int) *Circuit {
	return c.add(Operation{Name: "measure", Qubits: slices.Clone(qubits), Clbits: slices.Clone(clbits)})
}

// MeasureAll measures qubit i into clbit i for every qubit that fits.
func (c *Circuit) MeasureAll() *Circuit {
	n := min(c.numQubits, c.numClbits)
	return c.Measure(Range(n), Range(n))
}

// Barrier is a visual separator. Without arguments it spans every qubit.
func (c *Circuit) Barrier(qubits ...int) *Circuit {
	if len(qubits) == 0 {
		qubits = Range(c.numQubits)
	}
	return c.add(Operation{Name: "barrier", Qubits: slices.Clone(qubits)})
}

/*
Compose appends every operation of other onto c. Qubit i of other lands on
qubits[i]; without a mapping the identity is used. Classical bits map one to
one.
*/
func (c *Circuit) Compose(other *Circuit, qubits ...int) *Circuit {
	if c.err != nil {
		return c
	}
	if other.err != nil {
		c.err = errors.Wrap(other.err, "compose")
		return c
	}
	if len(qubits) == 0 {
		qubits = Range(other.numQubits)
	}
	if len(qubits) != other.numQubits {
		return c.fail("compose: %d qubit mapping for %d-qubit circuit", len(qubits), other.numQubits)
	}

	for _, op := range other.ops {
		mapped := op.clone()
		for i, q := range mapped.Qubits {
			mapped.Qubits[i] = qubits[q]
		}
		c.add(mapped)
	}
	return c
}

/*
Inverse returns the adjoint of a circuit made only of gates and barriers.
*/
func (c *Circuit) Inverse() (*Circuit, error) {
	if c.err != nil {
		return nil, c.err
	}

	inv := New(c.numQubits, c.numClbits)
	if c.Name != "" {
		inv.Name = c.Name + "_dg"
	}

	for i := len(c.ops) - 1; i >= 0; i-- {
		op := c.ops[i].clone()
		switch op.Name {
		case "measure":
			return nil, errors.Wrap(ErrInvalidOperation, "inverse of a measured circuit")
		case "s", "t", "sx":
			op.Name += "dg"
			op.Base = op.Name
		case "sdg", "tdg", "sxdg":
			op.Name = op.Name[:len(op.Name)-2]
			op.Base = op.Name
		case "rx", "ry", "rz", "p", "cp":
			op.Params[0] = -op.Params[0]
		case "u":
			op.Params[0], op.Params[1], op.Params[2] = -op.Params[0], -op.Params[2], -op.Params[1]
		case "unitary":
			op.Unitary = op.Unitary.Dagger()
			if op.Label != "" {
				op.Label += "†"
			}
		}
		inv.add(op)
	}
	return inv, inv.err
}

// Range returns [0, n).
func Range(n int) []int {
	return Span(0, n)
}

// Span returns [from, to).
func Span(from, to int) []int {
	out := make([]int, 0, max(0, to-from))
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// Reversed returns a reversed copy.
func Reversed(in []int) []int {
	out := slices.Clone(in)
	slices.Reverse(out)
	return out
}
