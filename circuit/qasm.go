package circuit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var qasm2Names = map[string]string{
	"p":  "u1",
	"cp": "cu1",
	"u":  "u3",
}

/*
ecrDefinition spells out the echoed cross-resonance gate, which neither
qelib1.inc nor stdgates.inc declare, as rzx(pi/4), x on the control, then
rzx(-pi/4), with each rzx written in h, cx and rz.
*/
const ecrDefinition = `gate ecr a, b {
  h b; cx a, b; rz(pi/4) b; cx a, b; h b;
  x a;
  h b; cx a, b; rz(-pi/4) b; cx a, b; h b;
}
`

func writeDefinitions(b *strings.Builder, c *Circuit) {
	for _, op := range c.ops {
		if op.Name == "ecr" {
			b.WriteString(ecrDefinition)
			return
		}
	}
}

// QASM2 exports the circuit as OpenQASM 2.0 against qelib1.inc.
func QASM2(c *Circuit) (string, error) {
	if c.err != nil {
		return "", c.err
	}

	var b strings.Builder
	b.WriteString("OPENQASM 2.0;\n")
	b.WriteString("include \"qelib1.inc\";\n")
	writeDefinitions(&b, c)
	fmt.Fprintf(&b, "qreg q[%d];\n", c.numQubits)
	if c.numClbits > 0 {
		fmt.Fprintf(&b, "creg c[%d];\n", c.numClbits)
	}

	for _, op := range c.ops {
		switch op.Name {
		case "measure":
			for i, q := range op.Qubits {
				fmt.Fprintf(&b, "measure q[%d] -> c[%d];\n", q, op.Clbits[i])
			}
			continue
		case "unitary", "mcx":
			return "", errors.Wrapf(ErrNotExportable, "%s on %v", op.Name, op.Qubits)
		}

		name := op.Name
		if alias, ok := qasm2Names[name]; ok {
			name = alias
		}
		b.WriteString(name)
		b.WriteString(formatParams(op.Params))
		b.WriteString(" ")
		b.WriteString(formatQubits(op.Qubits))
		b.WriteString(";\n")
	}
	return b.String(), nil
}

/*
QASM3 exports the circuit as OpenQASM 3 against stdgates.inc, the dialect the
runtime sampler accepts. Multi-controlled X uses the ctrl modifier, sxdg is
written as the inverse of sx and ecr gets a gate definition.
*/
func QASM3(c *Circuit) (string, error) {
	if c.err != nil {
		return "", c.err
	}

	var b strings.Builder
	b.WriteString("OPENQASM 3.0;\n")
	b.WriteString("include \"stdgates.inc\";\n")
	writeDefinitions(&b, c)
	if c.numClbits > 0 {
		fmt.Fprintf(&b, "bit[%d] c;\n", c.numClbits)
	}
	fmt.Fprintf(&b, "qubit[%d] q;\n", c.numQubits)

	for _, op := range c.ops {
		switch op.Name {
		case "measure":
			for i, q := range op.Qubits {
				fmt.Fprintf(&b, "c[%d] = measure q[%d];\n", op.Clbits[i], q)
			}
			continue
		case "unitary":
			return "", errors.Wrapf(ErrNotExportable, "unitary %q on %v", op.Label, op.Qubits)
		case "mcx":
			fmt.Fprintf(&b, "ctrl(%d) @ x %s;\n", op.Controls, formatQubits(op.Qubits))
			continue
		case "sxdg":
			fmt.Fprintf(&b, "inv @ sx %s;\n", formatQubits(op.Qubits))
			continue
		case "u":
			fmt.Fprintf(&b, "U%s %s;\n", formatParams(op.Params), formatQubits(op.Qubits))
			continue
		}

		b.WriteString(op.Name)
		b.WriteString(formatParams(op.Params))
		b.WriteString(" ")
		b.WriteString(formatQubits(op.Qubits))
		b.WriteString(";\n")
	}
	return b.String(), nil
}

func formatParams(params []float64) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatQubits(qubits []int) string {
	parts := make([]string, len(qubits))
	for i, q := range qubits {
		parts[i] = fmt.Sprintf("q[%d]", q)
	}
	return strings.Join(parts, ", ")
}
