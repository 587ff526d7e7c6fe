package circuit

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Draw renders the circuit as a text diagram, one wire per qubit and one
// column per operation.
func Draw(c *Circuit) string {
	rows := make([][]string, c.numQubits)

	for _, op := range c.ops {
		cells := make([]string, c.numQubits)
		lo, hi := c.numQubits, -1
		for _, q := range op.Qubits {
			lo, hi = min(lo, q), max(hi, q)
		}

		for i, q := range op.Qubits {
			cells[q] = cellLabel(op, i)
		}
		if op.Name != "barrier" && op.Name != "measure" {
			for q := lo + 1; q < hi; q++ {
				if cells[q] == "" {
					cells[q] = "│"
				}
			}
		}

		width := 1
		for _, cell := range cells {
			width = max(width, utf8.RuneCountInString(cell))
		}
		for q := range rows {
			rows[q] = append(rows[q], pad(cells[q], width))
		}
	}

	var b strings.Builder
	if c.Name != "" {
		fmt.Fprintf(&b, "%s\n", c.Name)
	}
	labelWidth := len(fmt.Sprintf("q%d", c.numQubits-1))
	for q, row := range rows {
		fmt.Fprintf(&b, "%-*s: ─", labelWidth, fmt.Sprintf("q%d", q))
		b.WriteString(strings.Join(row, "─"))
		b.WriteString("─\n")
	}
	if c.numClbits > 0 {
		fmt.Fprintf(&b, "%-*s: %d/\n", labelWidth, "c", c.numClbits)
	}
	return b.String()
}

func cellLabel(op Operation, index int) string {
	switch op.Name {
	case "measure":
		return fmt.Sprintf("M%d", op.Clbits[index])
	case "barrier":
		return "░"
	case "swap":
		return "x"
	}

	if index < op.Controls {
		return "■"
	}

	label := strings.ToUpper(op.Base)
	if op.Name == "unitary" {
		label = op.Label
		if label == "" {
			label = "U"
		}
	}
	if len(op.Params) > 0 {
		parts := make([]string, len(op.Params))
		for i, p := range op.Params {
			parts[i] = fmt.Sprintf("%.3g", p)
		}
		label += "(" + strings.Join(parts, ",") + ")"
	}
	return label
}

func pad(cell string, width int) string {
	fill := "─"
	if cell == "" {
		return strings.Repeat(fill, width)
	}
	n := utf8.RuneCountInString(cell)
	left := (width - n) / 2
	return strings.Repeat(fill, left) + cell + strings.Repeat(fill, width-n-left)
}
