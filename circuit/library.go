package circuit

import (
	"fmt"
	"math"
)

/*
QFT builds the n-qubit quantum Fourier transform on qubits 0..n-1, with qubit 0
as the least significant bit of the transformed integer. With doSwaps false
the output register comes out bit-reversed. The inverse is the exact adjoint
of the forward circuit.
*/
func QFT(n int, inverse, doSwaps bool) *Circuit {
	qft := New(n, 0).Named("qft")

	for j := n - 1; j >= 0; j-- {
		qft.H(j)
		for k := j - 1; k >= 0; k-- {
			qft.CP(math.Pi/math.Pow(2, float64(j-k)), j, k)
		}
	}

	if doSwaps {
		for k := 0; k < n/2; k++ {
			qft.Swap(k, n-k-1)
		}
	}

	if !inverse {
		return qft
	}

	inv, err := qft.Inverse()
	if err != nil {
		return New(n, 0).fail("qft inverse: %v", err)
	}
	inv.Name = "iqft"
	return inv
}

// Diffuser is the Grover diffusion operator 2|s⟩⟨s| - I on n qubits.
func Diffuser(n int) *Circuit {
	d := New(n, 0).Named("diffuser")
	all := Range(n)

	d.H(all...)
	d.X(all...)
	d.H(n - 1)
	d.MCX(Range(n-1), n-1)
	d.H(n - 1)
	d.X(all...)
	d.H(all...)
	return d
}

// PowerLabel names U raised to exponent the way diagrams show it.
func PowerLabel(label string, exponent int) string {
	if exponent == 1 {
		return label
	}
	return fmt.Sprintf("%s^%d", label, exponent)
}
