package circuit

import (
	"math"
	"math/bits"
	"math/cmplx"

	"github.com/pkg/errors"
)

var ErrNotUnitary = errors.New("matrix is not unitary")

/*
Matrix is a dense square complex matrix acting on one or more qubits.
Row and column indices are little-endian over the qubits the matrix is
applied to: bit i of an index belongs to the i-th target qubit.
*/
type Matrix [][]complex128

// Identity returns the dim x dim identity matrix.
func Identity(dim int) Matrix {
	m := zeros(dim)
	for i := 0; i < dim; i++ {
		m[i][i] = 1
	}
	return m
}

func zeros(dim int) Matrix {
	m := make(Matrix, dim)
	for i := range m {
		m[i] = make([]complex128, dim)
	}
	return m
}

// Dim returns the row count.
func (m Matrix) Dim() int {
	return len(m)
}

// Qubits returns the number of qubits the matrix acts on, or -1 when the
// dimension is not a power of two.
func (m Matrix) Qubits() int {
	dim := len(m)
	if dim == 0 || dim&(dim-1) != 0 {
		return -1
	}
	return bits.TrailingZeros(uint(dim))
}

// Mul returns m·o.
func (m Matrix) Mul(o Matrix) Matrix {
	dim := len(m)
	out := zeros(dim)
	for i := 0; i < dim; i++ {
		for k := 0; k < dim; k++ {
			if m[i][k] == 0 {
				continue
			}
			for j := 0; j < dim; j++ {
				out[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return out
}

// Pow raises m to a non-negative integer power by repeated squaring.
func (m Matrix) Pow(exponent int) Matrix {
	result := Identity(len(m))
	base := m.Clone()
	for exponent > 0 {
		if exponent&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		exponent >>= 1
	}
	return result
}

// Dagger returns the conjugate transpose.
func (m Matrix) Dagger() Matrix {
	dim := len(m)
	out := zeros(dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			out[j][i] = cmplx.Conj(m[i][j])
		}
	}
	return out
}

func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for i := range m {
		out[i] = append([]complex128(nil), m[i]...)
	}
	return out
}

// IsUnitary reports whether m·m† equals the identity within tol.
func (m Matrix) IsUnitary(tol float64) bool {
	if m.Qubits() < 0 {
		return false
	}
	for _, row := range m {
		if len(row) != len(m) {
			return false
		}
	}

	product := m.Mul(m.Dagger())
	for i := range product {
		for j := range product[i] {
			want := complex(0, 0)
			if i == j {
				want = 1
			}
			if cmplx.Abs(product[i][j]-want) > tol {
				return false
			}
		}
	}
	return true
}

// Apply multiplies m by a column vector.
func (m Matrix) Apply(vec []complex128) []complex128 {
	out := make([]complex128, len(vec))
	for i, row := range m {
		var sum complex128
		for j, v := range row {
			sum += v * vec[j]
		}
		out[i] = sum
	}
	return out
}

// Phase returns diag(1, e^{iλ}).
func Phase(lambda float64) Matrix {
	return Matrix{{1, 0}, {0, cmplx.Exp(complex(0, lambda))}}
}

/*
gateMatrix returns the matrix for a standard gate name; ecr is the only
two-qubit entry. The second return value is false for names that have no
fixed matrix (measure, barrier, swap and explicit unitaries).
*/
func gateMatrix(name string, params []float64) (Matrix, bool) {
	s := complex(1/math.Sqrt2, 0)
	param := func() float64 {
		if len(params) == 0 {
			return 0
		}
		return params[0]
	}

	switch name {
	case "h":
		return Matrix{{s, s}, {s, -s}}, true
	case "x":
		return Matrix{{0, 1}, {1, 0}}, true
	case "y":
		return Matrix{{0, -1i}, {1i, 0}}, true
	case "z":
		return Matrix{{1, 0}, {0, -1}}, true
	case "s":
		return Phase(math.Pi / 2), true
	case "sdg":
		return Phase(-math.Pi / 2), true
	case "t":
		return Phase(math.Pi / 4), true
	case "tdg":
		return Phase(-math.Pi / 4), true
	case "sx":
		return Matrix{{(1 + 1i) / 2, (1 - 1i) / 2}, {(1 - 1i) / 2, (1 + 1i) / 2}}, true
	case "sxdg":
		return Matrix{{(1 - 1i) / 2, (1 + 1i) / 2}, {(1 + 1i) / 2, (1 - 1i) / 2}}, true
	case "p":
		return Phase(param()), true
	case "rx":
		c, sn := math.Cos(param()/2), math.Sin(param()/2)
		return Matrix{{complex(c, 0), complex(0, -sn)}, {complex(0, -sn), complex(c, 0)}}, true
	case "ry":
		c, sn := math.Cos(param()/2), math.Sin(param()/2)
		return Matrix{{complex(c, 0), complex(-sn, 0)}, {complex(sn, 0), complex(c, 0)}}, true
	case "rz":
		half := param() / 2
		return Matrix{{cmplx.Exp(complex(0, -half)), 0}, {0, cmplx.Exp(complex(0, half))}}, true
	case "ecr":
		return Matrix{
			{0, s, 0, 1i * s},
			{s, 0, -1i * s, 0},
			{0, 1i * s, 0, s},
			{-1i * s, 0, s, 0},
		}, true
	case "u":
		if len(params) < 3 {
			return nil, false
		}
		theta, phi, lambda := params[0], params[1], params[2]
		c, sn := math.Cos(theta/2), math.Sin(theta/2)
		return Matrix{
			{complex(c, 0), -cmplx.Exp(complex(0, lambda)) * complex(sn, 0)},
			{cmplx.Exp(complex(0, phi)) * complex(sn, 0), cmplx.Exp(complex(0, phi+lambda)) * complex(c, 0)},
		}, true
	}
	return nil, false
}
