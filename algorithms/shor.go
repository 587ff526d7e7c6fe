package algorithms

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
)

/*
ModMul is the permutation unitary |y⟩ → |a·y mod N⟩ on n qubits. Basis
states y ≥ N are left alone so the matrix stays a permutation.
*/
func ModMul(a, modulus, n int) (circuit.Matrix, error) {
	dim := 1 << n
	if modulus < 2 || modulus > dim {
		return nil, errors.Errorf("modulus %d does not fit %d qubits", modulus, n)
	}
	if a <= 0 {
		return nil, errors.Errorf("base %d must be positive", a)
	}
	if gcd(a, modulus) != 1 {
		return nil, errors.Errorf("%d is not coprime with %d", a, modulus)
	}

	m := circuit.Identity(dim)
	for y := 0; y < modulus; y++ {
		m[y][y] = 0
	}
	for y := 0; y < modulus; y++ {
		m[a*y%modulus][y] = 1
	}
	return m, nil
}

/*
Shor is the order-finding circuit for a mod N: counting qubits 0..t-1 drive
controlled multiplications by a^(2^j) on a work register holding |1⟩.
*/
func Shor(modulus, a, counting, work int) (*circuit.Circuit, error) {
	mul, err := ModMul(a, modulus, work)
	if err != nil {
		return nil, err
	}

	workQubits := circuit.Span(counting, counting+work)
	qc := circuit.New(counting+work, counting).Named("shor")
	qc.H(circuit.Range(counting)...)
	qc.X(counting)

	for j := 0; j < counting; j++ {
		power := 1 << j
		label := circuit.PowerLabel(fmt.Sprintf("%dx mod %d", a, modulus), power)
		qc.ControlledUnitary(mul.Pow(power), label, []int{j}, workQubits...)
	}

	qc.Compose(circuit.QFT(counting, true, true), circuit.Range(counting)...)
	qc.Measure(circuit.Range(counting), circuit.Range(counting))
	return qc, qc.Err()
}

// Convergents lists the continued-fraction convergents of num/den.
func Convergents(num, den int64) []*big.Rat {
	var (
		out        []*big.Rat
		h0, h1     = big.NewInt(0), big.NewInt(1)
		k0, k1     = big.NewInt(1), big.NewInt(0)
		p, q       = big.NewInt(num), big.NewInt(den)
		quot, rest = new(big.Int), new(big.Int)
	)

	for q.Sign() != 0 {
		quot.DivMod(p, q, rest)
		h0, h1 = h1, new(big.Int).Add(new(big.Int).Mul(quot, h1), h0)
		k0, k1 = k1, new(big.Int).Add(new(big.Int).Mul(quot, k1), k0)
		out = append(out, new(big.Rat).SetFrac(h1, k1))
		p, q = q, new(big.Int).Set(rest)
	}
	return out
}

// Period guesses the order of a mod N from a measured phase k/2^t.
func Period(k int64, counting int, a, modulus int) (int, bool) {
	if k == 0 {
		return 0, false
	}

	for _, c := range Convergents(k, int64(1)<<counting) {
		r := int(c.Denom().Int64())
		if r > modulus {
			break
		}
		if r < 2 {
			continue
		}
		for mult := r; mult <= modulus; mult += r {
			if powMod(a, mult, modulus) == 1 {
				return mult, true
			}
		}
	}
	return 0, false
}

// Factors turns an even period r into the pair gcd(a^(r/2) ± 1, N).
func Factors(a, r, modulus int) (int, int, bool) {
	if r%2 != 0 {
		return 0, 0, false
	}
	half := powMod(a, r/2, modulus)
	if half == modulus-1 {
		return 0, 0, false
	}
	p, q := gcd(half-1, modulus), gcd(half+1, modulus)
	if p == 1 || q == 1 || p == modulus || q == modulus {
		return 0, 0, false
	}
	return p, q, true
}

func ShorDemo(modulus, a, counting, work int) Demo {
	return Demo{
		Name:        "shor",
		Title:       "Shor's Algorithm Results",
		Description: fmt.Sprintf("order finding for %d mod %d", a, modulus),
		Shots:       1000,
		Target:      Local,
		Build: func() (*circuit.Circuit, error) {
			return Shor(modulus, a, counting, work)
		},
		Analyze: func(probs backend.Probabilities) (Report, error) {
			report := Report{Summary: fmt.Sprintf("no period found for %d mod %d", a, modulus)}

			for _, bits := range byProbability(probs) {
				k, err := strconv.ParseInt(bits, 2, 64)
				if err != nil {
					return Report{}, errors.Wrapf(err, "counting register %q", bits)
				}
				phase := float64(k) / float64(int64(1)<<len(bits))
				report.Details = append(report.Details, fmt.Sprintf("%s → phase %g", bits, phase))

				r, ok := Period(k, counting, a, modulus)
				if !ok {
					continue
				}
				if p, q, ok := Factors(a, r, modulus); ok {
					report.Summary = fmt.Sprintf("period %d, factors of %d: %d × %d", r, modulus, p, q)
					return report, nil
				}
			}
			return report, nil
		},
	}
}

// byProbability orders outcomes most likely first, then by key.
func byProbability(probs backend.Probabilities) []string {
	keys := probs.Keys()
	sort.SliceStable(keys, func(i, j int) bool { return probs[keys[i]] > probs[keys[j]] })
	return keys
}

func gcd(a, b int) int {
	if a < 0 {
		a = -a
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func powMod(base, exp, modulus int) int {
	result := 1 % modulus
	base %= modulus
	for exp > 0 {
		if exp&1 == 1 {
			result = result * base % modulus
		}
		base = base * base % modulus
		exp >>= 1
	}
	return result
}
