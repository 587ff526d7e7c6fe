package backend

import (
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

var ErrMalformedResult = errors.New("malformed measurement result")

/*
Counts maps a measured bit-string to how many shots produced it. Classical
bit 0 is the rightmost character of every key.
*/
type Counts map[string]int

// Total returns the number of shots represented.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Probabilities normalizes the counts by their total.
func (c Counts) Probabilities() Probabilities {
	total := c.Total()
	out := make(Probabilities, len(c))
	if total == 0 {
		return out
	}
	for k, n := range c {
		out[k] = float64(n) / float64(total)
	}
	return out
}

// Add folds other into c.
func (c Counts) Add(other Counts) {
	for k, n := range other {
		c[k] += n
	}
}

// Probabilities maps a bit-string to its observed frequency.
type Probabilities map[string]float64

// Keys returns the bit-strings in ascending order.
func (p Probabilities) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the probabilities in Keys order.
func (p Probabilities) Values() []float64 {
	keys := p.Keys()
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = p[k]
	}
	return out
}

func (p Probabilities) Sum() float64 {
	return floats.Sum(p.Values())
}

// MostProbable returns the most frequent bit-string. Ties go to the
// lexicographically smallest key.
func (p Probabilities) MostProbable() (string, float64) {
	keys := p.Keys()
	if len(keys) == 0 {
		return "", 0
	}
	values := p.Values()
	idx := floats.MaxIdx(values)
	return keys[idx], values[idx]
}

// Entropy is the Shannon entropy of the distribution in bits.
func (p Probabilities) Entropy() float64 {
	if len(p) == 0 {
		return 0
	}
	return stat.Entropy(p.Values()) / math.Ln2
}

/*
Validate checks the shape invariants: every key is width characters of 0/1,
every value lies in [0,1] and the values sum to one within tolerance.
*/
func (p Probabilities) Validate(width int) error {
	for k, v := range p {
		if len(k) != width || strings.Trim(k, "01") != "" {
			return errors.Wrapf(ErrMalformedResult, "key %q for %d classical bits", k, width)
		}
		if v < 0 || v > 1 {
			return errors.Wrapf(ErrMalformedResult, "probability %v for %q", v, k)
		}
	}
	if len(p) > 0 && !scalar.EqualWithinAbs(p.Sum(), 1, 1e-9) {
		return errors.Wrapf(ErrMalformedResult, "probabilities sum to %v", p.Sum())
	}
	return nil
}
