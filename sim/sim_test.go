package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
)

func bell() *circuit.Circuit {
	qc := circuit.New(2, 2).Named("bell")
	qc.H(0).CX(0, 1).MeasureAll()
	return qc
}

func TestStatevector(t *testing.T) {
	Convey("Given a Bell preparation", t, func() {
		state, err := Statevector(bell())
		So(err, ShouldBeNil)

		Convey("It should put equal weight on 00 and 11", func() {
			probs := state.Probabilities()
			So(probs[0], ShouldAlmostEqual, 0.5, 1e-12)
			So(probs[3], ShouldAlmostEqual, 0.5, 1e-12)
			So(probs[1]+probs[2], ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("It should compute ⟨Z0·Z1⟩ = 1", func() {
			zz := state.Expectation(func(i int) float64 {
				return float64((1 - 2*(i&1)) * (1 - 2*(i>>1&1)))
			})
			So(zz, ShouldAlmostEqual, 1, 1e-12)
		})
	})

	Convey("Given a swap and a controlled unitary", t, func() {
		qc := circuit.New(3, 0)
		qc.X(0).Swap(0, 2).ControlledUnitary(circuit.Matrix{{0, 1}, {1, 0}}, "NOT", []int{2}, 1)
		state, err := Statevector(qc)
		So(err, ShouldBeNil)

		Convey("It should land on |110⟩", func() {
			So(state.Probabilities()[6], ShouldAlmostEqual, 1, 1e-12)
		})
	})
}

func TestLocal(t *testing.T) {
	Convey("Given a seeded local simulator", t, func() {
		ctx := context.Background()
		sim := NewLocal(WithSeed(42))

		Convey("It should sample the Bell distribution", func() {
			counts, err := sim.Run(ctx, bell(), 1000)
			So(err, ShouldBeNil)
			So(counts.Total(), ShouldEqual, 1000)
			So(counts["00"]+counts["11"], ShouldEqual, 1000)
			So(counts["00"], ShouldBeBetween, 400, 600)

			probs := counts.Probabilities()
			So(probs.Validate(2), ShouldBeNil)
		})

		Convey("It should repeat itself for the same seed", func() {
			a, err := NewLocal(WithSeed(9)).Run(ctx, bell(), 300)
			So(err, ShouldBeNil)
			b, err := NewLocal(WithSeed(9)).Run(ctx, bell(), 300)
			So(err, ShouldBeNil)
			So(a, ShouldResemble, b)
		})

		Convey("It should put classical bit 0 on the right", func() {
			qc := circuit.New(2, 2)
			qc.X(0).MeasureAll()
			counts, err := sim.Run(ctx, qc, 10)
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, backend.Counts{"01": 10})
		})

		Convey("It should honor the clbit mapping", func() {
			qc := circuit.New(2, 2)
			qc.X(0).Measure([]int{0, 1}, []int{1, 0})
			counts, err := sim.Run(ctx, qc, 10)
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, backend.Counts{"10": 10})
		})

		Convey("It should reject circuits without measurements", func() {
			_, err := sim.Run(ctx, circuit.New(1, 0).H(0), 10)
			So(errors.Is(err, ErrNoMeasurements), ShouldBeTrue)
		})

		Convey("It should reject circuits wider than the simulator", func() {
			_, err := NewLocal(WithMaxQubits(1)).Run(ctx, bell(), 10)
			So(errors.Is(err, circuit.ErrTooWide), ShouldBeTrue)
		})

		Convey("It should stop on a cancelled context", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := sim.Run(cancelled, bell(), 10)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})

		Convey("It should describe itself as an operational simulator", func() {
			info, err := sim.Info(ctx)
			So(err, ShouldBeNil)
			So(info.Simulator, ShouldBeTrue)
			So(info.Operational, ShouldBeTrue)
			So(info.Name, ShouldEqual, DefaultName)
		})
	})

	Convey("Given readout noise", t, func() {
		noisy := NewLocal(WithSeed(3), WithReadoutError(0.1), WithName("noisy"))

		Convey("It should leak into the uncorrelated outcomes", func() {
			counts, err := noisy.Run(context.Background(), bell(), 4000)
			So(err, ShouldBeNil)
			leaked := float64(counts["01"]+counts["10"]) / 4000
			So(leaked, ShouldAlmostEqual, 0.18, 0.03)
			So(noisy.Name(), ShouldEqual, "noisy")
		})
	})
}

// distribution returns the exact output probabilities of a gate circuit.
func distribution(qc *circuit.Circuit) []float64 {
	state, err := Statevector(qc)
	So(err, ShouldBeNil)
	return state.Probabilities()
}

func TestTranspile(t *testing.T) {
	sample := func() *circuit.Circuit {
		qc := circuit.New(3, 0).Named("mixed")
		qc.H(0).RY(0.4, 1).RX(1.1, 2).Y(1).S(2).T(0).SX(1).SXdg(2)
		qc.CCX(0, 1, 2).CP(0.9, 2, 0).Swap(0, 1).CZ(1, 2).U(0.3, 1.2, -0.5, 0)
		qc.Compose(circuit.QFT(3, true, true))
		return qc
	}

	for _, basis := range [][]string{
		circuit.DefaultBasis,
		{"rz", "sx", "x", "cz"},
		{"ecr", "id", "rz", "sx", "x"},
	} {
		Convey("Given the basis "+basis[len(basis)-2]+"/"+basis[0], t, func() {
			target := circuit.Target{Name: "device", NumQubits: 5, BasisGates: basis}
			out, err := circuit.Transpile(sample(), target)
			So(err, ShouldBeNil)

			Convey("It should only emit basis gates", func() {
				for name := range out.Count() {
					So(basis, ShouldContain, name)
				}
			})

			Convey("It should preserve the output distribution", func() {
				want, got := distribution(sample()), distribution(out)
				for i := range want {
					So(math.Abs(want[i]-got[i]), ShouldBeLessThan, 1e-9)
				}
			})
		})
	}

	Convey("Given a circuit wider than the device", t, func() {
		_, err := circuit.Transpile(bell(), circuit.Target{Name: "tiny", NumQubits: 1})

		Convey("It should fail with ErrTooWide", func() {
			So(errors.Is(err, circuit.ErrTooWide), ShouldBeTrue)
		})
	})

	Convey("Given an explicit unitary for a device", t, func() {
		qc := circuit.New(1, 0).Unitary(circuit.Identity(2), "I", 0)
		_, err := circuit.Transpile(qc, circuit.Target{Name: "device", NumQubits: 5})

		Convey("It should be unsupported", func() {
			So(errors.Is(err, circuit.ErrUnsupportedGate), ShouldBeTrue)
		})
	})

	Convey("Given a simulator target", t, func() {
		out, err := circuit.Transpile(bell(), circuit.Target{Simulator: true})

		Convey("It should keep the circuit as is", func() {
			So(err, ShouldBeNil)
			So(out.Count(), ShouldResemble, bell().Count())
		})
	})
}
