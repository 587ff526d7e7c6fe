package algorithms

import (
	"context"
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
	"github.com/theapemachine/qdemo/sim"
)

func sample(qc *circuit.Circuit, shots int) backend.Probabilities {
	counts, err := sim.NewLocal(sim.WithSeed(7)).Run(context.Background(), qc, shots)
	So(err, ShouldBeNil)
	So(counts.Total(), ShouldEqual, shots)
	return counts.Probabilities()
}

func TestBasics(t *testing.T) {
	Convey("Given the superposition circuit", t, func() {
		probs := sample(SuperpositionCircuit(), 2000)

		Convey("It should split roughly evenly", func() {
			So(probs["0"], ShouldAlmostEqual, 0.5, 0.05)
			So(probs["1"], ShouldAlmostEqual, 0.5, 0.05)
		})
	})

	Convey("Given the Bell circuit", t, func() {
		probs := sample(BellCircuit(), 2000)

		Convey("It should only produce correlated outcomes", func() {
			So(probs.Keys(), ShouldResemble, []string{"00", "11"})
			So(probs.Sum(), ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("It should report no error rate", func() {
			report, err := bellReport(probs)
			So(err, ShouldBeNil)
			So(report.Summary, ShouldContainSubstring, "error rate: 0.000")
		})
	})
}

func TestBernsteinVazirani(t *testing.T) {
	Convey("Given a secret string", t, func() {
		for _, secret := range []string{"101", "110", "0011"} {
			qc, err := BernsteinVazirani(secret)
			So(err, ShouldBeNil)

			Convey("It should recover "+secret+" with certainty", func() {
				probs := sample(qc, 200)
				found, p := probs.MostProbable()
				So(found, ShouldEqual, secret)
				So(p, ShouldEqual, 1)

				report, err := BernsteinVaziraniDemo(secret).Analyze(probs)
				So(err, ShouldBeNil)
				So(report.Summary, ShouldEqual, "Secret string found: "+secret)
			})
		}
	})

	Convey("Given a malformed secret", t, func() {
		_, err := BernsteinVazirani("10a")

		Convey("It should be rejected", func() {
			So(errors.Is(err, ErrInvalidSecret), ShouldBeTrue)
		})
	})
}

func TestDeutschJozsa(t *testing.T) {
	Convey("Given the constant oracle", t, func() {
		demo := DeutschJozsaDemo("constant")
		qc, err := demo.Build()
		So(err, ShouldBeNil)
		probs := sample(qc, 500)

		Convey("It should always measure 000", func() {
			So(probs["000"], ShouldEqual, 1)
			report, _ := demo.Analyze(probs)
			So(report.Summary, ShouldEqual, "Function is CONSTANT")
		})
	})

	Convey("Given the balanced oracle", t, func() {
		demo := DeutschJozsaDemo("balanced")
		qc, err := demo.Build()
		So(err, ShouldBeNil)
		probs := sample(qc, 500)

		Convey("It should always measure 111", func() {
			So(probs["111"], ShouldEqual, 1)
			report, _ := demo.Analyze(probs)
			So(report.Summary, ShouldEqual, "Function is BALANCED")
		})
	})

	Convey("Given an unknown oracle kind", t, func() {
		_, err := DeutschJozsaDemo("random").Build()

		Convey("It should fail to build", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestGrover(t *testing.T) {
	Convey("Given a three qubit search for 111", t, func() {
		So(GroverIterations(3), ShouldEqual, 2)

		qc, err := Grover(3, MarkAllOnes(3), GroverIterations(3))
		So(err, ShouldBeNil)

		Convey("It should amplify the marked state", func() {
			state, err := sim.Statevector(qc)
			So(err, ShouldBeNil)
			So(state.Probabilities()[7], ShouldAlmostEqual, 0.9453125, 1e-9)

			probs := sample(qc, 4000)
			found, p := probs.MostProbable()
			So(found, ShouldEqual, "111")
			So(p, ShouldAlmostEqual, 0.945, 0.03)
		})
	})
}

func TestSimon(t *testing.T) {
	Convey("Given the secret 101", t, func() {
		qc, err := Simon("101")
		So(err, ShouldBeNil)
		probs := sample(qc, 2000)

		Convey("It should only observe strings orthogonal to the secret", func() {
			So(probs.Keys(), ShouldResemble, []string{"000", "010", "101", "111"})
			for _, z := range probs.Keys() {
				So(Dot("101", z), ShouldEqual, 0)
			}
		})

		Convey("It should solve for the secret", func() {
			So(SolveSimon(3, probs.Keys()), ShouldResemble, []string{"101"})

			report, err := SimonDemo("101").Analyze(probs)
			So(err, ShouldBeNil)
			So(report.Details, ShouldContain, "101 · 111 = 0 (mod 2)")
			So(report.Details, ShouldContain, "recovered secret: 101")
		})
	})

	Convey("Given an asymmetric secret", t, func() {
		qc, err := Simon("110")
		So(err, ShouldBeNil)

		Convey("It should still respect s·z = 0", func() {
			for _, z := range sample(qc, 1000).Keys() {
				So(Dot("110", z), ShouldEqual, 0)
			}
		})
	})

	Convey("Given an all zero secret", t, func() {
		_, err := Simon("000")

		Convey("It should be rejected", func() {
			So(errors.Is(err, ErrInvalidSecret), ShouldBeTrue)
		})
	})
}

func TestPhaseEstimation(t *testing.T) {
	Convey("Given φ = 5/16 and four counting qubits", t, func() {
		qc, err := PhaseEstimation(5.0/16.0, 4)
		So(err, ShouldBeNil)
		probs := sample(qc, 1000)

		Convey("It should read 0101 with certainty", func() {
			So(probs["0101"], ShouldEqual, 1)

			phase, err := PhaseFromBits("0101")
			So(err, ShouldBeNil)
			So(phase, ShouldEqual, 0.3125)
		})

		Convey("It should report the estimate", func() {
			report, err := PhaseEstimationDemo(5.0/16.0, 4).Analyze(probs)
			So(err, ShouldBeNil)
			So(report.Summary, ShouldEqual, "Estimated phase: 0.3125")
		})
	})

	Convey("Given a phase outside [0, 1)", t, func() {
		_, err := PhaseEstimation(1.5, 4)

		Convey("It should be rejected", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestShor(t *testing.T) {
	Convey("Given order finding for 7 mod 15", t, func() {
		qc, err := Shor(15, 7, 4, 4)
		So(err, ShouldBeNil)

		Convey("It should only measure multiples of 2^t/4", func() {
			state, err := sim.Statevector(qc)
			So(err, ShouldBeNil)
			So(state.NumQubits, ShouldEqual, 8)

			probs := sample(qc, 2000)
			So(probs.Keys(), ShouldResemble, []string{"0000", "0100", "1000", "1100"})
			for _, p := range probs.Values() {
				So(p, ShouldAlmostEqual, 0.25, 0.05)
			}
		})

		Convey("It should recover the period and factors", func() {
			r, ok := Period(4, 4, 7, 15)
			So(ok, ShouldBeTrue)
			So(r, ShouldEqual, 4)

			p, q, ok := Factors(7, r, 15)
			So(ok, ShouldBeTrue)
			So([]int{p, q}, ShouldResemble, []int{3, 5})

			report, err := ShorDemo(15, 7, 4, 4).Analyze(backend.Probabilities{"0100": 0.5, "0000": 0.5})
			So(err, ShouldBeNil)
			So(report.Summary, ShouldEqual, "period 4, factors of 15: 3 × 5")
		})
	})

	Convey("Given the modular multiplication matrix", t, func() {
		m, err := ModMul(7, 15, 4)
		So(err, ShouldBeNil)

		Convey("It should be a unitary permutation of order 4", func() {
			So(m.IsUnitary(1e-12), ShouldBeTrue)
			So(m.Pow(4).IsUnitary(1e-12), ShouldBeTrue)
			So(real(m.Pow(4)[1][1]), ShouldEqual, 1)
			So(real(m[7][1]), ShouldEqual, 1)
		})

		Convey("It should reject a non-coprime base", func() {
			_, err := ModMul(5, 15, 4)
			So(err, ShouldNotBeNil)
		})

		Convey("It should reject a negative or zero base instead of panicking", func() {
			_, err := ModMul(-7, 15, 4)
			So(err, ShouldNotBeNil)
			_, err = ModMul(0, 15, 4)
			So(err, ShouldNotBeNil)

			So(func() {
				_, err = ShorDemo(15, -7, 4, 4).Build()
			}, ShouldNotPanic)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given continued fractions of 12/16", t, func() {
		cs := Convergents(12, 16)

		Convey("It should end at 3/4", func() {
			So(cs[len(cs)-1].String(), ShouldEqual, "3/4")
		})
	})
}

func TestVQE(t *testing.T) {
	Convey("Given the Ising energy landscape", t, func() {
		Convey("It should be 3 at the origin", func() {
			e, err := IsingEnergy(0, 0)
			So(err, ShouldBeNil)
			So(e, ShouldAlmostEqual, 3, 1e-9)
		})

		Convey("It should be -1 at (0, π)", func() {
			e, err := IsingEnergy(0, math.Pi)
			So(err, ShouldBeNil)
			So(e, ShouldAlmostEqual, -1, 1e-9)
		})
	})

	Convey("Given Nelder-Mead from the origin", t, func() {
		res, err := OptimizeVQE()
		So(err, ShouldBeNil)

		Convey("It should reach the ground energy", func() {
			So(res.Energy, ShouldAlmostEqual, -1, 1e-3)
			So(res.Evals, ShouldBeGreaterThan, 0)
		})

		Convey("It should measure only single-excitation states", func() {
			qc, err := VQE(res)
			So(err, ShouldBeNil)
			probs := sample(qc, 1000)
			So(probs["00"], ShouldAlmostEqual, 0, 0.02)
		})
	})
}

func TestLookup(t *testing.T) {
	Convey("Given the demo registry", t, func() {
		Convey("It should resolve aliases", func() {
			demo, err := Lookup("bv", DefaultParams())
			So(err, ShouldBeNil)
			So(demo.Name, ShouldEqual, "bernstein_vazirani")
			So(demo.Shots, ShouldEqual, 1000)
		})

		Convey("It should build every demo", func() {
			for _, demo := range All(DefaultParams()) {
				qc, err := demo.Build()
				So(err, ShouldBeNil)
				So(qc.NumClbits(), ShouldBeGreaterThan, 0)
			}
		})

		Convey("It should reject unknown names", func() {
			_, err := Lookup("teleport", DefaultParams())
			So(errors.Is(err, ErrUnknownDemo), ShouldBeTrue)
		})
	})
}
