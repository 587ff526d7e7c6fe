package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/qdemo/algorithms"
	"github.com/theapemachine/qdemo/circuit"
)

// execute runs the CLI with an isolated output directory and no IBM account.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Setenv("HOME", dir)
	t.Setenv("QISKIT_IBM_TOKEN", "")
	t.Setenv("QDEMO_IBM_TOKEN", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{
		"--out", filepath.Join(dir, "out"),
		"--history", filepath.Join(dir, "history.db"),
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQASMCommand(t *testing.T) {
	Convey("Given the qasm command", t, func() {
		dir := t.TempDir()

		Convey("It should print the Bernstein-Vazirani circuit as OpenQASM 3", func() {
			out, err := execute(t, dir, "qasm", "bv")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "OPENQASM 3.0;\n")
			So(out, ShouldContainSubstring, "cx q[0], q[3];")
			So(out, ShouldContainSubstring, "cx q[2], q[3];")
			So(out, ShouldNotContainSubstring, "cx q[1], q[3];")
		})

		Convey("It should honor the secret flag", func() {
			out, err := execute(t, dir, "qasm", "bv", "--secret", "010", "--version", "2")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "OPENQASM 2.0;\n")
			So(out, ShouldContainSubstring, "cx q[1], q[3];")
		})

		Convey("It should transpile to a basis first", func() {
			out, err := execute(t, dir, "qasm", "grover", "--basis", "rz,sx,x,cx")
			So(err, ShouldBeNil)
			So(out, ShouldNotContainSubstring, "\nh ")
			So(out, ShouldNotContainSubstring, "ctrl(")
		})

		Convey("It should refuse circuits with explicit unitaries", func() {
			_, err := execute(t, dir, "qasm", "shor")
			So(errors.Is(err, circuit.ErrNotExportable), ShouldBeTrue)
		})

		Convey("It should reject unknown demos", func() {
			_, err := execute(t, dir, "qasm", "teleport")
			So(errors.Is(err, algorithms.ErrUnknownDemo), ShouldBeTrue)
		})
	})
}

func TestRunAndHistoryCommands(t *testing.T) {
	Convey("Given a local run of two demos", t, func() {
		dir := t.TempDir()
		out, err := execute(t, dir, "run", "bv", "dj", "--local", "--seed", "5")
		So(err, ShouldBeNil)

		Convey("It should print each verdict", func() {
			So(out, ShouldContainSubstring, "Secret string found: 101")
			So(out, ShouldContainSubstring, "Function is CONSTANT")
			So(out, ShouldContainSubstring, filepath.Join(dir, "out", "bernstein_vazirani.png"))
		})

		Convey("The history command should list both runs", func() {
			out, err := execute(t, dir, "history")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "bernstein_vazirani")
			So(out, ShouldContainSubstring, "deutsch_jozsa")
			So(out, ShouldContainSubstring, "Secret string found: 101")
			So(out, ShouldNotContainSubstring, "…")

			out, err = execute(t, dir, "history", "--demo", "deutsch_jozsa")
			So(err, ShouldBeNil)
			So(out, ShouldNotContainSubstring, "bernstein_vazirani")
		})
	})

	Convey("Given a remote demo without an account or fallback", t, func() {
		dir := t.TempDir()
		_, err := execute(t, dir, "run", "simon", "--fallback=false")

		Convey("It should fail with the no-devices message", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldStartWith, noDevicesMessage)
		})
	})

	Convey("Given run without demos", t, func() {
		_, err := execute(t, t.TempDir(), "run")
		So(err, ShouldNotBeNil)
	})
}

func TestListCommand(t *testing.T) {
	Convey("Given the list command without an account", t, func() {
		out, err := execute(t, t.TempDir(), "list")
		So(err, ShouldBeNil)

		Convey("It should show every demo and the local simulator", func() {
			for _, name := range algorithms.Names() {
				So(out, ShouldContainSubstring, name)
			}
			So(out, ShouldContainSubstring, "local_qasm_simulator")
			So(out, ShouldContainSubstring, "simulator")
			So(out, ShouldNotContainSubstring, "…")
		})
	})
}
