package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/theapemachine/qdemo/algorithms"
	"github.com/theapemachine/qdemo/circuit"
)

func newQASMCmd(a *app) *cobra.Command {
	var (
		version int
		basis   []string
		draw    bool
	)

	cmd := &cobra.Command{
		Use:   "qasm <demo>",
		Short: "Print a demo's circuit as OpenQASM",
		Example: `  qdemo qasm bv
  qdemo qasm grover --version 2 --basis rz,sx,x,cx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			demo, err := algorithms.Lookup(args[0], a.params)
			if err != nil {
				return err
			}
			qc, err := demo.Build()
			if err != nil {
				return err
			}

			if len(basis) > 0 {
				qc, err = circuit.Transpile(qc, circuit.Target{
					Name:       "basis",
					NumQubits:  qc.NumQubits(),
					BasisGates: basis,
				})
				if err != nil {
					return err
				}
			}

			if draw {
				fmt.Fprint(cmd.OutOrStdout(), circuit.Draw(qc))
				return nil
			}

			var text string
			switch version {
			case 2:
				text, err = circuit.QASM2(qc)
			case 3:
				text, err = circuit.QASM3(qc)
			default:
				return errors.Errorf("unsupported OpenQASM version %d", version)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), strings.TrimRight(text, "\n")+"\n")
			return nil
		},
	}

	cmd.Flags().IntVar(&version, "version", 3, "OpenQASM version, 2 or 3")
	cmd.Flags().StringSliceVar(&basis, "basis", nil, "transpile to these basis gates first")
	cmd.Flags().BoolVar(&draw, "draw", false, "print the text diagram instead")
	addParamFlags(cmd.Flags(), &a.params)
	return cmd
}
