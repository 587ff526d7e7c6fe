package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/theapemachine/qdemo/algorithms"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/sim"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the demos and the backends they can run on",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			demos := newTable("DEMO", "TARGET", "SHOTS", "DESCRIPTION")
			for _, demo := range algorithms.All(a.params) {
				demos.Row(demo.Name, demo.Target.String(), strconv.Itoa(demo.Shots), demo.Description)
			}
			fmt.Fprintln(out, demos.Render())

			pool := a.pool(ctx)
			defer pool.Close()

			backends := []backend.Backend{sim.NewLocal()}
			provider, err := a.provider(pool)
			if err != nil {
				return err
			}
			if provider != nil {
				remote, err := provider.Backends(ctx)
				if err != nil {
					return err
				}
				backends = append(backends, remote...)
			}

			listing := newTable("BACKEND", "KIND", "QUBITS", "PENDING", "STATUS")
			for _, c := range backend.Survey(ctx, backends, backend.Filter{}) {
				kind := "device"
				if c.Info.Simulator {
					kind = "simulator"
				}
				status := "operational"
				if !c.Info.Operational {
					status = "offline"
				}
				listing.Row(c.Info.Name, kind, strconv.Itoa(c.Info.NumQubits), strconv.Itoa(c.Info.PendingJobs), status)
			}
			fmt.Fprintln(out, listing.Render())
			return nil
		},
	}
}

// cellStyle pads every cell by one column. Without the padding lipgloss
// shortens the widest cell of each column to make room for its ellipsis.
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers(headers...)
}
