package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/theapemachine/qdemo/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		demo  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded demo runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			history, err := store.Open(ctx, a.cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer history.Close()

			runs, err := history.List(ctx, demo, limit)
			if err != nil {
				return err
			}

			t := newTable("WHEN", "DEMO", "BACKEND", "SHOTS", "TOOK", "VERDICT")
			for _, run := range runs {
				t.Row(
					run.CreatedAt.Local().Format(time.DateTime),
					run.Demo,
					run.Backend,
					strconv.Itoa(run.Shots),
					run.Duration.Round(time.Millisecond).String(),
					run.Verdict,
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}

	cmd.Flags().StringVar(&demo, "demo", "", "only runs of this demo")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	return cmd
}
