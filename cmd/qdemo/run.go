package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/theapemachine/qdemo"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/plot"
	"github.com/theapemachine/qdemo/store"
)

func newRunCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "run [demo...]",
		Short: "Run demos and plot their histograms",
		Example: `  qdemo run bv grover
  qdemo run --all --local --seed 7
  qdemo run shor --factor 21 --base 2 --counting 6`,
		RunE: func(cmd *cobra.Command, args []string) error {
			demos, err := a.demos(args, all)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool := a.pool(ctx)
			defer pool.Close()

			history, err := store.Open(ctx, a.cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer history.Close()

			provider, err := a.provider(pool)
			if err != nil {
				return err
			}

			opts := []qdemo.RunnerOption{qdemo.WithStore(history), qdemo.WithLogger(a.logger)}
			if provider != nil {
				opts = append(opts, qdemo.WithProvider(provider))
			}
			runner := qdemo.NewRunner(pool, a.cfg, opts...)

			var wg sync.WaitGroup
			events := runner.Progress(64)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for e := range events {
					a.logger.Debug("progress", "demo", e.Demo, "stage", e.Stage, "backend", e.Backend)
				}
			}()

			results, runErr := runner.RunAll(ctx, demos)
			for _, result := range results {
				printResult(cmd.OutOrStdout(), result)
			}

			if a.cfg.MetricsFile != "" {
				if err := pool.Metrics().WriteTextfile(a.cfg.MetricsFile); err != nil {
					a.logger.Error("metrics", "err", err)
				}
			}

			pool.Close()
			wg.Wait()

			if errors.Is(runErr, backend.ErrNoBackend) {
				return errors.Wrap(runErr, noDevicesMessage)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "run every demo")
	addParamFlags(cmd.Flags(), &a.params)
	return cmd
}

func printResult(w io.Writer, result qdemo.Result) {
	fmt.Fprintf(w, "\n%s (%s, %d shots on %s)\n", result.Title, result.Demo, result.Shots, result.Backend)
	fmt.Fprint(w, plot.Bars(result.Probabilities, 40))
	fmt.Fprintln(w, result.Report.String())
	fmt.Fprintf(w, "histogram: %s\ncircuit:   %s\n", result.Histogram, result.Diagram)
}
