package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/theapemachine/qdemo"
	"github.com/theapemachine/qdemo/algorithms"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/runtime"
)

const noDevicesMessage = "No real quantum devices available. Check your IBM Quantum account"

// app is the state shared by every subcommand of one invocation.
type app struct {
	v      *viper.Viper
	cfg    *qdemo.Config
	params algorithms.Params
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{
		v:      qdemo.NewViper(),
		params: algorithms.DefaultParams(),
		logger: log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "qdemo"}),
	}

	root := &cobra.Command{
		Use:   "qdemo",
		Short: "Run textbook quantum algorithms on a simulator or IBM Quantum hardware",
		Long: `qdemo builds the circuits for a set of classic quantum algorithms, runs them
on the local simulator or on the least busy IBM Quantum backend, and plots the
measured distribution of each one.

Remote demos need an IBM Quantum API key, taken from --token, QDEMO_IBM_TOKEN
or QISKIT_IBM_TOKEN. Without one they run on the local simulator.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := qdemo.LoadConfig(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			if a.v.GetBool("verbose") {
				a.logger.SetLevel(log.DebugLevel)
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("out", "out", "directory for histograms and circuit diagrams")
	flags.String("history", "out/history.db", "SQLite file for run history")
	flags.String("metrics-file", "", "write Prometheus metrics to this textfile after a run")
	flags.Int("shots", 0, "override the shot count of every demo")
	flags.Uint64("seed", 0, "seed for the local simulator, 0 for random")
	flags.Bool("local", false, "run every demo on the local simulator")
	flags.Bool("fallback", true, "use the local simulator when no remote backend is available")
	flags.String("backend", "", "run remote demos on this backend instead of the least busy one")
	flags.String("token", "", "IBM Quantum API key")
	flags.String("instance", "", "IBM Quantum service CRN")
	flags.Int("workers", 2, "demos run concurrently")
	flags.BoolP("verbose", "v", false, "debug logging")

	if err := bindFlags(a.v, flags, map[string]string{
		"output.dir":          "out",
		"output.history":      "history",
		"output.metrics_file": "metrics-file",
		"run.shots":           "shots",
		"run.seed":            "seed",
		"run.local":           "local",
		"run.fallback":        "fallback",
		"run.backend":         "backend",
		"ibm.token":           "token",
		"ibm.instance":        "instance",
		"pool.min_workers":    "workers",
		"pool.max_workers":    "workers",
		"verbose":             "verbose",
	}); err != nil {
		panic(err)
	}

	root.AddCommand(
		newListCmd(a),
		newRunCmd(a),
		newHistoryCmd(a),
		newQASMCmd(a),
	)
	return root
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return errors.Wrapf(err, "bind --%s", name)
		}
	}
	return nil
}

// addParamFlags exposes the demo inputs on commands that build circuits.
func addParamFlags(flags *pflag.FlagSet, p *algorithms.Params) {
	flags.StringVar(&p.BVSecret, "secret", p.BVSecret, "Bernstein-Vazirani secret string")
	flags.StringVar(&p.SimonSecret, "simon-secret", p.SimonSecret, "Simon hidden period")
	flags.StringVar(&p.Oracle, "oracle", p.Oracle, "Deutsch-Jozsa oracle: constant or balanced")
	flags.Float64Var(&p.Phase, "phase", p.Phase, "phase estimated by QPE, in [0, 1)")
	flags.IntVar(&p.Counting, "counting", p.Counting, "counting qubits for QPE and Shor")
	flags.IntVar(&p.N, "factor", p.N, "number Shor's algorithm factors")
	flags.IntVar(&p.A, "base", p.A, "base a of a^x mod N, coprime to N")
	flags.IntVar(&p.SearchQubits, "search-qubits", p.SearchQubits, "qubits in Grover's search space")
}

/*
provider connects to the IBM Quantum runtime when a token is configured. It
returns nil when demos should stay local, and registers the client's rate
limiter with the pool so throttling shows up in the metrics.
*/
func (a *app) provider(pool *qdemo.Q) (backend.Provider, error) {
	if a.cfg.ForceLocal {
		return nil, nil
	}
	if a.cfg.Runtime.Token == "" {
		a.logger.Warn("no IBM Quantum token configured, remote demos use the local simulator")
		return nil, nil
	}

	limiter := qdemo.NewRateLimiter(a.cfg.RateLimit, a.cfg.RateInterval)
	pool.Regulate(limiter)

	client, err := runtime.NewClient(
		a.cfg.Runtime,
		runtime.WithRegulator(limiter),
		runtime.WithLogger(a.logger.WithPrefix("runtime")),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *app) pool(ctx context.Context) *qdemo.Q {
	return qdemo.NewQ(ctx, a.cfg.MinWorkers, max(a.cfg.MaxWorkers, a.cfg.MinWorkers), a.cfg)
}

// demos resolves names, or every demo when all is set.
func (a *app) demos(names []string, all bool) ([]algorithms.Demo, error) {
	if all {
		return algorithms.All(a.params), nil
	}
	if len(names) == 0 {
		return nil, errors.New("name at least one demo or pass --all")
	}

	out := make([]algorithms.Demo, 0, len(names))
	for _, name := range names {
		demo, err := algorithms.Lookup(name, a.params)
		if err != nil {
			return nil, err
		}
		out = append(out, demo)
	}
	return out, nil
}
