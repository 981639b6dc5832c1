package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDir string
	verbose bool

	// Run configuration
	configFile   string
	preset       string
	method       string
	t0           float64
	tf           float64
	steps        int
	adaptive     bool
	absTol       float64
	relTol       float64
	maxRetries   int
	minDt        float64
	historyLimit int
	params       []string
	x0           []float64

	// Output
	save        bool
	plot        bool
	metricsFile string

	// Inspection
	component int
	plotDt    bool
	spectrum  bool
	output    string

	// Analysis
	ns       []int
	segments int
	count    int
	spread   float64
	trials   int
	noise    float64
	workers  int
	points   []float64

	// Batch
	scanParam string
	scanMin   float64
	scanMax   float64
	scanCount int
	seed      uint64
	grid      []string
	objective string
	maxError  float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rkode",
		Short:         "adaptive Runge-Kutta integration lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "runs", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log rejected steps and run summaries")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "integrate a model",
		Args:  cobra.ExactArgs(1),
		RunE:  runIntegration,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&save, "save", true, "store the run under the data directory")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot the first component and the step sizes")
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write step metrics in Prometheus text format")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "integrate a model from several initial states concurrently",
		Args:  cobra.ExactArgs(1),
		RunE:  sweepInitialStates,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&count, "count", 5, "number of initial states")
	sweepCmd.Flags().Float64Var(&spread, "spread", 0.1, "offset added to x0[0] per run")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = one per initial state)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run summary",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&component, "component", -1, "state component to plot (-1 = all, up to 6)")
	plotCmd.Flags().BoolVar(&plotDt, "dt", false, "plot step sizes instead of states")
	plotCmd.Flags().BoolVar(&spectrum, "spectrum", false, "plot the amplitude spectrum of one component")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models and their default parameters",
		RunE:  listModels,
	}

	methodsCmd := &cobra.Command{
		Use:   "methods",
		Short: "list Runge-Kutta methods",
		RunE:  listMethods,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE:  listPresets,
	}

	convergenceCmd := &cobra.Command{
		Use:   "convergence [model]",
		Short: "estimate the observed order of a method by step halving",
		Args:  cobra.ExactArgs(1),
		RunE:  convergence,
	}
	addRunFlags(convergenceCmd)
	convergenceCmd.Flags().IntSliceVar(&ns, "ns", []int{8, 16, 32, 64}, "fixed step counts")

	stabilityCmd := &cobra.Command{
		Use:   "stability [method]",
		Short: "linear stability of a method on the negative real axis",
		Args:  cobra.ExactArgs(1),
		RunE:  stability,
	}
	stabilityCmd.Flags().Float64SliceVar(&points, "z", []float64{-0.5, -1, -2, -3}, "real points at which to evaluate |R(z)|")

	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov [model]",
		Short: "estimate the largest Lyapunov exponent",
		Args:  cobra.ExactArgs(1),
		RunE:  lyapunov,
	}
	addRunFlags(lyapunovCmd)
	lyapunovCmd.Flags().IntVar(&segments, "segments", 100, "renormalisation intervals")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&save, "save", true, "store each step under the data directory")

	scanCmd := &cobra.Command{
		Use:   "scan [model]",
		Short: "integrate a model across a range of one parameter",
		Args:  cobra.ExactArgs(1),
		RunE:  scanParameter,
	}
	addRunFlags(scanCmd)
	scanCmd.Flags().StringVar(&scanParam, "name", "", "parameter to vary")
	scanCmd.Flags().Float64Var(&scanMin, "min", 0, "first value")
	scanCmd.Flags().Float64Var(&scanMax, "max", 1, "last value")
	scanCmd.Flags().IntVar(&scanCount, "count", 5, "number of values")
	_ = scanCmd.MarkFlagRequired("name")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "integrate randomly perturbed initial states",
		Args:  cobra.ExactArgs(1),
		RunE:  monteCarlo,
	}
	addRunFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Float64Var(&noise, "perturbation", 0.01, "uniform noise half-width per component")
	monteCarloCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = one per trial)")
	monteCarloCmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")

	tuneCmd := &cobra.Command{
		Use:   "tune [model]",
		Short: "grid search tolerances or parameters for the smallest objective",
		Args:  cobra.ExactArgs(1),
		RunE:  tune,
	}
	addRunFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&grid, "grid", nil, "grid axis as name=v1,v2,... (abstol, reltol or a model parameter)")
	tuneCmd.Flags().StringVar(&objective, "objective", "evaluations", "evaluations, rejected, global_error or a run metric")
	tuneCmd.Flags().Float64Var(&maxError, "max-error", 0, "discard points whose global error exceeds this (0 = no limit)")
	_ = tuneCmd.MarkFlagRequired("grid")

	rootCmd.AddCommand(runCmd, sweepCmd, listCmd, showCmd, plotCmd, exportCmd,
		modelsCmd, methodsCmd, presetsCmd, convergenceCmd, stabilityCmd, lyapunovCmd,
		scenarioCmd, scanCmd, monteCarloCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&method, "method", "dopri54", "Runge-Kutta method")
	f.Float64Var(&t0, "t0", 0, "start time")
	f.Float64Var(&tf, "tf", 0, "end time (0 = model default)")
	f.IntVarP(&steps, "steps", "n", 10, "steps (fixed) or initial step guess (adaptive)")
	f.BoolVar(&adaptive, "adaptive", true, "adapt the step size")
	f.Float64Var(&absTol, "abstol", 1e-6, "absolute tolerance")
	f.Float64Var(&relTol, "reltol", 1e-6, "relative tolerance")
	f.IntVar(&maxRetries, "max-retries", 100, "consecutive rejections before giving up")
	f.Float64Var(&minDt, "min-dt", 0, "smallest step size tried after a rejection")
	f.IntVar(&historyLimit, "history", 0, "diagnostic entries kept per series (0 = all)")
	f.StringSliceVarP(&params, "param", "p", nil, "model parameter as key=value")
	f.Float64SliceVar(&x0, "x0", nil, "initial state")
}
