package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/san-kum/rkode/internal/config"
	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/experiment"
	"github.com/san-kum/rkode/internal/metrics"
	"github.com/san-kum/rkode/internal/sim"
	"github.com/san-kum/rkode/internal/storage"
	"github.com/san-kum/rkode/internal/viz"
)

// loadConfig resolves the run configuration: preset first, then the config
// file, then any flag set explicitly on the command line.
func loadConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q for %s (have %s)",
				preset, model, strings.Join(config.ListPresets(model), ", "))
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.Model = model

	flags := cmd.Flags()
	if flags.Changed("method") {
		cfg.Method = method
	}
	if flags.Changed("t0") {
		cfg.T0 = t0
	}
	if flags.Changed("tf") {
		cfg.Tf = tf
	}
	if flags.Changed("steps") {
		cfg.N = steps
	}
	if flags.Changed("adaptive") {
		cfg.Adaptive = adaptive
	}
	if flags.Changed("abstol") {
		cfg.Tolerances.AbsTol = absTol
	}
	if flags.Changed("reltol") {
		cfg.Tolerances.RelTol = relTol
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = maxRetries
	}
	if flags.Changed("min-dt") {
		cfg.MinDt = minDt
	}
	if flags.Changed("history") {
		cfg.HistoryLimit = historyLimit
	}
	if flags.Changed("x0") {
		cfg.X0 = x0
	}
	if len(params) > 0 {
		if cfg.Params == nil {
			cfg.Params = map[string]any{}
		}
		for _, kv := range params {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("%w: parameter %q is not key=value", dynamo.ErrInvalidConfig, kv)
			}
			cfg.Params[k] = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runIntegration(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	opts := []sim.Option{sim.WithLogger(slog.Default())}
	var reg *prometheus.Registry
	if metricsFile != "" {
		reg = prometheus.NewRegistry()
		collector, err := metrics.NewCollector(reg, cfg.Method)
		if err != nil {
			return err
		}
		opts = append(opts, sim.WithObserver(collector))
	}

	out, runErr := experiment.NewRegistry().Run(ctx, experiment.FromConfig(cfg), opts...)
	if out == nil {
		return runErr
	}

	fmt.Println(viz.Summary(cfg.Model+" / "+out.Method, outcomeRows(out, runErr)))

	if plot {
		chart, err := viz.PlotComponent(out.T, out.X, 0, viz.DefaultWidth, viz.DefaultHeight)
		if err != nil {
			return err
		}
		fmt.Println(chart)
		if out.Adaptive {
			fmt.Println(viz.PlotStepSizes(out.History.DT(), viz.DefaultWidth, viz.DefaultHeight))
		}
	}

	if reg != nil {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return err
		}
	}

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		meta := storage.RunMetadata{
			Model:      out.Model,
			T0:         out.T0,
			Tf:         out.Tf,
			N:          out.N,
			X0:         out.X0,
			Tolerances: cfg.Tolerances,
			Params:     out.Params,
		}
		if runErr != nil {
			meta.Error = runErr.Error()
		}
		id, err := st.Save(meta, out.Result)
		if err != nil {
			return err
		}
		fmt.Printf("saved: %s\n", id)
	}

	return runErr
}

func outcomeRows(out *experiment.Outcome, runErr error) []viz.Row {
	t, x := out.Final()
	mode := "fixed"
	if out.Adaptive {
		mode = "adaptive"
	}
	rows := []viz.Row{
		{Label: "interval", Value: fmt.Sprintf("[%g, %g]", out.T0, out.Tf)},
		{Label: "mode", Value: fmt.Sprintf("%s, n=%d", mode, out.N)},
		{Label: "accepted", Value: strconv.Itoa(out.Stats.Accepted)},
		{Label: "rejected", Value: strconv.Itoa(out.Stats.Rejected)},
		{Label: "evaluations", Value: strconv.Itoa(out.Stats.Evaluations)},
		{Label: "dt range", Value: fmt.Sprintf("[%.4g, %.4g]", out.Stats.MinDt, out.Stats.MaxDt)},
		{Label: "final t", Value: strconv.FormatFloat(t, 'g', -1, 64)},
		{Label: "final x", Value: formatState(x)},
	}
	if out.Exact != nil {
		rows = append(rows, viz.Row{Label: "global error", Value: fmt.Sprintf("%.3e", out.GlobalError)})
	}
	for _, name := range sortedKeys(out.Metrics) {
		rows = append(rows, viz.Row{Label: name, Value: fmt.Sprintf("%.4g", out.Metrics[name])})
	}
	status := viz.StatusOK.Render("complete")
	if runErr != nil {
		status = viz.StatusFail.Render(runErr.Error())
	}
	return append(rows, viz.Row{Label: "status", Value: status})
}

func sweepInitialStates(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	if count < 1 {
		return fmt.Errorf("%w: count must be at least 1", dynamo.ErrInvalidConfig)
	}

	reg := experiment.NewRegistry()
	base := dynamo.State(cfg.X0)
	if base == nil {
		info, err := reg.Describe(cfg.Model)
		if err != nil {
			return err
		}
		base = info.X0
	}
	x0s := make([]dynamo.State, count)
	for i := range x0s {
		x0s[i] = base.Clone()
		x0s[i][0] += float64(i) * spread
	}

	ctx, cancel := signalContext()
	defer cancel()

	outs, err := reg.Sweep(ctx, experiment.FromConfig(cfg), x0s, workers, sim.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "X0\tFINAL\tACCEPTED\tREJECTED\tERROR")
	for _, out := range outs {
		_, x := out.Final()
		globalErr := "-"
		if out.Exact != nil {
			globalErr = fmt.Sprintf("%.3e", out.GlobalError)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			formatState(out.X0), formatState(x), out.Stats.Accepted, out.Stats.Rejected, globalErr)
	}
	return w.Flush()
}

func convergence(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	conv, err := experiment.NewRegistry().Convergence(ctx, experiment.FromConfig(cfg), ns)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tDT\tERROR\tORDER")
	for i, s := range conv.Samples {
		order := "-"
		if i > 0 {
			order = fmt.Sprintf("%.2f", conv.Orders[i-1])
		}
		fmt.Fprintf(w, "%d\t%.4g\t%.3e\t%s\n", s.N, s.Dt, s.Err, order)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%s: observed order %.2f\n", conv.Method, conv.Order())
	return nil
}

func lyapunov(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	lambda, err := experiment.NewRegistry().Lyapunov(ctx, experiment.FromConfig(cfg), segments,
		sim.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	verdict := viz.StatusOK.Render("stable")
	if lambda > 0 {
		verdict = viz.StatusWarn.Render("chaotic")
	}
	fmt.Println(viz.Summary("lyapunov / "+cfg.Model, []viz.Row{
		{Label: "method", Value: cfg.Method},
		{Label: "segments", Value: strconv.Itoa(segments)},
		{Label: "lambda", Value: fmt.Sprintf("%.4f", lambda)},
		{Label: "verdict", Value: verdict},
	}))
	return nil
}

func formatState(x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrRunNotFound)
}
