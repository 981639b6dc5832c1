package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/rkode/internal/automation"
	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/experiment"
	"github.com/san-kum/rkode/internal/optim"
	"github.com/san-kum/rkode/internal/sim"
	"github.com/san-kum/rkode/internal/storage"
	"github.com/san-kum/rkode/internal/viz"
)

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	outs, runErr := automation.RunScenario(ctx, experiment.NewRegistry(), scenario, sim.WithLogger(slog.Default()))

	st := storage.New(dataDir)
	if save {
		if err := st.Init(); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tLABEL\tMODEL\tMETHOD\tACCEPTED\tREJECTED\tRUN")
	for i, out := range outs {
		step := scenario.Steps[i]
		id := "-"
		if save {
			id, err = st.Save(storage.RunMetadata{
				Model:      out.Model,
				T0:         out.T0,
				Tf:         out.Tf,
				N:          out.N,
				X0:         out.X0,
				Tolerances: step.Tolerances,
				Params:     out.Params,
			}, out.Result)
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			i+1, step.Label, out.Model, out.Method, out.Stats.Accepted, out.Stats.Rejected, id)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func scanParameter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	points, err := automation.RunScan(ctx, experiment.NewRegistry(), &automation.ParameterScan{
		Base:      cfg,
		ParamName: scanParam,
		ParamMin:  scanMin,
		ParamMax:  scanMax,
		Count:     scanCount,
	}, sim.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tFINAL\tACCEPTED\tREJECTED\tSTATUS\n", strings.ToUpper(scanParam))
	for _, p := range points {
		if p.Err != nil && p.Outcome == nil {
			fmt.Fprintf(w, "%g\t-\t-\t-\t%s\n", p.ParamValue, p.Err)
			continue
		}
		_, x := p.Outcome.Final()
		status := "ok"
		if p.Err != nil {
			status = p.Err.Error()
		}
		fmt.Fprintf(w, "%g\t%s\t%d\t%d\t%s\n",
			p.ParamValue, formatState(x), p.Outcome.Stats.Accepted, p.Outcome.Stats.Rejected, status)
	}
	return w.Flush()
}

func monteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunMonteCarlo(ctx, experiment.NewRegistry(), &automation.MonteCarloConfig{
		Base:         cfg,
		BaseState:    cfg.X0,
		Perturbation: noise,
		NumTrials:    trials,
		Workers:      workers,
		Seed:         seed,
	}, sim.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Println(viz.Summary("monte carlo / "+cfg.Model, []viz.Row{
		{Label: "method", Value: cfg.Method},
		{Label: "trials", Value: strconv.Itoa(len(results))},
		{Label: "perturbation", Value: strconv.FormatFloat(noise, 'g', -1, 64)},
		{Label: "stable", Value: viz.StatusOK.Render(strconv.Itoa(stable))},
		{Label: "unstable", Value: viz.StatusFail.Render(strconv.Itoa(unstable))},
		{Label: "final spread", Value: fmt.Sprintf("%.4g", automation.Spread(results))},
	}))
	return nil
}

// parseGrid turns "name=v1,v2,..." entries into parallel name and value
// lists.
func parseGrid(entries []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(entries))
	ranges := make([][]float64, 0, len(entries))
	for _, entry := range entries {
		name, list, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("%w: grid %q is not name=v1,v2", dynamo.ErrInvalidConfig, entry)
		}
		var values []float64
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: grid %s: %v", dynamo.ErrInvalidConfig, name, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func tune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(grid)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	slog.Info("grid search", "model", cfg.Model, "points", g.Size(), "objective", objective)
	best, val, err := g.Search(ctx, optim.RunObjective(experiment.NewRegistry(), cfg, objective, maxError))
	if err != nil {
		return err
	}

	rows := []viz.Row{
		{Label: "objective", Value: objective},
		{Label: "points", Value: strconv.Itoa(g.Size())},
		{Label: "best", Value: fmt.Sprintf("%.6g", val)},
	}
	for _, name := range sortedKeys(best) {
		rows = append(rows, viz.Row{Label: name, Value: strconv.FormatFloat(best[name], 'g', -1, 64)})
	}
	fmt.Println(viz.Summary("tune / "+cfg.Model, rows))
	return nil
}
