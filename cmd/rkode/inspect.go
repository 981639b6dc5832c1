package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/rkode/internal/analysis"
	"github.com/san-kum/rkode/internal/config"
	"github.com/san-kum/rkode/internal/control"
	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/experiment"
	"github.com/san-kum/rkode/internal/storage"
	"github.com/san-kum/rkode/internal/tableau"
	"github.com/san-kum/rkode/internal/viz"
)

const maxPlottedComponents = 6

func openRun(runID string) (*storage.Store, *storage.RunMetadata, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if isNotFound(err) {
		return nil, nil, fmt.Errorf("%w: %s (see rkode list)", err, runID)
	}
	if err != nil {
		return nil, nil, err
	}
	return st, meta, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tMETHOD\tTIME\tINTERVAL\tACCEPTED\tREJECTED\tSTATUS")
	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "partial"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t[%g, %g]\t%d\t%d\t%s\n",
			r.ID, r.Model, r.Method,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.T0, r.Tf, r.Stats.Accepted, r.Stats.Rejected, status)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}
	diag, err := st.LoadDiagnostics(meta.ID)
	if err != nil {
		return err
	}

	mode := "fixed"
	if meta.Adaptive {
		mode = "adaptive"
	}
	rows := []viz.Row{
		{Label: "model", Value: meta.Model},
		{Label: "created", Value: meta.Timestamp.Format("2006-01-02 15:04:05")},
		{Label: "interval", Value: fmt.Sprintf("[%g, %g]", meta.T0, meta.Tf)},
		{Label: "mode", Value: fmt.Sprintf("%s, n=%d", mode, meta.N)},
		{Label: "x0", Value: formatState(meta.X0)},
		{Label: "tolerances", Value: fmt.Sprintf("abs %g, rel %g", meta.Tolerances.AbsTol, meta.Tolerances.RelTol)},
		{Label: "accepted", Value: strconv.Itoa(meta.Stats.Accepted)},
		{Label: "rejected", Value: strconv.Itoa(meta.Stats.Rejected)},
		{Label: "evaluations", Value: strconv.Itoa(meta.Stats.Evaluations)},
		{Label: "dt range", Value: fmt.Sprintf("[%.4g, %.4g]", meta.Stats.MinDt, meta.Stats.MaxDt)},
	}
	for _, k := range sortedKeys(meta.Params) {
		rows = append(rows, viz.Row{Label: "param " + k, Value: fmt.Sprint(meta.Params[k])})
	}
	for _, k := range sortedKeys(meta.Metrics) {
		rows = append(rows, viz.Row{Label: k, Value: fmt.Sprintf("%.4g", meta.Metrics[k])})
	}
	if meta.Error != "" {
		rows = append(rows, viz.Row{Label: "status", Value: viz.StatusFail.Render(meta.Error)})
	}
	if len(diag.DT) > 1 {
		logs := make([]float64, 0, len(diag.DT))
		for _, dt := range diag.DT {
			if dt > 0 {
				logs = append(logs, math.Log10(dt))
			}
		}
		rows = append(rows, viz.Row{Label: "dt", Value: viz.SparklineChart(viz.Downsample(logs, 40), 40)})
	}

	fmt.Println(viz.Summary(meta.ID+" / "+meta.Method, rows))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}

	if plotDt {
		diag, err := st.LoadDiagnostics(meta.ID)
		if err != nil {
			return err
		}
		fmt.Println(viz.PlotStepSizes(diag.DT, viz.DefaultWidth, viz.DefaultHeight))
		return nil
	}

	states, times, err := st.LoadStates(meta.ID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("run %s has no states", meta.ID)
	}

	if spectrum {
		return plotSpectrum(times, states, max(component, 0))
	}

	components := []int{component}
	if component < 0 {
		components = components[:0]
		for i := range min(len(states[0]), maxPlottedComponents) {
			components = append(components, i)
		}
	}
	for _, i := range components {
		chart, err := viz.PlotComponent(times, states, i, viz.DefaultWidth, viz.DefaultHeight)
		if err != nil {
			return err
		}
		fmt.Println(chart)
		fmt.Println(viz.Separator(viz.DefaultWidth))
	}
	return nil
}

const spectrumSamples = 1024

func plotSpectrum(times []float64, states []dynamo.State, i int) error {
	samples, _, err := analysis.Resample(times, states, i, spectrumSamples)
	if err != nil {
		return err
	}
	fmt.Println(viz.PlotSeries(fmt.Sprintf("|X%d(f)|", i), analysis.PowerSpectrum(samples), viz.DefaultWidth, viz.DefaultHeight))

	peaks, err := analysis.DominantFrequencies(times, states, i, spectrumSamples, 3)
	if err != nil {
		return err
	}
	for _, p := range peaks {
		fmt.Printf("f = %.4g  amplitude %.4g\n", p.Frequency, p.Amplitude)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := st.ExportJSON(w, meta.ID); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "exported %s to %s\n", meta.ID, output)
	}
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tDIM\tTF\tEXACT\tDEFAULTS\tDESCRIPTION")
	for _, name := range reg.Names() {
		info, err := reg.Describe(name)
		if err != nil {
			return err
		}
		defaults := make([]string, 0, len(info.Defaults))
		for _, k := range sortedKeys(info.Defaults) {
			defaults = append(defaults, fmt.Sprintf("%s=%v", k, info.Defaults[k]))
		}
		fmt.Fprintf(w, "%s\t%d\t%g\t%t\t%s\t%s\n",
			name, len(info.X0), info.Tf, info.Exact, strings.Join(defaults, " "), info.Description)
	}
	return w.Flush()
}

func listMethods(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tSTAGES\tORDER\tEMBEDDED\tKP\tKI\tSTABILITY")
	for _, name := range tableau.Names() {
		tab, err := tableau.Lookup(name)
		if err != nil {
			return err
		}
		gains := "-\t-"
		if tab.Embedded() {
			kp, ki := control.Gains(tab.ControlOrder())
			gains = fmt.Sprintf("%.4f\t%.4f", kp, ki)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%t\t%s\t[%.4f, 0]\n",
			name, tab.Stages(), tab.Order(), tab.Embedded(), gains, analysis.RealStabilityInterval(tab))
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	names := config.ListPresets(args[0])
	if len(names) == 0 {
		fmt.Printf("no presets for %s\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tMETHOD\tTF\tN\tADAPTIVE")
	for _, name := range names {
		p := config.GetPreset(args[0], name)
		tf := "default"
		if p.Tf != 0 {
			tf = strconv.FormatFloat(p.Tf, 'g', -1, 64)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", name, p.Method, tf, p.N, p.Adaptive)
	}
	return w.Flush()
}

func stability(cmd *cobra.Command, args []string) error {
	tab, err := tableau.Lookup(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s: real stability interval [%.4f, 0]\n", tab.Name(), analysis.RealStabilityInterval(tab))
	fmt.Println(viz.Separator(viz.DefaultWidth))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Z\t|R(Z)|\tSTABLE")
	for _, z := range points {
		r := analysis.StabilityFunction(tab, complex(z, 0))
		mag := math.Hypot(real(r), imag(r))
		fmt.Fprintf(w, "%g\t%.6f\t%t\n", z, mag, mag <= 1)
	}
	return w.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
