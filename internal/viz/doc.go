// Package viz renders integration results for the terminal.
//
// Summaries use lipgloss styles; trajectories and step-size histories are
// drawn with asciigraph:
//
//	fmt.Println(viz.Summary("decay", rows))
//	fmt.Println(viz.PlotStepSizes(res.History.DT(), viz.DefaultWidth, viz.DefaultHeight))
package viz
