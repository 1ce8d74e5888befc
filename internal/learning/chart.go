package learning

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderAccuracyChart writes an HTML bar chart of per-asset accuracy to w.
// Assets appear in TopAssets order, so the strongest performers lead.
func RenderAccuracyChart(w io.Writer, stats Stats, windowDays int) error {
	title := "Decision accuracy (all time)"
	if windowDays > 0 {
		title = fmt.Sprintf("Decision accuracy (last %d days)", windowDays)
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d evaluated decisions", stats.Overall.Total),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "accuracy %", Max: 100}),
	)

	top := TopAssets(stats, 0)
	assets := make([]string, 0, len(top))
	accuracy := make([]opts.BarData, 0, len(top))
	samples := make([]opts.BarData, 0, len(top))
	for _, entry := range top {
		assets = append(assets, entry.Asset)
		accuracy = append(accuracy, opts.BarData{Value: entry.Stat.AccuracyPct})
		samples = append(samples, opts.BarData{Value: entry.Stat.Total})
	}
	bar.SetXAxis(assets).
		AddSeries("accuracy %", accuracy).
		AddSeries("samples", samples)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("rendering accuracy chart failed: %w", err)
	}
	return nil
}
