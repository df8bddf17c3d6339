package psdbench

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderChart writes an HTML bar chart with one group of three phase bars
// per measurement.
func RenderChart(w io.Writer, title string, report Report) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)

	labels := make([]string, 0, len(report.Measurements))
	parse := make([]opts.BarData, 0, len(report.Measurements))
	image := make([]opts.BarData, 0, len(report.Measurements))
	layers := make([]opts.BarData, 0, len(report.Measurements))

	for _, m := range report.Measurements {
		labels = append(labels, fmt.Sprintf("%s (%s)", m.Decoder, m.File))
		parse = append(parse, opts.BarData{Value: m.Result.ParseTime})
		image = append(image, opts.BarData{Value: m.Result.ImageRenderTime})
		layers = append(layers, opts.BarData{Value: m.Result.LayerRenderTime})
	}

	bar.SetXAxis(labels).
		AddSeries("parse", parse).
		AddSeries("merged image", image).
		AddSeries("layers", layers)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("could not render chart: %w", err)
	}

	return nil
}
