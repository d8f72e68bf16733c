package render

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

func seriesLabel(s sweep.SeriesResult) string {
	if s.NeedleLength > 0 {
		return fmt.Sprintf("seed %d, needle length %.3g", s.Seed, s.NeedleLength)
	}
	return fmt.Sprintf("seed %d", s.Seed)
}

// Convergence plots every series of a sweep against the number of tries on a log axis.
// With relative set the y axis is |estimate - π| / π, otherwise the estimate itself
// with a dashed line at π. Degenerate points are skipped.
func Convergence(result *sweep.SweepResult, relative bool) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = "Number of tries"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true

	if relative {
		p.Title.Text = fmt.Sprintf("%s: relative error", result.Request.Method)
		p.Y.Label.Text = "Relative error"
	} else {
		p.Title.Text = fmt.Sprintf("%s: estimate of π", result.Request.Method)
		p.Y.Label.Text = "Estimate"
	}

	minTries, maxTries := math.Inf(1), math.Inf(-1)
	for i, series := range result.Series {
		pts := make(plotter.XYs, 0, len(series.Points))
		for _, pt := range series.Points {
			if pt.Result.Degenerate {
				continue
			}
			y := pt.Result.Estimate
			if relative {
				y = pt.Result.RelativeError()
			}
			x := float64(pt.Result.Tries)
			pts = append(pts, plotter.XY{X: x, Y: y})
			minTries, maxTries = math.Min(minTries, x), math.Max(maxTries, x)
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(seriesLabel(series), line)
	}

	if math.IsInf(minTries, 1) {
		return nil, fmt.Errorf("sweep has no finite estimates to plot")
	}

	if !relative {
		ref, err := plotter.NewLine(plotter.XYs{{X: minTries, Y: math.Pi}, {X: maxTries, Y: math.Pi}})
		if err != nil {
			return nil, err
		}
		ref.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		ref.LineStyle.Color = lineColor
		p.Add(ref)
		p.Legend.Add("π", ref)
	}
	return p, nil
}
