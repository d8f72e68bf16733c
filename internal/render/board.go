package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/MJE43/montecarlo-pi/internal/estimator"
)

var (
	hitColor  = color.RGBA{R: 255, A: 255}
	missColor = color.RGBA{B: 255, A: 255}
	lineColor = color.Black
)

// needles draws trials as line segments, red when they cross a stripe.
type needles []estimator.Trial

func (n needles) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	for _, t := range n {
		sty := draw.LineStyle{Color: missColor, Width: vg.Points(1)}
		if t.Hit {
			sty.Color = hitColor
		}
		c.StrokeLine2(sty, trX(t.From.X), trY(t.From.Y), trX(t.To.X), trY(t.To.Y))
	}
}

func title(name string, res estimator.Result, err error) string {
	if res.Degenerate || err != nil {
		return fmt.Sprintf("%s: no estimate (%s hits in %s tries)",
			name, humanize.Comma(int64(res.Hits)), humanize.Comma(int64(res.Tries)))
	}
	return fmt.Sprintf("%s: π ≈ %.5f (%s hits in %s tries)",
		name, res.Estimate, humanize.Comma(int64(res.Hits)), humanize.Comma(int64(res.Tries)))
}

// Board plots the trials on the estimator's board, titled with the estimate they give.
func Board(est estimator.Estimator, trials []estimator.Trial) (*plot.Plot, error) {
	hits := 0
	for _, t := range trials {
		if t.Hit {
			hits++
		}
	}
	res, err := est.Derive(hits, len(trials))
	name := est.Spec().Name
	board := est.Board()

	switch est.Spec().ID {
	case "buffon":
		return needleBoard(board, trials, title(name, res, err))
	case "dart":
		return dartBoard(board, trials, title(name, res, err))
	default:
		return nil, fmt.Errorf("%w: no board renderer for %q", estimator.ErrUnknownEstimator, est.Spec().ID)
	}
}

func needleBoard(board estimator.Board, trials []estimator.Trial, caption string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = caption
	p.HideAxes()

	for _, x := range board.Lines {
		stripe, err := plotter.NewLine(plotter.XYs{{X: x, Y: board.YMin}, {X: x, Y: board.YMax}})
		if err != nil {
			return nil, err
		}
		stripe.LineStyle.Color = lineColor
		stripe.LineStyle.Width = vg.Points(1)
		p.Add(stripe)
	}
	p.Add(needles(trials))

	p.X.Min, p.X.Max = board.XMin, board.XMax
	p.Y.Min, p.Y.Max = board.YMin, board.YMax
	return p, nil
}

func dartBoard(board estimator.Board, trials []estimator.Trial, caption string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = caption
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	square, err := plotter.NewLine(plotter.XYs{
		{X: board.XMin, Y: board.YMin},
		{X: board.XMax, Y: board.YMin},
		{X: board.XMax, Y: board.YMax},
		{X: board.XMin, Y: board.YMax},
		{X: board.XMin, Y: board.YMin},
	})
	if err != nil {
		return nil, err
	}
	square.LineStyle.Color = lineColor

	const segments = 360
	ring := make(plotter.XYs, segments+1)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / segments
		ring[i] = plotter.XY{X: board.Radius * math.Cos(a), Y: board.Radius * math.Sin(a)}
	}
	circle, err := plotter.NewLine(ring)
	if err != nil {
		return nil, err
	}
	circle.LineStyle.Color = lineColor
	p.Add(square, circle)

	var in, out plotter.XYs
	for _, t := range trials {
		pt := plotter.XY{X: t.From.X, Y: t.From.Y}
		if t.Hit {
			in = append(in, pt)
		} else {
			out = append(out, pt)
		}
	}
	for _, group := range []struct {
		pts plotter.XYs
		c   color.Color
	}{{in, hitColor}, {out, missColor}} {
		if len(group.pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(group.pts)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Shape = draw.PlusGlyph{}
		s.GlyphStyle.Color = group.c
		s.GlyphStyle.Radius = vg.Points(2)
		p.Add(s)
	}

	pad := (board.XMax - board.XMin) * 0.05
	p.X.Min, p.X.Max = board.XMin-pad, board.XMax+pad
	p.Y.Min, p.Y.Max = board.YMin-pad, board.YMax+pad
	return p, nil
}
