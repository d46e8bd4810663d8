// Package plots renders training histories to image files. Strictly
// presentation glue; nothing in here affects training.
package plots

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/b0tShaman/gnn-go/gnn"
)

func xys(series []float64) plotter.XYs {
	pts := make(plotter.XYs, len(series))
	for i, v := range series {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	return pts
}

// Curves writes loss (and validation loss, when recorded) per epoch to an
// image file; the format follows the file extension (.png, .svg, .pdf).
func Curves(hist gnn.History, title, path string) error {
	if len(hist.Loss) == 0 {
		return errors.New("plots: empty history")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	args := []any{"train", xys(hist.Loss)}
	if len(hist.ValLoss) > 0 {
		args = append(args, "validation", xys(hist.ValLoss))
	}
	if err := plotutil.AddLines(p, args...); err != nil {
		return errors.Wrap(err, "plots")
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "plots: saving %q", path)
	}
	return nil
}
