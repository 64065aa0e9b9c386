// Package visualize draws fluctuation processes and leaf fits with
// gonum/plot.
package visualize

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/fluctuation"
	"github.com/YuminosukeSato/mobtree/mob"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// DefaultWidth and DefaultHeight are the image size used by Save.
const (
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

// Process plots the pointwise functional of a fluctuation process against
// the partitioning variable together with its critical boundary.
func Process(path *fluctuation.Path) (*plot.Plot, error) {
	if path == nil || len(path.At) == 0 {
		return nil, errors.NewValueError("visualize.Process", "empty fluctuation process")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Fluctuation along %s (%s)", path.Variable, path.Functional)
	p.X.Label.Text = path.Variable
	p.Y.Label.Text = "statistic"

	pts := make(plotter.XYs, len(path.At))
	for i := range path.At {
		pts[i].X = path.At[i]
		pts[i].Y = path.Statistic[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, errors.Wrap(err, "building process line")
	}
	line.LineStyle.Color = plotutil.Color(0)

	lo, hi := path.At[0], path.At[len(path.At)-1]
	if lo == hi {
		hi = lo + 1
	}
	bound, err := plotter.NewLine(plotter.XYs{{X: lo, Y: path.Boundary}, {X: hi, Y: path.Boundary}})
	if err != nil {
		return nil, errors.Wrap(err, "building boundary line")
	}
	bound.LineStyle.Color = plotutil.Color(1)
	bound.LineStyle.Dashes = plotutil.Dashes(1)

	p.Add(plotter.NewGrid(), line, bound)
	p.Legend.Add("process", line)
	p.Legend.Add("boundary", bound)
	p.Y.Min = 0
	p.Y.Max = math.Max(p.Y.Max, path.Boundary*1.1)
	return p, nil
}

// LeafFits scatters the response against one numeric regressor, one colour
// per leaf, with each leaf's fitted response evaluated at the observed rows.
func LeafFits(tree *mob.Tree, ds *dataset.Dataset, regressor string) (*plot.Plot, error) {
	f := tree.Formula()
	if indexOf(f.Predictors, regressor) < 0 {
		return nil, errors.NewValidationError("regressor", "not a regressor of the tree", regressor)
	}
	x, err := ds.Column(regressor)
	if err != nil {
		return nil, err
	}
	y, err := ds.Column(f.Response)
	if err != nil {
		return nil, err
	}
	fitted, err := tree.Predict(ds, mob.PredictResponse)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s by leaf", f.Response)
	p.X.Label.Text = regressor
	p.Y.Label.Text = f.Response
	p.Add(plotter.NewGrid())

	for i, leaf := range tree.Leaves() {
		var obs, fit plotter.XYs
		for _, r := range leaf.Rows {
			if r >= len(x) || math.IsNaN(x[r]) {
				continue
			}
			obs = append(obs, plotter.XY{X: x[r], Y: y[r]})
			fit = append(fit, plotter.XY{X: x[r], Y: fitted[r]})
		}
		if len(obs) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(obs)
		if err != nil {
			return nil, errors.Wrapf(err, "leaf %d", leaf.ID)
		}
		sc.GlyphStyle.Color = plotutil.Color(i)
		sc.GlyphStyle.Radius = vg.Points(1.5)

		fl, err := plotter.NewScatter(fit)
		if err != nil {
			return nil, errors.Wrapf(err, "leaf %d", leaf.ID)
		}
		fl.GlyphStyle.Color = plotutil.Color(i)
		fl.GlyphStyle.Shape = plotutil.Shape(1)

		p.Add(sc, fl)
		p.Legend.Add(fmt.Sprintf("node %d", leaf.ID), sc)
	}
	return p, nil
}

// Write renders p in the given format ("png", "svg", "pdf", ...).
func Write(w io.Writer, p *plot.Plot, format string) error {
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, format)
	if err != nil {
		return errors.Wrapf(err, "rendering %s", format)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing plot")
	}
	return nil
}

// Save renders p to a file whose extension selects the format.
func Save(p *plot.Plot, path string) error {
	if strings.TrimPrefix(filepath.Ext(path), ".") == "" {
		return errors.NewValidationError("path", "needs an extension such as .png", path)
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return errors.Wrapf(err, "saving %s", path)
	}
	return nil
}

func indexOf(list []string, s string) int {
	for i, x := range list {
		if x == s {
			return i
		}
	}
	return -1
}
