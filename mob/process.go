package mob

import (
	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/fluctuation"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

// Fluctuation returns the empirical fluctuation process of node id along an
// ordered partitioning variable, with the boundary at the tree's alpha. ds
// must be the data the tree was grown on. Trees read from JSON carry no
// scores, so the node model is refitted from its rows.
func (t *Tree) Fluctuation(ds *dataset.Dataset, id int, variable string) (*fluctuation.Path, error) {
	n := t.Node(id)
	if n == nil {
		return nil, errors.NewValueError("Tree.Fluctuation", "no such node")
	}
	if indexOf(t.formula.Partition, variable) < 0 {
		return nil, errors.NewValidationError("variable", "not a partitioning variable", variable)
	}
	v, ok := ds.Variable(variable)
	if !ok {
		return nil, errors.NewValidationError("data", "missing partitioning variable", variable)
	}
	if v.Kind == dataset.Nominal || (v.Kind == dataset.Ordinal && !t.config.OrdinalAsContinuous) {
		return nil, errors.NewValidationError("variable", "categorical variables have no ordered process", variable)
	}
	col, err := ds.Column(variable)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(n.Rows))
	for i, r := range n.Rows {
		if r >= len(col) {
			return nil, errors.NewDimensionError("Tree.Fluctuation", r+1, len(col), 0)
		}
		values[i] = col[r]
	}

	fm := n.Model
	if fm.Scores == nil {
		d, err := ds.Design(t.formula, t.terms, n.Rows)
		if err != nil {
			return nil, err
		}
		if fm, err = t.fitter.Fit(d); err != nil {
			return nil, err
		}
	}

	return fluctuation.Process(fm.Scores, fluctuation.Variable{Name: variable, Values: values}, fluctuation.Options{
		Functional: t.config.Functional,
		Trim:       t.config.Trim,
	}, t.config.Alpha)
}
