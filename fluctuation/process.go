package fluctuation

import (
	"math"

	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Path is the empirical fluctuation process of one ordered variable,
// evaluated at the ends of its tie groups.
type Path struct {
	Variable string
	// Time is the fraction of observations up to each evaluation point.
	Time []float64
	// At is the variable value at each evaluation point.
	At []float64
	// Components holds W_j(t) for every process component j.
	Components [][]float64
	// Statistic is the functional evaluated pointwise: max_j |W_j(t)| for
	// DoubleMax and ‖W(t)‖²/(t(1-t)) for SupLM.
	Statistic []float64
	// Boundary is the critical value of the functional at the requested level.
	Boundary   float64
	Functional Functional
}

// Process computes the fluctuation process of an ordered variable for
// plotting. alpha sets the level of the boundary.
func Process(scores mat.Matrix, v Variable, opts Options, alpha float64) (*Path, error) {
	if v.Categorical {
		return nil, errors.NewValueError("fluctuation.Process", "categorical variables have no ordered process")
	}
	u, err := Decorrelate(scores)
	if err != nil {
		return nil, err
	}
	n, k := u.Dims()
	if len(v.Values) != n {
		return nil, errors.NewDimensionError("fluctuation.Process", n, len(v.Values), 0)
	}

	op := orderedPath(u, v.Values)
	p := &Path{
		Variable:   v.Name,
		Functional: opts.Functional,
		Components: make([][]float64, k),
		Boundary:   CriticalValue(opts.Functional, k, alpha, opts.trim()),
	}
	sqrtN := math.Sqrt(float64(n))
	for idx, end := range op.ends {
		t := float64(end+1) / float64(n)
		p.Time = append(p.Time, t)
		p.At = append(p.At, op.at[idx])

		var maxAbs, sq float64
		for j, x := range op.cum[idx] {
			w := x / sqrtN
			p.Components[j] = append(p.Components[j], w)
			maxAbs = math.Max(maxAbs, math.Abs(w))
			sq += w * w
		}
		if opts.Functional == SupLM {
			p.Statistic = append(p.Statistic, sq/(t*(1-t)))
		} else {
			p.Statistic = append(p.Statistic, maxAbs)
		}
	}
	return p, nil
}
