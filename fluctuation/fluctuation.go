// Package fluctuation implements generalized M-fluctuation tests for
// parameter instability: the score contributions of a fitted model are
// ordered (or grouped) by a partitioning variable, aggregated into an
// empirical fluctuation process and summarized by a functional with an
// asymptotic p-value.
package fluctuation

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/mobtree/core/parallel"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultTrim is the fraction trimmed from both ends for SupLM.
	DefaultTrim = 0.1

	// rankTol は固有値を数値的に 0 とみなす相対閾値
	rankTol = 1e-10
)

// Variable is one partitioning variable restricted to the rows of the tested
// node, in the same order as the score rows. Categorical values are level
// codes.
type Variable struct {
	Name        string
	Values      []float64
	Categorical bool
}

// Options control the tests.
type Options struct {
	// Functional is used for ordered variables; categorical variables always
	// use ChiSquare.
	Functional Functional
	// Trim is the SupLM trimming fraction (default 0.1).
	Trim float64
	// Bonferroni adjusts p-values for the number of tested variables.
	Bonferroni bool
	// Workers bounds the goroutines of TestAll (default 1).
	Workers int
}

func (o Options) trim() float64 {
	if o.Trim <= 0 || o.Trim >= 0.5 {
		return DefaultTrim
	}
	return o.Trim
}

// Result is the outcome of testing one partitioning variable.
type Result struct {
	Variable   string     `json:"variable"`
	Functional Functional `json:"functional"`
	Statistic  float64    `json:"statistic"`
	// PValue is the unadjusted p-value.
	PValue float64 `json:"p_value"`
	// Adjusted is the Bonferroni adjusted p-value, or PValue when no
	// adjustment was requested.
	Adjusted float64 `json:"adjusted"`
	DF       int     `json:"df"`
	Skipped  bool    `json:"skipped,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

func skipped(v Variable, f Functional, reason string) Result {
	return Result{Variable: v.Name, Functional: f, PValue: 1, Adjusted: 1, Skipped: true, Reason: reason}
}

// Decorrelate returns the n×r matrix of scores u_i = Λ^{-1/2} Vᵀ ψ_i where
// J = ψᵀψ/n = VΛVᵀ. Eigenvalues below 1e-10 times the largest are dropped,
// so r is the numerical rank of J. Rows then satisfy Σ u uᵀ / n = I.
func Decorrelate(scores mat.Matrix) (*mat.Dense, error) {
	n, k := scores.Dims()
	if n == 0 || k == 0 {
		return nil, errors.NewValueError("fluctuation.Decorrelate", "empty score matrix")
	}

	var j mat.SymDense
	j.SymOuterK(1/float64(n), mat.DenseCopyOf(scores).T())

	var eig mat.EigenSym
	if ok := eig.Factorize(&j, true); !ok {
		return nil, errors.Wrap(errors.ErrSingularMatrix, "eigen decomposition of score covariance failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	maxVal := floats.Max(values)
	if maxVal <= 0 {
		return nil, errors.NewValueError("fluctuation.Decorrelate", "score covariance is zero")
	}

	var keep []int
	for i, v := range values {
		if v > rankTol*maxVal {
			keep = append(keep, i)
		}
	}
	// 変換行列 T = V_r Λ_r^{-1/2} (k×r)
	t := mat.NewDense(k, len(keep), nil)
	for c, idx := range keep {
		s := 1 / math.Sqrt(values[idx])
		for r := 0; r < k; r++ {
			t.Set(r, c, vectors.At(r, idx)*s)
		}
	}
	var u mat.Dense
	u.Mul(scores, t)
	return &u, nil
}

// Test runs the fluctuation test of one variable.
func Test(scores mat.Matrix, v Variable, opts Options) (Result, error) {
	u, err := Decorrelate(scores)
	if err != nil {
		if errors.Is(err, errors.ErrSingularMatrix) {
			return Result{}, err
		}
		f := opts.Functional
		if v.Categorical {
			f = ChiSquare
		}
		return skipped(v, f, "degenerate scores"), nil
	}
	return testDecorrelated(u, v, opts)
}

func testDecorrelated(u *mat.Dense, v Variable, opts Options) (Result, error) {
	n, k := u.Dims()
	if len(v.Values) != n {
		return Result{}, errors.NewDimensionError("fluctuation.Test", n, len(v.Values), 0)
	}
	if err := errors.CheckNumericalStability("fluctuation.Test "+v.Name, v.Values, 0); err != nil {
		return Result{}, err
	}
	if v.Categorical {
		return testCategorical(u, v, k)
	}
	return testOrdered(u, v, k, opts)
}

func testCategorical(u *mat.Dense, v Variable, k int) (Result, error) {
	n, _ := u.Dims()
	sums := map[float64][]float64{}
	counts := map[float64]int{}
	for i := 0; i < n; i++ {
		c := v.Values[i]
		s, ok := sums[c]
		if !ok {
			s = make([]float64, k)
			sums[c] = s
		}
		floats.Add(s, u.RawRowView(i))
		counts[c]++
	}
	if len(sums) < 2 {
		return skipped(v, ChiSquare, "constant"), nil
	}

	var stat float64
	levels := make([]float64, 0, len(sums))
	for c := range sums {
		levels = append(levels, c)
	}
	sort.Float64s(levels)
	for _, c := range levels {
		stat += floats.Dot(sums[c], sums[c]) / float64(counts[c])
	}
	df := k * (len(sums) - 1)
	p := PValue(ChiSquare, stat, df, 0)
	return Result{Variable: v.Name, Functional: ChiSquare, Statistic: stat, PValue: p, Adjusted: p, DF: df}, nil
}

func testOrdered(u *mat.Dense, v Variable, k int, opts Options) (Result, error) {
	path := orderedPath(u, v.Values)
	if len(path.ends) == 0 {
		return skipped(v, opts.Functional, "constant"), nil
	}

	trim := opts.trim()
	n := float64(path.n)
	var stat float64
	switch opts.Functional {
	case SupLM:
		for idx, end := range path.ends {
			t := float64(end+1) / n
			if t < trim || t > 1-trim {
				continue
			}
			sq := floats.Dot(path.cum[idx], path.cum[idx])
			stat = math.Max(stat, sq/n/(t*(1-t)))
		}
	default:
		for _, row := range path.cum {
			for _, x := range row {
				stat = math.Max(stat, math.Abs(x)/math.Sqrt(n))
			}
		}
	}
	p := PValue(opts.Functional, stat, k, trim)
	return Result{Variable: v.Name, Functional: opts.Functional, Statistic: stat, PValue: p, Adjusted: p, DF: k}, nil
}

// orderedCumsum は変数で並べ替えたスコアの累積和を、同順位グループの末尾
// （最後の観測を除く）でだけ保持したもの
type orderedCumsum struct {
	n    int
	ends []int
	at   []float64
	cum  [][]float64
}

func orderedPath(u *mat.Dense, values []float64) orderedCumsum {
	n, k := u.Dims()
	vals := append([]float64(nil), values...)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	essentials.VoodooSort(vals, func(i, j int) bool {
		return vals[i] < vals[j]
	}, order)

	out := orderedCumsum{n: n}
	running := make([]float64, k)
	for pos, row := range order {
		floats.Add(running, u.RawRowView(row))
		if pos == n-1 || vals[pos+1] == vals[pos] {
			continue
		}
		out.ends = append(out.ends, pos)
		out.at = append(out.at, vals[pos])
		out.cum = append(out.cum, append([]float64(nil), running...))
	}
	return out
}

// TestAll tests every variable against the same scores and applies the
// Bonferroni adjustment when requested. Results keep the input order.
func TestAll(scores mat.Matrix, vars []Variable, opts Options) ([]Result, error) {
	u, err := Decorrelate(scores)
	if err != nil && errors.Is(err, errors.ErrSingularMatrix) {
		return nil, err
	}

	results := make([]Result, len(vars))
	errs := make([]error, len(vars))
	parallel.ForEach(len(vars), opts.Workers, func(i int) {
		if u == nil {
			f := opts.Functional
			if vars[i].Categorical {
				f = ChiSquare
			}
			results[i] = skipped(vars[i], f, "degenerate scores")
			return
		}
		results[i], errs[i] = testDecorrelated(u, vars[i], opts)
	})
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	if opts.Bonferroni {
		Bonferroni(results)
	}
	return results, nil
}

// Bonferroni sets Adjusted = min(1, PValue·m) in place, where m is the
// number of variables that were actually tested.
func Bonferroni(results []Result) {
	m := 0
	for _, r := range results {
		if !r.Skipped {
			m++
		}
	}
	for i := range results {
		if results[i].Skipped {
			results[i].Adjusted = 1
			continue
		}
		results[i].Adjusted = math.Min(1, results[i].PValue*float64(m))
	}
}

// Best returns the index of the tested variable with the smallest adjusted
// p-value; ties go to the earlier variable. It returns -1 when every variable
// was skipped.
func Best(results []Result) int {
	best := -1
	for i, r := range results {
		if r.Skipped {
			continue
		}
		if best < 0 || r.Adjusted < results[best].Adjusted {
			best = i
		}
	}
	return best
}
