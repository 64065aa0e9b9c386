package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Formula is "y ~ x1 + x2 | z1 + z2": the response, the regressors of the
// node model and the partitioning variables.
type Formula struct {
	Response   string   `json:"response"`
	Predictors []string `json:"predictors"`
	Partition  []string `json:"partition"`
}

// ParseFormula parses a formula. An empty regressor part or "1" fits an
// intercept-only model; "-1" and "0" are rejected because node models always
// carry an intercept. "." among the partitioning variables stands for every
// variable not used elsewhere and is expanded by Resolve.
func ParseFormula(s string) (*Formula, error) {
	lhs, rhs, ok := strings.Cut(s, "~")
	if !ok {
		return nil, errors.NewValidationError("formula", "missing '~'", s)
	}
	f := &Formula{Response: strings.TrimSpace(lhs)}
	if f.Response == "" {
		return nil, errors.NewValidationError("formula", "missing response", s)
	}
	preds, parts, ok := strings.Cut(rhs, "|")
	if !ok {
		return nil, errors.NewValidationError("formula", "missing '|' before partitioning variables", s)
	}

	for _, term := range splitTerms(preds) {
		switch term {
		case "1":
		case "0", "-1":
			return nil, errors.NewValidationError("formula", "models without intercept are not supported", s)
		default:
			if strings.HasPrefix(term, "-") {
				return nil, errors.NewValidationError("formula", "term removal is not supported", term)
			}
			f.Predictors = append(f.Predictors, term)
		}
	}
	f.Partition = splitTerms(parts)
	if len(f.Partition) == 0 {
		return nil, errors.NewValidationError("formula", "no partitioning variables", s)
	}
	return f, nil
}

// splitTerms は "a + b + -1" を項に分解する
func splitTerms(s string) []string {
	s = strings.ReplaceAll(s, "-", "+-")
	var out []string
	for _, t := range strings.Split(s, "+") {
		t = strings.Join(strings.Fields(t), "")
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// String renders the formula in canonical form.
func (f *Formula) String() string {
	preds := "1"
	if len(f.Predictors) > 0 {
		preds = strings.Join(f.Predictors, " + ")
	}
	return f.Response + " ~ " + preds + " | " + strings.Join(f.Partition, " + ")
}

// Variables returns every variable the formula uses, response first.
func (f *Formula) Variables() []string {
	out := []string{f.Response}
	out = append(out, f.Predictors...)
	return append(out, f.Partition...)
}

// Resolve checks the formula against a schema and expands ".". It returns a
// new formula.
func (f *Formula) Resolve(vars []Variable) (*Formula, error) {
	byName := make(map[string]Variable, len(vars))
	for _, v := range vars {
		byName[v.Name] = v
	}
	out := &Formula{Response: f.Response, Predictors: append([]string(nil), f.Predictors...)}

	resp, ok := byName[f.Response]
	if !ok {
		return nil, errors.NewValidationError("formula", "unknown response variable", f.Response)
	}
	if resp.Categorical() && len(resp.Levels) != 2 {
		return nil, errors.NewValidationError("formula", "categorical response must have two levels", f.Response)
	}

	used := map[string]bool{f.Response: true}
	for _, p := range f.Predictors {
		if _, ok := byName[p]; !ok {
			return nil, errors.NewValidationError("formula", "unknown regressor", p)
		}
		if used[p] {
			return nil, errors.NewValidationError("formula", "variable used twice", p)
		}
		used[p] = true
	}

	for _, z := range f.Partition {
		if z == "." {
			for _, v := range vars {
				if !used[v.Name] {
					out.Partition = append(out.Partition, v.Name)
					used[v.Name] = true
				}
			}
			continue
		}
		if _, ok := byName[z]; !ok {
			return nil, errors.NewValidationError("formula", "unknown partitioning variable", z)
		}
		if z == f.Response {
			return nil, errors.NewValidationError("formula", "response cannot be a partitioning variable", z)
		}
		if contains(out.Partition, z) {
			return nil, errors.NewValidationError("formula", "partitioning variable listed twice", z)
		}
		out.Partition = append(out.Partition, z)
		used[z] = true
	}
	if len(out.Partition) == 0 {
		return nil, errors.NewValidationError("formula", "no partitioning variables left after expansion", f.String())
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// Term is one column of a node model's design matrix: a continuous
// regressor, or the indicator of one level of a categorical regressor
// (treatment contrasts against the first level).
type Term struct {
	Variable string `json:"variable"`
	Level    string `json:"level,omitempty"`
}

// Name is the column label, e.g. "x" or "genderm".
func (t Term) Name() string {
	return t.Variable + t.Level
}

// Terms returns the non-intercept design columns of the formula.
func Terms(f *Formula, vars []Variable) ([]Term, error) {
	byName := make(map[string]Variable, len(vars))
	for _, v := range vars {
		byName[v.Name] = v
	}
	var terms []Term
	for _, p := range f.Predictors {
		v, ok := byName[p]
		if !ok {
			return nil, errors.NewValidationError("formula", "unknown regressor", p)
		}
		if !v.Categorical() {
			terms = append(terms, Term{Variable: p})
			continue
		}
		for _, l := range v.Levels[1:] {
			terms = append(terms, Term{Variable: p, Level: l})
		}
	}
	return terms, nil
}

// Names returns the coefficient names for terms, intercept first.
func Names(terms []Term) []string {
	names := []string{model.InterceptName}
	for _, t := range terms {
		names = append(names, t.Name())
	}
	return names
}

// CompleteRows returns the active rows with no missing value in any of the
// named variables.
func (d *Dataset) CompleteRows(names []string) ([]int, error) {
	cols := make([][]float64, len(names))
	for i, n := range names {
		c, err := d.Column(n)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	var rows []int
	for _, r := range d.ActiveRows() {
		complete := true
		for _, c := range cols {
			if math.IsNaN(c[r]) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// Regressors writes the design row of a dataset row into dst (intercept
// first) and returns it. Categorical regressors are matched by level name.
func (d *Dataset) Regressors(terms []Term, row int, dst []float64) ([]float64, error) {
	dst = append(dst[:0], 1)
	for _, t := range terms {
		x, err := d.Value(row, t.Variable)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(x) {
			return nil, errors.NewValueError("Dataset.Regressors", "missing value of "+t.Variable+" in row "+strconv.Itoa(row))
		}
		if t.Level == "" {
			dst = append(dst, x)
			continue
		}
		v, _ := d.Variable(t.Variable)
		if v.Format(x) == t.Level {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	}
	return dst, nil
}

// Design builds the weighted regression problem for the given rows.
func (d *Dataset) Design(f *Formula, terms []Term, rows []int) (*model.Design, error) {
	y, err := d.Column(f.Response)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewValueError("Dataset.Design", "no rows")
	}
	k := len(terms) + 1
	x := mat.NewDense(len(rows), k, nil)
	des := &model.Design{
		Y:     make([]float64, len(rows)),
		W:     make([]float64, len(rows)),
		Names: Names(terms),
	}
	buf := make([]float64, 0, k)
	for i, r := range rows {
		buf, err = d.Regressors(terms, r, buf)
		if err != nil {
			return nil, err
		}
		x.SetRow(i, buf)
		des.Y[i] = y[r]
		des.W[i] = d.weights[r]
	}
	des.X = x
	return des, nil
}
