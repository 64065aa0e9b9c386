// Package dataset holds the observations a model-based tree is grown on:
// typed variables stored column-wise, case weights, formulas and readers for
// CSV data with YAML metadata.
package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

// Dataset is an ordered set of observations. Missing values are NaN.
type Dataset struct {
	vars    []Variable
	index   map[string]int
	cols    [][]float64
	weights []float64
}

// New creates an empty dataset with the given schema.
func New(vars ...Variable) (*Dataset, error) {
	d := &Dataset{index: make(map[string]int, len(vars))}
	for _, v := range vars {
		if err := v.validate(); err != nil {
			return nil, err
		}
		if _, dup := d.index[v.Name]; dup {
			return nil, errors.NewValidationError("dataset", "duplicate variable", v.Name)
		}
		v.Levels = append([]string(nil), v.Levels...)
		d.index[v.Name] = len(d.vars)
		d.vars = append(d.vars, v)
		d.cols = append(d.cols, nil)
	}
	return d, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.weights)
}

// Variables returns a copy of the schema.
func (d *Dataset) Variables() []Variable {
	out := make([]Variable, len(d.vars))
	for i, v := range d.vars {
		v.Levels = append([]string(nil), v.Levels...)
		out[i] = v
	}
	return out
}

// Variable looks up a variable by name.
func (d *Dataset) Variable(name string) (Variable, bool) {
	i, ok := d.index[name]
	if !ok {
		return Variable{}, false
	}
	return d.vars[i], true
}

// Column returns the stored values of a variable. The slice is shared with
// the dataset and must not be modified.
func (d *Dataset) Column(name string) ([]float64, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, errors.NewValidationError("variable", "unknown variable", name)
	}
	return d.cols[i], nil
}

// Value returns one stored value.
func (d *Dataset) Value(row int, name string) (float64, error) {
	col, err := d.Column(name)
	if err != nil {
		return 0, err
	}
	if row < 0 || row >= len(col) {
		return 0, errors.NewValueError("Dataset.Value", "row "+strconv.Itoa(row)+" out of range")
	}
	return col[row], nil
}

// AppendRow appends one observation with weight 1. Continuous variables take
// numbers (or numeric strings); categorical variables take level names or
// codes. Absent fields and nil are stored as missing.
func (d *Dataset) AppendRow(row map[string]interface{}) error {
	for name := range row {
		if _, ok := d.index[name]; !ok {
			return errors.NewValidationError("variable", "unknown variable", name)
		}
	}
	values := make([]float64, len(d.vars))
	for i, v := range d.vars {
		raw, ok := row[v.Name]
		if !ok || raw == nil {
			values[i] = math.NaN()
			continue
		}
		x, err := convert(v, raw)
		if err != nil {
			return err
		}
		values[i] = x
	}
	for i, x := range values {
		d.cols[i] = append(d.cols[i], x)
	}
	d.weights = append(d.weights, 1)
	return nil
}

// AppendValues appends one observation given as stored values in schema
// order (level codes for categorical variables).
func (d *Dataset) AppendValues(values ...float64) error {
	if len(values) != len(d.vars) {
		return errors.NewDimensionError("Dataset.AppendValues", len(d.vars), len(values), 1)
	}
	for i, v := range d.vars {
		x := values[i]
		if v.Categorical() && !math.IsNaN(x) && !validCode(v, x) {
			return errors.NewValidationError(v.Name, "level code out of range", x)
		}
	}
	for i, x := range values {
		d.cols[i] = append(d.cols[i], x)
	}
	d.weights = append(d.weights, 1)
	return nil
}

func validCode(v Variable, x float64) bool {
	return x == math.Trunc(x) && x >= 0 && int(x) < len(v.Levels)
}

func convert(v Variable, raw interface{}) (float64, error) {
	switch x := raw.(type) {
	case float64:
		return checkCode(v, x)
	case float32:
		return checkCode(v, float64(x))
	case int:
		return checkCode(v, float64(x))
	case int64:
		return checkCode(v, float64(x))
	case string:
		return parseCell(v, x)
	case bool:
		if v.Categorical() {
			return parseCell(v, strconv.FormatBool(x))
		}
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.NewValidationError(v.Name, "unsupported value type", raw)
	}
}

func checkCode(v Variable, x float64) (float64, error) {
	if v.Categorical() && !math.IsNaN(x) && !validCode(v, x) {
		return 0, errors.NewValidationError(v.Name, "level code out of range", x)
	}
	return x, nil
}

// parseCell は文字列セルを保存値に変換する。空文字列と NA は欠測
func parseCell(v Variable, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return math.NaN(), nil
	}
	if v.Categorical() {
		i, ok := v.LevelIndex(s)
		if !ok {
			return 0, errors.NewValidationError(v.Name, "unknown level", s)
		}
		return float64(i), nil
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.NewValidationError(v.Name, "not a number", s)
	}
	return x, nil
}

func isMissing(s string) bool {
	return s == "" || s == "NA" || s == "?"
}

// SetWeight sets the case weight of a row. Zero excludes the row from
// fitting; negative weights are rejected.
func (d *Dataset) SetWeight(row int, w float64) error {
	if row < 0 || row >= len(d.weights) {
		return errors.NewValueError("Dataset.SetWeight", "row "+strconv.Itoa(row)+" out of range")
	}
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return errors.NewValidationError("weight", "weights must be finite and non-negative", w)
	}
	d.weights[row] = w
	return nil
}

// Weight returns the case weight of a row.
func (d *Dataset) Weight(row int) float64 {
	return d.weights[row]
}

// Weights returns the case weights. The slice is shared with the dataset.
func (d *Dataset) Weights() []float64 {
	return d.weights
}

// ActiveRows returns the rows with positive weight in ascending order.
func (d *Dataset) ActiveRows() []int {
	rows := make([]int, 0, len(d.weights))
	for i, w := range d.weights {
		if w > 0 {
			rows = append(rows, i)
		}
	}
	return rows
}

// Subset returns a new dataset with the given rows, in the given order.
func (d *Dataset) Subset(rows []int) (*Dataset, error) {
	out, err := New(d.vars...)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r < 0 || r >= d.Len() {
			return nil, errors.NewValueError("Dataset.Subset", "row "+strconv.Itoa(r)+" out of range")
		}
		for c := range d.cols {
			out.cols[c] = append(out.cols[c], d.cols[c][r])
		}
		out.weights = append(out.weights, d.weights[r])
	}
	return out, nil
}
