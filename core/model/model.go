// Package model defines the contract between the tree builder and the
// parametric models fitted in each node.
package model

import (
	"math"

	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// InterceptName is the column name of the intercept in every design.
const InterceptName = "(Intercept)"

// Design is the weighted regression problem of one node: an n×k design
// matrix whose first column is the intercept, the response and case weights.
type Design struct {
	X     *mat.Dense
	Y     []float64
	W     []float64
	Names []string
}

// Dims returns the number of rows and coefficients.
func (d *Design) Dims() (n, k int) {
	if d == nil || d.X == nil {
		return 0, 0
	}
	return d.X.Dims()
}

// WeightSum returns the sum of case weights.
func (d *Design) WeightSum() float64 {
	var s float64
	for _, w := range d.W {
		s += w
	}
	return s
}

// Validate checks that the pieces of the design agree in length.
func (d *Design) Validate() error {
	n, k := d.Dims()
	if n == 0 || k == 0 {
		return errors.NewValueError("Design.Validate", "empty design")
	}
	if len(d.Y) != n {
		return errors.NewDimensionError("Design.Validate", n, len(d.Y), 0)
	}
	if len(d.W) != n {
		return errors.NewDimensionError("Design.Validate", n, len(d.W), 0)
	}
	if len(d.Names) != k {
		return errors.NewDimensionError("Design.Validate", k, len(d.Names), 1)
	}
	return nil
}

// FittedModel is the result of fitting a family to a Design.
type FittedModel struct {
	Family       string
	Coefficients []float64
	Names        []string

	// Scores holds one row of score contributions (derivative of the
	// log-likelihood with respect to the coefficients) per design row.
	Scores    *mat.Dense
	Fitted    []float64
	Residuals []float64

	NumParams int
	// DF is NumParams plus one when a dispersion parameter is estimated.
	DF        int
	NumObs    int
	WeightSum float64

	LogLik     float64
	Objective  float64
	Dispersion float64

	Iterations int
	Converged  bool
	// Warning is set when the iteration cap was reached.
	Warning *errors.NonConvergence

	// CovUnscaled is (XᵀWX)⁻¹.
	CovUnscaled *mat.SymDense
}

// LinearPredictor evaluates xᵀβ.
func (fm *FittedModel) LinearPredictor(x []float64) float64 {
	var eta float64
	for j, b := range fm.Coefficients {
		eta += b * x[j]
	}
	return eta
}

// AIC returns -2·logLik + 2·DF.
func (fm *FittedModel) AIC() float64 {
	return -2*fm.LogLik + 2*float64(fm.DF)
}

// BIC returns -2·logLik + ln(n)·DF with n the weight sum.
func (fm *FittedModel) BIC() float64 {
	return -2*fm.LogLik + math.Log(fm.WeightSum)*float64(fm.DF)
}

// Fitter fits one model family. Implementations must be safe for concurrent
// use: the builder calls Fit from several goroutines.
type Fitter interface {
	// Name identifies the family, e.g. "gaussian".
	Name() string
	// Fit fits the family to d.
	Fit(d *Design) (*FittedModel, error)
	// Mean maps a linear predictor to the mean response (inverse link).
	Mean(eta float64) float64
}
