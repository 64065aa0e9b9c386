package linear

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Coefficient is one row of a coefficient table.
type Coefficient struct {
	Name      string  `json:"name"`
	Estimate  float64 `json:"estimate"`
	StdError  float64 `json:"std_error"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
}

// Summary is the coefficient table of a fitted node model.
type Summary struct {
	Family        string        `json:"family"`
	Coefficients  []Coefficient `json:"coefficients"`
	StatisticName string        `json:"statistic_name"`
	Dispersion    float64       `json:"dispersion"`
	LogLik        float64       `json:"loglik"`
	AIC           float64       `json:"aic"`
	BIC           float64       `json:"bic"`
	NumObs        int           `json:"n_obs"`
	Converged     bool          `json:"converged"`
}

// Summarize computes standard errors and Wald tests for every coefficient.
// Gaussian models use the t distribution with n-k degrees of freedom and the
// estimated residual variance; the GLM families use the standard normal.
func Summarize(fm *model.FittedModel) (*Summary, error) {
	if fm == nil || fm.Coefficients == nil {
		return nil, errors.NewNotFittedError("Summarize", "Summarize")
	}
	if fm.CovUnscaled == nil {
		return nil, errors.NewValueError("Summarize", "model has no covariance matrix")
	}

	s := &Summary{
		Family:     fm.Family,
		Dispersion: fm.Dispersion,
		LogLik:     fm.LogLik,
		AIC:        fm.AIC(),
		BIC:        fm.BIC(),
		NumObs:     fm.NumObs,
		Converged:  fm.Converged,
	}

	dispersion := fm.Dispersion
	if dispersion <= 0 {
		dispersion = 1
	}
	twoSided := func(stat float64) float64 {
		return 2 * distuv.UnitNormal.Survival(math.Abs(stat))
	}
	s.StatisticName = "z"
	if fm.Family == "gaussian" {
		s.StatisticName = "t"
		if df := fm.WeightSum - float64(fm.NumParams); df > 0 {
			t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
			twoSided = func(stat float64) float64 {
				return 2 * t.Survival(math.Abs(stat))
			}
		} else {
			twoSided = func(float64) float64 { return math.NaN() }
		}
	}

	for j, b := range fm.Coefficients {
		name := fmt.Sprintf("b%d", j)
		if j < len(fm.Names) {
			name = fm.Names[j]
		}
		se := math.Sqrt(dispersion * fm.CovUnscaled.At(j, j))
		c := Coefficient{Name: name, Estimate: b, StdError: se, Statistic: math.NaN(), PValue: math.NaN()}
		if se > 0 {
			c.Statistic = b / se
			c.PValue = twoSided(c.Statistic)
		}
		s.Coefficients = append(s.Coefficients, c)
	}
	return s, nil
}

// String renders the table like R's summary output.
func (s *Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-14s %12s %12s %10s %10s\n", "", "Estimate", "Std. Error", s.StatisticName+" value", "Pr(>|"+s.StatisticName+"|)")
	for _, c := range s.Coefficients {
		fmt.Fprintf(&sb, "%-14s %12.5g %12.5g %10.4g %10.4g\n", c.Name, c.Estimate, c.StdError, c.Statistic, c.PValue)
	}
	fmt.Fprintf(&sb, "family: %s  logLik: %.4f  AIC: %.4f  BIC: %.4f  n: %d\n", s.Family, s.LogLik, s.AIC, s.BIC, s.NumObs)
	return sb.String()
}
