package metrics

import (
	"fmt"
	"math"
	"strings"
)

// Score is one named metric value.
type Score struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Report holds the metrics that make sense for a model family.
type Report struct {
	Family string  `json:"family"`
	N      int     `json:"n"`
	Scores []Score `json:"scores"`
}

// Evaluate scores fitted responses against observed ones. Rows where either
// value is NaN are ignored. Gaussian trees get MSE, RMSE, MAE and R²;
// binomial trees log loss, accuracy and AUC; poisson trees the mean
// deviance and MAE. Other families get MSE and MAE.
func Evaluate(family string, yTrue, yPred []float64) (*Report, error) {
	if err := checkPair("Evaluate", yTrue, yPred); err != nil {
		return nil, err
	}
	var y, p []float64
	for i := range yTrue {
		if math.IsNaN(yTrue[i]) || math.IsNaN(yPred[i]) {
			continue
		}
		y = append(y, yTrue[i])
		p = append(p, yPred[i])
	}

	type metric struct {
		name string
		fn   func(a, b []float64) (float64, error)
	}
	var ms []metric
	switch family {
	case "gaussian":
		ms = []metric{{"MSE", MSE}, {"RMSE", RMSE}, {"MAE", MAE}, {"R2", R2Score}}
	case "binomial":
		ms = []metric{{"LogLoss", BinaryLogLoss}, {"Accuracy", Accuracy}, {"AUC", AUC}}
	case "poisson":
		ms = []metric{{"MeanDeviance", MeanPoissonDeviance}, {"MAE", MAE}}
	default:
		ms = []metric{{"MSE", MSE}, {"MAE", MAE}}
	}

	r := &Report{Family: family, N: len(y)}
	for _, m := range ms {
		v, err := m.fn(y, p)
		if err != nil {
			return nil, err
		}
		r.Scores = append(r.Scores, Score{Name: m.name, Value: v})
	}
	return r, nil
}

func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, n = %d\n", r.Family, r.N)
	for _, s := range r.Scores {
		fmt.Fprintf(&sb, "  %-12s %.6g\n", s.Name, s.Value)
	}
	return sb.String()
}
