package linear

import (
	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

// FitFunc はユーザー定義モデルの当てはめ関数
type FitFunc func(d *model.Design) (*model.FittedModel, error)

type custom struct {
	name string
	fit  FitFunc
	mean func(eta float64) float64
}

// Custom はユーザー定義の当てはめ関数から Fitter を作る
//
// fit は Scores（行数 = Design の行数）、LogLik、Objective、DF を埋めた
// FittedModel を返す必要がある。mean が nil の場合は恒等リンクとみなす。
// fit 内の panic は PanicError として FitError に包まれる。
func Custom(name string, fit FitFunc, mean func(eta float64) float64) model.Fitter {
	if mean == nil {
		mean = func(eta float64) float64 { return eta }
	}
	return &custom{name: name, fit: fit, mean: mean}
}

func (c *custom) Name() string { return c.name }

func (c *custom) Mean(eta float64) float64 { return c.mean(eta) }

func (c *custom) Fit(d *model.Design) (fm *model.FittedModel, err error) {
	if err := checkDesign(c.name, d); err != nil {
		return nil, err
	}
	n, k := d.Dims()
	if c.fit == nil {
		return nil, errors.NewFitError(c.name, "no fit function", n, k, nil)
	}

	err = errors.SafeExecute(c.name+".Fit", func() error {
		var fitErr error
		fm, fitErr = c.fit(d)
		return fitErr
	})
	if err != nil {
		if errors.Is(err, errors.ErrFit) {
			return nil, err
		}
		return nil, errors.NewFitError(c.name, "user fit failed", n, k, err)
	}
	if fm == nil {
		return nil, errors.NewFitError(c.name, "user fit returned no model", n, k, nil)
	}
	if fm.Scores == nil {
		return nil, errors.NewFitError(c.name, "user fit returned no scores", n, k, nil)
	}
	if r, _ := fm.Scores.Dims(); r != n {
		return nil, errors.NewFitError(c.name, "score rows do not match design rows", n, k, errors.NewDimensionError(c.name+".Fit", n, r, 0))
	}
	if fm.Family == "" {
		fm.Family = c.name
	}
	if fm.NumParams == 0 {
		fm.NumParams = len(fm.Coefficients)
	}
	if fm.DF == 0 {
		fm.DF = fm.NumParams
	}
	if fm.NumObs == 0 {
		fm.NumObs = countPositive(d.W)
	}
	if fm.WeightSum == 0 {
		fm.WeightSum = d.WeightSum()
	}
	if fm.Names == nil {
		fm.Names = append([]string(nil), d.Names...)
	}
	return fm, nil
}
