package linear

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// newDesign は切片列を付けた Design を作る
func newDesign(x []float64, y []float64) *model.Design {
	n := len(y)
	X := mat.NewDense(n, 2, nil)
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		X.Set(i, 1, x[i])
		w[i] = 1
	}
	return &model.Design{X: X, Y: y, W: w, Names: []string{model.InterceptName, "x"}}
}

func TestGaussianExactLine(t *testing.T) {
	// y = 2x + 1
	d := newDesign([]float64{1, 2, 3, 4}, []float64{3, 5, 7, 9})

	fm, err := Gaussian().Fit(d)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, fm.Coefficients[0], 1e-9)
	assert.InDelta(t, 2.0, fm.Coefficients[1], 1e-9)
	assert.InDelta(t, 0.0, fm.Objective, 1e-12)
	assert.False(t, math.IsInf(fm.LogLik, 0))
	assert.Equal(t, 3, fm.DF)
	assert.Equal(t, 4, fm.NumObs)
	assert.True(t, fm.Converged)
}

func TestGaussianLogLikMatchesClosedForm(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	y := []float64{1.1, 1.9, 3.2, 3.8, 5.3, 5.9}
	d := newDesign(x, y)

	fm, err := Gaussian().Fit(d)
	require.NoError(t, err)

	var rss float64
	for _, r := range fm.Residuals {
		rss += r * r
	}
	n := float64(len(y))
	want := -n / 2 * (math.Log(2*math.Pi*rss/n) + 1)
	assert.InDelta(t, rss, fm.Objective, 1e-10)
	assert.InDelta(t, want, fm.LogLik, 1e-10)

	// 最小二乗解ではスコアの列和は 0
	_, k := fm.Scores.Dims()
	for j := 0; j < k; j++ {
		assert.InDelta(t, 0.0, mat.Sum(fm.Scores.ColView(j)), 1e-9)
	}
}

func TestGaussianWeights(t *testing.T) {
	// 重み 0 の外れ値は結果に影響しない
	d := newDesign([]float64{1, 2, 3, 4, 5}, []float64{3, 5, 7, 9, 100})
	d.W[4] = 0

	fm, err := Gaussian().Fit(d)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, fm.Coefficients[1], 1e-9)
	assert.Equal(t, 4, fm.NumObs)
	assert.InDelta(t, 4.0, fm.WeightSum, 1e-12)
}

func TestGaussianFitErrors(t *testing.T) {
	tests := []struct {
		name   string
		design *model.Design
	}{
		{"nil design", nil},
		{"fewer rows than params", newDesign([]float64{1}, []float64{2})},
		{"constant regressor", newDesign([]float64{2, 2, 2, 2}, []float64{1, 2, 3, 4})},
		{"zero weights", func() *model.Design {
			d := newDesign([]float64{1, 2, 3}, []float64{1, 2, 3})
			for i := range d.W {
				d.W[i] = 0
			}
			return d
		}()},
		{"nan response", newDesign([]float64{1, 2, 3}, []float64{1, math.NaN(), 3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Gaussian().Fit(tt.design)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrFit), "want FitError, got %v", err)
		})
	}
}

func TestGaussianLargeOffsetRegressor(t *testing.T) {
	// x は 1e4 付近。XᵀX の条件数は 1e12 を超えるが問題自体は良条件
	n := 50
	x := make([]float64, n)
	y := make([]float64, n)
	var mean float64
	for i := 0; i < n; i++ {
		x[i] = 10000 + float64(i)
		y[i] = 3 + 0.5*x[i]
		mean += x[i]
	}
	mean /= float64(n)
	var sxx float64
	for _, v := range x {
		sxx += (v - mean) * (v - mean)
	}

	fm, err := Gaussian().Fit(newDesign(x, y))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, fm.Coefficients[0], 1e-6)
	assert.InDelta(t, 0.5, fm.Coefficients[1], 1e-10)

	// (XᵀX)⁻¹ の閉形式
	assert.InEpsilon(t, 1/sxx, fm.CovUnscaled.At(1, 1), 1e-8)
	assert.InEpsilon(t, 1/float64(n)+mean*mean/sxx, fm.CovUnscaled.At(0, 0), 1e-8)
	assert.InEpsilon(t, -mean/sxx, fm.CovUnscaled.At(0, 1), 1e-8)
}

func TestGaussianCollinearRegressors(t *testing.T) {
	n := 20
	X := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		X.Set(i, 1, float64(i))
		X.Set(i, 2, 2*float64(i)+1)
		y[i] = float64(i % 3)
		w[i] = 1
	}
	d := &model.Design{X: X, Y: y, W: w, Names: []string{model.InterceptName, "a", "b"}}

	_, err := Gaussian().Fit(d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFit))
	assert.True(t, errors.Is(err, errors.ErrSingularMatrix))
}

func TestLogisticRecoversCoefficients(t *testing.T) {
	// 確率 p(x) = 1/(1+exp(-(x-5))) に比例する割合で 1 を並べた決定的なデータ
	var xs, ys []float64
	for x := 0; x <= 10; x++ {
		p := 1 / (1 + math.Exp(-(float64(x) - 5)))
		ones := int(math.Round(p * 20))
		for j := 0; j < 20; j++ {
			xs = append(xs, float64(x))
			if j < ones {
				ys = append(ys, 1)
			} else {
				ys = append(ys, 0)
			}
		}
	}
	fm, err := Logistic().Fit(newDesign(xs, ys))
	require.NoError(t, err)

	assert.True(t, fm.Converged)
	assert.Nil(t, fm.Warning)
	assert.InDelta(t, -5.0, fm.Coefficients[0], 1.5)
	assert.InDelta(t, 1.0, fm.Coefficients[1], 0.3)
	assert.InDelta(t, -fm.LogLik, fm.Objective, 1e-12)
	assert.Equal(t, 2, fm.DF)

	// 正準リンクではスコアの列和は収束点で 0
	assert.InDelta(t, 0.0, mat.Sum(fm.Scores.ColView(0)), 1e-5)
	assert.InDelta(t, 0.0, mat.Sum(fm.Scores.ColView(1)), 1e-4)
}

func TestLogisticRejectsNonBinary(t *testing.T) {
	_, err := Logistic().Fit(newDesign([]float64{1, 2, 3}, []float64{0, 2, 1}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFit))
}

func TestPoissonRecoversCoefficients(t *testing.T) {
	var xs, ys []float64
	for x := 0; x < 20; x++ {
		mu := math.Exp(0.5 + 0.1*float64(x))
		xs = append(xs, float64(x))
		ys = append(ys, math.Round(mu))
	}
	fm, err := Poisson().Fit(newDesign(xs, ys))
	require.NoError(t, err)

	assert.True(t, fm.Converged)
	assert.InDelta(t, 0.5, fm.Coefficients[0], 0.3)
	assert.InDelta(t, 0.1, fm.Coefficients[1], 0.03)
	assert.InDelta(t, math.Exp(fm.Coefficients[0]), Poisson().Mean(fm.Coefficients[0]), 1e-12)
}

func TestPoissonRejectsNegative(t *testing.T) {
	_, err := Poisson().Fit(newDesign([]float64{1, 2, 3}, []float64{1, -1, 2}))
	assert.True(t, errors.Is(err, errors.ErrFit))
}

func TestGLMNonConvergenceIsWarning(t *testing.T) {
	var xs, ys []float64
	for x := 0; x < 30; x++ {
		xs = append(xs, float64(x))
		ys = append(ys, float64(x%2))
	}
	fm, err := Logistic(WithMaxIter(1)).Fit(newDesign(xs, ys))
	require.NoError(t, err)
	assert.False(t, fm.Converged)
	require.NotNil(t, fm.Warning)
	assert.True(t, errors.Is(fm.Warning, errors.ErrNonConvergence))
	assert.Equal(t, 1, fm.Iterations)
}
