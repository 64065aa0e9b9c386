// Package linear provides the parametric models fitted in each node of a
// model-based tree: Gaussian linear regression, logistic and Poisson GLMs
// and user supplied families.
package linear

import (
	"math"
	"strconv"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// maxCondition は正規化した XᵀWX の条件数の上限。これを超えるとランク落ちとみなす
const maxCondition = 1e12

// constantTol は中心化後の平方和がこの比率以下の列を定数とみなす
const constantTol = 1e-12

// minVariance は残差分散の下限（完全当てはめで対数尤度が発散しないように）
const minVariance = 1e-300

// gaussian は恒等リンクの線形回帰モデル
type gaussian struct{}

// Gaussian は重み付き最小二乗法で当てはめる線形回帰の Fitter を返す
//
// 正規方程式 β = (XᵀWX)⁻¹ XᵀWy をコレスキー分解で解く。
// 目的関数は重み付き残差平方和、スコアは wᵢ·rᵢ·xᵢ。
func Gaussian() model.Fitter {
	return gaussian{}
}

func (gaussian) Name() string { return "gaussian" }

func (gaussian) Mean(eta float64) float64 { return eta }

// Fit は Design に線形回帰を当てはめる
func (gaussian) Fit(d *model.Design) (*model.FittedModel, error) {
	const family = "gaussian"
	if err := checkDesign(family, d); err != nil {
		return nil, err
	}
	n, k := d.Dims()

	beta, cov, err := solveWLS(family, d.X, d.Y, d.W)
	if err != nil {
		return nil, err
	}

	fitted := make([]float64, n)
	resid := make([]float64, n)
	scores := mat.NewDense(n, k, nil)
	var rss, wsum float64
	for i := 0; i < n; i++ {
		row := d.X.RawRowView(i)
		var eta float64
		for j, b := range beta {
			eta += b * row[j]
		}
		fitted[i] = eta
		r := d.Y[i] - eta
		resid[i] = r
		w := d.W[i]
		rss += w * r * r
		wsum += w
		// スコア寄与 ψᵢ = wᵢ rᵢ xᵢ
		srow := scores.RawRowView(i)
		for j := range srow {
			srow[j] = w * r * row[j]
		}
	}

	sigma2 := rss / wsum
	if sigma2 < minVariance {
		sigma2 = minVariance
	}
	loglik := -wsum / 2 * (math.Log(2*math.Pi*sigma2) + 1)

	dispersion := sigma2
	if wsum > float64(k) {
		dispersion = rss / (wsum - float64(k))
	}

	return &model.FittedModel{
		Family:       family,
		Coefficients: beta,
		Names:        append([]string(nil), d.Names...),
		Scores:       scores,
		Fitted:       fitted,
		Residuals:    resid,
		NumParams:    k,
		DF:           k + 1,
		NumObs:       countPositive(d.W),
		WeightSum:    wsum,
		LogLik:       loglik,
		Objective:    rss,
		Dispersion:   dispersion,
		Iterations:   1,
		Converged:    true,
		CovUnscaled:  cov,
	}, nil
}

// checkDesign は当てはめ前の共通チェック
func checkDesign(family string, d *model.Design) error {
	if d == nil {
		return errors.NewFitError(family, "nil design", 0, 0, errors.ErrEmptyData)
	}
	n, k := d.Dims()
	if n == 0 || k == 0 {
		return errors.NewFitError(family, "empty design", n, k, errors.ErrEmptyData)
	}
	if err := d.Validate(); err != nil {
		return errors.NewFitError(family, "inconsistent design", n, k, err)
	}
	for _, w := range d.W {
		if w < 0 || math.IsNaN(w) {
			return errors.NewFitError(family, "negative or missing weight", n, k, nil)
		}
	}
	if rows := countPositive(d.W); rows < k {
		return errors.NewFitError(family, "fewer rows than parameters", rows, k, nil)
	}
	if d.WeightSum() <= 0 {
		return errors.NewFitError(family, "weight sum is not positive", n, k, nil)
	}
	if err := errors.CheckNumericalStability(family+" response", d.Y, 0); err != nil {
		return errors.NewFitError(family, "response is not finite", n, k, err)
	}
	return nil
}

// solveWLS は重み付き正規方程式 (XᵀWX)β = XᵀWz を解き、β と (XᵀWX)⁻¹ を返す
//
// 先頭列が切片なら他の列を重み付き平均で中心化し、さらに各列を対角要素で
// 正規化した行列で分解する。条件数はこの相関行列の形で判定するので、
// 回帰変数の位置や単位には依存しない。
func solveWLS(family string, x *mat.Dense, z, w []float64) ([]float64, *mat.SymDense, error) {
	n, k := x.Dims()
	rows := countPositive(w)

	center := make([]float64, k)
	if hasIntercept(x, w) {
		var wsum float64
		for i := 0; i < n; i++ {
			if w[i] == 0 {
				continue
			}
			wsum += w[i]
			row := x.RawRowView(i)
			for j := 1; j < k; j++ {
				center[j] += w[i] * row[j]
			}
		}
		if !(wsum > 0) {
			return nil, nil, errors.NewFitError(family, "weight sum is not positive", rows, k, nil)
		}
		for j := 1; j < k; j++ {
			center[j] /= wsum
		}
	}

	xtwx := mat.NewSymDense(k, nil)
	xtwz := mat.NewVecDense(k, nil)
	uncentered := make([]float64, k)
	xc := make([]float64, k)
	for i := 0; i < n; i++ {
		wi := w[i]
		if wi == 0 {
			continue
		}
		row := x.RawRowView(i)
		for a := 0; a < k; a++ {
			xc[a] = row[a] - center[a]
			uncentered[a] += wi * row[a] * row[a]
		}
		for a := 0; a < k; a++ {
			xtwz.SetVec(a, xtwz.AtVec(a)+wi*xc[a]*z[i])
			for b := a; b < k; b++ {
				xtwx.SetSym(a, b, xtwx.At(a, b)+wi*xc[a]*xc[b])
			}
		}
	}

	scale := make([]float64, k)
	for j := 0; j < k; j++ {
		d := xtwx.At(j, j)
		if !(d > constantTol*uncentered[j]) || d <= 0 {
			return nil, nil, errors.NewFitError(family, "regressor "+strconv.Itoa(j)+" is constant", rows, k, errors.ErrSingularMatrix)
		}
		scale[j] = 1 / math.Sqrt(d)
	}
	scaled := mat.NewSymDense(k, nil)
	rhs := mat.NewVecDense(k, nil)
	for a := 0; a < k; a++ {
		rhs.SetVec(a, scale[a]*xtwz.AtVec(a))
		for b := a; b < k; b++ {
			scaled.SetSym(a, b, scale[a]*scale[b]*xtwx.At(a, b))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(scaled); !ok {
		return nil, nil, errors.NewFitError(family, "XᵀWX is not positive definite", rows, k, errors.ErrSingularMatrix)
	}
	if c := chol.Cond(); math.IsNaN(c) || c > maxCondition {
		return nil, nil, errors.NewFitError(family, "design is rank deficient or ill conditioned", rows, k, errors.ErrSingularMatrix)
	}

	var gamma mat.VecDense
	if err := chol.SolveVecTo(&gamma, rhs); err != nil {
		return nil, nil, errors.NewFitError(family, "normal equations could not be solved", rows, k, err)
	}
	inv := mat.NewSymDense(k, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, nil, errors.NewFitError(family, "XᵀWX could not be inverted", rows, k, err)
	}

	// 中心化した係数を元の尺度へ戻す: β = Tβc、cov = T cov_c Tᵀ
	out := make([]float64, k)
	t := mat.NewDense(k, k, nil)
	covc := mat.NewDense(k, k, nil)
	for a := 0; a < k; a++ {
		out[a] = scale[a] * gamma.AtVec(a)
		t.Set(a, a, 1)
		for b := 0; b < k; b++ {
			covc.Set(a, b, scale[a]*scale[b]*inv.At(a, b))
		}
	}
	for j := 1; j < k; j++ {
		out[0] -= center[j] * out[j]
		t.Set(0, j, -center[j])
	}
	var tmp, full mat.Dense
	tmp.Mul(t, covc)
	full.Mul(&tmp, t.T())
	cov := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			cov.SetSym(a, b, (full.At(a, b)+full.At(b, a))/2)
		}
	}

	if err := errors.CheckNumericalStability(family+" coefficients", out, 0); err != nil {
		return nil, nil, errors.NewFitError(family, "coefficients are not finite", rows, k, err)
	}
	return out, cov, nil
}

// hasIntercept は重み正の行で先頭列がすべて 1 かどうかを返す
func hasIntercept(x *mat.Dense, w []float64) bool {
	n, _ := x.Dims()
	for i := 0; i < n; i++ {
		if w[i] > 0 && x.At(i, 0) != 1 {
			return false
		}
	}
	return true
}

func countPositive(w []float64) int {
	c := 0
	for _, v := range w {
		if v > 0 {
			c++
		}
	}
	return c
}
