package linear

import (
	"math"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxIter = 25
	defaultTol     = 1e-8

	// probEps は確率を (0,1) の内側に保つための幅
	probEps = 1e-10
)

// link は正準リンクを持つ指数型分布族の部品
type link struct {
	// mean は逆リンク関数 μ = g⁻¹(η)
	mean func(eta float64) float64
	// eta はリンク関数 η = g(μ)
	eta func(mu float64) float64
	// variance は分散関数 V(μ)。正準リンクでは dμ/dη と一致する
	variance func(mu float64) float64
	// start は初期値 μ₀
	start func(y float64) float64
	// loglik は1観測あたりの対数尤度
	loglik func(y, mu float64) float64
	// validate は応答の定義域チェック
	validate func(y float64) bool
	domain   string
	// bounded は μ が (0,1) に制限されるかどうか
	bounded bool
}

// glm は IRLS で当てはめる一般化線形モデル
type glm struct {
	name    string
	link    link
	maxIter int
	tol     float64
}

var logitLink = link{
	mean: func(eta float64) float64 {
		return 1 / (1 + errors.StabilizeExp(-eta))
	},
	eta: func(mu float64) float64 {
		return math.Log(mu / (1 - mu))
	},
	variance: func(mu float64) float64 {
		return mu * (1 - mu)
	},
	start: func(y float64) float64 {
		return (y + 0.5) / 2
	},
	loglik: func(y, mu float64) float64 {
		return y*errors.StabilizeLog(mu) + (1-y)*errors.StabilizeLog(1-mu)
	},
	validate: func(y float64) bool { return y == 0 || y == 1 },
	domain:   "binary 0/1",
	bounded:  true,
}

var logLink = link{
	mean: func(eta float64) float64 {
		return errors.StabilizeExp(eta)
	},
	eta: func(mu float64) float64 {
		return math.Log(mu)
	},
	variance: func(mu float64) float64 {
		return mu
	},
	start: func(y float64) float64 {
		return y + 0.1
	},
	loglik: func(y, mu float64) float64 {
		lg, _ := math.Lgamma(y + 1)
		return y*errors.StabilizeLog(mu) - mu - lg
	},
	validate: func(y float64) bool { return y >= 0 },
	domain:   "non-negative counts",
}

// Logistic はロジットリンクの二項 GLM の Fitter を返す
func Logistic(opts ...Option) model.Fitter {
	return newGLM("binomial", logitLink, opts)
}

// Poisson は対数リンクのポアソン GLM の Fitter を返す
func Poisson(opts ...Option) model.Fitter {
	return newGLM("poisson", logLink, opts)
}

func newGLM(name string, l link, opts []Option) *glm {
	g := &glm{name: name, link: l, maxIter: defaultMaxIter, tol: defaultTol}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *glm) Name() string { return g.name }

func (g *glm) Mean(eta float64) float64 { return g.link.mean(eta) }

// Fit は IRLS（反復重み付き最小二乗法）で GLM を当てはめる
//
// 収束は逸脱度の相対変化 |D - D_old| / (|D| + 0.1) < tol で判定する。
// 最大反復回数に達した場合はエラーではなく、最後の当てはめに
// NonConvergence の警告を付けて返す。
func (g *glm) Fit(d *model.Design) (*model.FittedModel, error) {
	if err := checkDesign(g.name, d); err != nil {
		return nil, err
	}
	n, k := d.Dims()
	for i, y := range d.Y {
		if d.W[i] > 0 && !g.link.validate(y) {
			return nil, errors.NewFitError(g.name, "response must be "+g.link.domain, n, k, nil)
		}
	}

	mu := make([]float64, n)
	eta := make([]float64, n)
	for i, y := range d.Y {
		mu[i] = g.clampMean(g.link.start(y))
		eta[i] = g.link.eta(mu[i])
	}

	z := make([]float64, n)
	wz := make([]float64, n)
	var (
		beta      []float64
		cov       *mat.SymDense
		loglik    float64
		devOld    = math.Inf(1)
		converged bool
		iter      int
	)
	for iter = 1; iter <= g.maxIter; iter++ {
		// 作業応答 z と作業重み W = w·V(μ)
		for i := 0; i < n; i++ {
			v := g.link.variance(mu[i])
			if v < probEps {
				v = probEps
			}
			wz[i] = d.W[i] * v
			z[i] = eta[i] + (d.Y[i]-mu[i])/v
		}

		var err error
		beta, cov, err = solveWLS(g.name, d.X, z, wz)
		if err != nil {
			return nil, err
		}

		loglik = 0
		for i := 0; i < n; i++ {
			row := d.X.RawRowView(i)
			var e float64
			for j, b := range beta {
				e += b * row[j]
			}
			eta[i] = e
			mu[i] = g.clampMean(g.link.mean(e))
			if d.W[i] > 0 {
				loglik += d.W[i] * g.link.loglik(d.Y[i], mu[i])
			}
		}
		if err := errors.CheckScalar(g.name+" IRLS", loglik, iter); err != nil {
			return nil, errors.NewFitError(g.name, "log-likelihood is not finite", n, k, err)
		}

		dev := -2 * loglik
		if math.Abs(dev-devOld)/(math.Abs(dev)+0.1) < g.tol {
			converged = true
			break
		}
		devOld = dev
	}
	if iter > g.maxIter {
		iter = g.maxIter
	}

	fitted := make([]float64, n)
	resid := make([]float64, n)
	scores := mat.NewDense(n, k, nil)
	var wsum float64
	for i := 0; i < n; i++ {
		fitted[i] = mu[i]
		r := d.Y[i] - mu[i]
		resid[i] = r
		wsum += d.W[i]
		row := d.X.RawRowView(i)
		srow := scores.RawRowView(i)
		for j := range srow {
			srow[j] = d.W[i] * r * row[j]
		}
	}

	fm := &model.FittedModel{
		Family:       g.name,
		Coefficients: beta,
		Names:        append([]string(nil), d.Names...),
		Scores:       scores,
		Fitted:       fitted,
		Residuals:    resid,
		NumParams:    k,
		DF:           k,
		NumObs:       countPositive(d.W),
		WeightSum:    wsum,
		LogLik:       loglik,
		Objective:    -loglik,
		Dispersion:   1,
		Iterations:   iter,
		Converged:    converged,
		CovUnscaled:  cov,
	}
	if !converged {
		fm.Warning = errors.NewNonConvergence("IRLS/"+g.name, iter, "relative deviance change did not fall below tolerance")
	}
	return fm, nil
}

func (g *glm) clampMean(mu float64) float64 {
	if g.link.bounded {
		return errors.ClipValue(mu, probEps, 1-probEps)
	}
	if mu < probEps {
		return probEps
	}
	return mu
}
