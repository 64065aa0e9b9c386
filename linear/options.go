package linear

// Option は GLM の反復設定を変更する関数
type Option func(*glm)

// WithMaxIter は IRLS の最大反復回数を設定する（既定値 25）
func WithMaxIter(n int) Option {
	return func(g *glm) {
		if n > 0 {
			g.maxIter = n
		}
	}
}

// WithTol は収束判定に使う逸脱度の相対変化の閾値を設定する（既定値 1e-8）
func WithTol(tol float64) Option {
	return func(g *glm) {
		if tol > 0 {
			g.tol = tol
		}
	}
}
