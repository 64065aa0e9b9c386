package model

import (
	"gonum.org/v1/gonum/mat"
)

// Snapshot はノードモデルのシリアライズ用の表現（スコアや残差は含まない）
type Snapshot struct {
	Family       string    `json:"family"`
	Coefficients []float64 `json:"coefficients"`
	Names        []string  `json:"names"`
	NumParams    int       `json:"n_params"`
	DF           int       `json:"df"`
	NumObs       int       `json:"n_obs"`
	WeightSum    float64   `json:"weight_sum"`
	LogLik       float64   `json:"loglik"`
	Objective    float64   `json:"objective"`
	Dispersion   float64   `json:"dispersion"`
	Iterations   int       `json:"iterations,omitempty"`
	Converged    bool      `json:"converged"`
	Warning      string    `json:"warning,omitempty"`

	// CovUnscaled は (XᵀWX)⁻¹ を行優先で格納したもの
	CovUnscaled []float64 `json:"cov_unscaled,omitempty"`
}

// Snapshot は FittedModel からシリアライズ可能な Snapshot を作成する
func (fm *FittedModel) Snapshot() *Snapshot {
	s := &Snapshot{
		Family:       fm.Family,
		Coefficients: append([]float64(nil), fm.Coefficients...),
		Names:        append([]string(nil), fm.Names...),
		NumParams:    fm.NumParams,
		DF:           fm.DF,
		NumObs:       fm.NumObs,
		WeightSum:    fm.WeightSum,
		LogLik:       fm.LogLik,
		Objective:    fm.Objective,
		Dispersion:   fm.Dispersion,
		Iterations:   fm.Iterations,
		Converged:    fm.Converged,
	}
	if fm.Warning != nil {
		s.Warning = fm.Warning.Error()
	}
	if fm.CovUnscaled != nil {
		k := fm.CovUnscaled.SymmetricDim()
		s.CovUnscaled = make([]float64, 0, k*k)
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				s.CovUnscaled = append(s.CovUnscaled, fm.CovUnscaled.At(i, j))
			}
		}
	}
	return s
}

// Restore は Snapshot から FittedModel を復元する。
// スコア・当てはめ値・残差は復元されないため、予測と要約にのみ使用できる
func (s *Snapshot) Restore() *FittedModel {
	fm := &FittedModel{
		Family:       s.Family,
		Coefficients: append([]float64(nil), s.Coefficients...),
		Names:        append([]string(nil), s.Names...),
		NumParams:    s.NumParams,
		DF:           s.DF,
		NumObs:       s.NumObs,
		WeightSum:    s.WeightSum,
		LogLik:       s.LogLik,
		Objective:    s.Objective,
		Dispersion:   s.Dispersion,
		Iterations:   s.Iterations,
		Converged:    s.Converged,
	}
	k := len(s.Coefficients)
	if k > 0 && len(s.CovUnscaled) == k*k {
		fm.CovUnscaled = mat.NewSymDense(k, append([]float64(nil), s.CovUnscaled...))
	}
	return fm
}
