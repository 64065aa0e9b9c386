package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

const probEps = 1e-15

func checkBinary(op string, yTrue []float64) error {
	for _, y := range yTrue {
		if y != 0 && y != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// BinaryLogLoss は二値交差エントロピーを計算する。確率は [eps, 1-eps] に切り詰める
func BinaryLogLoss(yTrue, prob []float64) (float64, error) {
	if err := checkPair("BinaryLogLoss", yTrue, prob); err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	var sum float64
	for i, y := range yTrue {
		p := math.Min(math.Max(prob[i], probEps), 1-probEps)
		sum -= y*math.Log(p) + (1-y)*math.Log(1-p)
	}
	return sum / float64(len(yTrue)), nil
}

// Accuracy はしきい値 0.5 で二値化した予測の正解率
func Accuracy(yTrue, prob []float64) (float64, error) {
	if err := checkPair("Accuracy", yTrue, prob); err != nil {
		return 0, err
	}
	if err := checkBinary("Accuracy", yTrue); err != nil {
		return 0, err
	}
	correct := 0
	for i, y := range yTrue {
		pred := 0.0
		if prob[i] >= 0.5 {
			pred = 1
		}
		if pred == y {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// AUC は ROC 曲線下面積を Mann-Whitney の順位和で計算する。同順位は平均順位を使う
func AUC(yTrue, score []float64) (float64, error) {
	if err := checkPair("AUC", yTrue, score); err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, len(score))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return score[idx[a]] < score[idx[b]] })

	var rankSum, nPos float64
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && score[idx[j]] == score[idx[i]] {
			j++
		}
		// 順位 i+1..j の平均
		rank := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			if yTrue[idx[k]] == 1 {
				rankSum += rank
				nPos++
			}
		}
		i = j
	}
	nNeg := float64(len(yTrue)) - nPos
	if nPos == 0 || nNeg == 0 {
		return 0, errors.NewValueError("AUC", "both classes must be present")
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}
