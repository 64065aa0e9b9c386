package mob

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/core/parallel"
	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// splitter searches the best binary split of a node on one variable.
type splitter struct {
	fitter        model.Fitter
	minSize       int
	workers       int
	maxExhaustive int
}

// candidate はノード内の行ごとの左右の割り当てと、それを生んだ分割条件
type candidate struct {
	threshold float64
	leftCodes []float64
	left      []bool
	nLeft     int
}

// best evaluates every admissible candidate on variable v, whose stored
// values for the node rows are z, and returns the split with the smallest
// summed child objective together with the left-child mask.
func (s *splitter) best(d *model.Design, v dataset.Variable, z []float64) (*Split, []bool, error) {
	n, _ := d.Dims()
	var cands []candidate
	switch v.Kind {
	case dataset.Nominal:
		cands = s.nominalCandidates(d, z)
	default:
		cands = s.orderedCandidates(z)
	}
	if len(cands) == 0 {
		return nil, nil, errors.NewNoValidSplit(v.Name, n, s.minSize, 0)
	}

	objectives := make([]float64, len(cands))
	parallel.ForEach(len(cands), s.workers, func(i int) {
		objectives[i] = s.evaluate(d, cands[i].left)
	})

	bestIdx := -1
	for i, obj := range objectives {
		if math.IsNaN(obj) {
			continue
		}
		// 同値なら先の候補（小さい値）を残す
		if bestIdx < 0 || obj < objectives[bestIdx] {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil, nil, errors.NewNoValidSplit(v.Name, n, s.minSize, len(cands))
	}

	c := cands[bestIdx]
	sp := &Split{
		Variable:   v.Name,
		Kind:       v.Kind,
		Objective:  objectives[bestIdx],
		Candidates: len(cands),
	}
	if c.nLeft < n-c.nLeft {
		sp.Majority = 1
	}
	switch v.Kind {
	case dataset.Continuous:
		sp.Threshold = c.threshold
	case dataset.Ordinal:
		sp.Threshold = c.threshold
		sp.Levels = append([]string(nil), v.Levels...)
	default:
		left := map[float64]bool{}
		for _, code := range c.leftCodes {
			left[code] = true
		}
		for _, code := range presentCodes(z) {
			if left[code] {
				sp.LeftLevels = append(sp.LeftLevels, v.Format(code))
			} else {
				sp.RightLevels = append(sp.RightLevels, v.Format(code))
			}
		}
	}
	return sp, c.left, nil
}

// evaluate は左右の子を当てはめ、目的関数の和を返す。失敗時は NaN
func (s *splitter) evaluate(d *model.Design, left []bool) float64 {
	var li, ri []int
	for i, l := range left {
		if l {
			li = append(li, i)
		} else {
			ri = append(ri, i)
		}
	}
	lm, err := s.fitter.Fit(subDesign(d, li))
	if err != nil {
		return math.NaN()
	}
	rm, err := s.fitter.Fit(subDesign(d, ri))
	if err != nil {
		return math.NaN()
	}
	obj := lm.Objective + rm.Objective
	if math.IsInf(obj, 0) {
		return math.NaN()
	}
	return obj
}

// orderedCandidates は z の昇順のユニーク値（最大値を除く）をしきい値の候補とする
func (s *splitter) orderedCandidates(z []float64) []candidate {
	n := len(z)
	sorted := append([]float64(nil), z...)
	sort.Float64s(sorted)

	var cands []candidate
	for i := 0; i < n-1; i++ {
		if sorted[i] == sorted[i+1] {
			continue
		}
		nLeft := i + 1
		if nLeft < s.minSize || n-nLeft < s.minSize {
			continue
		}
		th := sorted[i]
		left := make([]bool, n)
		for r, x := range z {
			left[r] = x <= th
		}
		cands = append(cands, candidate{threshold: th, left: left, nLeft: nLeft})
	}
	return cands
}

func (s *splitter) nominalCandidates(d *model.Design, z []float64) []candidate {
	levels := presentCodes(z)
	if len(levels) < 2 {
		return nil
	}
	counts := map[float64]int{}
	for _, x := range z {
		counts[x]++
	}

	var sets [][]float64
	if len(levels) <= s.maxExhaustive {
		// 先頭の水準を左に固定して 2^(L-1)-1 通りの二分割を列挙する
		for m := 1; m < 1<<(len(levels)-1); m++ {
			set := []float64{levels[0]}
			for i := 1; i < len(levels); i++ {
				if m&(1<<(i-1)) == 0 {
					set = append(set, levels[i])
				}
			}
			sets = append(sets, set)
		}
	} else {
		// 水準数が多い場合は応答の平均で並べ、順序変数として走査する
		ordered := orderByMeanResponse(d, z, levels)
		for j := 1; j < len(ordered); j++ {
			sets = append(sets, append([]float64(nil), ordered[:j]...))
		}
	}

	var cands []candidate
	for _, set := range sets {
		nLeft := 0
		inLeft := map[float64]bool{}
		for _, code := range set {
			inLeft[code] = true
			nLeft += counts[code]
		}
		if nLeft < s.minSize || len(z)-nLeft < s.minSize {
			continue
		}
		left := make([]bool, len(z))
		for r, x := range z {
			left[r] = inLeft[x]
		}
		cands = append(cands, candidate{leftCodes: set, left: left, nLeft: nLeft})
	}
	return cands
}

func orderByMeanResponse(d *model.Design, z []float64, levels []float64) []float64 {
	sum := map[float64]float64{}
	wsum := map[float64]float64{}
	for i, x := range z {
		sum[x] += d.W[i] * d.Y[i]
		wsum[x] += d.W[i]
	}
	ordered := append([]float64(nil), levels...)
	mean := func(c float64) float64 {
		if wsum[c] == 0 {
			return 0
		}
		return sum[c] / wsum[c]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return mean(ordered[i]) < mean(ordered[j])
	})
	return ordered
}

// presentCodes はノード内に現れる水準コードを昇順で返す
func presentCodes(z []float64) []float64 {
	seen := map[float64]bool{}
	var out []float64
	for _, x := range z {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	sort.Float64s(out)
	return out
}

// subDesign は Design の行 idx だけを取り出した新しい Design を作る
func subDesign(d *model.Design, idx []int) *model.Design {
	_, k := d.Dims()
	if len(idx) == 0 {
		return &model.Design{Names: d.Names}
	}
	x := mat.NewDense(len(idx), k, nil)
	out := &model.Design{
		X:     x,
		Y:     make([]float64, len(idx)),
		W:     make([]float64, len(idx)),
		Names: d.Names,
	}
	for i, r := range idx {
		x.SetRow(i, d.X.RawRowView(r))
		out.Y[i] = d.Y[r]
		out.W[i] = d.W[r]
	}
	return out
}
