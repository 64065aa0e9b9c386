package mob

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/stretchr/testify/require"
)

// noisePattern は x = 1..10 に対する誤差。和も x との積和も 0
var noisePattern = []float64{1, -1, -1, 1, -1, 1, 1, -1, 0, 0}

// breakpointData は age 10..27 に各10行、計180行の決定的なデータを作る。
// age <= 18 では y = 1 + 2x + e、age > 18 では y = 1 - x + e。
func breakpointData(t testing.TB) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New(
		dataset.NewContinuous("y"),
		dataset.NewContinuous("x"),
		dataset.NewContinuous("age"),
		dataset.NewNominal("gender", "f", "m"),
	)
	require.NoError(t, err)
	for age := 10; age <= 27; age++ {
		for x := 1; x <= 10; x++ {
			e := noisePattern[x-1]
			y := 1 + 2*float64(x) + e
			if age > 18 {
				y = 1 - float64(x) + e
			}
			g := 0.0
			if x > 4 {
				g = 1
			}
			require.NoError(t, d.AppendValues(y, float64(x), float64(age), g))
		}
	}
	return d
}

// noisyBreakpointData は同じ構造に正規ノイズを加えたもの
func noisyBreakpointData(t testing.TB, seed int64) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	d, err := dataset.New(
		dataset.NewContinuous("y"),
		dataset.NewContinuous("x"),
		dataset.NewContinuous("age"),
		dataset.NewNominal("gender", "f", "m"),
	)
	require.NoError(t, err)
	for age := 10; age <= 27; age++ {
		for i := 0; i < 10; i++ {
			x := rng.Float64() * 10
			y := 1 + 2*x
			if age > 18 {
				y = 1 - x
			}
			y += rng.NormFloat64()
			require.NoError(t, d.AppendValues(y, x, float64(age), float64(rng.Intn(2))))
		}
	}
	return d
}

// pureNoiseData は応答がどの分割変数とも無関係なデータ
func pureNoiseData(t testing.TB, seed int64, n int) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	d, err := dataset.New(
		dataset.NewContinuous("y"),
		dataset.NewContinuous("x"),
		dataset.NewContinuous("z1"),
		dataset.NewNominal("z2", "a", "b", "c"),
	)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		x := rng.NormFloat64()
		y := 1 + 0.5*x + rng.NormFloat64()
		require.NoError(t, d.AppendValues(y, x, rng.Float64(), float64(rng.Intn(3))))
	}
	return d
}

// logisticData は z <= 0.5 で logit = 2x、z > 0.5 で logit = -2x となる二値応答。
// w は応答と無関係
func logisticData(t testing.TB, seed int64, n int) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	d, err := dataset.New(
		dataset.NewContinuous("y"),
		dataset.NewContinuous("x"),
		dataset.NewContinuous("z"),
		dataset.NewContinuous("w"),
	)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		x := rng.NormFloat64()
		z := rng.Float64()
		eta := 2 * x
		if z > 0.5 {
			eta = -2 * x
		}
		y := 0.0
		if rng.Float64() < 1/(1+math.Exp(-eta)) {
			y = 1
		}
		require.NoError(t, d.AppendValues(y, x, z, rng.Float64()))
	}
	return d
}

// checkPartition は葉の行集合が互いに素で、和集合がルートの行集合に一致すること、
// および各分割の子が親の行を分割し最小サイズを満たすことを確かめる
func checkPartition(t *testing.T, tree *Tree, minSize int) {
	t.Helper()
	root := tree.Root()
	require.NotNil(t, root)

	seen := map[int]int{}
	for _, leaf := range tree.Leaves() {
		for _, r := range leaf.Rows {
			prev, dup := seen[r]
			require.Falsef(t, dup, "row %d in leaves %d and %d", r, prev, leaf.ID)
			seen[r] = leaf.ID
		}
	}
	require.Len(t, seen, len(root.Rows))
	for _, r := range root.Rows {
		_, ok := seen[r]
		require.Truef(t, ok, "row %d of the root is in no leaf", r)
	}

	for _, n := range tree.Internal() {
		require.Len(t, n.Kids, 2)
		var union []int
		for _, k := range n.Kids {
			kid := tree.Node(k)
			require.NotNil(t, kid)
			require.Equal(t, n.ID, kid.Parent)
			require.Equal(t, n.Depth+1, kid.Depth)
			require.GreaterOrEqual(t, kid.Size(), minSize, "child %d of %d", k, n.ID)
			union = append(union, kid.Rows...)
		}
		sort.Ints(union)
		require.Equal(t, n.Rows, union)
	}
}
