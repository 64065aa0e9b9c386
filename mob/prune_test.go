package mob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const icTol = 1e-8

func overgrown(t *testing.T, seed int64) *Tree {
	t.Helper()
	tree, err := LMTree(context.Background(), noisyBreakpointData(t, seed), "y ~ x | age + gender",
		WithAlpha(1), WithMinSize(15))
	require.NoError(t, err)
	return tree
}

func TestPruneAICImprovesCriterion(t *testing.T) {
	d := noisyBreakpointData(t, 9)
	grown, err := LMTree(context.Background(), d, "y ~ x | age + gender", WithAlpha(1), WithMinSize(15))
	require.NoError(t, err)
	def, err := LMTree(context.Background(), d, "y ~ x | age + gender", WithMinSize(15))
	require.NoError(t, err)
	pruned, err := LMTree(context.Background(), d, "y ~ x | age + gender",
		WithAlpha(1), WithMinSize(15), WithPrune(PruneAIC))
	require.NoError(t, err)

	assert.LessOrEqual(t, pruned.AIC(), grown.AIC()+icTol)
	assert.LessOrEqual(t, pruned.AIC(), def.AIC()+icTol)
	assert.LessOrEqual(t, len(pruned.Leaves()), len(grown.Leaves()))
	checkPartition(t, pruned, 15)

	// 事後に Prune しても同じ木になる
	assert.Equal(t, Prune(grown, PruneAIC).String(), pruned.String())
}

func TestPruneIsIdempotent(t *testing.T) {
	for _, c := range []PruneCriterion{PruneAIC, PruneBIC} {
		t.Run(c.String(), func(t *testing.T) {
			grown := overgrown(t, 4)
			once := Prune(grown, c)
			twice := Prune(once, c)

			assert.Equal(t, once.String(), twice.String())
			assert.Equal(t, once.Len(), twice.Len())
			assert.InDelta(t, once.Criterion(c), twice.Criterion(c), icTol)
		})
	}
}

func TestPruneIsMonotone(t *testing.T) {
	grown := overgrown(t, 6)
	nodes := grown.Len()
	aic := Prune(grown, PruneAIC)
	bic := Prune(grown, PruneBIC)

	// 元の木は変更されない
	assert.Equal(t, nodes, grown.Len())

	for _, pruned := range []*Tree{aic, bic} {
		assert.LessOrEqual(t, pruned.Len(), grown.Len())
		for _, n := range pruned.Nodes() {
			orig := grown.Node(n.ID)
			require.NotNil(t, orig, "pruned tree invents node %d", n.ID)
			assert.Equal(t, orig.Rows, n.Rows)
			assert.Same(t, orig.Model, n.Model)
			if n.IsLeaf() && !orig.IsLeaf() {
				assert.Equal(t, StopPruned, n.Info.Stop)
				assert.Nil(t, n.Split)
			}
		}
	}
	// ln(n) > 2 なので BIC の木は AIC の木に含まれる
	assert.LessOrEqual(t, bic.Len(), aic.Len())
	for _, n := range bic.Nodes() {
		assert.NotNil(t, aic.Node(n.ID))
	}
	assert.LessOrEqual(t, aic.Criterion(PruneAIC), grown.Criterion(PruneAIC)+icTol)
	assert.LessOrEqual(t, bic.Criterion(PruneBIC), grown.Criterion(PruneBIC)+icTol)
}

func TestPruneKeepsRealStructure(t *testing.T) {
	tree, err := LMTree(context.Background(), breakpointData(t), "y ~ x | age + gender")
	require.NoError(t, err)

	pruned := Prune(tree, PruneBIC)
	assert.Len(t, pruned.Leaves(), 2)
	assert.Equal(t, "age", pruned.Root().Split.Variable)
	assert.Same(t, tree, Prune(tree, PruneNone))
}

func TestCriterionAndDF(t *testing.T) {
	tree, err := LMTree(context.Background(), breakpointData(t), "y ~ x | age + gender")
	require.NoError(t, err)

	// 各葉: 係数2 + 分散1、分割1つ
	assert.Equal(t, 7.0, tree.DF())
	assert.InDelta(t, tree.AIC(), tree.Criterion(PruneAIC), 1e-12)
	assert.InDelta(t, tree.BIC(), tree.Criterion(PruneBIC), 1e-12)
	assert.InDelta(t, -2*tree.LogLik(), tree.Criterion(PruneNone), 1e-12)
	assert.Equal(t, 180.0, tree.NumObs())

	free, err := LMTree(context.Background(), breakpointData(t), "y ~ x | age + gender", WithDFSplit(0))
	require.NoError(t, err)
	assert.Equal(t, 6.0, free.DF())
}
