package mob

import (
	"context"
	"testing"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/linear"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"github.com/YuminosukeSato/mobtree/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLMTreeBreakpoint(t *testing.T) {
	d := breakpointData(t)

	tree, err := LMTree(context.Background(), d, "y ~ x | age + gender")
	require.NoError(t, err)

	root := tree.Root()
	require.NotNil(t, root.Split, "root must be split")
	assert.Equal(t, "age", root.Split.Variable)
	assert.Equal(t, 18.0, root.Split.Threshold)
	assert.Len(t, tree.Leaves(), 2)
	assert.Equal(t, 3, tree.Len())
	assert.Equal(t, 2, tree.Depth())

	coef := tree.Coefficients()
	assert.InDeltaSlice(t, []float64{1, 2}, coef[2], 1e-9)
	assert.InDeltaSlice(t, []float64{1, -1}, coef[3], 1e-9)

	for _, leaf := range tree.Leaves() {
		assert.Equal(t, 90, leaf.Size())
		assert.Equal(t, StopNotSignificant, leaf.Info.Stop)
	}
	checkPartition(t, tree, 20)

	// ルートの gender 検定は分割に影響しない
	require.Len(t, root.Tests, 2)
	assert.Equal(t, "gender", root.Tests[1].Variable)
	assert.Greater(t, root.Tests[1].PValue, 0.5)
	assert.Less(t, root.Tests[0].Adjusted, 1e-6)
}

func TestLMTreeNoisyBreakpoint(t *testing.T) {
	d := noisyBreakpointData(t, 42)

	tree, err := LMTree(context.Background(), d, "y ~ x | age + gender")
	require.NoError(t, err)

	root := tree.Root()
	require.NotNil(t, root.Split)
	assert.Equal(t, "age", root.Split.Variable)
	assert.InDelta(t, 18.0, root.Split.Threshold, 2)
	assert.GreaterOrEqual(t, len(tree.Leaves()), 2)
	checkPartition(t, tree, 20)
}

func TestPureNoiseRarelySplits(t *testing.T) {
	if testing.Short() {
		t.Skip("repeated growth")
	}
	const trials = 1000
	single := 0
	for seed := int64(1); seed <= trials; seed++ {
		d := pureNoiseData(t, seed, 200)
		tree, err := LMTree(context.Background(), d, "y ~ x | z1 + z2")
		require.NoError(t, err)
		if len(tree.Leaves()) == 1 {
			single++
		}
	}
	assert.GreaterOrEqual(t, single, trials*95/100, "single-leaf trees: %d of %d", single, trials)
}

func TestAlphaMonotonicity(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		d := noisyBreakpointData(t, seed)
		strict, err := LMTree(context.Background(), d, "y ~ x | age + gender", WithAlpha(0.05))
		require.NoError(t, err)
		relaxed, err := LMTree(context.Background(), d, "y ~ x | age + gender", WithAlpha(0.85))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(relaxed.Leaves()), len(strict.Leaves()), "seed %d", seed)
	}
}

func TestStoppingRules(t *testing.T) {
	d := breakpointData(t)
	ctx := context.Background()

	t.Run("max depth", func(t *testing.T) {
		tree, err := LMTree(ctx, d, "y ~ x | age + gender", WithMaxDepth(1))
		require.NoError(t, err)
		assert.Len(t, tree.Leaves(), 1)
		assert.Equal(t, StopMaxDepth, tree.Root().Info.Stop)
		assert.Empty(t, tree.Root().Tests)
	})

	t.Run("min size blocks children", func(t *testing.T) {
		tree, err := LMTree(ctx, d, "y ~ x | age + gender", WithMinSize(100))
		require.NoError(t, err)
		assert.Len(t, tree.Leaves(), 1)
		assert.Equal(t, StopNoValidSplit, tree.Root().Info.Stop)
	})

	t.Run("min size blocks node", func(t *testing.T) {
		tree, err := LMTree(ctx, d, "y ~ x | age + gender", WithMinSize(200))
		require.NoError(t, err)
		assert.Equal(t, StopMinSize, tree.Root().Info.Stop)
	})

	t.Run("constant partitioning variable", func(t *testing.T) {
		c, err := dataset.New(dataset.NewContinuous("y"), dataset.NewContinuous("x"), dataset.NewContinuous("z"))
		require.NoError(t, err)
		for i := 0; i < 50; i++ {
			require.NoError(t, c.AppendValues(float64(i%7), float64(i), 3))
		}
		tree, err := LMTree(ctx, c, "y ~ x | z")
		require.NoError(t, err)
		assert.Equal(t, StopNoTestable, tree.Root().Info.Stop)
		require.Len(t, tree.Root().Tests, 1)
		assert.True(t, tree.Root().Tests[0].Skipped)
	})
}

func TestZeroWeightRowsExcluded(t *testing.T) {
	d := breakpointData(t)
	for r := 0; r < 10; r++ {
		require.NoError(t, d.SetWeight(r, 0))
	}
	tree, err := LMTree(context.Background(), d, "y ~ x | age + gender")
	require.NoError(t, err)
	assert.Equal(t, 170, tree.Root().Size())
	assert.Equal(t, 170.0, tree.NumObs())
	assert.NotContains(t, tree.Root().Rows, 0)
	checkPartition(t, tree, 20)
}

func TestInvalidConfiguration(t *testing.T) {
	d := breakpointData(t)
	ctx := context.Background()
	tests := []struct {
		name string
		opt  Option
	}{
		{"alpha zero", WithAlpha(0)},
		{"alpha above one", WithAlpha(1.5)},
		{"negative minsize", WithMinSize(-1)},
		{"negative maxdepth", WithMaxDepth(-2)},
		{"trim", WithTrim(0.6)},
		{"workers", WithWorkers(-1)},
		{"dfsplit", WithDFSplit(-1)},
		{"prune", WithPrune(PruneCriterion(7))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := LMTree(ctx, d, "y ~ x | age", tt.opt)
			require.Error(t, err)
			assert.Nil(t, tree)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration), "got %v", err)
		})
	}

	_, err := LMTree(ctx, d, "y ~ x | nope")
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
	_, err = GLMTree(ctx, d, "y ~ x | age", "gamma")
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
	tree, err := LMTree(ctx, d, "y ~ x | age", WithAlpha(1))
	require.NoError(t, err, "alpha = 1 is allowed")
	assert.NotNil(t, tree)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tree, err := LMTree(ctx, breakpointData(t), "y ~ x | age + gender")
	assert.Nil(t, tree)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRootFitErrorIsFatal(t *testing.T) {
	d, err := dataset.New(dataset.NewContinuous("y"), dataset.NewContinuous("x"), dataset.NewContinuous("z"))
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		require.NoError(t, d.AppendValues(float64(i), 1, float64(i)))
	}
	_, err = LMTree(context.Background(), d, "y ~ x | z")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFit))

	var fe *errors.FitError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "gaussian", fe.Family)
}

type failingFitter struct{}

func (failingFitter) Name() string { return "failing" }

func (failingFitter) Fit(*model.Design) (*model.FittedModel, error) {
	return nil, errors.New("solver unavailable")
}

func (failingFitter) Mean(eta float64) float64 { return eta }

func TestRootFitErrorFromPlainFitter(t *testing.T) {
	d := breakpointData(t)
	_, err := Grow(context.Background(), d, "y ~ x | age", failingFitter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFit))

	var fe *errors.FitError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "failing", fe.Family)
	assert.Equal(t, 180, fe.Rows)
	assert.Equal(t, 2, fe.Params)
	assert.Contains(t, err.Error(), "solver unavailable")
}

func TestNonConvergence(t *testing.T) {
	d := pureNoiseData(t, 7, 120)
	y, _ := d.Column("y")
	b, err := dataset.New(dataset.NewContinuous("y"), dataset.NewContinuous("x"), dataset.NewContinuous("z1"))
	require.NoError(t, err)
	x, _ := d.Column("x")
	z, _ := d.Column("z1")
	for i := range y {
		v := 0.0
		if y[i] > 1 {
			v = 1
		}
		require.NoError(t, b.AppendValues(v, x[i], z[i]))
	}
	fitter := linear.Logistic(linear.WithMaxIter(1))

	tree, err := Grow(context.Background(), b, "y ~ x | z1", fitter)
	require.NoError(t, err)
	assert.NotEmpty(t, tree.Root().Info.Warning)
	assert.False(t, tree.Root().Model.Converged)

	_, err = Grow(context.Background(), b, "y ~ x | z1", fitter, WithStrict(true))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNonConvergence))
}

func TestWorkersDoNotChangeTheTree(t *testing.T) {
	d := pureNoiseData(t, 11, 400)
	opts := []Option{WithAlpha(0.9), WithMinSize(25)}

	seq, err := LMTree(context.Background(), d, "y ~ x | z1 + z2", opts...)
	require.NoError(t, err)
	par, err := LMTree(context.Background(), d, "y ~ x | z1 + z2", append(opts, WithWorkers(4))...)
	require.NoError(t, err)

	assert.Equal(t, seq.String(), par.String())
	require.Equal(t, seq.Len(), par.Len())
	for _, n := range seq.Nodes() {
		assert.Equal(t, n.Rows, par.Node(n.ID).Rows)
	}
	checkPartition(t, seq, 25)
}

func TestPreorderIDs(t *testing.T) {
	d := pureNoiseData(t, 5, 400)
	tree, err := LMTree(context.Background(), d, "y ~ x | z1 + z2", WithAlpha(0.95), WithMinSize(25))
	require.NoError(t, err)
	for i, n := range tree.preorder() {
		assert.Equal(t, i+1, n.ID)
	}
	assert.Equal(t, 0, tree.Root().Parent)
}

func TestNominalSplit(t *testing.T) {
	d, err := dataset.New(
		dataset.NewContinuous("y"),
		dataset.NewContinuous("x"),
		dataset.NewNominal("g", "a", "b", "c", "d"),
	)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		g := i % 4
		x := float64(i%10) + 1
		e := noisePattern[i%10]
		y := 1 + 2*x + e
		if g == 1 || g == 3 {
			y = 1 - x + e
		}
		require.NoError(t, d.AppendValues(y, x, float64(g)))
	}

	tree, err := LMTree(context.Background(), d, "y ~ x | g")
	require.NoError(t, err)
	root := tree.Root()
	require.NotNil(t, root.Split)
	assert.Equal(t, dataset.Nominal, root.Split.Kind)
	assert.Equal(t, []string{"a", "c"}, root.Split.LeftLevels)
	assert.Equal(t, []string{"b", "d"}, root.Split.RightLevels)
	assert.Equal(t, 0, root.Split.Majority)
	assert.Equal(t, 7, root.Split.Candidates)
	checkPartition(t, tree, 20)

	// 学習時に現れなかった水準は多数派の子へ
	nd, err := dataset.New(
		dataset.NewContinuous("y"),
		dataset.NewContinuous("x"),
		dataset.NewNominal("g", "a", "b", "c", "d", "e"),
	)
	require.NoError(t, err)
	require.NoError(t, nd.AppendRow(map[string]interface{}{"x": 2, "g": "e"}))
	require.NoError(t, nd.AppendRow(map[string]interface{}{"x": 2, "g": "d"}))
	path, err := tree.Route(nd, 0)
	require.NoError(t, err)
	assert.Equal(t, root.Kids[0], path[1])
	path, err = tree.Route(nd, 1)
	require.NoError(t, err)
	assert.Equal(t, root.Kids[1], path[1])
}

func TestNominalManyLevelsOrderedByResponse(t *testing.T) {
	levels := []string{"l0", "l1", "l2", "l3", "l4", "l5"}
	d, err := dataset.New(
		dataset.NewContinuous("y"),
		dataset.NewContinuous("x"),
		dataset.NewNominal("g", levels...),
	)
	require.NoError(t, err)
	for i := 0; i < 240; i++ {
		g := i % 6
		x := float64(i%10) + 1
		y := 1 + 2*x + noisePattern[i%10]
		if g%2 == 1 {
			y = 30 - x + noisePattern[i%10]
		}
		require.NoError(t, d.AppendValues(y, x, float64(g)))
	}
	tree, err := LMTree(context.Background(), d, "y ~ x | g", WithMaxExhaustiveLevels(3))
	require.NoError(t, err)
	root := tree.Root()
	require.NotNil(t, root.Split)
	assert.Equal(t, 5, root.Split.Candidates)
	assert.ElementsMatch(t, []string{"l0", "l2", "l4"}, root.Split.LeftLevels)
	assert.ElementsMatch(t, []string{"l1", "l3", "l5"}, root.Split.RightLevels)
}

func TestOrdinalPartitioning(t *testing.T) {
	d, err := dataset.New(
		dataset.NewContinuous("y"),
		dataset.NewContinuous("x"),
		dataset.NewOrdinal("edu", "low", "mid", "high"),
	)
	require.NoError(t, err)
	for i := 0; i < 150; i++ {
		lvl := i % 3
		x := float64(i%10) + 1
		y := 1 + 2*x + noisePattern[i%10]
		if lvl == 2 {
			y = 1 - x + noisePattern[i%10]
		}
		require.NoError(t, d.AppendValues(y, x, float64(lvl)))
	}
	for _, asContinuous := range []bool{false, true} {
		tree, err := LMTree(context.Background(), d, "y ~ x | edu", WithOrdinalAsContinuous(asContinuous))
		require.NoError(t, err)
		root := tree.Root()
		require.NotNil(t, root.Split)
		assert.Equal(t, dataset.Ordinal, root.Split.Kind)
		assert.Equal(t, 1.0, root.Split.Threshold)
		assert.Equal(t, "edu <= mid", root.Split.Label(0))
		assert.Equal(t, "edu > mid", root.Split.Label(1))
	}
}

func TestGLMTreeLogistic(t *testing.T) {
	d := logisticData(t, 3, 1000)
	tree, err := GLMTree(context.Background(), d, "y ~ x | z + w", "binomial")
	require.NoError(t, err)

	root := tree.Root()
	require.NotNil(t, root.Split)
	assert.Equal(t, "z", root.Split.Variable)
	assert.InDelta(t, 0.5, root.Split.Threshold, 0.1)
	assert.Equal(t, "binomial", tree.Family())

	p, err := tree.Predict(d, PredictResponse)
	require.NoError(t, err)
	for _, v := range p {
		assert.True(t, v > 0 && v < 1)
	}
}

func TestGrowLogsRunID(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	tree, err := LMTree(context.Background(), breakpointData(t), "y ~ x | age + gender", WithLogger(logger))
	require.NoError(t, err)

	assert.True(t, logger.ContainsMessage("growing tree"))
	assert.True(t, logger.ContainsMessage("node split"))
	assert.True(t, logger.ContainsField(log.RunIDKey, tree.RunID()))
	assert.True(t, logger.ContainsField(log.VariableKey, "age"))
	assert.Nil(t, tree.Config().Logger)
}
