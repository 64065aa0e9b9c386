// Package mob grows model-based recursive partitioning trees: a parametric
// model is fitted in every node, its scores are tested for instability along
// each partitioning variable, and the node is split on the most unstable
// variable while the test stays significant.
package mob

import (
	"context"
	"time"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/core/parallel"
	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/fluctuation"
	"github.com/YuminosukeSato/mobtree/linear"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"github.com/YuminosukeSato/mobtree/pkg/log"
	"github.com/google/uuid"
)

// state is the builder state of one node.
type state int

const (
	stateGrow state = iota
	stateTestStability
	stateSplit
	stateLeaf
	stateDone
)

func (s state) String() string {
	switch s {
	case stateGrow:
		return "grow"
	case stateTestStability:
		return "test_stability"
	case stateSplit:
		return "split"
	case stateLeaf:
		return "leaf"
	default:
		return "done"
	}
}

// LMTree grows a tree of Gaussian linear models.
//
//	tree, err := mob.LMTree(ctx, data, "y ~ x | age + gender", mob.WithPrune(mob.PruneAIC))
func LMTree(ctx context.Context, ds *dataset.Dataset, formula string, opts ...Option) (*Tree, error) {
	return Grow(ctx, ds, formula, linear.Gaussian(), opts...)
}

// GLMTree grows a tree of generalized linear models of the named family
// ("binomial", "logistic", "poisson" or a registered family).
func GLMTree(ctx context.Context, ds *dataset.Dataset, formula, family string, opts ...Option) (*Tree, error) {
	fitter, err := linear.Lookup(family)
	if err != nil {
		return nil, errors.NewInvalidConfiguration("family", "unknown family", family)
	}
	return Grow(ctx, ds, formula, fitter, opts...)
}

// builder holds the read-only state shared by every node of one run.
type builder struct {
	ds       *dataset.Dataset
	formula  *dataset.Formula
	terms    []dataset.Term
	fitter   model.Fitter
	cfg      Config
	minSize  int
	vars     []dataset.Variable
	columns  [][]float64
	logger   log.Logger
	splitter *splitter
}

// Grow grows a tree on the complete cases of ds (rows with positive weight
// and no missing value in any formula variable). The configuration is
// validated before anything is fitted. Cancelling ctx aborts growth and
// returns the context error; no partial tree is returned.
func Grow(ctx context.Context, ds *dataset.Dataset, formula string, fitter model.Fitter, opts ...Option) (*Tree, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	growCfg := cfg
	if growCfg.Workers == 0 {
		growCfg.Workers = 1
	}
	if fitter == nil {
		return nil, errors.NewInvalidConfiguration("family", "fitter is nil", nil)
	}
	if ds == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset is nil")
	}

	parsed, err := dataset.ParseFormula(formula)
	if err != nil {
		return nil, errors.NewInvalidConfiguration("formula", err.Error(), formula)
	}
	f, err := parsed.Resolve(ds.Variables())
	if err != nil {
		return nil, errors.NewInvalidConfiguration("formula", err.Error(), formula)
	}
	terms, err := dataset.Terms(f, ds.Variables())
	if err != nil {
		return nil, errors.NewInvalidConfiguration("formula", err.Error(), formula)
	}

	b := &builder{
		ds:      ds,
		formula: f,
		terms:   terms,
		fitter:  fitter,
		cfg:     growCfg,
		minSize: cfg.MinSize,
	}
	if b.minSize == 0 {
		b.minSize = 10 * (len(terms) + 1)
	}
	for _, name := range f.Partition {
		v, _ := ds.Variable(name)
		col, _ := ds.Column(name)
		b.vars = append(b.vars, v)
		b.columns = append(b.columns, col)
	}
	b.splitter = &splitter{
		fitter:        fitter,
		minSize:       b.minSize,
		workers:       growCfg.Workers,
		maxExhaustive: cfg.MaxExhaustiveLevels,
	}

	runID := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("mob")
	}
	b.logger = logger.With(log.RunIDKey, runID, log.FamilyKey, fitter.Name(), log.OperationKey, log.OperationGrow)

	rows, err := ds.CompleteRows(f.Variables())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no complete rows with positive weight")
	}

	start := time.Now()
	b.logger.Info("growing tree",
		log.SamplesKey, len(rows),
		log.ParamsKey, len(terms)+1,
		log.PartitionVarsKey, len(f.Partition),
		"formula", f.String(),
		"min_size", b.minSize,
	)

	nodes, err := b.run(ctx, rows)
	if err != nil {
		b.logger.Error("growth aborted", err)
		return nil, err
	}

	var nobs float64
	for _, r := range rows {
		nobs += ds.Weight(r)
	}
	t := &Tree{
		nodes:   renumber(nodes),
		formula: f,
		terms:   terms,
		schema:  ds.Variables(),
		fitter:  fitter,
		config:  cfg,
		runID:   runID,
		nobs:    nobs,
	}
	t.config.Logger = nil

	b.logger.Info("tree grown",
		log.LeavesKey, len(t.Leaves()),
		"nodes", t.Len(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	if cfg.Prune != PruneNone {
		pruned := Prune(t, cfg.Prune)
		b.logger.Info("tree pruned",
			log.CriterionKey, cfg.Prune.String(),
			log.LeavesKey, len(pruned.Leaves()),
		)
		return pruned, nil
	}
	return t, nil
}

// run はワークリストが空になるまで世代ごとにノードを処理する。
// 同じ世代の兄弟ノードは互いに独立なので並行に処理できる
func (b *builder) run(ctx context.Context, rows []int) ([]*Node, error) {
	root := &Node{ID: 1, Depth: 1, Rows: rows}
	all := []*Node{nil, root}
	pending := []*Node{root}

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kids := make([][]*Node, len(pending))
		errs := make([]error, len(pending))
		parallel.ForEach(len(pending), b.cfg.Workers, func(i int) {
			kids[i], errs[i] = b.process(ctx, pending[i])
		})
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}

		var next []*Node
		for i, n := range pending {
			for _, k := range kids[i] {
				k.ID = len(all)
				k.Parent = n.ID
				n.Kids = append(n.Kids, k.ID)
				all = append(all, k)
				next = append(next, k)
			}
		}
		pending = next
	}
	return all, nil
}

// process drives one node through the state machine and returns its
// children (none for a leaf).
func (b *builder) process(ctx context.Context, n *Node) ([]*Node, error) {
	var (
		st       = stateGrow
		variable int
		kids     []*Node
		err      error
	)
	for st != stateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch st {
		case stateGrow:
			st, err = b.grow(n)
		case stateTestStability:
			st, variable, err = b.testStability(n)
		case stateSplit:
			st, kids = b.split(n, variable)
		case stateLeaf:
			b.logger.Debug("leaf",
				log.NodeIDKey, n.ID,
				log.DepthKey, n.Depth,
				log.SamplesKey, n.Size(),
				log.StopReasonKey, string(n.Info.Stop),
			)
			st = stateDone
		}
		if err != nil {
			return nil, err
		}
	}
	return kids, nil
}

// grow fits the node model unless the split step already did.
func (b *builder) grow(n *Node) (state, error) {
	if n.Model == nil {
		d, err := b.ds.Design(b.formula, b.terms, n.Rows)
		if err != nil {
			return stateDone, err
		}
		fm, err := b.fitter.Fit(d)
		if err != nil {
			// ルートで当てはめに失敗した場合は木を作れない
			if !errors.Is(err, errors.ErrFit) {
				_, k := d.Dims()
				err = errors.NewFitError(b.fitter.Name(), "root fit failed", n.Size(), k, err)
			}
			return stateDone, errors.Wrapf(err, "fitting root model on %d rows", n.Size())
		}
		n.Model = fm
	}

	if w := n.Model.Warning; w != nil {
		n.Info.Warning = w.Error()
		if b.cfg.Strict {
			return stateDone, errors.Wrapf(w, "node %d", n.ID)
		}
		errors.Warn(w)
		b.logger.Warn("node fit did not converge",
			log.NodeIDKey, n.ID,
			log.IterationKey, n.Model.Iterations,
			"warning", w,
		)
	}
	b.logger.Debug("node fitted",
		log.NodeIDKey, n.ID,
		log.DepthKey, n.Depth,
		log.SamplesKey, n.Size(),
		log.ObjectiveKey, n.Model.Objective,
	)
	return stateTestStability, nil
}

// testStability applies the stopping rules and the instability tests and
// returns the index of the partitioning variable to split on.
func (b *builder) testStability(n *Node) (state, int, error) {
	if b.cfg.MaxDepth > 0 && n.Depth >= b.cfg.MaxDepth {
		n.Info.Stop = StopMaxDepth
		return stateLeaf, -1, nil
	}
	if n.Size() < b.minSize {
		n.Info.Stop = StopMinSize
		return stateLeaf, -1, nil
	}

	vars := make([]fluctuation.Variable, len(b.vars))
	for j, v := range b.vars {
		vars[j] = fluctuation.Variable{
			Name:        v.Name,
			Values:      b.nodeValues(n, j),
			Categorical: v.Kind == dataset.Nominal || (v.Kind == dataset.Ordinal && !b.cfg.OrdinalAsContinuous),
		}
	}
	results, err := fluctuation.TestAll(n.Model.Scores, vars, fluctuation.Options{
		Functional: b.cfg.Functional,
		Trim:       b.cfg.Trim,
		Bonferroni: b.cfg.Bonferroni,
		Workers:    b.cfg.Workers,
	})
	if err != nil {
		// スコアが退化している場合も葉にする
		n.Info.Stop = StopNoTestable
		b.logger.Debug("instability tests failed", log.NodeIDKey, n.ID, "reason", err.Error())
		return stateLeaf, -1, nil
	}
	n.Tests = results

	best := fluctuation.Best(results)
	if best < 0 {
		n.Info.Stop = StopNoTestable
		return stateLeaf, -1, nil
	}
	n.Info.PValue = results[best].Adjusted
	b.logger.Debug("stability tested",
		log.NodeIDKey, n.ID,
		log.VariableKey, results[best].Variable,
		log.StatisticKey, results[best].Statistic,
		log.PValueKey, results[best].Adjusted,
	)
	if !(results[best].Adjusted < b.cfg.Alpha) {
		n.Info.Stop = StopNotSignificant
		return stateLeaf, -1, nil
	}
	return stateSplit, best, nil
}

// split searches the best split on the chosen variable and fits the
// children. On NoValidSplit the node becomes a leaf.
func (b *builder) split(n *Node, variable int) (state, []*Node) {
	v := b.vars[variable]
	d, err := b.ds.Design(b.formula, b.terms, n.Rows)
	if err != nil {
		n.Info.Stop = StopNoValidSplit
		return stateLeaf, nil
	}
	sp, left, err := b.splitter.best(d, v, b.nodeValues(n, variable))
	if err != nil {
		n.Info.Stop = StopNoValidSplit
		b.logger.Debug("no valid split", log.NodeIDKey, n.ID, log.VariableKey, v.Name, "reason", err.Error())
		return stateLeaf, nil
	}

	var lrows, rrows []int
	var li, ri []int
	for i, r := range n.Rows {
		if left[i] {
			lrows = append(lrows, r)
			li = append(li, i)
		} else {
			rrows = append(rrows, r)
			ri = append(ri, i)
		}
	}
	lm, lerr := b.fitter.Fit(subDesign(d, li))
	rm, rerr := b.fitter.Fit(subDesign(d, ri))
	if lerr != nil || rerr != nil {
		n.Info.Stop = StopNoValidSplit
		return stateLeaf, nil
	}

	n.Split = sp
	b.logger.Debug("node split",
		log.NodeIDKey, n.ID,
		log.VariableKey, v.Name,
		log.ThresholdKey, sp.Label(0),
		log.ObjectiveKey, sp.Objective,
	)
	return stateDone, []*Node{
		{Depth: n.Depth + 1, Rows: lrows, Model: lm},
		{Depth: n.Depth + 1, Rows: rrows, Model: rm},
	}
}

// nodeValues はノードの行に対応する分割変数の値を返す
func (b *builder) nodeValues(n *Node, variable int) []float64 {
	col := b.columns[variable]
	out := make([]float64, len(n.Rows))
	for i, r := range n.Rows {
		out[i] = col[r]
	}
	return out
}

// renumber assigns depth-first pre-order ids so that the result does not
// depend on the order in which siblings were processed.
func renumber(nodes []*Node) []*Node {
	root := nodes[1]
	out := []*Node{nil}
	newID := make(map[int]int, len(nodes))
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		newID[n.ID] = len(out)
		out = append(out, n)
		for i := len(n.Kids) - 1; i >= 0; i-- {
			stack = append(stack, nodes[n.Kids[i]])
		}
	}
	for _, n := range out[1:] {
		for i, k := range n.Kids {
			n.Kids[i] = newID[k]
		}
		if n.Parent != 0 {
			n.Parent = newID[n.Parent]
		}
	}
	for _, n := range out[1:] {
		n.ID = newID[n.ID]
	}
	return out
}
