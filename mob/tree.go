package mob

import (
	"math"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/linear"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

// Tree is a grown model-based tree. Nodes live in an arena indexed by id
// (ids start at 1, numbered in depth-first pre-order). A Tree is immutable;
// Prune returns a new Tree.
type Tree struct {
	nodes   []*Node
	formula *dataset.Formula
	terms   []dataset.Term
	schema  []dataset.Variable
	fitter  model.Fitter
	config  Config
	runID   string
	// nobs はルートの重み和（BIC のペナルティに使う）
	nobs float64
}

// Node returns the node with the given id, or nil.
func (t *Tree) Node(id int) *Node {
	if id <= 0 || id >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.Node(1)
}

// Nodes returns every node in id order.
func (t *Tree) Nodes() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Leaves returns the terminal nodes in id order.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n != nil && n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// Internal returns the split nodes in id order.
func (t *Tree) Internal() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n != nil && !n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.Nodes())
}

// Depth returns the depth of the deepest node (1 for a single leaf).
func (t *Tree) Depth() int {
	d := 0
	for _, n := range t.Nodes() {
		if n.Depth > d {
			d = n.Depth
		}
	}
	return d
}

// Formula returns the resolved formula.
func (t *Tree) Formula() *dataset.Formula { return t.formula }

// Family returns the name of the node model family.
func (t *Tree) Family() string { return t.fitter.Name() }

// Config returns the configuration the tree was grown with.
func (t *Tree) Config() Config { return t.config }

// RunID returns the identifier that tagged the growth logs.
func (t *Tree) RunID() string { return t.runID }

// Coefficients returns the coefficients of every leaf keyed by node id.
func (t *Tree) Coefficients() map[int][]float64 {
	out := make(map[int][]float64)
	for _, n := range t.Leaves() {
		out[n.ID] = append([]float64(nil), n.Model.Coefficients...)
	}
	return out
}

// CoefficientNames returns the names matching Coefficients.
func (t *Tree) CoefficientNames() []string {
	return dataset.Names(t.terms)
}

// Summary returns the coefficient table of a node.
func (t *Tree) Summary(id int) (*linear.Summary, error) {
	n := t.Node(id)
	if n == nil {
		return nil, errors.NewValueError("Tree.Summary", "no such node")
	}
	return linear.Summarize(n.Model)
}

// LogLik returns the summed log-likelihood of the leaves.
func (t *Tree) LogLik() float64 {
	var ll float64
	for _, n := range t.Leaves() {
		ll += n.Model.LogLik
	}
	return ll
}

// Objective returns the summed objective of the leaves.
func (t *Tree) Objective() float64 {
	var obj float64
	for _, n := range t.Leaves() {
		obj += n.Model.Objective
	}
	return obj
}

// DF returns the degrees of freedom of the tree: the leaf model DFs plus
// DFSplit per split.
func (t *Tree) DF() float64 {
	var df float64
	for _, n := range t.Leaves() {
		df += float64(n.Model.DF)
	}
	return df + t.config.DFSplit*float64(len(t.Internal()))
}

// NumObs returns the weight sum of the rows the tree was grown on.
func (t *Tree) NumObs() float64 {
	return t.nobs
}

// AIC returns -2·LogLik + 2·DF.
func (t *Tree) AIC() float64 {
	return -2*t.LogLik() + 2*t.DF()
}

// BIC returns -2·LogLik + ln(n)·DF.
func (t *Tree) BIC() float64 {
	return -2*t.LogLik() + math.Log(t.nobs)*t.DF()
}

// Criterion evaluates an information criterion for the whole tree. PruneNone
// returns -2·LogLik.
func (t *Tree) Criterion(c PruneCriterion) float64 {
	return -2*t.LogLik() + penalty(c, t.nobs)*t.DF()
}

func penalty(c PruneCriterion, n float64) float64 {
	switch c {
	case PruneAIC:
		return 2
	case PruneBIC:
		return math.Log(n)
	default:
		return 0
	}
}

// preorder は id 順ではなく木をたどる順でノードを返す
func (t *Tree) preorder() []*Node {
	root := t.Root()
	if root == nil {
		return nil
	}
	var out []*Node
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		for i := len(n.Kids) - 1; i >= 0; i-- {
			stack = append(stack, t.nodes[n.Kids[i]])
		}
	}
	return out
}
