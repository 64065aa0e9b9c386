package mob

// Prune collapses, bottom-up, every internal node whose own model has an
// information criterion no larger than that of its (already pruned) subtree.
// The criterion of a subtree is -2·Σ logLik + pen·(Σ df + DFSplit·splits)
// over its leaves, with pen 2 for AIC and ln(n) for BIC.
//
// Because the criterion is additive over leaves, the bottom-up pass yields
// the subtree with the smallest criterion; pruning the result again changes
// nothing. Surviving nodes keep their ids and share their fitted models with
// t, which is left untouched. PruneNone returns t itself.
func Prune(t *Tree, c PruneCriterion) *Tree {
	if c == PruneNone || t.Root() == nil {
		return t
	}
	pen := penalty(c, t.nobs)

	// ノードを浅くコピーした新しいアリーナ
	nodes := make([]*Node, len(t.nodes))
	for id, n := range t.nodes {
		if n == nil {
			continue
		}
		cp := *n
		cp.Kids = append([]int(nil), n.Kids...)
		nodes[id] = &cp
	}

	type subtree struct {
		loglik float64
		df     float64
	}
	acc := make([]subtree, len(nodes))

	order := t.preorder()
	for i := len(order) - 1; i >= 0; i-- {
		n := nodes[order[i].ID]
		own := subtree{loglik: n.Model.LogLik, df: float64(n.Model.DF)}
		if n.IsLeaf() {
			acc[n.ID] = own
			continue
		}
		sub := subtree{df: t.config.DFSplit}
		for _, k := range n.Kids {
			sub.loglik += acc[k].loglik
			sub.df += acc[k].df
		}
		ownIC := -2*own.loglik + pen*own.df
		subIC := -2*sub.loglik + pen*sub.df
		if ownIC <= subIC {
			collapse(nodes, n.ID)
			acc[n.ID] = own
			continue
		}
		acc[n.ID] = sub
	}

	return &Tree{
		nodes:   nodes,
		formula: t.formula,
		terms:   t.terms,
		schema:  t.schema,
		fitter:  t.fitter,
		config:  t.config,
		runID:   t.runID,
		nobs:    t.nobs,
	}
}

// collapse は id の子孫をアリーナから取り除き、id を葉にする
func collapse(nodes []*Node, id int) {
	n := nodes[id]
	stack := append([]int(nil), n.Kids...)
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodes[k] == nil {
			continue
		}
		stack = append(stack, nodes[k].Kids...)
		nodes[k] = nil
	}
	n.Kids = nil
	n.Split = nil
	n.Info.Stop = StopPruned
}
