package mob

import (
	"math"
	"strconv"

	"github.com/YuminosukeSato/mobtree/core/parallel"
	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

// parallelThreshold はこの行数を超えると予測を並列化する（Workers が 0 の場合）
const parallelThreshold = 1000

// PredictMode selects what Predict returns per row.
type PredictMode int

const (
	// PredictNode returns the id of the leaf the row falls into.
	PredictNode PredictMode = iota
	// PredictResponse returns the leaf model's mean response at the row.
	PredictResponse
	// PredictLink returns the leaf model's linear predictor at the row.
	PredictLink
)

func (m PredictMode) String() string {
	switch m {
	case PredictNode:
		return "node"
	case PredictResponse:
		return "response"
	case PredictLink:
		return "link"
	default:
		return "unknown"
	}
}

// ParsePredictMode parses "node", "response" or "link".
func ParsePredictMode(s string) (PredictMode, error) {
	switch s {
	case "node", "leaf", "leaf-id":
		return PredictNode, nil
	case "response", "fitted", "fitted-response":
		return PredictResponse, nil
	case "link":
		return PredictLink, nil
	default:
		return PredictNode, errors.NewValidationError("type", "must be node, response or link", s)
	}
}

// Route returns the ids of the nodes visited by row of ds, root first. Every
// split condition along the path holds for the row.
func (t *Tree) Route(ds *dataset.Dataset, row int) ([]int, error) {
	if row < 0 || row >= ds.Len() {
		return nil, errors.NewValueError("Tree.Route", "row "+strconv.Itoa(row)+" out of range")
	}
	n := t.Root()
	if n == nil {
		return nil, errors.NewNotFittedError("Tree", "Route")
	}
	path := []int{n.ID}
	for !n.IsLeaf() {
		sp := n.Split
		v, ok := ds.Variable(sp.Variable)
		if !ok {
			return nil, errors.NewValidationError("data", "missing partitioning variable", sp.Variable)
		}
		x, _ := ds.Value(row, sp.Variable)
		if math.IsNaN(x) {
			return nil, errors.NewValueError("Tree.Route", "missing value of "+sp.Variable+" in row "+strconv.Itoa(row))
		}
		n = t.nodes[n.Kids[sp.child(v, x)]]
		path = append(path, n.ID)
	}
	return path, nil
}

// Predict routes every row of ds to a leaf and evaluates it according to
// mode. Rows with a missing value in a needed variable are an error.
func (t *Tree) Predict(ds *dataset.Dataset, mode PredictMode) ([]float64, error) {
	if ds == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset is nil")
	}
	if mode < PredictNode || mode > PredictLink {
		return nil, errors.NewValidationError("type", "unknown prediction mode", int(mode))
	}
	out := make([]float64, ds.Len())
	errs := make([]error, ds.Len())
	predictRange := func(start, end int) {
		buf := make([]float64, 0, len(t.terms)+1)
		for r := start; r < end; r++ {
			out[r], errs[r] = t.predictRow(ds, r, mode, &buf)
		}
	}
	if t.config.Workers == 0 {
		// 行数に応じて並列化
		parallel.ParallelizeWithThreshold(ds.Len(), parallelThreshold, predictRange)
	} else {
		parallel.ParallelizeN(ds.Len(), t.config.Workers, predictRange)
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *Tree) predictRow(ds *dataset.Dataset, row int, mode PredictMode, buf *[]float64) (float64, error) {
	path, err := t.Route(ds, row)
	if err != nil {
		return 0, err
	}
	leaf := t.nodes[path[len(path)-1]]
	if mode == PredictNode {
		return float64(leaf.ID), nil
	}
	x, err := ds.Regressors(t.terms, row, *buf)
	if err != nil {
		return 0, err
	}
	*buf = x
	eta := leaf.Model.LinearPredictor(x)
	if mode == PredictLink {
		return eta, nil
	}
	return t.fitter.Mean(eta), nil
}
