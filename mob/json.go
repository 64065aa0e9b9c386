package mob

import (
	"io"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/fluctuation"
	"github.com/YuminosukeSato/mobtree/linear"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

const formatVersion = 1

// treeJSON はシリアライズ用の木の表現。ノードのスコアは保存しない
type treeJSON struct {
	Version int                `json:"version"`
	RunID   string             `json:"run_id"`
	Family  string             `json:"family"`
	Formula *dataset.Formula   `json:"formula"`
	Terms   []dataset.Term     `json:"terms"`
	Schema  []dataset.Variable `json:"schema"`
	Config  configJSON         `json:"config"`
	NumObs  float64            `json:"n_obs"`
	Nodes   []nodeJSON         `json:"nodes"`
}

type configJSON struct {
	Alpha      float64                `json:"alpha"`
	MinSize    int                    `json:"minsize"`
	MaxDepth   int                    `json:"maxdepth"`
	Prune      PruneCriterion         `json:"prune"`
	Bonferroni bool                   `json:"bonferroni"`
	Functional fluctuation.Functional `json:"functional"`
	Trim       float64                `json:"trim"`
	DFSplit    float64                `json:"dfsplit"`
}

type nodeJSON struct {
	ID     int                  `json:"id"`
	Parent int                  `json:"parent"`
	Kids   []int                `json:"kids,omitempty"`
	Depth  int                  `json:"depth"`
	Rows   []int                `json:"rows,omitempty"`
	Split  *Split               `json:"split,omitempty"`
	Tests  []fluctuation.Result `json:"tests,omitempty"`
	Info   Info                 `json:"info"`
	Model  *model.Snapshot      `json:"model"`
}

// Export returns the serializable form of the tree.
func (t *Tree) Export() interface{} {
	out := &treeJSON{
		Version: formatVersion,
		RunID:   t.runID,
		Family:  t.fitter.Name(),
		Formula: t.formula,
		Terms:   t.terms,
		Schema:  t.schema,
		NumObs:  t.nobs,
		Config: configJSON{
			Alpha:      t.config.Alpha,
			MinSize:    t.config.MinSize,
			MaxDepth:   t.config.MaxDepth,
			Prune:      t.config.Prune,
			Bonferroni: t.config.Bonferroni,
			Functional: t.config.Functional,
			Trim:       t.config.Trim,
			DFSplit:    t.config.DFSplit,
		},
	}
	for _, n := range t.Nodes() {
		out.Nodes = append(out.Nodes, nodeJSON{
			ID:     n.ID,
			Parent: n.Parent,
			Kids:   n.Kids,
			Depth:  n.Depth,
			Rows:   n.Rows,
			Split:  n.Split,
			Tests:  n.Tests,
			Info:   n.Info,
			Model:  n.Model.Snapshot(),
		})
	}
	return out
}

// WriteJSON writes the tree as indented JSON. Per-row scores are not
// written; a tree read back can predict, print and be pruned.
func (t *Tree) WriteJSON(w io.Writer) error {
	return model.SaveJSONToWriter(t.Export(), w)
}

// Save writes the tree to a JSON file.
func (t *Tree) Save(path string) error {
	return model.SaveJSON(t.Export(), path)
}

// ReadJSON reads a tree written by WriteJSON. The family is resolved through
// the linear family registry, so custom families must be registered first.
func ReadJSON(r io.Reader) (*Tree, error) {
	var in treeJSON
	if err := model.LoadJSONFromReader(&in, r); err != nil {
		return nil, err
	}
	return fromJSON(&in)
}

// Load reads a tree from a JSON file.
func Load(path string) (*Tree, error) {
	var in treeJSON
	if err := model.LoadJSON(&in, path); err != nil {
		return nil, err
	}
	return fromJSON(&in)
}

func fromJSON(in *treeJSON) (*Tree, error) {
	if in.Version != formatVersion {
		return nil, errors.NewValidationError("version", "unsupported tree format version", in.Version)
	}
	if in.Formula == nil {
		return nil, errors.NewValidationError("formula", "tree has no formula", nil)
	}
	fitter, err := linear.Lookup(in.Family)
	if err != nil {
		return nil, err
	}

	maxID := 0
	for _, n := range in.Nodes {
		if n.ID > maxID {
			maxID = n.ID
		}
	}
	nodes := make([]*Node, maxID+1)
	for _, nj := range in.Nodes {
		if nj.ID <= 0 || nodes[nj.ID] != nil {
			return nil, errors.NewValidationError("nodes", "invalid or duplicate node id", nj.ID)
		}
		if nj.Model == nil {
			return nil, errors.NewValidationError("nodes", "node without model", nj.ID)
		}
		nodes[nj.ID] = &Node{
			ID:     nj.ID,
			Parent: nj.Parent,
			Kids:   nj.Kids,
			Depth:  nj.Depth,
			Rows:   nj.Rows,
			Split:  nj.Split,
			Tests:  nj.Tests,
			Info:   nj.Info,
			Model:  nj.Model.Restore(),
		}
	}
	if len(nodes) < 2 || nodes[1] == nil {
		return nil, errors.NewValidationError("nodes", "tree has no root", nil)
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if len(n.Kids) != 0 && (len(n.Kids) != 2 || n.Split == nil) {
			return nil, errors.NewValidationError("nodes", "internal node needs a split and two children", n.ID)
		}
		for _, k := range n.Kids {
			if k <= 0 || k >= len(nodes) || nodes[k] == nil {
				return nil, errors.NewValidationError("nodes", "dangling child id", k)
			}
		}
	}
	if err := checkShape(nodes); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.Alpha = in.Config.Alpha
	cfg.MinSize = in.Config.MinSize
	cfg.MaxDepth = in.Config.MaxDepth
	cfg.Prune = in.Config.Prune
	cfg.Bonferroni = in.Config.Bonferroni
	cfg.Functional = in.Config.Functional
	cfg.Trim = in.Config.Trim
	cfg.DFSplit = in.Config.DFSplit

	return &Tree{
		nodes:   nodes,
		formula: in.Formula,
		terms:   in.Terms,
		schema:  in.Schema,
		fitter:  fitter,
		config:  cfg,
		runID:   in.RunID,
		nobs:    in.NumObs,
	}, nil
}

// checkShape はルートから辿ったノードが木をなすことを確かめる。
// 各ノードはちょうど一度だけ到達し、親と深さが辿った経路と一致する
func checkShape(nodes []*Node) error {
	root := nodes[1]
	if root.Parent != 0 || root.Depth != 1 {
		return errors.NewValidationError("nodes", "root must have parent 0 and depth 1", root.ID)
	}
	visited := make([]bool, len(nodes))
	visited[1] = true
	reached := 1
	stack := []int{1}
	for len(stack) > 0 {
		n := nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		for _, k := range n.Kids {
			if visited[k] {
				return errors.NewValidationError("nodes", "node reached twice", k)
			}
			kid := nodes[k]
			if kid.Parent != n.ID || kid.Depth != n.Depth+1 {
				return errors.NewValidationError("nodes", "child parent or depth does not match", k)
			}
			visited[k] = true
			reached++
			stack = append(stack, k)
		}
	}
	total := 0
	for _, n := range nodes {
		if n != nil {
			total++
		}
	}
	if reached != total {
		return errors.NewValidationError("nodes", "nodes unreachable from the root", total-reached)
	}
	return nil
}
