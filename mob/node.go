package mob

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/fluctuation"
)

// StopReason records why a node is terminal.
type StopReason string

const (
	StopNone           StopReason = ""
	StopNotSignificant StopReason = "not significant"
	StopNoTestable     StopReason = "no testable variable"
	StopMinSize        StopReason = "min size"
	StopMaxDepth       StopReason = "max depth"
	StopNoValidSplit   StopReason = "no valid split"
	StopPruned         StopReason = "pruned"
)

// Info is diagnostic information attached to a node.
type Info struct {
	Stop StopReason `json:"stop,omitempty"`
	// Warning is the non-convergence message of the node fit, if any.
	Warning string `json:"warning,omitempty"`
	// PValue is the smallest adjusted p-value of the node's tests.
	PValue float64 `json:"p_value,omitempty"`
}

// Split describes how an internal node routes observations.
type Split struct {
	Variable string       `json:"variable"`
	Kind     dataset.Kind `json:"kind"`
	// Threshold sends z <= Threshold left for continuous variables and
	// code <= Threshold left for ordinal variables.
	Threshold float64 `json:"threshold,omitempty"`
	// Levels is the level order of an ordinal variable at growth time.
	Levels []string `json:"levels,omitempty"`
	// LeftLevels and RightLevels are the nominal levels seen in each child.
	LeftLevels  []string `json:"left_levels,omitempty"`
	RightLevels []string `json:"right_levels,omitempty"`
	// Majority is the child (0 left, 1 right) with more training rows; unseen
	// levels are sent there.
	Majority   int     `json:"majority"`
	Objective  float64 `json:"objective"`
	Candidates int     `json:"candidates"`
}

// child returns 0 (left) or 1 (right) for the stored value x of variable v.
func (s *Split) child(v dataset.Variable, x float64) int {
	switch s.Kind {
	case dataset.Continuous:
		if x <= s.Threshold {
			return 0
		}
		return 1
	case dataset.Ordinal:
		if !v.Categorical() {
			if x <= s.Threshold {
				return 0
			}
			return 1
		}
		code := indexOf(s.Levels, v.Format(x))
		if code < 0 {
			return s.Majority
		}
		if float64(code) <= s.Threshold {
			return 0
		}
		return 1
	default:
		name := v.Format(x)
		if indexOf(s.LeftLevels, name) >= 0 {
			return 0
		}
		if indexOf(s.RightLevels, name) >= 0 {
			return 1
		}
		return s.Majority
	}
}

// Label renders the condition of child 0 or 1, e.g. "age <= 18".
func (s *Split) Label(child int) string {
	switch s.Kind {
	case dataset.Continuous:
		op := "<="
		if child == 1 {
			op = ">"
		}
		return fmt.Sprintf("%s %s %s", s.Variable, op, formatNumber(s.Threshold))
	case dataset.Ordinal:
		i := int(s.Threshold)
		if i < 0 || i >= len(s.Levels) {
			return fmt.Sprintf("%s ?", s.Variable)
		}
		if child == 0 {
			return fmt.Sprintf("%s <= %s", s.Variable, s.Levels[i])
		}
		return fmt.Sprintf("%s > %s", s.Variable, s.Levels[i])
	default:
		levels := s.LeftLevels
		if child == 1 {
			levels = s.RightLevels
		}
		return fmt.Sprintf("%s in {%s}", s.Variable, strings.Join(levels, ", "))
	}
}

func formatNumber(x float64) string {
	if x == math.Trunc(x) && math.Abs(x) < 1e15 {
		return fmt.Sprintf("%d", int64(x))
	}
	return fmt.Sprintf("%.6g", x)
}

func indexOf(list []string, s string) int {
	for i, x := range list {
		if x == s {
			return i
		}
	}
	return -1
}

// Node is one node of the tree arena. Kids and Parent are ids; the root has
// Parent 0.
type Node struct {
	ID     int
	Parent int
	Kids   []int
	Depth  int
	// Rows are the dataset rows of the node in ascending order.
	Rows  []int
	Model *model.FittedModel
	Split *Split
	// Tests holds the instability test of every partitioning variable for
	// nodes that were tested.
	Tests []fluctuation.Result
	Info  Info
}

// IsLeaf reports whether the node is terminal.
func (n *Node) IsLeaf() bool {
	return len(n.Kids) == 0
}

// Size returns the number of rows in the node.
func (n *Node) Size() int {
	return len(n.Rows)
}
