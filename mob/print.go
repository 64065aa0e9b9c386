package mob

import (
	"fmt"
	"strings"
)

// String renders the tree as indented text:
//
//	[1] root
//	|   [2] age <= 18: n = 90
//	|       (Intercept)= 1.02, x= 1.99
//	|   [3] age > 18: n = 90
//	|       (Intercept)= 0.97, x= -1.01
func (t *Tree) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Model-based recursive partitioning (%s)\n\n", t.Family())
	fmt.Fprintf(&sb, "Model formula:\n%s\n\nFitted party:\n", t.formula)

	type item struct {
		id     int
		label  string
		indent int
	}
	stack := []item{{id: 1, label: "root"}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.Node(it.id)
		prefix := strings.Repeat("|   ", it.indent)

		if n.IsLeaf() {
			fmt.Fprintf(&sb, "%s[%d] %s: n = %d\n", prefix, n.ID, it.label, n.Size())
			fmt.Fprintf(&sb, "%s    %s\n", prefix, t.formatCoefficients(n))
			continue
		}
		fmt.Fprintf(&sb, "%s[%d] %s\n", prefix, n.ID, it.label)
		for c := len(n.Kids) - 1; c >= 0; c-- {
			stack = append(stack, item{id: n.Kids[c], label: n.Split.Label(c), indent: it.indent + 1})
		}
	}

	fmt.Fprintf(&sb, "\nNumber of inner nodes:    %d\n", len(t.Internal()))
	fmt.Fprintf(&sb, "Number of terminal nodes: %d\n", len(t.Leaves()))
	fmt.Fprintf(&sb, "Number of parameters per node: %d\n", len(t.terms)+1)
	fmt.Fprintf(&sb, "Objective function (%s): %.4f\n", t.objectiveName(), t.Objective())
	return sb.String()
}

func (t *Tree) formatCoefficients(n *Node) string {
	names := t.CoefficientNames()
	parts := make([]string, len(n.Model.Coefficients))
	for j, b := range n.Model.Coefficients {
		name := fmt.Sprintf("b%d", j)
		if j < len(names) {
			name = names[j]
		}
		parts[j] = fmt.Sprintf("%s= %.4g", name, b)
	}
	return strings.Join(parts, ", ")
}

func (t *Tree) objectiveName() string {
	if t.Family() == "gaussian" {
		return "residual sum of squares"
	}
	return "negative log-likelihood"
}

// TestsTable renders the instability tests of a node, one row per
// partitioning variable.
func (t *Tree) TestsTable(id int) string {
	n := t.Node(id)
	if n == nil || len(n.Tests) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-16s %-6s %12s %12s %12s\n", "variable", "test", "statistic", "p.value", "adjusted")
	for _, r := range n.Tests {
		if r.Skipped {
			fmt.Fprintf(&sb, "%-16s %-6s %12s %12s %12s  (%s)\n", r.Variable, r.Functional, "-", "-", "-", r.Reason)
			continue
		}
		fmt.Fprintf(&sb, "%-16s %-6s %12.4f %12.4g %12.4g\n", r.Variable, r.Functional, r.Statistic, r.PValue, r.Adjusted)
	}
	return sb.String()
}
