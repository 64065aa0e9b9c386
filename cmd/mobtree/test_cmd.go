package main

import (
	"fmt"

	"github.com/YuminosukeSato/mobtree/mob"
	"github.com/spf13/cobra"
)

type testCmdConfig struct {
	*rootCmdConfig
	treeInput string
	node      int
}

func testCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &testCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Print the parameter instability tests of a node",
		Long:  `Print, for every partitioning variable, the fluctuation test statistic, its p-value and its Bonferroni adjusted p-value at a node`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(config.treeInput)
			if err != nil {
				return err
			}
			n := tree.Node(config.node)
			if n == nil {
				return fmt.Errorf("tree has no node %d", config.node)
			}
			out := cmd.OutOrStdout()
			table := tree.TestsTable(config.node)
			if table == "" {
				fmt.Fprintf(out, "Node %d was not tested (%s)\n", config.node, stopReason(n))
				return nil
			}
			fmt.Fprintf(out, "Node %d: %s\n%s", config.node, stopReason(n), table)
			return nil
		},
	}
	cmd.Flags().StringVarP(&(config.treeInput), "tree", "t", "", "path to a tree written by grow (required)")
	cmd.Flags().IntVarP(&(config.node), "node", "n", 1, "node id")
	return cmd
}

func stopReason(n *mob.Node) string {
	if !n.IsLeaf() {
		return "split on " + n.Split.Variable
	}
	if n.Info.Stop == mob.StopNone {
		return "leaf"
	}
	return string(n.Info.Stop)
}
