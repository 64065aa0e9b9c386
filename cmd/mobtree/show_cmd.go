package main

import (
	"fmt"

	"github.com/YuminosukeSato/mobtree/mob"
	"github.com/spf13/cobra"
)

type showCmdConfig struct {
	*rootCmdConfig
	treeInput string
	node      int
	prune     string
}

func showCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &showCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a tree and its information criteria",
		Long:  `Print the structure of a tree with its leaf coefficients, log-likelihood, AIC and BIC, or the coefficient summary of one node`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(config.treeInput)
			if err != nil {
				return err
			}
			if config.prune != "" {
				c, err := mob.ParsePrune(config.prune)
				if err != nil {
					return err
				}
				tree = mob.Prune(tree, c)
			}
			out := cmd.OutOrStdout()
			if config.node > 0 {
				s, err := tree.Summary(config.node)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Node %d\n%s", config.node, s.String())
				return nil
			}
			fmt.Fprint(out, tree.String())
			fmt.Fprintf(out, "\nlogLik: %.4f (df = %g)\nAIC: %.4f\nBIC: %.4f\n", tree.LogLik(), tree.DF(), tree.AIC(), tree.BIC())
			return nil
		},
	}
	cmd.Flags().StringVarP(&(config.treeInput), "tree", "t", "", "path to a tree written by grow (required)")
	cmd.Flags().IntVarP(&(config.node), "node", "n", 0, "print the coefficient summary of this node instead of the tree")
	cmd.Flags().StringVar(&(config.prune), "prune", "", "prune the tree with aic or bic before printing")
	return cmd
}
