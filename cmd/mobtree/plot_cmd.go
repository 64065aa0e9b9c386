package main

import (
	"fmt"

	"github.com/YuminosukeSato/mobtree/visualize"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
)

type plotCmdConfig struct {
	*rootCmdConfig
	treeInput     string
	dataInput     string
	metadataInput string
	output        string
	node          int
	variable      string
	regressor     string
}

func plotCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &plotCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot a fluctuation process or the leaf fits",
		Long: `With --variable, plot the fluctuation process of a node along an ordered
partitioning variable with its critical boundary. With --regressor, scatter
the response against a regressor, one colour per leaf. The data must be the
set the tree was grown on.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (config.variable == "") == (config.regressor == "") {
				return fmt.Errorf("exactly one of --variable and --regressor must be set")
			}
			if config.output == "" {
				return fmt.Errorf("required output flag was not set")
			}
			tree, err := loadTree(config.treeInput)
			if err != nil {
				return err
			}
			data, err := readData(config.dataInput, config.metadataInput)
			if err != nil {
				return err
			}

			var p *plot.Plot
			if config.variable != "" {
				path, err := tree.Fluctuation(data, config.node, config.variable)
				if err != nil {
					return err
				}
				p, err = visualize.Process(path)
				if err != nil {
					return err
				}
			} else {
				p, err = visualize.LeafFits(tree, data, config.regressor)
				if err != nil {
					return err
				}
			}
			return visualize.Save(p, config.output)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&(config.treeInput), "tree", "t", "", "path to a tree written by grow (required)")
	flags.StringVarP(&(config.dataInput), "input", "i", "", "path to the CSV file the tree was grown on (defaults to STDIN)")
	flags.StringVarP(&(config.metadataInput), "metadata", "m", "", "path to a YAML file declaring variable kinds and levels")
	flags.StringVarP(&(config.output), "output", "o", "", "path of the image; the extension selects the format (required)")
	flags.IntVarP(&(config.node), "node", "n", 1, "node whose fluctuation process is plotted")
	flags.StringVar(&(config.variable), "variable", "", "ordered partitioning variable")
	flags.StringVar(&(config.regressor), "regressor", "", "regressor for the leaf scatter plot")
	return cmd
}
