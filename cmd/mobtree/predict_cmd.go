package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/metrics"
	"github.com/YuminosukeSato/mobtree/mob"
	"github.com/spf13/cobra"
)

type predictCmdConfig struct {
	*rootCmdConfig
	treeInput     string
	dataInput     string
	metadataInput string
	output        string
	predictType   string
	evaluate      bool
}

func predictCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &predictCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict leaf ids or responses for a set of data",
		Long: `Route every row of a CSV file through the tree and append the
prediction as a new column: the leaf id (node), the fitted response
(response) or the linear predictor (link)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := mob.ParsePredictMode(config.predictType)
			if err != nil {
				return err
			}
			tree, err := loadTree(config.treeInput)
			if err != nil {
				return err
			}
			data, err := readData(config.dataInput, config.metadataInput)
			if err != nil {
				return err
			}
			pred, err := tree.Predict(data, mode)
			if err != nil {
				return fmt.Errorf("predicting: %w", err)
			}

			if config.evaluate {
				if err := evaluate(cmd, tree, data, mode, pred); err != nil {
					return err
				}
			}
			return config.write(cmd, data, mode, pred)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&(config.treeInput), "tree", "t", "", "path to a tree written by grow (required)")
	flags.StringVarP(&(config.dataInput), "input", "i", "", "path to an input CSV file (defaults to STDIN)")
	flags.StringVarP(&(config.metadataInput), "metadata", "m", "", "path to a YAML file declaring variable kinds and levels")
	flags.StringVarP(&(config.output), "output", "o", "", "path to the output CSV file (defaults to STDOUT)")
	flags.StringVar(&(config.predictType), "type", "response", "prediction type: node, response or link")
	flags.BoolVar(&(config.evaluate), "evaluate", false, "print fit metrics against the response column to STDERR")
	return cmd
}

func (pcc *predictCmdConfig) write(cmd *cobra.Command, data *dataset.Dataset, mode mob.PredictMode, pred []float64) error {
	col := make([]string, len(pred))
	for i, p := range pred {
		if mode == mob.PredictNode {
			col[i] = strconv.Itoa(int(p))
		} else {
			col[i] = strconv.FormatFloat(p, 'g', -1, 64)
		}
	}
	name := "." + mode.String()
	if pcc.output == "" {
		return dataset.WriteCSV(cmd.OutOrStdout(), data, []string{name}, [][]string{col})
	}
	f, err := os.Create(pcc.output)
	if err != nil {
		return err
	}
	defer f.Close()
	return dataset.WriteCSV(f, data, []string{name}, [][]string{col})
}

func evaluate(cmd *cobra.Command, tree *mob.Tree, data *dataset.Dataset, mode mob.PredictMode, pred []float64) error {
	if mode != mob.PredictResponse {
		return fmt.Errorf("--evaluate needs --type response")
	}
	y, err := data.Column(tree.Formula().Response)
	if err != nil {
		return err
	}
	report, err := metrics.Evaluate(tree.Family(), y, pred)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.ErrOrStderr(), report.String())
	return nil
}
