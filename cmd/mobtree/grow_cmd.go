package main

import (
	"fmt"
	"os"

	"github.com/YuminosukeSato/mobtree/mob"
	"github.com/YuminosukeSato/mobtree/pkg/log"
	"github.com/spf13/cobra"
)

type growCmdConfig struct {
	*rootCmdConfig
	dataInput     string
	metadataInput string
	configInput   string
	output        string
	formula       string
	family        string
	alpha         float64
	minSize       int
	maxDepth      int
	prune         string
	workers       int
	strict        bool
}

func growCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &growCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "grow",
		Short: "Grow a tree from a set of data",
		Long: `Grow a model-based tree from a CSV file. The formula has the form
"y ~ x1 + x2 | z1 + z2": regressors of the node models left of the bar,
partitioning variables right of it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Validate(); err != nil {
				return err
			}
			opts, err := config.options(cmd)
			if err != nil {
				return err
			}
			data, err := readData(config.dataInput, config.metadataInput)
			if err != nil {
				return err
			}
			logger := log.GetLoggerWithName("mobtree")
			logger.Info("data loaded", log.SamplesKey, data.Len())

			tree, err := mob.GLMTree(cmd.Context(), data, config.formula, config.family, append(opts, mob.WithLogger(logger))...)
			if err != nil {
				return fmt.Errorf("growing the tree: %w", err)
			}
			if config.output == "" {
				return tree.WriteJSON(cmd.OutOrStdout())
			}
			if err := tree.Save(config.output); err != nil {
				return err
			}
			fmt.Fprint(cmd.ErrOrStderr(), tree.String())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&(config.dataInput), "input", "i", "", "path to an input CSV file with the data to grow the tree on (defaults to STDIN)")
	flags.StringVarP(&(config.metadataInput), "metadata", "m", "", "path to a YAML file declaring variable kinds and levels (inferred from the data when omitted)")
	flags.StringVarP(&(config.configInput), "config", "c", "", "path to a YAML file with growth options; flags given explicitly take precedence")
	flags.StringVarP(&(config.output), "output", "o", "", "path to a file to which the tree will be written in JSON format (defaults to STDOUT)")
	flags.StringVarP(&(config.formula), "formula", "f", "", "model formula, e.g. 'y ~ x | z1 + z2' (required)")
	flags.StringVar(&(config.family), "family", "gaussian", "node model family: gaussian, binomial, poisson")
	flags.Float64Var(&(config.alpha), "alpha", 0.05, "significance level of the instability tests")
	flags.IntVar(&(config.minSize), "minsize", 0, "minimum number of rows per node (0: 10 per coefficient)")
	flags.IntVar(&(config.maxDepth), "maxdepth", 0, "maximum depth, root depth 1 (0: unbounded)")
	flags.StringVar(&(config.prune), "prune", "none", "post-pruning criterion: none, aic, bic")
	flags.IntVar(&(config.workers), "workers", 1, "number of goroutines used while growing")
	flags.BoolVar(&(config.strict), "strict", false, "fail when a node fit does not converge")
	return cmd
}

func (gcc *growCmdConfig) Validate() error {
	if gcc.formula == "" {
		return fmt.Errorf("required formula flag was not set")
	}
	if gcc.dataInput != "" {
		if _, err := os.Stat(gcc.dataInput); err != nil {
			return fmt.Errorf("input: %w", err)
		}
	}
	return nil
}

// options は設定ファイルの値に、明示的に指定されたフラグを上書きする
func (gcc *growCmdConfig) options(cmd *cobra.Command) ([]mob.Option, error) {
	var opts []mob.Option
	if gcc.configInput != "" {
		fc, err := mob.ReadConfigFile(gcc.configInput)
		if err != nil {
			return nil, err
		}
		opts = fc.Options()
	}
	flags := cmd.Flags()
	if flags.Changed("alpha") {
		opts = append(opts, mob.WithAlpha(gcc.alpha))
	}
	if flags.Changed("minsize") {
		opts = append(opts, mob.WithMinSize(gcc.minSize))
	}
	if flags.Changed("maxdepth") {
		opts = append(opts, mob.WithMaxDepth(gcc.maxDepth))
	}
	if flags.Changed("prune") {
		p, err := mob.ParsePrune(gcc.prune)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mob.WithPrune(p))
	}
	if flags.Changed("workers") {
		opts = append(opts, mob.WithWorkers(gcc.workers))
	}
	if flags.Changed("strict") {
		opts = append(opts, mob.WithStrict(gcc.strict))
	}
	return opts, nil
}
