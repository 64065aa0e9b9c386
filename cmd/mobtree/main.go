package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/mob"
	"github.com/YuminosukeSato/mobtree/pkg/log"
	"github.com/spf13/cobra"
)

type rootCmdConfig struct {
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cliParser().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cliParser() *cobra.Command {
	config := &rootCmdConfig{}
	rootCmd := &cobra.Command{
		Use:   "mobtree",
		Short: "mobtree grows model-based recursive partitioning trees",
		Long: `A tool to grow trees of linear and generalized linear models whose
parameters are unstable along partitioning variables, inspect them, and use
them to make predictions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.SetupLogger(cmd.ErrOrStderr(), config.logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&(config.logLevel), "log-level", "warn", "log level: debug, info, warn or error")
	rootCmd.AddCommand(
		versionCmd(),
		growCmd(config),
		predictCmd(config),
		showCmd(config),
		testCmd(config),
		plotCmd(config),
	)
	return rootCmd
}

// readData reads a CSV file (STDIN when input is empty), typed by the
// optional YAML metadata file.
func readData(input, metadata string) (*dataset.Dataset, error) {
	var meta *dataset.Metadata
	if metadata != "" {
		var err error
		meta, err = dataset.ReadMetadataFile(metadata)
		if err != nil {
			return nil, err
		}
	}
	return dataset.ReadCSVFile(input, meta)
}

func loadTree(path string) (*mob.Tree, error) {
	if path == "" {
		return nil, fmt.Errorf("required tree flag was not set")
	}
	tree, err := mob.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading tree from %s: %w", path, err)
	}
	return tree, nil
}
