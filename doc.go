// Package mobtree grows model-based recursive partitioning (MOB) trees in Go.
//
// A MOB tree fits a parametric model (a Gaussian linear model or a GLM) to
// all data, tests whether its parameters are stable along each partitioning
// variable with M-fluctuation tests, and splits on the most unstable
// variable while the Bonferroni adjusted p-value stays below alpha. Every
// leaf carries its own fitted model.
//
// # Packages
//
//   - mob: tree growth, pruning, prediction and persistence
//   - linear: node model families (gaussian, binomial, poisson, custom)
//   - fluctuation: score-based parameter instability tests
//   - dataset: typed columns, formulas, CSV and YAML metadata
//   - metrics: scores for predictions
//   - visualize: plots of fluctuation processes and leaf fits
//
// # Quick Start
//
//	data, err := dataset.ReadCSVFile("data.csv", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tree, err := mob.LMTree(ctx, data, "y ~ x | age + gender", mob.WithPrune(mob.PruneAIC))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(tree)
//	leaves, err := tree.Predict(data, mob.PredictNode)
//
// # Command line
//
//	mobtree grow -i data.csv -f 'y ~ x | age + gender' -o tree.json
//	mobtree show -t tree.json
//	mobtree predict -t tree.json -i new.csv --type response
//
// # Error Handling
//
// Errors carry cockroachdb/errors stack traces. Configuration problems are
// reported as errors.InvalidConfiguration before growth starts; a node whose
// IRLS fit hits the iteration cap records a NonConvergence warning, which is
// fatal only with mob.WithStrict.
package mobtree
