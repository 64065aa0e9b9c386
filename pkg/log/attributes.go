// Package log defines standard attribute keys for tree growing operations.
//
// Keys follow a hierarchical naming convention ("node.id", "test.p_value") so
// records emitted by the builder, the split selector and the pruner can be
// filtered and joined per run.
package log

// Model and Operation Context
const (
	// ModelNameKey identifies the kind of tree, e.g. "lmtree", "glmtree".
	ModelNameKey = "model.name"

	// FamilyKey identifies the model family fitted in each node.
	// Examples: "gaussian", "binomial", "poisson"
	FamilyKey = "model.family"

	// RunIDKey is the unique identifier of one growth run.
	RunIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is emitting the record.
	ComponentKey = "ml.component"
)

// Data Shape
const (
	// SamplesKey indicates the number of rows in a node or dataset.
	SamplesKey = "data.samples"

	// ParamsKey indicates the number of model parameters.
	ParamsKey = "data.params"

	// PartitionVarsKey indicates the number of partitioning variables.
	PartitionVarsKey = "data.partition_vars"
)

// Tree structure
const (
	// NodeIDKey is the (growth-time) id of the node being processed.
	NodeIDKey = "node.id"

	// DepthKey is the depth of the node, the root having depth 1.
	DepthKey = "node.depth"

	// StateKey is the builder state the node is in.
	StateKey = "node.state"

	// StopReasonKey records why a node became a leaf.
	StopReasonKey = "node.stop_reason"

	// LeavesKey records the number of terminal nodes.
	LeavesKey = "tree.leaves"
)

// Instability tests and splits
const (
	// VariableKey names the partitioning variable.
	VariableKey = "test.variable"

	// StatisticKey records the fluctuation test statistic.
	StatisticKey = "test.statistic"

	// PValueKey records the Bonferroni-adjusted p-value.
	PValueKey = "test.p_value"

	// ThresholdKey records the chosen split point.
	ThresholdKey = "split.threshold"

	// ObjectiveKey records the summed child objective of a split.
	ObjectiveKey = "split.objective"

	// CriterionKey names the pruning information criterion.
	CriterionKey = "prune.criterion"
)

// Performance
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the iteration count of an iterative fit.
	IterationKey = "training.iteration"
)

// Error context
const (
	// ErrorTypeKey categorizes the error encountered.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationGrow    = "grow"
	OperationPredict = "predict"
	OperationPrune   = "prune"
	OperationFit     = "fit"
)
