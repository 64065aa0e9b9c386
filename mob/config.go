package mob

import (
	"io"
	"math"
	"os"
	"strings"

	"github.com/YuminosukeSato/mobtree/fluctuation"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"github.com/YuminosukeSato/mobtree/pkg/log"
	"gopkg.in/yaml.v3"
)

// PruneCriterion selects the information criterion used for post-pruning.
type PruneCriterion int

const (
	// PruneNone keeps the grown tree.
	PruneNone PruneCriterion = iota
	// PruneAIC penalizes each degree of freedom by 2.
	PruneAIC
	// PruneBIC penalizes each degree of freedom by ln(n).
	PruneBIC
)

func (p PruneCriterion) String() string {
	switch p {
	case PruneAIC:
		return "AIC"
	case PruneBIC:
		return "BIC"
	default:
		return "none"
	}
}

// ParsePrune parses "none", "aic" or "bic" (case-insensitive).
func ParsePrune(s string) (PruneCriterion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PruneNone, nil
	case "aic":
		return PruneAIC, nil
	case "bic":
		return PruneBIC, nil
	default:
		return PruneNone, errors.NewInvalidConfiguration("prune", "must be none, AIC or BIC", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p PruneCriterion) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PruneCriterion) UnmarshalText(b []byte) error {
	v, err := ParsePrune(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Config holds the growth options. The zero value is not valid; start from
// DefaultConfig.
type Config struct {
	// Alpha is the significance level of the instability tests, in (0, 1].
	Alpha float64
	// MinSize is the minimum number of rows in a node eligible for splitting
	// and in each child of a split. Zero means 10 times the number of
	// coefficients.
	MinSize int
	// MaxDepth bounds the depth of the tree (root depth 1). Zero means
	// unbounded.
	MaxDepth int
	// Prune is applied after growth.
	Prune PruneCriterion
	// Bonferroni adjusts p-values for the number of tested variables.
	Bonferroni bool
	// Strict turns non-convergence of a node fit into a fatal error.
	Strict bool
	// Workers bounds the goroutines used for sibling nodes, instability
	// tests, split candidates and prediction. One means sequential. Zero
	// grows sequentially and spreads large predictions over all CPUs.
	Workers int
	// Functional is the test functional for ordered variables.
	Functional fluctuation.Functional
	// Trim is the SupLM trimming fraction, in (0, 0.5).
	Trim float64
	// MaxExhaustiveLevels bounds the number of levels for which every
	// binary partition of a nominal variable is searched.
	MaxExhaustiveLevels int
	// DFSplit is the number of degrees of freedom charged per split by the
	// information criteria.
	DFSplit float64
	// OrdinalAsContinuous tests ordinal variables with the ordered process
	// instead of the chi-square statistic.
	OrdinalAsContinuous bool
	// Logger receives progress records. Nil uses the process-wide provider.
	Logger log.Logger
}

// DefaultConfig returns alpha 0.05, Bonferroni correction, the DoubleMax
// functional and sequential growth.
func DefaultConfig() Config {
	return Config{
		Alpha:               0.05,
		Bonferroni:          true,
		Workers:             1,
		Functional:          fluctuation.DoubleMax,
		Trim:                fluctuation.DefaultTrim,
		MaxExhaustiveLevels: 10,
		DFSplit:             1,
	}
}

// Validate rejects option values growth cannot run with.
func (c Config) Validate() error {
	if math.IsNaN(c.Alpha) || c.Alpha <= 0 || c.Alpha > 1 {
		return errors.NewInvalidConfiguration("alpha", "must be in (0, 1]", c.Alpha)
	}
	if c.MinSize < 0 {
		return errors.NewInvalidConfiguration("minsize", "must not be negative", c.MinSize)
	}
	if c.MaxDepth < 0 {
		return errors.NewInvalidConfiguration("maxdepth", "must not be negative", c.MaxDepth)
	}
	if c.Prune < PruneNone || c.Prune > PruneBIC {
		return errors.NewInvalidConfiguration("prune", "must be none, AIC or BIC", int(c.Prune))
	}
	if c.Workers < 0 {
		return errors.NewInvalidConfiguration("workers", "must not be negative", c.Workers)
	}
	if c.Functional != fluctuation.DoubleMax && c.Functional != fluctuation.SupLM {
		return errors.NewInvalidConfiguration("functional", "must be maxBB or supLM", c.Functional.String())
	}
	if !(c.Trim > 0 && c.Trim < 0.5) {
		return errors.NewInvalidConfiguration("trim", "must be in (0, 0.5)", c.Trim)
	}
	if c.MaxExhaustiveLevels < 1 || c.MaxExhaustiveLevels > 20 {
		return errors.NewInvalidConfiguration("max_exhaustive_levels", "must be in [1, 20]", c.MaxExhaustiveLevels)
	}
	if math.IsNaN(c.DFSplit) || c.DFSplit < 0 {
		return errors.NewInvalidConfiguration("dfsplit", "must not be negative", c.DFSplit)
	}
	return nil
}

// Option configures growth.
type Option func(*Config)

// WithAlpha sets the significance level.
func WithAlpha(alpha float64) Option {
	return func(c *Config) { c.Alpha = alpha }
}

// WithMinSize sets the minimum node size.
func WithMinSize(n int) Option {
	return func(c *Config) { c.MinSize = n }
}

// WithMaxDepth sets the maximum depth (root depth 1, zero unbounded).
func WithMaxDepth(depth int) Option {
	return func(c *Config) { c.MaxDepth = depth }
}

// WithPrune sets the post-pruning criterion.
func WithPrune(p PruneCriterion) Option {
	return func(c *Config) { c.Prune = p }
}

// WithBonferroni toggles the Bonferroni adjustment.
func WithBonferroni(on bool) Option {
	return func(c *Config) { c.Bonferroni = on }
}

// WithStrict makes non-convergence fatal.
func WithStrict(strict bool) Option {
	return func(c *Config) { c.Strict = strict }
}

// WithWorkers sets the number of goroutines.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithFunctional sets the functional for ordered variables.
func WithFunctional(f fluctuation.Functional) Option {
	return func(c *Config) { c.Functional = f }
}

// WithTrim sets the SupLM trimming fraction.
func WithTrim(trim float64) Option {
	return func(c *Config) { c.Trim = trim }
}

// WithMaxExhaustiveLevels bounds exhaustive nominal partition search.
func WithMaxExhaustiveLevels(n int) Option {
	return func(c *Config) { c.MaxExhaustiveLevels = n }
}

// WithDFSplit sets the degrees of freedom charged per split.
func WithDFSplit(df float64) Option {
	return func(c *Config) { c.DFSplit = df }
}

// WithOrdinalAsContinuous tests ordinal variables as ordered.
func WithOrdinalAsContinuous(on bool) Option {
	return func(c *Config) { c.OrdinalAsContinuous = on }
}

// WithLogger routes progress records to logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// FileConfig is the YAML form of Config. Absent keys keep their defaults.
type FileConfig struct {
	Alpha               *float64                `yaml:"alpha"`
	MinSize             *int                    `yaml:"minsize"`
	MaxDepth            *int                    `yaml:"maxdepth"`
	Prune               *PruneCriterion         `yaml:"prune"`
	Bonferroni          *bool                   `yaml:"bonferroni"`
	Strict              *bool                   `yaml:"strict"`
	Workers             *int                    `yaml:"workers"`
	Functional          *fluctuation.Functional `yaml:"functional"`
	Trim                *float64                `yaml:"trim"`
	MaxExhaustiveLevels *int                    `yaml:"max_exhaustive_levels"`
	DFSplit             *float64                `yaml:"dfsplit"`
	OrdinalAsContinuous *bool                   `yaml:"ordinal_as_continuous"`
}

// ReadConfig parses a YAML configuration.
func ReadConfig(r io.Reader) (*FileConfig, error) {
	fc := &FileConfig{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "parsing configuration")
	}
	return fc, nil
}

// ReadConfigFile parses a YAML configuration file.
func ReadConfigFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening configuration %s", path)
	}
	defer f.Close()
	return ReadConfig(f)
}

// Options converts the keys present in the file into options.
func (fc *FileConfig) Options() []Option {
	var opts []Option
	if fc.Alpha != nil {
		opts = append(opts, WithAlpha(*fc.Alpha))
	}
	if fc.MinSize != nil {
		opts = append(opts, WithMinSize(*fc.MinSize))
	}
	if fc.MaxDepth != nil {
		opts = append(opts, WithMaxDepth(*fc.MaxDepth))
	}
	if fc.Prune != nil {
		opts = append(opts, WithPrune(*fc.Prune))
	}
	if fc.Bonferroni != nil {
		opts = append(opts, WithBonferroni(*fc.Bonferroni))
	}
	if fc.Strict != nil {
		opts = append(opts, WithStrict(*fc.Strict))
	}
	if fc.Workers != nil {
		opts = append(opts, WithWorkers(*fc.Workers))
	}
	if fc.Functional != nil {
		opts = append(opts, WithFunctional(*fc.Functional))
	}
	if fc.Trim != nil {
		opts = append(opts, WithTrim(*fc.Trim))
	}
	if fc.MaxExhaustiveLevels != nil {
		opts = append(opts, WithMaxExhaustiveLevels(*fc.MaxExhaustiveLevels))
	}
	if fc.DFSplit != nil {
		opts = append(opts, WithDFSplit(*fc.DFSplit))
	}
	if fc.OrdinalAsContinuous != nil {
		opts = append(opts, WithOrdinalAsContinuous(*fc.OrdinalAsContinuous))
	}
	return opts
}
