package dataset

import (
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

// Kind is the measurement scale of a variable.
type Kind int

const (
	// Continuous variables hold real numbers.
	Continuous Kind = iota
	// Ordinal variables hold level codes with a meaningful order.
	Ordinal
	// Nominal variables hold unordered level codes.
	Nominal
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Ordinal:
		return "ordinal"
	case Nominal:
		return "nominal"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "continuous", "numeric":
		*k = Continuous
	case "ordinal", "ordered":
		*k = Ordinal
	case "nominal", "factor", "categorical":
		*k = Nominal
	default:
		return errors.NewValidationError("kind", "unknown variable kind", string(b))
	}
	return nil
}

// Variable describes one column of a Dataset. Ordinal and nominal values are
// stored as 0-based codes into Levels.
type Variable struct {
	Name   string   `json:"name"`
	Kind   Kind     `json:"kind"`
	Levels []string `json:"levels,omitempty"`
}

// NewContinuous returns a continuous variable.
func NewContinuous(name string) Variable {
	return Variable{Name: name, Kind: Continuous}
}

// NewNominal returns a nominal variable with the given levels.
func NewNominal(name string, levels ...string) Variable {
	return Variable{Name: name, Kind: Nominal, Levels: levels}
}

// NewOrdinal returns an ordinal variable whose levels are given in order.
func NewOrdinal(name string, levels ...string) Variable {
	return Variable{Name: name, Kind: Ordinal, Levels: levels}
}

// Categorical reports whether values are level codes.
func (v Variable) Categorical() bool {
	return v.Kind == Ordinal || v.Kind == Nominal
}

// LevelIndex returns the code of a level name.
func (v Variable) LevelIndex(level string) (int, bool) {
	for i, l := range v.Levels {
		if l == level {
			return i, true
		}
	}
	return -1, false
}

// Format renders a stored value: the level name for categorical variables.
func (v Variable) Format(x float64) string {
	if x != x {
		return "NA"
	}
	if v.Categorical() {
		i := int(x)
		if i >= 0 && i < len(v.Levels) {
			return v.Levels[i]
		}
		return "?"
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}

func (v Variable) validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.NewValidationError("variable", "name is empty", v.Name)
	}
	if v.Categorical() {
		if len(v.Levels) == 0 {
			return errors.NewValidationError(v.Name, "categorical variable needs levels", v.Levels)
		}
		seen := make(map[string]bool, len(v.Levels))
		for _, l := range v.Levels {
			if seen[l] {
				return errors.NewValidationError(v.Name, "duplicate level", l)
			}
			seen[l] = true
		}
	}
	return nil
}
