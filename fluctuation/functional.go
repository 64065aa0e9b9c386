package fluctuation

import (
	"math"
	"strings"

	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Functional aggregates an empirical fluctuation process into a scalar test
// statistic.
type Functional int

const (
	// DoubleMax is max over t and j of |W_j(t)|.
	DoubleMax Functional = iota
	// SupLM is the supremum of ‖W(t)‖²/(t(1-t)) over the trimmed interval.
	SupLM
	// ChiSquare is the categorical statistic Σ_c ‖Σ_{i∈c} u_i‖²/n_c.
	ChiSquare
)

func (f Functional) String() string {
	switch f {
	case DoubleMax:
		return "maxBB"
	case SupLM:
		return "supLM"
	case ChiSquare:
		return "chisq"
	default:
		return "unknown"
	}
}

// ParseFunctional maps a name to the functional used for ordered variables.
func ParseFunctional(s string) (Functional, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "maxbb", "doublemax", "dmax":
		return DoubleMax, nil
	case "suplm", "supwald", "sup":
		return SupLM, nil
	default:
		return DoubleMax, errors.NewInvalidConfiguration("functional", "unknown functional", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Functional) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Functional) UnmarshalText(b []byte) error {
	if strings.EqualFold(string(b), "chisq") {
		*f = ChiSquare
		return nil
	}
	v, err := ParseFunctional(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// bridgeTail returns P(sup_t |B(t)| > x) for a standard Brownian bridge.
func bridgeTail(x float64) float64 {
	if x <= 0 {
		return 1
	}
	if x < 1 {
		// 小さい x では θ 関数の変換式のほうが速く収束する
		var s float64
		for j := 1; j <= 100; j++ {
			a := float64(2*j-1) * math.Pi / x
			term := math.Exp(-a * a / 8)
			s += term
			if term < 1e-17 {
				break
			}
		}
		return clamp01(1 - math.Sqrt(2*math.Pi)/x*s)
	}
	var s float64
	for j := 1; j <= 100; j++ {
		term := math.Exp(-2 * float64(j*j) * x * x)
		if j%2 == 1 {
			s += term
		} else {
			s -= term
		}
		if term < 1e-17 {
			break
		}
	}
	return clamp01(2 * s)
}

// doubleMaxPValue は k 本の独立なブラウン橋の最大値に対する p 値
func doubleMaxPValue(x float64, k int) float64 {
	p1 := bridgeTail(x)
	if p1 >= 1 {
		return 1
	}
	return clamp01(-math.Expm1(float64(k) * math.Log1p(-p1)))
}

// supLMPValue は Estrella (2003) の近似による supLM 統計量の p 値
func supLMPValue(x float64, k int, trim float64) float64 {
	if x <= 0 {
		return 1
	}
	lambda := math.Log((1 - trim) * (1 - trim) / (trim * trim))
	fk := float64(k)
	bracket := (1-fk/x)*lambda + 4/x
	if bracket <= 0 {
		return 1
	}
	lg, _ := math.Lgamma(fk / 2)
	logp := fk/2*math.Log(x) - x/2 - fk/2*math.Ln2 - lg + math.Log(bracket)
	return clamp01(math.Exp(logp))
}

func chiSquarePValue(x float64, df int) float64 {
	if df <= 0 {
		return 1
	}
	return clamp01(distuv.ChiSquared{K: float64(df)}.Survival(x))
}

// PValue returns the asymptotic p-value of statistic x. df is the number of
// process components for DoubleMax and SupLM and the chi-square degrees of
// freedom for ChiSquare.
func PValue(f Functional, x float64, df int, trim float64) float64 {
	switch f {
	case SupLM:
		return supLMPValue(x, df, trim)
	case ChiSquare:
		return chiSquarePValue(x, df)
	default:
		return doubleMaxPValue(x, df)
	}
}

// CriticalValue returns the statistic whose p-value equals alpha, found by
// bisection. It is used to draw the boundary of a process plot.
func CriticalValue(f Functional, df int, alpha, trim float64) float64 {
	lo, hi := 0.0, 1.0
	for PValue(f, hi, df, trim) > alpha && hi < 1e6 {
		hi *= 2
	}
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if PValue(f, mid, df, trim) > alpha {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

func clamp01(p float64) float64 {
	if math.IsNaN(p) {
		return 1
	}
	return errors.ClipValue(p, 0, 1)
}
