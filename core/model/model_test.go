package model

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDesignValidate(t *testing.T) {
	d := &Design{
		X:     mat.NewDense(3, 2, []float64{1, 1, 1, 2, 1, 3}),
		Y:     []float64{1, 2, 3},
		W:     []float64{1, 1, 1},
		Names: []string{InterceptName, "x"},
	}
	require.NoError(t, d.Validate())
	n, k := d.Dims()
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, k)
	assert.Equal(t, 3.0, d.WeightSum())

	d.Y = d.Y[:2]
	var dimErr *errors.DimensionError
	require.True(t, errors.As(d.Validate(), &dimErr))
	assert.Equal(t, 3, dimErr.Expected)

	empty := &Design{}
	require.Error(t, empty.Validate())
}

func TestFittedModelCriteria(t *testing.T) {
	fm := &FittedModel{LogLik: -10, DF: 3, WeightSum: 100, Coefficients: []float64{1, 2}}
	assert.InDelta(t, 26.0, fm.AIC(), 1e-12)
	assert.InDelta(t, 20+3*math.Log(100), fm.BIC(), 1e-12)
	assert.InDelta(t, 1+2*3, fm.LinearPredictor([]float64{1, 3}), 1e-12)
}

func TestSnapshotRoundTrip(t *testing.T) {
	fm := &FittedModel{
		Family:       "gaussian",
		Coefficients: []float64{0.5, -1.25},
		Names:        []string{InterceptName, "x"},
		NumParams:    2,
		DF:           3,
		NumObs:       40,
		WeightSum:    40,
		LogLik:       -51.2,
		Objective:    12.5,
		Dispersion:   0.33,
		Converged:    true,
		Warning:      errors.NewNonConvergence("IRLS", 25, ""),
		CovUnscaled:  mat.NewSymDense(2, []float64{0.1, 0.01, 0.01, 0.2}),
	}

	var buf bytes.Buffer
	require.NoError(t, SaveJSONToWriter(fm.Snapshot(), &buf))

	var s Snapshot
	require.NoError(t, LoadJSONFromReader(&s, &buf))
	restored := s.Restore()

	assert.Equal(t, fm.Coefficients, restored.Coefficients)
	assert.Equal(t, fm.Names, restored.Names)
	assert.Equal(t, fm.DF, restored.DF)
	assert.InDelta(t, fm.LogLik, restored.LogLik, 1e-12)
	assert.Contains(t, s.Warning, "failed to converge")
	require.NotNil(t, restored.CovUnscaled)
	assert.InDelta(t, 0.01, restored.CovUnscaled.At(1, 0), 1e-12)
	assert.Nil(t, restored.Scores)
}

func TestSaveLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	in := &Snapshot{Family: "poisson", Coefficients: []float64{1}, Names: []string{InterceptName}}
	require.NoError(t, SaveJSON(in, path))

	var out Snapshot
	require.NoError(t, LoadJSON(&out, path))
	assert.Equal(t, in.Family, out.Family)

	err := LoadJSON(&out, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
