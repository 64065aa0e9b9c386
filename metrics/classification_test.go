package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect classifier",
			yTrue: []float64{0, 0, 0, 1, 1, 1},
			yPred: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9},
			want:  1.0,
		},
		{
			name:  "Worst classifier",
			yTrue: []float64{0, 0, 0, 1, 1, 1},
			yPred: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1},
			want:  0.0,
		},
		{
			name:  "Ties",
			yTrue: []float64{0, 1, 0, 1},
			yPred: []float64{0.5, 0.5, 0.5, 0.5},
			want:  0.5,
		},
		{
			name:  "Typical case",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.75,
		},
		{
			name:    "Single class",
			yTrue:   []float64{1, 1, 1, 1},
			yPred:   []float64{0.1, 0.4, 0.35, 0.8},
			wantErr: true,
		},
		{
			name:    "Non-binary labels",
			yTrue:   []float64{0, 0.5, 1},
			yPred:   []float64{0.1, 0.5, 0.9},
			wantErr: true,
		},
		{
			name:    "Dimension mismatch",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("AUC() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("AUC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBinaryLogLoss(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect predictions",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0, 0, 1, 1},
			want:  0.0, // eps で切り詰めるため極小値
		},
		{
			name:  "Typical case",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0.1, 0.2, 0.8, 0.9},
			want:  0.164252,
		},
		{
			name:  "Worst predictions",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0.9, 0.9, 0.1, 0.1},
			want:  2.3025851,
		},
		{
			name:    "Non-binary labels",
			yTrue:   []float64{0, 0.5, 1},
			yPred:   []float64{0.1, 0.5, 0.9},
			wantErr: true,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BinaryLogLoss(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("BinaryLogLoss() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-5 {
				t.Errorf("BinaryLogLoss() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	got, err := Accuracy([]float64{0, 1, 1, 0}, []float64{0.2, 0.5, 0.4, 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0.75, got)
}

func TestEvaluate(t *testing.T) {
	t.Run("gaussian", func(t *testing.T) {
		r, err := Evaluate("gaussian", []float64{1, 2, 3, math.NaN()}, []float64{1, 2, 4, 5})
		require.NoError(t, err)
		assert.Equal(t, 3, r.N)
		require.Len(t, r.Scores, 4)
		assert.Equal(t, "MSE", r.Scores[0].Name)
		assert.InDelta(t, 1.0/3.0, r.Scores[0].Value, 1e-12)
		assert.Contains(t, r.String(), "RMSE")
	})

	t.Run("binomial", func(t *testing.T) {
		r, err := Evaluate("binomial", []float64{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
		require.NoError(t, err)
		names := []string{}
		for _, s := range r.Scores {
			names = append(names, s.Name)
		}
		assert.Equal(t, []string{"LogLoss", "Accuracy", "AUC"}, names)
		assert.InDelta(t, 0.75, r.Scores[2].Value, 1e-12)
	})

	t.Run("binomial with bad labels", func(t *testing.T) {
		_, err := Evaluate("binomial", []float64{0, 2}, []float64{0.1, 0.4})
		assert.Error(t, err)
	})
}
