package classifier

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnomalyTypeForScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		score float64
		want  string
	}{
		{"zero score", 0.0, ""},
		{"at threshold", 0.5, ""},
		{"just above threshold", 0.51, TypeMinorAnomaly},
		{"minor band upper edge", 0.6, TypeMinorAnomaly},
		{"unusual noise", 0.61, TypeUnusualNoise},
		{"unusual noise upper edge", 0.75, TypeUnusualNoise},
		{"high vibration", 0.76, TypeHighVibration},
		{"high vibration upper edge", 0.9, TypeHighVibration},
		{"critical", 0.91, TypeCriticalAnomaly},
		{"max score", 1.0, TypeCriticalAnomaly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, AnomalyTypeForScore(tt.score))
		})
	}
}

func TestHeuristicScoreBounds(t *testing.T) {
	t.Parallel()

	heuristic := NewHeuristic()

	vectors := [][]float64{
		make([]float64, 4000),               // silence
		{100, -100, 100, -100, 100, -100},   // loud and volatile
		{-20.5, -19.8, -21.2, -20.1, -19.9}, // steady negative cepstra
		{1e6, -1e6, 1e6, -1e6},              // absurd magnitudes still clamp
	}

	for _, features := range vectors {
		score, err := heuristic.Predict(context.Background(), features)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestHeuristicOrdersSignals(t *testing.T) {
	t.Parallel()

	heuristic := NewHeuristic()

	quiet := make([]float64, 1000)
	for i := range quiet {
		quiet[i] = 0.01 * math.Sin(float64(i))
	}
	loud := make([]float64, 1000)
	for i := range loud {
		loud[i] = 80 * math.Sin(float64(i))
	}

	quietScore, err := heuristic.Predict(context.Background(), quiet)
	require.NoError(t, err)
	loudScore, err := heuristic.Predict(context.Background(), loud)
	require.NoError(t, err)

	assert.Greater(t, loudScore, quietScore)
}

func TestHeuristicDegenerateInput(t *testing.T) {
	t.Parallel()

	heuristic := NewHeuristic()

	score, err := heuristic.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, score)

	score, err = heuristic.Predict(context.Background(), []float64{1.0})
	require.NoError(t, err)
	assert.Zero(t, score)

	require.NoError(t, heuristic.Close())
	assert.Equal(t, "heuristic:rms+zcr", heuristic.ModelName())
}
