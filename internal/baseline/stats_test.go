package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanStd(t *testing.T) {
	t.Parallel()

	samples := [][]float64{
		{1, 2, 3},
		{3, 4, 5},
	}
	mean, std := MeanStd(samples)
	assert.Equal(t, []float64{2, 3, 4}, mean)
	assert.InDeltaSlice(t, []float64{1, 1, 1}, std, 1e-9)
}

func TestMeanStdTruncatesToShortest(t *testing.T) {
	t.Parallel()

	samples := [][]float64{
		{1, 2, 3, 4},
		{1, 2},
		{1, 2, 3},
	}
	mean, std := MeanStd(samples)
	assert.Len(t, mean, 2)
	assert.Len(t, std, 2)
	assert.Equal(t, []float64{1, 2}, mean)
}

func TestMeanStdEmpty(t *testing.T) {
	t.Parallel()

	mean, std := MeanStd(nil)
	assert.Nil(t, mean)
	assert.Nil(t, std)

	mean, std = MeanStd([][]float64{{}})
	assert.Nil(t, mean)
	assert.Nil(t, std)
}

func TestConfidenceClamps(t *testing.T) {
	t.Parallel()

	// Zero spread: perfectly consistent samples give maximum confidence.
	assert.InDelta(t, 1.0, Confidence([]float64{0, 0, 0}, 10), 1e-9)

	// Moderate spread lands between the clamps.
	assert.InDelta(t, 0.8, Confidence([]float64{2, 2, 2}, 10), 1e-9)

	// Huge spread clamps at the floor instead of going negative.
	assert.InDelta(t, 0.5, Confidence([]float64{100, 100}, 10), 1e-9)

	// Degenerate inputs fall back to the floor.
	assert.InDelta(t, 0.5, Confidence(nil, 10), 1e-9)
	assert.InDelta(t, 0.5, Confidence([]float64{1}, 0), 1e-9)
}

func TestDeviation(t *testing.T) {
	t.Parallel()

	mean := []float64{0, 0}
	std := []float64{1, 1}

	// Two standard deviations away on every element, exactly.
	assert.InDelta(t, 2.0, Deviation([]float64{2, -2}, mean, std), 1e-12)

	// Matching the baseline exactly scores zero.
	assert.InDelta(t, 0.0, Deviation([]float64{0, 0}, mean, std), 1e-9)
}

func TestDeviationBandBoundaryExact(t *testing.T) {
	t.Parallel()

	// A feature exactly 2 sigma out must land on the watch boundary, not
	// just below it: nonzero stds take no epsilon.
	detail := DeviationStats([]float64{3}, []float64{1}, []float64{1})
	assert.InDelta(t, 2.0, detail.Avg, 1e-12)
	assert.Equal(t, StatusWatch, StatusForDeviation(detail.Avg))

	detail = DeviationStats([]float64{3.5}, []float64{1}, []float64{1})
	assert.Equal(t, StatusWarning, StatusForDeviation(detail.Avg))

	detail = DeviationStats([]float64{4}, []float64{1}, []float64{1})
	assert.Equal(t, StatusCritical, StatusForDeviation(detail.Avg))
}

func TestDeviationStats(t *testing.T) {
	t.Parallel()

	mean := []float64{0, 0, 0, 0}
	std := []float64{1, 1, 1, 1}

	// z-scores 1, 1, 3, 3: avg 2, max 3, half the features past the
	// 2-sigma outlier limit.
	detail := DeviationStats([]float64{1, -1, 3, -3}, mean, std)
	assert.InDelta(t, 2.0, detail.Avg, 1e-3)
	assert.InDelta(t, 3.0, detail.Max, 1e-3)
	assert.InDelta(t, 0.5, detail.PctOutliers, 1e-9)

	assert.Equal(t, DeviationDetail{}, DeviationStats(nil, mean, std))
}

func TestDeviationZeroVariance(t *testing.T) {
	t.Parallel()

	// Epsilon keeps zero-variance features finite.
	score := Deviation([]float64{1}, []float64{0}, []float64{0})
	assert.False(t, score != score, "deviation must not be NaN")
	assert.Greater(t, score, 1000.0)
}

func TestDeviationLengthMismatch(t *testing.T) {
	t.Parallel()

	score := Deviation([]float64{1, 1, 1}, []float64{0, 0}, []float64{1, 1})
	assert.InDelta(t, 1.0, score, 1e-3)

	assert.Zero(t, Deviation(nil, []float64{0}, []float64{1}))
}

func TestFuse(t *testing.T) {
	t.Parallel()

	// Deviation at or beyond the cap saturates its contribution.
	assert.InDelta(t, 1.0, Fuse(1.0, 3.0), 1e-9)
	assert.InDelta(t, 1.0, Fuse(1.0, 30.0), 1e-9)

	// Classifier 0.5 with deviation 1.5 gives 0.6*0.5 + 0.4*0.5.
	assert.InDelta(t, 0.5, Fuse(0.5, 1.5), 1e-9)

	assert.InDelta(t, 0.0, Fuse(0, 0), 1e-9)
}

func TestStatusForDeviation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  string
	}{
		{0, StatusNormal},
		{1.99, StatusNormal},
		{2.0, StatusWatch},
		{2.49, StatusWatch},
		{2.5, StatusWarning},
		{2.99, StatusWarning},
		{3.0, StatusCritical},
		{10, StatusCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForDeviation(tt.score), "score %.2f", tt.score)
	}
}
