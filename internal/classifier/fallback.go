package classifier

import (
	"context"
	"math"
)

// HeuristicClassifier is a model-free stand-in used when no TFLite model is
// configured. It scores feature energy and sign variability, each mapped to
// [0, 1] and averaged. Scores are coarse; deviation scoring against the
// machine baseline remains the primary signal in this mode.
type HeuristicClassifier struct{}

// NewHeuristic returns the fallback classifier.
func NewHeuristic() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// ModelName identifies the heuristic in prediction records.
func (c *HeuristicClassifier) ModelName() string {
	return "heuristic:rms+zcr"
}

// energyScale maps typical log-mel cepstral magnitudes into [0, 1].
const energyScale = 100.0

// Predict scores the feature vector without a model.
func (c *HeuristicClassifier) Predict(_ context.Context, features []float64) (float64, error) {
	if len(features) < 2 {
		return 0, nil
	}

	sumSquares := 0.0
	crossings := 0
	for i, v := range features {
		sumSquares += v * v
		if i > 0 && (v >= 0) != (features[i-1] >= 0) {
			crossings++
		}
	}

	rms := math.Sqrt(sumSquares / float64(len(features)))
	energyScore := clamp01(rms / energyScale)

	zcr := float64(crossings) / float64(len(features)-1)
	variabilityScore := clamp01(2 * zcr)

	return 0.5*energyScore + 0.5*variabilityScore, nil
}

// Close is a no-op, the heuristic holds no resources.
func (c *HeuristicClassifier) Close() error {
	return nil
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
