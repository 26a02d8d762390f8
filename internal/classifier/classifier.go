// Package classifier scores feature vectors for engine-sound anomalies. The
// primary implementation wraps a TensorFlow Lite model; a signal heuristic
// fills in when no model is available.
package classifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tractorcare/tractorcare-go/internal/logging"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = logging.ForService("classifier")
	})
	return logger
}

// Classifier scores a flattened feature vector. The score is an anomaly
// probability in [0, 1]; higher means more likely abnormal.
type Classifier interface {
	Predict(ctx context.Context, features []float64) (float64, error)
	ModelName() string
	Close() error
}

// Anomaly types assigned from the classifier score alone.
const (
	TypeCriticalAnomaly = "critical_anomaly"
	TypeHighVibration   = "high_vibration"
	TypeUnusualNoise    = "unusual_noise"
	TypeMinorAnomaly    = "minor_anomaly"
)

// AnomalyThreshold is the score above which a recording counts as anomalous.
const AnomalyThreshold = 0.5

// AnomalyTypeForScore maps a classifier score to an anomaly type. Scores at
// or below AnomalyThreshold return an empty string, meaning no anomaly.
func AnomalyTypeForScore(score float64) string {
	switch {
	case score <= AnomalyThreshold:
		return ""
	case score > 0.9:
		return TypeCriticalAnomaly
	case score > 0.75:
		return TypeHighVibration
	case score > 0.6:
		return TypeUnusualNoise
	default:
		return TypeMinorAnomaly
	}
}
