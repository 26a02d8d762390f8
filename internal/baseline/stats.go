// Package baseline learns each machine's normal sound signature and scores
// new recordings against it.
package baseline

import "math"

// epsilon guards against division by zero for features with no variance.
const epsilon = 1e-6

// deviationCap is the raw z-score treated as a fully anomalous deviation
// when fusing with the classifier score.
const deviationCap = 3.0

// Classifier and deviation weights for the combined score.
const (
	classifierWeight = 0.6
	deviationWeight  = 0.4
)

// MeanStd computes the element-wise mean and standard deviation across
// sample vectors. Vectors of differing lengths are truncated to the
// shortest. Returns nil slices when no samples are given.
func MeanStd(samples [][]float64) (mean, std []float64) {
	if len(samples) == 0 {
		return nil, nil
	}

	length := len(samples[0])
	for _, sample := range samples[1:] {
		if len(sample) < length {
			length = len(sample)
		}
	}
	if length == 0 {
		return nil, nil
	}

	mean = make([]float64, length)
	for _, sample := range samples {
		for i := 0; i < length; i++ {
			mean[i] += sample[i]
		}
	}
	n := float64(len(samples))
	for i := range mean {
		mean[i] /= n
	}

	std = make([]float64, length)
	for _, sample := range samples {
		for i := 0; i < length; i++ {
			diff := sample[i] - mean[i]
			std[i] += diff * diff
		}
	}
	for i := range std {
		std[i] = math.Sqrt(std[i] / n)
	}

	return mean, std
}

// Confidence rates how tight the baseline is. Lower spread across samples
// gives higher confidence. Result is clamped to [0.5, 1.0] so even a noisy
// baseline is never treated as worthless.
func Confidence(std []float64, scale float64) float64 {
	if len(std) == 0 || scale <= 0 {
		return 0.5
	}
	total := 0.0
	for _, s := range std {
		total += s
	}
	meanStd := total / float64(len(std))

	confidence := 1 - meanStd/scale
	return math.Min(1.0, math.Max(0.5, confidence))
}

// outlierLimit is the z-score past which a feature counts as an outlier.
const outlierLimit = 2.0

// DeviationDetail breaks down the z-score comparison of a feature vector
// against a baseline.
type DeviationDetail struct {
	Avg         float64
	Max         float64
	PctOutliers float64 // share of features beyond outlierLimit sigma
}

// DeviationStats compares features element-wise against the baseline and
// reports absolute z-score statistics. Mismatched lengths are truncated to
// the shortest.
func DeviationStats(features, mean, std []float64) DeviationDetail {
	length := len(features)
	if len(mean) < length {
		length = len(mean)
	}
	if len(std) < length {
		length = len(std)
	}
	if length == 0 {
		return DeviationDetail{}
	}

	detail := DeviationDetail{}
	outliers := 0
	for i := 0; i < length; i++ {
		// Only zero-variance features get the epsilon divisor; adding it
		// everywhere would skew z-scores at the status band boundaries.
		sd := std[i]
		if sd == 0 {
			sd = epsilon
		}
		z := math.Abs(features[i]-mean[i]) / sd
		detail.Avg += z
		if z > detail.Max {
			detail.Max = z
		}
		if z > outlierLimit {
			outliers++
		}
	}
	detail.Avg /= float64(length)
	detail.PctOutliers = float64(outliers) / float64(length)
	return detail
}

// Deviation returns the mean absolute z-score of features against the
// baseline.
func Deviation(features, mean, std []float64) float64 {
	return DeviationStats(features, mean, std).Avg
}

// Fuse combines the classifier probability with the baseline deviation. The
// deviation is normalized against deviationCap before weighting so both
// inputs live on the same scale.
func Fuse(classifierScore, deviationScore float64) float64 {
	normalized := math.Min(deviationScore/deviationCap, 1.0)
	return classifierWeight*classifierScore + deviationWeight*normalized
}

// Machine condition bands from the raw deviation z-score.
const (
	StatusNormal   = "normal"
	StatusWatch    = "watch"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// StatusForDeviation bands the raw deviation score. The bands use the raw
// z-score, not the normalized value that goes into Fuse.
func StatusForDeviation(deviationScore float64) string {
	switch {
	case deviationScore < 2.0:
		return StatusNormal
	case deviationScore < 2.5:
		return StatusWatch
	case deviationScore < 3.0:
		return StatusWarning
	default:
		return StatusCritical
	}
}
