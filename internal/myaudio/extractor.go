package myaudio

import (
	"time"

	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/errors"
)

// Sentinel errors for recordings the pipeline rejects.
var (
	ErrAudioTooShort = errors.NewStd("audio recording too short")
	ErrFileTooLarge  = errors.NewStd("audio file too large")
)

// Extractor turns WAV payloads into flattened MFCC feature vectors. The
// output layout is coefficient-major: all frames of coefficient 0 first,
// then coefficient 1, and so on. Baselines and the classifier both depend
// on this exact layout staying fixed.
type Extractor struct {
	Settings *conf.Settings
}

// NewExtractor creates an extractor bound to the given settings.
func NewExtractor(settings *conf.Settings) *Extractor {
	return &Extractor{Settings: settings}
}

// Extract decodes, conditions and featurizes one recording. The returned
// vector always has length Settings.Audio.FeatureLength().
func (e *Extractor) Extract(data []byte) ([]float64, AudioInfo, error) {
	start := time.Now()
	audioCfg := &e.Settings.Audio

	if int64(len(data)) > audioCfg.MaxFileSizeBytes() {
		return nil, AudioInfo{}, errors.New(ErrFileTooLarge).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("size_bytes", len(data)).
			Context("max_bytes", audioCfg.MaxFileSizeBytes()).
			Build()
	}

	samples, info, err := DecodeWAV(data)
	if err != nil {
		return nil, AudioInfo{}, err
	}

	if info.Duration() < audioCfg.MinDuration {
		return nil, info, errors.New(ErrAudioTooShort).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("duration_seconds", info.Duration()).
			Context("min_duration_seconds", audioCfg.MinDuration).
			Build()
	}

	if info.SampleRate != audioCfg.SampleRate {
		samples = Resample(samples, info.SampleRate, audioCfg.SampleRate)
	}

	// Analyze at most Duration seconds; longer recordings are truncated.
	maxSamples := int(audioCfg.Duration * float64(audioCfg.SampleRate))
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}

	if audioCfg.HighPassHz > 0 {
		filtered, err := HighPassZeroPhase(samples, float64(audioCfg.SampleRate),
			audioCfg.HighPassHz, audioCfg.HighPassPasses)
		if err != nil {
			// The unfiltered signal still produces usable features, so a
			// filter failure downgrades to a warning.
			getLogger().Warn("High-pass filter failed, using unfiltered audio",
				"cutoff_hz", audioCfg.HighPassHz,
				"error", err)
		} else {
			samples = filtered
		}
	}

	mfcc := MFCC(samples, audioCfg.SampleRate, audioCfg.NumCoeffs)
	features := flattenFixed(mfcc, audioCfg.NumCoeffs, audioCfg.NumFrames)

	getLogger().Debug("Extracted features",
		"duration_seconds", info.Duration(),
		"sample_rate", info.SampleRate,
		"feature_length", len(features),
		"processing_ms", time.Since(start).Milliseconds())

	return features, info, nil
}

// flattenFixed pads or truncates each coefficient row to numFrames and
// flattens the matrix row by row.
func flattenFixed(mfcc [][]float64, numCoeffs, numFrames int) []float64 {
	features := make([]float64, numCoeffs*numFrames)
	for c := 0; c < numCoeffs; c++ {
		row := features[c*numFrames : (c+1)*numFrames]
		if c >= len(mfcc) {
			continue
		}
		copy(row, mfcc[c])
		// shorter rows leave the zero padding in place
	}
	return features
}
