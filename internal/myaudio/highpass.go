package myaudio

import (
	"math"

	"github.com/tractorcare/tractorcare-go/internal/errors"
)

// HighPassFilter is a biquad high-pass filter from Robert Bristow-Johnson's
// audio EQ cookbook, applied in multiple passes for a steeper rolloff.
type HighPassFilter struct {
	// state variables, one set per pass
	in1  []float64
	in2  []float64
	out1 []float64
	out2 []float64

	passes int

	// pre-computed normalized coefficients
	b0a0, b1a0, b2a0, a1a0, a2a0 float64
}

// NewHighPass returns a high-pass filter with the given cutoff. Frequency
// must be below the Nyquist frequency and passes must be positive.
func NewHighPass(sampleRate, frequency, q float64, passes int) (*HighPassFilter, error) {
	if frequency <= 0 || frequency >= sampleRate/2 {
		return nil, errors.Newf("high-pass cutoff %.1f Hz out of range for sample rate %.0f", frequency, sampleRate).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}
	if q <= 0 {
		return nil, errors.Newf("q must be greater than 0").
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}
	if passes < 1 {
		return nil, errors.Newf("passes must be at least 1").
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}

	w0 := 2 * math.Pi * frequency / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosW0 := math.Cos(w0)

	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha
	b0 := (1 + cosW0) / 2
	b1 := -(1 + cosW0)
	b2 := (1 + cosW0) / 2

	return &HighPassFilter{
		in1:    make([]float64, passes),
		in2:    make([]float64, passes),
		out1:   make([]float64, passes),
		out2:   make([]float64, passes),
		passes: passes,
		b0a0:   b0 / a0,
		b1a0:   b1 / a0,
		b2a0:   b2 / a0,
		a1a0:   a1 / a0,
		a2a0:   a2 / a0,
	}, nil
}

// ApplyBatch filters the samples in place.
func (f *HighPassFilter) ApplyBatch(input []float64) {
	for p := range f.passes {
		for i := range input {
			output := f.b0a0*input[i] + f.b1a0*f.in1[p] + f.b2a0*f.in2[p] -
				f.a1a0*f.out1[p] - f.a2a0*f.out2[p]

			f.in2[p] = f.in1[p]
			f.in1[p] = input[i]
			f.out2[p] = f.out1[p]
			f.out1[p] = output

			input[i] = output
		}
	}
}

// reset clears the filter state between directions.
func (f *HighPassFilter) reset() {
	for p := range f.passes {
		f.in1[p], f.in2[p] = 0, 0
		f.out1[p], f.out2[p] = 0, 0
	}
}

// HighPassZeroPhase filters a copy of the samples forward and then backward,
// cancelling the phase shift a single direction would introduce. The engine
// hum fundamentals sit just above typical cutoffs, so phase distortion there
// would skew the MFCCs.
func HighPassZeroPhase(samples []float64, sampleRate, frequency float64, passes int) ([]float64, error) {
	filter, err := NewHighPass(sampleRate, frequency, math.Sqrt2/2, passes)
	if err != nil {
		return nil, err
	}

	filtered := make([]float64, len(samples))
	copy(filtered, samples)

	filter.ApplyBatch(filtered)

	filter.reset()
	reverse(filtered)
	filter.ApplyBatch(filtered)
	reverse(filtered)

	return filtered, nil
}

func reverse(samples []float64) {
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
}
