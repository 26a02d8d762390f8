// mfcc.go computes Mel-frequency cepstral coefficients from raw samples.
package myaudio

import (
	"math"
	"math/cmplx"
)

const (
	frameSize     = 2048
	hopSize       = 512
	numMelFilters = 128

	// floor applied before the log so silent frames stay finite
	powerFloor = 1e-10
)

// MFCC computes numCoeffs cepstral coefficients per analysis frame. The
// result is coefficient-major: result[c][t] is coefficient c of frame t.
func MFCC(samples []float64, sampleRate, numCoeffs int) [][]float64 {
	if len(samples) == 0 || numCoeffs <= 0 {
		return nil
	}

	window := hannWindow(frameSize)
	filterbank := melFilterbank(numMelFilters, frameSize, sampleRate)
	numFrames := (len(samples) + hopSize - 1) / hopSize

	result := make([][]float64, numCoeffs)
	for c := range result {
		result[c] = make([]float64, numFrames)
	}

	frame := make([]float64, frameSize)
	for t := 0; t < numFrames; t++ {
		start := t * hopSize
		for i := range frame {
			if start+i < len(samples) {
				frame[i] = samples[start+i] * window[i]
			} else {
				frame[i] = 0
			}
		}

		power := powerSpectrum(frame)

		logMel := make([]float64, numMelFilters)
		for m, filter := range filterbank {
			energy := 0.0
			for _, bin := range filter {
				energy += power[bin.index] * bin.weight
			}
			logMel[m] = 10 * math.Log10(math.Max(energy, powerFloor))
		}

		coeffs := dctII(logMel, numCoeffs)
		for c := 0; c < numCoeffs; c++ {
			result[c][t] = coeffs[c]
		}
	}

	return result
}

func hannWindow(n int) []float64 {
	window := make([]float64, n)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return window
}

// powerSpectrum returns |FFT(frame)|^2 for the non-redundant bins.
func powerSpectrum(frame []float64) []float64 {
	buf := make([]complex128, len(frame))
	for i, sample := range frame {
		buf[i] = complex(sample, 0)
	}
	fft(buf)

	power := make([]float64, len(frame)/2+1)
	for i := range power {
		magnitude := cmplx.Abs(buf[i])
		power[i] = magnitude * magnitude
	}
	return power
}

// fft is an in-place iterative radix-2 Cooley-Tukey transform. len(buf) must
// be a power of two.
func fft(buf []complex128) {
	n := len(buf)
	if n <= 1 {
		return
	}

	// bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wLen := cmplx.Exp(complex(0, angle))
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			for k := 0; k < length/2; k++ {
				even := buf[start+k]
				odd := buf[start+k+length/2] * w
				buf[start+k] = even + odd
				buf[start+k+length/2] = even - odd
				w *= wLen
			}
		}
	}
}

// melBin is one weighted FFT bin of a triangular mel filter. Filters are kept
// sparse since each spans a small slice of the spectrum.
type melBin struct {
	index  int
	weight float64
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds numFilters triangular filters spanning 0 Hz to the
// Nyquist frequency.
func melFilterbank(numFilters, fftSize, sampleRate int) [][]melBin {
	maxMel := hzToMel(float64(sampleRate) / 2)
	numBins := fftSize/2 + 1

	// filter edge frequencies, equally spaced on the mel scale
	edges := make([]float64, numFilters+2)
	for i := range edges {
		mel := maxMel * float64(i) / float64(numFilters+1)
		edges[i] = melToHz(mel)
	}

	binFreq := func(bin int) float64 {
		return float64(bin) * float64(sampleRate) / float64(fftSize)
	}

	filterbank := make([][]melBin, numFilters)
	for m := 0; m < numFilters; m++ {
		lower, center, upper := edges[m], edges[m+1], edges[m+2]
		var filter []melBin
		for bin := 0; bin < numBins; bin++ {
			freq := binFreq(bin)
			var weight float64
			switch {
			case freq <= lower || freq >= upper:
				continue
			case freq <= center:
				weight = (freq - lower) / (center - lower)
			default:
				weight = (upper - freq) / (upper - center)
			}
			filter = append(filter, melBin{index: bin, weight: weight})
		}
		filterbank[m] = filter
	}
	return filterbank
}

// dctII computes the first numCoeffs coefficients of the orthonormal DCT-II.
func dctII(input []float64, numCoeffs int) []float64 {
	n := len(input)
	coeffs := make([]float64, numCoeffs)
	scale0 := math.Sqrt(1 / float64(n))
	scale := math.Sqrt(2 / float64(n))

	for k := 0; k < numCoeffs && k < n; k++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += input[i] * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		if k == 0 {
			coeffs[k] = sum * scale0
		} else {
			coeffs[k] = sum * scale
		}
	}
	return coeffs
}
