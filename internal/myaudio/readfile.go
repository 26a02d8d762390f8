// Package myaudio decodes tractor sound recordings and turns them into the
// fixed-size MFCC feature vectors the classifier and baseline statistics
// consume.
package myaudio

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tractorcare/tractorcare-go/internal/errors"
	"github.com/tractorcare/tractorcare-go/internal/logging"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = logging.ForService("myaudio")
	})
	return logger
}

// AudioInfo describes a decoded recording.
type AudioInfo struct {
	SampleRate   int
	TotalSamples int // per channel
	NumChannels  int
	BitDepth     int
}

// Duration returns the recording length in seconds.
func (info *AudioInfo) Duration() float64 {
	if info.SampleRate == 0 {
		return 0
	}
	return float64(info.TotalSamples) / float64(info.SampleRate)
}

func getAudioDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio file bit depth: %d", bitDepth)
	}
}

// DecodeWAV decodes a WAV payload into normalized mono float64 samples in
// [-1, 1]. Stereo input is downmixed by averaging channels.
func DecodeWAV(data []byte) ([]float64, AudioInfo, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return nil, AudioInfo{}, errors.Newf("invalid WAV file format").
			Component("myaudio").
			Category(errors.CategoryAudio).
			Build()
	}

	bitDepth := int(decoder.BitDepth)
	numChans := int(decoder.NumChans)

	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, AudioInfo{}, errors.Newf("unsupported bit depth: %d", bitDepth).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Build()
	}
	if numChans != 1 && numChans != 2 {
		return nil, AudioInfo{}, errors.Newf("unsupported number of channels: %d", numChans).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Build()
	}

	divisor, err := getAudioDivisor(bitDepth)
	if err != nil {
		return nil, AudioInfo{}, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Build()
	}

	buf := &audio.IntBuffer{
		Data:   make([]int, 65536),
		Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: numChans},
	}

	var samples []float64
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, AudioInfo{}, errors.New(err).
				Component("myaudio").
				Category(errors.CategoryAudio).
				Context("operation", "pcm_read").
				Build()
		}
		if n == 0 {
			break
		}

		frame := buf.Data[:n]
		if numChans == 2 {
			for i := 0; i+1 < len(frame); i += 2 {
				left := float64(frame[i]) / divisor
				right := float64(frame[i+1]) / divisor
				samples = append(samples, (left+right)/2)
			}
		} else {
			for _, sample := range frame {
				samples = append(samples, float64(sample)/divisor)
			}
		}
	}

	info := AudioInfo{
		SampleRate:   int(decoder.SampleRate),
		TotalSamples: len(samples),
		NumChannels:  numChans,
		BitDepth:     bitDepth,
	}
	return samples, info, nil
}
