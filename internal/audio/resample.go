package audio

import (
	"github.com/book-expert/tts-job-service/internal/core"
)

// Resample converts the waveform to targetRate using linear interpolation.
// A waveform already at targetRate is returned unchanged.
func Resample(wave core.Waveform, targetRate int) (core.Waveform, error) {
	sourceErr := validateSampleRate(wave.SampleRate)
	if sourceErr != nil {
		return core.Waveform{}, sourceErr
	}

	targetErr := validateSampleRate(targetRate)
	if targetErr != nil {
		return core.Waveform{}, targetErr
	}

	if wave.SampleRate == targetRate || len(wave.Samples) == 0 {
		return core.Waveform{Samples: wave.Samples, SampleRate: targetRate}, nil
	}

	outputLength := int(int64(len(wave.Samples)) * int64(targetRate) / int64(wave.SampleRate))
	if outputLength == 0 {
		outputLength = 1
	}

	step := float64(wave.SampleRate) / float64(targetRate)
	last := len(wave.Samples) - 1
	output := make([]float32, outputLength)

	for index := range output {
		position := float64(index) * step
		left := int(position)

		if left >= last {
			output[index] = wave.Samples[last]

			continue
		}

		fraction := float32(position - float64(left))
		output[index] = wave.Samples[left] + (wave.Samples[left+1]-wave.Samples[left])*fraction
	}

	return core.Waveform{Samples: output, SampleRate: targetRate}, nil
}
