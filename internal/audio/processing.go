// Package audio provides waveform validation, WAV codec helpers and resampling
// for the job pipeline.
package audio

import (
	"errors"
	"fmt"

	"github.com/book-expert/tts-job-service/internal/core"
)

// Quality limits.
const (
	MaxSampleRate = 192000
	MaxChannels   = 8
	pcmBitDepth   = 16
	monoChannels  = 1
)

// WAV format tags.
const (
	pcmFormat        = 1
	floatFormat      = 3
	extensibleFormat = 0xFFFE
	floatBitDepth    = 32
)

// Error message formats.
const (
	errFmtSampleRateRange = "%w: sample rate must be between 1 and %d Hz, got %d"
	errFmtChannelsRange   = "%w: channels must be between 1 and %d, got %d"
	errFmtBitDepth        = "%w: bit depth must be 8, 16, 24, or 32, got %d"
	errFmtFormatTag       = "%w: format tag 0x%04X with %d-bit samples"
)

// Common errors for the audio package.
var (
	ErrInvalidQuality = errors.New("invalid audio quality")
	ErrEmptyWaveform  = errors.New("waveform has no samples")
	ErrInvalidWAV     = errors.New("not a valid WAV file")
	// ErrUnsupportedFormat marks a valid WAV whose sample encoding cannot be
	// decoded here. A transcoder can still convert it.
	ErrUnsupportedFormat = errors.New("unsupported WAV sample format")
)

// Validate checks that a waveform can be encoded and measured.
func Validate(wave core.Waveform) error {
	sampleRateErr := validateSampleRate(wave.SampleRate)
	if sampleRateErr != nil {
		return sampleRateErr
	}

	if len(wave.Samples) == 0 {
		return ErrEmptyWaveform
	}

	return nil
}

func validateSampleRate(sampleRate int) error {
	if sampleRate <= 0 || sampleRate > MaxSampleRate {
		return fmt.Errorf(errFmtSampleRateRange, ErrInvalidQuality, MaxSampleRate, sampleRate)
	}

	return nil
}

func validateChannels(channels int) error {
	if channels <= 0 || channels > MaxChannels {
		return fmt.Errorf(errFmtChannelsRange, ErrInvalidQuality, MaxChannels, channels)
	}

	return nil
}

func validateBitDepth(bitDepth int) error {
	switch bitDepth {
	case 8, 16, 24, 32:
		return nil
	default:
		return fmt.Errorf(errFmtBitDepth, ErrInvalidQuality, bitDepth)
	}
}
