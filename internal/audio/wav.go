package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/book-expert/tts-job-service/internal/core"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const filePermissions = 0o600

// sampleEncoding is how the data chunk stores each sample.
type sampleEncoding int

const (
	integerSamples sampleEncoding = iota
	floatSamples
)

// DecodeWAV reads an integer PCM or 32-bit float WAV stream and downmixes it
// to a mono waveform at the file's native sample rate. Other encodings fail
// with ErrUnsupportedFormat.
func DecodeWAV(reader io.ReadSeeker) (core.Waveform, error) {
	decoder := wav.NewDecoder(reader)
	if !decoder.IsValidFile() {
		return core.Waveform{}, ErrInvalidWAV
	}

	bitDepth := int(decoder.BitDepth)

	encoding, err := encodingOf(decoder.WavAudioFormat, bitDepth)
	if err != nil {
		return core.Waveform{}, err
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return core.Waveform{}, fmt.Errorf("failed to read PCM data: %w", err)
	}

	if buffer == nil || buffer.Format == nil {
		return core.Waveform{}, ErrInvalidWAV
	}

	channels := buffer.Format.NumChannels
	channelsErr := validateChannels(channels)
	if channelsErr != nil {
		return core.Waveform{}, channelsErr
	}

	var samples []float32
	if encoding == floatSamples {
		samples = downmixFloat(buffer.Data, channels)
	} else {
		samples = downmix(buffer.Data, channels, bitDepth)
	}

	wave := core.Waveform{Samples: samples, SampleRate: buffer.Format.SampleRate}

	return wave, Validate(wave)
}

// encodingOf maps the fmt chunk onto a decodable encoding. Extensible files
// hide int versus float in a subformat GUID the decoder does not expose, so
// only depths that cannot be float are accepted for them.
func encodingOf(formatTag uint16, bitDepth int) (sampleEncoding, error) {
	switch formatTag {
	case pcmFormat:
		bitDepthErr := validateBitDepth(bitDepth)
		if bitDepthErr != nil {
			return 0, bitDepthErr
		}

		return integerSamples, nil
	case floatFormat:
		if bitDepth == floatBitDepth {
			return floatSamples, nil
		}
	case extensibleFormat:
		if bitDepth != floatBitDepth && validateBitDepth(bitDepth) == nil {
			return integerSamples, nil
		}
	}

	return 0, fmt.Errorf(errFmtFormatTag, ErrUnsupportedFormat, formatTag, bitDepth)
}

// DecodeWAVBytes decodes an in-memory WAV payload.
func DecodeWAVBytes(data []byte) (core.Waveform, error) {
	return DecodeWAV(bytes.NewReader(data))
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (core.Waveform, error) {
	file, err := os.Open(path)
	if err != nil {
		return core.Waveform{}, fmt.Errorf("failed to open audio file '%s': %w", path, err)
	}
	defer file.Close()

	wave, err := DecodeWAV(file)
	if err != nil {
		return core.Waveform{}, fmt.Errorf("failed to decode audio file '%s': %w", path, err)
	}

	return wave, nil
}

// EncodeWAV writes the waveform as 16-bit mono PCM.
func EncodeWAV(writer io.WriteSeeker, wave core.Waveform) error {
	validateErr := Validate(wave)
	if validateErr != nil {
		return validateErr
	}

	encoder := wav.NewEncoder(writer, wave.SampleRate, pcmBitDepth, monoChannels, pcmFormat)

	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: monoChannels, SampleRate: wave.SampleRate},
		Data:           quantize(wave.Samples),
		SourceBitDepth: pcmBitDepth,
	}

	err := encoder.Write(buffer)
	if err != nil {
		return fmt.Errorf("failed to write PCM data: %w", err)
	}

	closeErr := encoder.Close()
	if closeErr != nil {
		return fmt.Errorf("failed to finalize WAV header: %w", closeErr)
	}

	return nil
}

// WriteWAVFile encodes the waveform into a new file at path.
func WriteWAVFile(path string, wave core.Waveform) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create audio file '%s': %w", path, err)
	}

	encodeErr := EncodeWAV(file, wave)
	closeErr := file.Close()

	if encodeErr != nil {
		return fmt.Errorf("failed to encode audio file '%s': %w", path, encodeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close audio file '%s': %w", path, closeErr)
	}

	return nil
}

// downmix averages interleaved integer frames into normalized mono samples.
func downmix(data []int, channels, bitDepth int) []float32 {
	scale := float64(int64(1) << (bitDepth - 1))
	frames := len(data) / channels
	samples := make([]float32, frames)

	// 8-bit WAV is unsigned.
	offset := 0.0
	if bitDepth == 8 {
		offset = scale
	}

	for frame := range frames {
		var sum float64
		for channel := range channels {
			sum += float64(data[frame*channels+channel]) - offset
		}

		samples[frame] = float32(sum / float64(channels) / scale)
	}

	return samples
}

// downmixFloat averages interleaved IEEE float frames. The decoder hands 32-bit
// samples over as their raw bit patterns.
func downmixFloat(data []int, channels int) []float32 {
	frames := len(data) / channels
	samples := make([]float32, frames)

	for frame := range frames {
		var sum float64
		for channel := range channels {
			value := float64(math.Float32frombits(uint32(int32(data[frame*channels+channel]))))
			if math.IsNaN(value) || math.IsInf(value, 0) {
				value = 0
			}

			sum += value
		}

		samples[frame] = float32(sum / float64(channels))
	}

	return samples
}

func quantize(samples []float32) []int {
	const maxAmplitude = math.MaxInt16

	data := make([]int, len(samples))
	for index, sample := range samples {
		clipped := math.Max(-1.0, math.Min(1.0, float64(sample)))
		data[index] = int(math.Round(clipped * maxAmplitude))
	}

	return data
}
