package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultFFmpegBinary is looked up on PATH when no binary is configured.
const DefaultFFmpegBinary = "ffmpeg"

// ErrTranscoderUnavailable is returned when the ffmpeg binary cannot be found.
var ErrTranscoderUnavailable = errors.New("ffmpeg binary not available")

// FFmpeg converts any audio ffmpeg can read into 16-bit mono PCM WAV.
type FFmpeg struct {
	binary string
}

// NewFFmpeg creates a transcoder running binary, or DefaultFFmpegBinary when empty.
func NewFFmpeg(binary string) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultFFmpegBinary
	}

	return &FFmpeg{binary: binary}
}

// Binary returns the configured binary name or path.
func (f *FFmpeg) Binary() string {
	return f.binary
}

// Available reports whether the binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.binary)

	return err == nil
}

// Transcode writes inputPath to outputPath as mono 16-bit PCM WAV at sampleRate.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath, outputPath string, sampleRate int) error {
	sampleRateErr := validateSampleRate(sampleRate)
	if sampleRateErr != nil {
		return sampleRateErr
	}

	binaryPath, err := exec.LookPath(f.binary)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTranscoderUnavailable, f.binary, err)
	}

	cmd := exec.CommandContext(ctx, binaryPath,
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-y", "-i", inputPath,
		"-ac", "1", "-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outputPath,
	)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		return fmt.Errorf("ffmpeg failed to convert '%s': %w: %s", inputPath, runErr, strings.TrimSpace(stderr.String()))
	}

	return nil
}
