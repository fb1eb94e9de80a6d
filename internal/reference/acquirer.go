// Package reference resolves reference-audio locators into 16 kHz mono waveforms
// for prompt-conditioned synthesis.
package reference

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-job-service/internal/audio"
	"github.com/book-expert/tts-job-service/internal/core"
)

const (
	tempFilePattern       = "ref-audio-*"
	transcodedFilePattern = "ref-audio-*-16k.wav"
)

// Transcoder converts audio the WAV decoder cannot read into mono PCM WAV.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, sampleRate int) error
}

// Acquirer downloads reference audio through the storage gateway and decodes it.
type Acquirer struct {
	store      core.ObjectStore
	transcoder Transcoder
	workDir    string
	log        *logger.Logger
}

// New creates an Acquirer writing its scratch copies under workDir. An empty
// workDir selects the system temp directory. transcoder may be nil, in which
// case only WAV references decode.
func New(store core.ObjectStore, transcoder Transcoder, workDir string, log *logger.Logger) *Acquirer {
	return &Acquirer{store: store, transcoder: transcoder, workDir: workDir, log: log}
}

// Acquire fetches the locator, decodes it and resamples it to 16 kHz mono.
// The local byte copy is removed before returning. Failures wrap
// core.ErrAcquisition together with the underlying storage kind.
func (a *Acquirer) Acquire(ctx context.Context, locator core.Locator) (core.Waveform, error) {
	localPath, err := a.tempPath(tempFilePattern)
	if err != nil {
		return core.Waveform{}, fmt.Errorf("%w: %w", core.ErrAcquisition, err)
	}
	defer a.remove(localPath)

	a.log.Info("Downloading reference audio from: %s", locator)

	_, err = a.store.Download(ctx, locator, localPath)
	if err != nil {
		return core.Waveform{}, fmt.Errorf("%w: %w", core.ErrAcquisition, err)
	}

	wave, err := audio.ReadWAVFile(localPath)
	if err != nil && a.transcoder != nil && needsTranscode(err) {
		a.log.Info("Reference audio is not decodable WAV (%v); converting with transcoder", err)

		wave, err = a.transcode(ctx, localPath)
	}

	if err != nil {
		return core.Waveform{}, fmt.Errorf("%w: %w", core.ErrAcquisition, err)
	}

	if wave.SampleRate == core.ReferenceSampleRate {
		return wave, nil
	}

	a.log.Info("Resampling reference audio from %d Hz to %d Hz", wave.SampleRate, core.ReferenceSampleRate)

	resampled, err := audio.Resample(wave, core.ReferenceSampleRate)
	if err != nil {
		return core.Waveform{}, fmt.Errorf("%w: %w", core.ErrAcquisition, err)
	}

	return resampled, nil
}

// transcode converts localPath to 16 kHz mono WAV and decodes the result.
func (a *Acquirer) transcode(ctx context.Context, localPath string) (core.Waveform, error) {
	convertedPath, err := a.tempPath(transcodedFilePattern)
	if err != nil {
		return core.Waveform{}, err
	}
	defer a.remove(convertedPath)

	transcodeErr := a.transcoder.Transcode(ctx, localPath, convertedPath, core.ReferenceSampleRate)
	if transcodeErr != nil {
		return core.Waveform{}, fmt.Errorf("failed to convert reference audio: %w", transcodeErr)
	}

	return audio.ReadWAVFile(convertedPath)
}

// tempPath reserves an empty scratch file and returns its path.
func (a *Acquirer) tempPath(pattern string) (string, error) {
	tempFile, err := os.CreateTemp(a.workDir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	path := tempFile.Name()

	closeErr := tempFile.Close()
	if closeErr != nil {
		a.remove(path)

		return "", fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	return path, nil
}

func needsTranscode(err error) bool {
	return errors.Is(err, audio.ErrInvalidWAV) || errors.Is(err, audio.ErrUnsupportedFormat)
}

func (a *Acquirer) remove(path string) {
	removeErr := os.Remove(path)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		a.log.Warn("Failed to remove temp file '%s': %v", path, removeErr)
	}
}
