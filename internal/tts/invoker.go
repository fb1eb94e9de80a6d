package tts

import (
	"context"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-job-service/internal/audio"
	"github.com/book-expert/tts-job-service/internal/core"
)

// SpeechGenerator is the transport the Invoker drives.
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, req Request) ([]byte, error)
}

// Invoker implements core.Synthesizer on top of a SpeechGenerator. It never
// retries: every failure is reported once as core.ErrSynthesis.
type Invoker struct {
	generator SpeechGenerator
	log       *logger.Logger
}

// NewInvoker creates an Invoker.
func NewInvoker(generator SpeechGenerator, log *logger.Logger) *Invoker {
	return &Invoker{generator: generator, log: log}
}

// Synthesize maps the job parameters and optional reference onto a service
// request and decodes the returned waveform.
func (i *Invoker) Synthesize(ctx context.Context, req core.JobRequest, reference *core.Waveform) (core.Waveform, error) {
	request := BuildRequest(req, reference)

	mode := "default voice"
	if reference != nil {
		mode = "reference prompt"
	}

	i.log.Info("Requesting synthesis (%s) for %d characters", mode, len(req.Text))

	audioData, err := i.generator.GenerateSpeech(ctx, request)
	if err != nil {
		return core.Waveform{}, fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	wave, err := audio.DecodeWAVBytes(audioData)
	if err != nil {
		return core.Waveform{}, fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	if len(wave.Samples) == 0 {
		return core.Waveform{}, fmt.Errorf("%w: %w", core.ErrSynthesis, audio.ErrEmptyWaveform)
	}

	return wave, nil
}

// BuildRequest converts a job request and an optional reference waveform into
// the service payload. The prompt transcript is only sent along with a reference.
func BuildRequest(req core.JobRequest, reference *core.Waveform) Request {
	request := Request{
		Text:             req.Text,
		Gender:           req.SpeakerGender,
		Pitch:            req.PitchShift,
		Speed:            req.SpeedShift,
		MultiSentenceGap: req.MultiSentenceGap,
		TaskToken:        req.TaskMode,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		MaxLength:        req.MaxLength,
	}

	if reference != nil {
		request.PromptSpeech16k = reference.Samples
		request.PromptText = req.PromptText
	}

	return request
}
