package core

import (
	"fmt"
	"strings"
)

// Request defaults.
const (
	DefaultOutputName       = "output"
	DefaultSpeakerGender    = GenderMale
	DefaultPitchShift       = 0.0
	DefaultSpeedShift       = 1.0
	DefaultMultiSentenceGap = 0.3
	DefaultTaskMode         = "zero_shot"
	DefaultTemperature      = 0.7
	DefaultTopP             = 0.95
	DefaultMaxLength        = 4096
)

// Speaker gender hints.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Job statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ReferenceSampleRate is the rate reference audio is delivered to synthesis at.
const ReferenceSampleRate = 16000

// JobRequest is one synthesis request as received from a transport.
type JobRequest struct {
	Text                  string  `json:"text"`
	PromptText            string  `json:"prompt_text,omitempty"`
	ReferenceAudioLocator string  `json:"prompt_speech_url,omitempty"`
	OutputName            string  `json:"output_name"`
	SpeakerGender         string  `json:"speaker_gender"`
	PitchShift            float64 `json:"pitch_shift"`
	SpeedShift            float64 `json:"speed_shift"`
	MultiSentenceGap      float64 `json:"multi_sentence_gap"`
	TaskMode              string  `json:"task_token"`
	Temperature           float64 `json:"temperature"`
	TopP                  float64 `json:"top_p"`
	MaxLength             int     `json:"max_length"`
	EnableAlignment       bool    `json:"enable_whisperx"`
	EnableSubtitles       bool    `json:"enable_subtitles"`
}

// DefaultJobRequest returns a request populated with every default. Decoding
// JSON over it leaves absent fields at their defaults.
func DefaultJobRequest() JobRequest {
	return JobRequest{
		OutputName:       DefaultOutputName,
		SpeakerGender:    DefaultSpeakerGender,
		PitchShift:       DefaultPitchShift,
		SpeedShift:       DefaultSpeedShift,
		MultiSentenceGap: DefaultMultiSentenceGap,
		TaskMode:         DefaultTaskMode,
		Temperature:      DefaultTemperature,
		TopP:             DefaultTopP,
		MaxLength:        DefaultMaxLength,
	}
}

// Validate checks the request at the job boundary. Failures wrap ErrValidation.
func (r JobRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: text parameter is required", ErrValidation)
	}

	if r.SpeakerGender != GenderMale && r.SpeakerGender != GenderFemale {
		return fmt.Errorf("%w: speaker_gender must be %q or %q, got %q",
			ErrValidation, GenderMale, GenderFemale, r.SpeakerGender)
	}

	if r.TopP < 0.0 || r.TopP > 1.0 {
		return fmt.Errorf("%w: top_p must be between 0.0 and 1.0, got %f", ErrValidation, r.TopP)
	}

	if r.Temperature < 0.0 {
		return fmt.Errorf("%w: temperature must be >= 0.0, got %f", ErrValidation, r.Temperature)
	}

	if r.MaxLength <= 0 {
		return fmt.Errorf("%w: max_length must be positive, got %d", ErrValidation, r.MaxLength)
	}

	if r.SpeedShift <= 0.0 {
		return fmt.Errorf("%w: speed_shift must be positive, got %f", ErrValidation, r.SpeedShift)
	}

	if r.MultiSentenceGap < 0.0 {
		return fmt.Errorf("%w: multi_sentence_gap must be >= 0.0, got %f", ErrValidation, r.MultiSentenceGap)
	}

	return nil
}

// Reference parses the reference-audio locator. ok is false when the request
// carries none.
func (r JobRequest) Reference() (Locator, bool, error) {
	if strings.TrimSpace(r.ReferenceAudioLocator) == "" {
		return Locator{}, false, nil
	}

	locator, err := ParseLocator(r.ReferenceAudioLocator)
	if err != nil {
		return Locator{}, false, fmt.Errorf("%w: prompt_speech_url: %w", ErrValidation, err)
	}

	return locator, true, nil
}

// SubtitlesRequested reports whether subtitles can be produced. Subtitles need
// timings, so they are only produced when alignment is enabled too.
func (r JobRequest) SubtitlesRequested() bool {
	return r.EnableAlignment && r.EnableSubtitles
}

// Waveform is a mono sample buffer in the range [-1, 1].
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// DurationSeconds returns sample count divided by sample rate.
func (w Waveform) DurationSeconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}

	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// TimedSegment is a transcribed span with offsets in seconds.
type TimedSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// JobResult is the outcome of one job. Either the success fields or Error are
// populated, never both.
type JobResult struct {
	Status          string         `json:"status"`
	AudioURL        string         `json:"audio_url,omitempty"`
	SampleRate      int            `json:"sample_rate,omitempty"`
	DurationSeconds float64        `json:"duration,omitempty"`
	TimedSegments   []TimedSegment `json:"word_timings,omitempty"`
	SubtitleURL     string         `json:"subtitles_url,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// ErrorResult builds a failed result carrying only the message of err.
func ErrorResult(err error) JobResult {
	return JobResult{Status: StatusError, Error: err.Error()}
}

// Succeeded reports whether the job produced its audio.
func (r JobResult) Succeeded() bool {
	return r.Status == StatusSuccess
}
