// Package job sequences one synthesis job through acquisition, synthesis,
// alignment, subtitle rendering and upload.
//
// Acquisition, synthesis and the audio upload are fatal stages: a failure ends
// the job with an error result. Alignment, subtitle rendering and the subtitle
// upload only enrich the result, so their failures are logged and the job
// continues without them.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-job-service/internal/audio"
	"github.com/book-expert/tts-job-service/internal/core"
	"github.com/book-expert/tts-job-service/internal/fileutil"
)

const (
	audioExtension       = ".wav"
	jobDirPattern        = "job-*"
	subtitleFilePerm     = 0o600
	errFmtStage          = "%w: %w"
	errMissingSynth      = "orchestrator requires a synthesizer"
	errMissingStore      = "orchestrator requires an object store"
	errMissingAcquirer   = "orchestrator requires a reference acquirer"
	logFmtNonFatalFailed = "Job %s: %s failed, continuing without it: %v"
)

var (
	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("missing orchestrator dependency")
	// ErrAlignerUnavailable is the non-fatal failure recorded when alignment is
	// requested but no aligner is configured.
	ErrAlignerUnavailable = errors.New("no aligner configured")
)

// Dependencies are the long-lived handles a job runs against. Aligner and
// Subtitles may be nil; jobs requesting them then degrade.
type Dependencies struct {
	Store       core.ObjectStore
	Acquirer    core.ReferenceAcquirer
	Synthesizer core.Synthesizer
	Aligner     core.Aligner
	Subtitles   core.SubtitleRenderer
}

// Orchestrator runs jobs one at a time against a fixed set of dependencies.
// It is built once at start-up and shared by every transport.
type Orchestrator struct {
	deps    Dependencies
	workDir string
	log     *logger.Logger
}

// New creates an Orchestrator. Job scratch directories are created under
// workDir, or the system temp directory when it is empty.
func New(deps Dependencies, workDir string, log *logger.Logger) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: %s", ErrMissingDependency, errMissingStore)
	case deps.Synthesizer == nil:
		return nil, fmt.Errorf("%w: %s", ErrMissingDependency, errMissingSynth)
	case deps.Acquirer == nil:
		return nil, fmt.Errorf("%w: %s", ErrMissingDependency, errMissingAcquirer)
	}

	return &Orchestrator{deps: deps, workDir: workDir, log: log}, nil
}

// Process runs the job and always returns a result; no error escapes.
func (o *Orchestrator) Process(ctx context.Context, jobID string, req core.JobRequest) core.JobResult {
	started := time.Now()

	result, err := o.run(ctx, jobID, req)
	if err != nil {
		o.log.Error("Job %s failed after %s: %v", jobID, fileutil.FormatDuration(time.Since(started).Seconds()), err)

		return core.ErrorResult(err)
	}

	o.log.Info("Job %s completed in %s", jobID, fileutil.FormatDuration(time.Since(started).Seconds()))

	return result
}

func (o *Orchestrator) run(ctx context.Context, jobID string, req core.JobRequest) (core.JobResult, error) {
	validateErr := req.Validate()
	if validateErr != nil {
		return core.JobResult{}, validateErr
	}

	locator, hasReference, err := req.Reference()
	if err != nil {
		return core.JobResult{}, err
	}

	jobDir, err := os.MkdirTemp(o.workDir, jobDirPattern)
	if err != nil {
		return core.JobResult{}, fmt.Errorf("failed to create job directory: %w", err)
	}
	defer o.release(jobID, jobDir)

	var reference *core.Waveform

	if hasReference {
		o.log.Info("Job %s: acquiring reference audio %s", jobID, locator)

		wave, acquireErr := o.deps.Acquirer.Acquire(ctx, locator)
		if acquireErr != nil {
			return core.JobResult{}, wrapStage(core.ErrAcquisition, acquireErr)
		}

		reference = &wave
	}

	o.log.Info("Job %s: synthesizing %d characters", jobID, len(req.Text))

	speech, err := o.deps.Synthesizer.Synthesize(ctx, req, reference)
	if err != nil {
		return core.JobResult{}, wrapStage(core.ErrSynthesis, err)
	}

	baseName := fileutil.SanitizeFilename(req.OutputName) + "_" + fileutil.SanitizeFilename(jobID)
	audioPath := filepath.Join(jobDir, baseName+audioExtension)

	writeErr := audio.WriteWAVFile(audioPath, speech)
	if writeErr != nil {
		return core.JobResult{}, fmt.Errorf("failed to persist synthesized audio: %w", writeErr)
	}

	segments := o.align(ctx, jobID, req, audioPath)
	subtitlePath := o.renderSubtitles(jobID, req, segments, jobDir, baseName)

	audioKey := core.OutputPrefix + baseName + audioExtension
	o.log.Info("Job %s: uploading %s (%s)", jobID, audioKey, fileutil.FormatFileSize(fileutil.FileSize(audioPath)))

	audioURL, err := o.deps.Store.Upload(ctx, audioPath, audioKey)
	if err != nil {
		return core.JobResult{}, fmt.Errorf("failed to upload audio: %w", err)
	}

	result := core.JobResult{
		Status:          core.StatusSuccess,
		AudioURL:        audioURL.URL,
		SampleRate:      speech.SampleRate,
		DurationSeconds: speech.DurationSeconds(),
		TimedSegments:   segments,
	}

	if subtitlePath != "" {
		subtitleKey := core.SubtitlesPrefix + filepath.Base(subtitlePath)

		subtitleURL, uploadErr := o.deps.Store.Upload(ctx, subtitlePath, subtitleKey)
		if uploadErr != nil {
			o.log.Warn(logFmtNonFatalFailed, jobID, "subtitle upload", uploadErr)
		} else {
			result.SubtitleURL = subtitleURL.URL
		}
	}

	return result, nil
}

// align returns the timed segments, or nil when alignment is disabled or failed.
func (o *Orchestrator) align(ctx context.Context, jobID string, req core.JobRequest, audioPath string) []core.TimedSegment {
	if !req.EnableAlignment {
		return nil
	}

	if o.deps.Aligner == nil {
		o.log.Warn(logFmtNonFatalFailed, jobID, "alignment", ErrAlignerUnavailable)

		return nil
	}

	o.log.Info("Job %s: aligning synthesized audio", jobID)

	segments, err := o.deps.Aligner.Align(ctx, audioPath)
	if err != nil {
		o.log.Warn(logFmtNonFatalFailed, jobID, "alignment", wrapStage(core.ErrAlignment, err))

		return nil
	}

	if len(segments) == 0 {
		o.log.Warn("Job %s: alignment returned no segments", jobID)

		return nil
	}

	return segments
}

// renderSubtitles writes the subtitle document into jobDir and returns its
// path, or "" when subtitles were not requested or could not be produced.
func (o *Orchestrator) renderSubtitles(
	jobID string,
	req core.JobRequest,
	segments []core.TimedSegment,
	jobDir, baseName string,
) string {
	if !req.SubtitlesRequested() || len(segments) == 0 {
		return ""
	}

	if o.deps.Subtitles == nil {
		o.log.Warn(logFmtNonFatalFailed, jobID, "subtitle rendering", core.ErrSubtitle)

		return ""
	}

	document, err := o.deps.Subtitles.Render(segments)
	if err != nil {
		o.log.Warn(logFmtNonFatalFailed, jobID, "subtitle rendering", wrapStage(core.ErrSubtitle, err))

		return ""
	}

	subtitlePath := filepath.Join(jobDir, baseName+o.deps.Subtitles.Extension())

	writeErr := os.WriteFile(subtitlePath, document, subtitleFilePerm)
	if writeErr != nil {
		o.log.Warn(logFmtNonFatalFailed, jobID, "subtitle rendering", wrapStage(core.ErrSubtitle, writeErr))

		return ""
	}

	return subtitlePath
}

func (o *Orchestrator) release(jobID, jobDir string) {
	removeErr := os.RemoveAll(jobDir)
	if removeErr != nil {
		o.log.Warn("Job %s: failed to remove job directory '%s': %v", jobID, jobDir, removeErr)
	}
}

// wrapStage tags err with kind unless it already carries it.
func wrapStage(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}

	return fmt.Errorf(errFmtStage, kind, err)
}
