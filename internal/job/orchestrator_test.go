package job_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-job-service/internal/core"
	"github.com/book-expert/tts-job-service/internal/job"
	"github.com/book-expert/tts-job-service/internal/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJobID             = "job-123"
	testSpeechRate        = 24000
	testSpeechSampleCount = 36000
	testURLPrefix         = "https://storage.example/"
)

var (
	errMockSynthesis = errors.New("CUDA out of memory")
	errMockAlignment = errors.New("alignment model missing")
	errMockUpload    = errors.New("connection reset")
	errMockRender    = errors.New("render failed")
)

// mockStore records uploads and keeps a copy of each uploaded file.
type mockStore struct {
	failKeys map[string]bool
	uploads  []string
	contents map[string][]byte
}

func newMockStore() *mockStore {
	return &mockStore{failKeys: make(map[string]bool), contents: make(map[string][]byte)}
}

func (m *mockStore) Upload(_ context.Context, localPath, key string) (core.AccessURL, error) {
	m.uploads = append(m.uploads, key)

	if m.failKeys[key] {
		return core.AccessURL{}, fmt.Errorf("%w: %w", core.ErrTransport, errMockUpload)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return core.AccessURL{}, err
	}

	m.contents[key] = data

	return core.AccessURL{URL: testURLPrefix + key + "?sig=1", Key: key}, nil
}

func (m *mockStore) Download(_ context.Context, _ core.Locator, _ string) (string, error) {
	return "", core.ErrObjectNotFound
}

type mockAcquirer struct {
	shouldFail bool
	calls      []core.Locator
}

func (m *mockAcquirer) Acquire(_ context.Context, locator core.Locator) (core.Waveform, error) {
	m.calls = append(m.calls, locator)

	if m.shouldFail {
		return core.Waveform{}, fmt.Errorf("%w: %w: s3://bucket/%s", core.ErrAcquisition, core.ErrObjectNotFound, locator.Key)
	}

	return core.Waveform{Samples: []float32{0.1, 0.2, 0.3}, SampleRate: core.ReferenceSampleRate}, nil
}

type mockSynthesizer struct {
	shouldFail        bool
	calls             int
	receivedReference *core.Waveform
}

func (m *mockSynthesizer) Synthesize(_ context.Context, _ core.JobRequest, reference *core.Waveform) (core.Waveform, error) {
	m.calls++
	m.receivedReference = reference

	if m.shouldFail {
		return core.Waveform{}, errMockSynthesis
	}

	return core.Waveform{Samples: make([]float32, testSpeechSampleCount), SampleRate: testSpeechRate}, nil
}

type mockAligner struct {
	shouldFail bool
	segments   []core.TimedSegment
	calls      int
	sawFile    bool
}

func (m *mockAligner) Align(_ context.Context, audioPath string) ([]core.TimedSegment, error) {
	m.calls++

	_, statErr := os.Stat(audioPath)
	m.sawFile = statErr == nil

	if m.shouldFail {
		return nil, errMockAlignment
	}

	return m.segments, nil
}

type failingRenderer struct{}

func (failingRenderer) Render(_ []core.TimedSegment) ([]byte, error) {
	return nil, errMockRender
}

func (failingRenderer) Extension() string {
	return ".ass"
}

type fixture struct {
	store       *mockStore
	acquirer    *mockAcquirer
	synthesizer *mockSynthesizer
	aligner     *mockAligner
	workDir     string
	deps        job.Dependencies
}

func newFixture() *fixture {
	fx := &fixture{
		store:       newMockStore(),
		acquirer:    &mockAcquirer{},
		synthesizer: &mockSynthesizer{},
		aligner: &mockAligner{segments: []core.TimedSegment{
			{Start: 0, End: 0.8, Text: " hello "},
			{Start: 0.8, End: 1.5, Text: "world"},
		}},
	}

	fx.deps = job.Dependencies{
		Store:       fx.store,
		Acquirer:    fx.acquirer,
		Synthesizer: fx.synthesizer,
		Aligner:     fx.aligner,
		Subtitles:   subtitle.NewRenderer(""),
	}

	return fx
}

func (fx *fixture) orchestrator(t *testing.T) *job.Orchestrator {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "job-test.log")
	require.NoError(t, err)

	fx.workDir = t.TempDir()

	orchestrator, err := job.New(fx.deps, fx.workDir, testLogger)
	require.NoError(t, err)

	return orchestrator
}

func (fx *fixture) assertWorkDirEmpty(t *testing.T) {
	t.Helper()

	entries, err := os.ReadDir(fx.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "job temporaries must be released")
}

func request(text string) core.JobRequest {
	req := core.DefaultJobRequest()
	req.Text = text

	return req
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	testLogger, err := logger.New(t.TempDir(), "job-test.log")
	require.NoError(t, err)

	_, err = job.New(job.Dependencies{}, "", testLogger)
	require.ErrorIs(t, err, job.ErrMissingDependency)

	fx := newFixture()
	fx.deps.Synthesizer = nil
	_, err = job.New(fx.deps, "", testLogger)
	require.ErrorIs(t, err, job.ErrMissingDependency)
}

func TestProcess_PlainRequestUploadsAudioOnly(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	result := fx.orchestrator(t).Process(context.Background(), testJobID, request("hello world"))

	require.True(t, result.Succeeded(), result.Error)
	assert.Equal(t, testURLPrefix+"output/output_job-123.wav?sig=1", result.AudioURL)
	assert.Equal(t, testSpeechRate, result.SampleRate)
	assert.Empty(t, result.TimedSegments)
	assert.Empty(t, result.SubtitleURL)
	assert.Empty(t, result.Error)

	assert.Equal(t, []string{"output/output_job-123.wav"}, fx.store.uploads)
	assert.True(t, strings.HasPrefix(string(fx.store.contents["output/output_job-123.wav"]), "RIFF"))
	assert.Empty(t, fx.acquirer.calls)
	assert.Nil(t, fx.synthesizer.receivedReference)
	assert.Zero(t, fx.aligner.calls)
	fx.assertWorkDirEmpty(t)
}

func TestProcess_DurationIsSamplesOverRate(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	result := fx.orchestrator(t).Process(context.Background(), testJobID, request("hello"))

	require.True(t, result.Succeeded())
	assert.Equal(t, float64(testSpeechSampleCount)/float64(testSpeechRate), result.DurationSeconds)
}

func TestProcess_EmptyTextHasNoSideEffects(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   \n\t"} {
		fx := newFixture()
		req := request(text)
		req.ReferenceAudioLocator = "voices/narrator.wav"

		result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

		assert.Equal(t, core.StatusError, result.Status)
		assert.NotEmpty(t, result.Error)
		assert.Empty(t, result.AudioURL)
		assert.Empty(t, fx.store.uploads)
		assert.Empty(t, fx.acquirer.calls)
		assert.Zero(t, fx.synthesizer.calls)
		fx.assertWorkDirEmpty(t)
	}
}

func TestProcess_MalformedReferenceLocatorIsValidationError(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	req := request("hello")
	req.ReferenceAudioLocator = "s3://bucket-only"

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	assert.Equal(t, core.StatusError, result.Status)
	assert.Contains(t, result.Error, core.ErrValidation.Error())
	assert.Empty(t, fx.acquirer.calls)
	assert.Empty(t, fx.store.uploads)
}

func TestProcess_MissingReferenceIsFatalWithoutUpload(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.acquirer.shouldFail = true

	req := request("hello")
	req.ReferenceAudioLocator = "voices/missing.wav"

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	assert.Equal(t, core.StatusError, result.Status)
	assert.Contains(t, result.Error, core.ErrAcquisition.Error())
	assert.Contains(t, result.Error, core.ErrObjectNotFound.Error())
	assert.Empty(t, result.AudioURL)
	assert.Empty(t, fx.store.uploads)
	assert.Zero(t, fx.synthesizer.calls)
	fx.assertWorkDirEmpty(t)
}

func TestProcess_ReferenceIsPassedToSynthesis(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	req := request("hello")
	req.ReferenceAudioLocator = "s3://voices-bucket/narrator.wav"

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	require.True(t, result.Succeeded())
	require.Len(t, fx.acquirer.calls, 1)
	assert.Equal(t, core.LocatorObject, fx.acquirer.calls[0].Kind)
	assert.Equal(t, "voices-bucket", fx.acquirer.calls[0].Bucket)
	require.NotNil(t, fx.synthesizer.receivedReference)
	assert.Equal(t, core.ReferenceSampleRate, fx.synthesizer.receivedReference.SampleRate)
}

func TestProcess_SynthesisFailureIsFatal(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.synthesizer.shouldFail = true

	result := fx.orchestrator(t).Process(context.Background(), testJobID, request("hello"))

	assert.Equal(t, core.StatusError, result.Status)
	assert.Contains(t, result.Error, errMockSynthesis.Error())
	assert.Contains(t, result.Error, core.ErrSynthesis.Error())
	assert.Equal(t, 1, fx.synthesizer.calls, "synthesis is never retried")
	assert.Empty(t, fx.store.uploads)
	fx.assertWorkDirEmpty(t)
}

func TestProcess_AlignmentAndSubtitles(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	req := request("hello world")
	req.OutputName = "chapter one"
	req.EnableAlignment = true
	req.EnableSubtitles = true

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	require.True(t, result.Succeeded(), result.Error)
	assert.True(t, fx.aligner.sawFile, "alignment runs on the persisted waveform")
	assert.Equal(t, fx.aligner.segments, result.TimedSegments)
	assert.Equal(t, testURLPrefix+"output/subtitles/chapter_one_job-123.ass?sig=1", result.SubtitleURL)
	assert.Equal(t, []string{
		core.OutputPrefix + "chapter_one_job-123.wav",
		core.SubtitlesPrefix + "chapter_one_job-123.ass",
	}, fx.store.uploads)

	document := string(fx.store.contents["output/subtitles/chapter_one_job-123.ass"])
	assert.Contains(t, document, "Dialogue: 0,0:00:00.00,0:00:00.80,Default,,0,0,0,,hello")
	assert.Contains(t, document, "Dialogue: 0,0:00:00.80,0:00:01.50,Default,,0,0,0,,world")
	fx.assertWorkDirEmpty(t)
}

func TestProcess_AlignmentDisabledNeverHasTimings(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	req := request("hello")
	req.EnableSubtitles = true

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	require.True(t, result.Succeeded())
	assert.Empty(t, result.TimedSegments)
	assert.Empty(t, result.SubtitleURL)
	assert.Zero(t, fx.aligner.calls)
	assert.Len(t, fx.store.uploads, 1)
}

func TestProcess_AlignmentFailureDegrades(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.aligner.shouldFail = true

	req := request("hello")
	req.EnableAlignment = true
	req.EnableSubtitles = true

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	require.True(t, result.Succeeded())
	assert.NotEmpty(t, result.AudioURL)
	assert.Equal(t, testSpeechRate, result.SampleRate)
	assert.Empty(t, result.TimedSegments)
	assert.Empty(t, result.SubtitleURL)
	assert.Empty(t, result.Error)
	assert.Len(t, fx.store.uploads, 1)
	fx.assertWorkDirEmpty(t)
}

func TestProcess_MissingAlignerDegrades(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.deps.Aligner = nil

	req := request("hello")
	req.EnableAlignment = true

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	require.True(t, result.Succeeded())
	assert.Empty(t, result.TimedSegments)
}

func TestProcess_EmptyAlignmentSkipsSubtitles(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.aligner.segments = nil

	req := request("hello")
	req.EnableAlignment = true
	req.EnableSubtitles = true

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	require.True(t, result.Succeeded())
	assert.Empty(t, result.TimedSegments)
	assert.Empty(t, result.SubtitleURL)
	assert.Len(t, fx.store.uploads, 1)
}

func TestProcess_SubtitleFailureKeepsTimings(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.deps.Subtitles = failingRenderer{}

	req := request("hello")
	req.EnableAlignment = true
	req.EnableSubtitles = true

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	require.True(t, result.Succeeded())
	assert.Equal(t, fx.aligner.segments, result.TimedSegments)
	assert.Empty(t, result.SubtitleURL)
	assert.Len(t, fx.store.uploads, 1)
}

func TestProcess_AudioUploadFailureIsFatal(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.store.failKeys["output/output_job-123.wav"] = true

	result := fx.orchestrator(t).Process(context.Background(), testJobID, request("hello"))

	assert.Equal(t, core.StatusError, result.Status)
	assert.Contains(t, result.Error, errMockUpload.Error())
	assert.Empty(t, result.AudioURL)
	fx.assertWorkDirEmpty(t)
}

func TestProcess_SubtitleUploadFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.store.failKeys["output/subtitles/output_job-123.ass"] = true

	req := request("hello")
	req.EnableAlignment = true
	req.EnableSubtitles = true

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	require.True(t, result.Succeeded())
	assert.NotEmpty(t, result.AudioURL)
	assert.NotEmpty(t, result.TimedSegments)
	assert.Empty(t, result.SubtitleURL)
	assert.Empty(t, result.Error)
	fx.assertWorkDirEmpty(t)
}

func TestProcess_UnsortedSegmentsKeepInputOrder(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.aligner.segments = []core.TimedSegment{
		{Start: 2, End: 3, Text: "later"},
		{Start: 0, End: 1, Text: "earlier"},
	}

	req := request("hello")
	req.EnableAlignment = true
	req.EnableSubtitles = true

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	require.True(t, result.Succeeded())
	assert.Equal(t, fx.aligner.segments, result.TimedSegments)

	document := string(fx.store.contents["output/subtitles/output_job-123.ass"])
	assert.Less(t, strings.Index(document, "later"), strings.Index(document, "earlier"))
}

func TestProcess_SanitizesOutputName(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	req := request("hello")
	req.OutputName = "../../escape"

	result := fx.orchestrator(t).Process(context.Background(), testJobID, req)

	require.True(t, result.Succeeded())
	assert.Equal(t, []string{"output/_.._escape_job-123.wav"}, fx.store.uploads)
}
