package job_test

import (
	"context"
	"testing"

	"github.com/book-expert/tts-job-service/internal/core"
	"github.com/book-expert/tts-job-service/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingProcessor holds the slot until released.
type blockingProcessor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingProcessor) Process(_ context.Context, jobID string, _ core.JobRequest) core.JobResult {
	b.started <- struct{}{}
	<-b.release

	return core.JobResult{Status: core.StatusSuccess, AudioURL: jobID}
}

func TestExclusive_RejectsSecondJobWhileBusy(t *testing.T) {
	t.Parallel()

	processor := &blockingProcessor{started: make(chan struct{}), release: make(chan struct{})}
	exclusive := job.NewExclusive(processor)

	done := make(chan core.JobResult, 1)

	go func() {
		done <- exclusive.Process(context.Background(), "first", core.JobRequest{})
	}()

	<-processor.started
	assert.True(t, exclusive.Busy())

	_, ok := exclusive.TryProcess(context.Background(), "second", core.JobRequest{})
	assert.False(t, ok)

	close(processor.release)

	result := <-done
	assert.Equal(t, "first", result.AudioURL)
	assert.False(t, exclusive.Busy())
}

func TestExclusive_TryProcessWhenIdle(t *testing.T) {
	t.Parallel()

	processor := &blockingProcessor{started: make(chan struct{}, 1), release: make(chan struct{})}
	close(processor.release)

	result, ok := job.NewExclusive(processor).TryProcess(context.Background(), "only", core.JobRequest{})
	require.True(t, ok)
	assert.Equal(t, "only", result.AudioURL)
}

func TestExclusive_ProcessGivesUpWhenContextEnds(t *testing.T) {
	t.Parallel()

	processor := &blockingProcessor{started: make(chan struct{}), release: make(chan struct{})}
	exclusive := job.NewExclusive(processor)

	go func() {
		exclusive.Process(context.Background(), "first", core.JobRequest{})
	}()

	<-processor.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := exclusive.Process(ctx, "second", core.JobRequest{})
	assert.Equal(t, core.StatusError, result.Status)

	close(processor.release)
}
