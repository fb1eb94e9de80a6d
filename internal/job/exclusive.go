package job

import (
	"context"

	"github.com/book-expert/tts-job-service/internal/core"
)

// Exclusive lets several transports share one processor while keeping the
// one-job-per-worker model: at most one job runs at any time.
type Exclusive struct {
	processor core.JobProcessor
	slot      chan struct{}
}

// NewExclusive wraps processor with a single job slot.
func NewExclusive(processor core.JobProcessor) *Exclusive {
	return &Exclusive{processor: processor, slot: make(chan struct{}, 1)}
}

// Process waits for the slot and runs the job. If ctx ends while waiting, the
// job is not started and an error result is returned.
func (e *Exclusive) Process(ctx context.Context, jobID string, req core.JobRequest) core.JobResult {
	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		return core.ErrorResult(ctx.Err())
	}
	defer func() { <-e.slot }()

	return e.processor.Process(ctx, jobID, req)
}

// TryProcess runs the job only if the slot is free. ok is false when another
// job is running.
func (e *Exclusive) TryProcess(ctx context.Context, jobID string, req core.JobRequest) (core.JobResult, bool) {
	select {
	case e.slot <- struct{}{}:
	default:
		return core.JobResult{}, false
	}
	defer func() { <-e.slot }()

	return e.processor.Process(ctx, jobID, req), true
}

// Busy reports whether a job is currently running.
func (e *Exclusive) Busy() bool {
	return len(e.slot) > 0
}
