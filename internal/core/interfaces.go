// Package core defines the core business types and interfaces for the TTS job service.
package core

import (
	"context"
	"time"
)

// Operation selects what an AccessURL authorizes.
type Operation string

const (
	// OperationGet authorizes reading an object.
	OperationGet Operation = "get_object"
	// OperationPut authorizes writing an object.
	OperationPut Operation = "put_object"
)

// ObjectStore defines the storage gateway used by the job pipeline.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, key string) (AccessURL, error)
	Download(ctx context.Context, locator Locator, localPath string) (string, error)
}

// ObjectLister lists stored objects under a key prefix.
type ObjectLister interface {
	ListUnder(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ReferenceAcquirer turns a reference-audio locator into a 16 kHz mono waveform.
type ReferenceAcquirer interface {
	Acquire(ctx context.Context, locator Locator) (Waveform, error)
}

// Synthesizer invokes the external speech-synthesis capability.
// A nil reference selects the default-voice mode.
type Synthesizer interface {
	Synthesize(ctx context.Context, req JobRequest, reference *Waveform) (Waveform, error)
}

// Aligner produces timed segments for a rendered audio file.
type Aligner interface {
	Align(ctx context.Context, audioPath string) ([]TimedSegment, error)
}

// SubtitleRenderer serializes timed segments into a subtitle document.
type SubtitleRenderer interface {
	Render(segments []TimedSegment) ([]byte, error)
	Extension() string
}

// JobProcessor runs one job to completion. It never returns an error;
// failures are reported in the result.
type JobProcessor interface {
	Process(ctx context.Context, jobID string, req JobRequest) JobResult
}

// ResultArchive persists finished job results.
type ResultArchive interface {
	Put(ctx context.Context, jobID string, result JobResult) error
	Get(ctx context.Context, jobID string) (JobResult, error)
}

// AccessURL is a time-limited capability for one storage object.
type AccessURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ObjectInfo describes a listed storage object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url"`
}
