// Package objectstore archives finished job results in a NATS JetStream object store.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/book-expert/tts-job-service/internal/core"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	resultContentType = "application/json"
	headerContentType = "Content-Type"
	resultSuffix      = ".json"
)

// ErrEmptyJobID is returned for an archive operation without a job id.
var ErrEmptyJobID = errors.New("job id cannot be empty")

// ResultArchive implements core.ResultArchive using NATS JetStream.
type ResultArchive struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the results bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*ResultArchive, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Job results for the %s bucket.", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &ResultArchive{bucket: bucketName, store: store}, nil
}

// Put stores the result as JSON under the job id, replacing any earlier entry.
func (a *ResultArchive) Put(_ context.Context, jobID string, result core.JobResult) error {
	if jobID == "" {
		return ErrEmptyJobID
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result for job '%s': %w", jobID, err)
	}

	_, err = a.store.Put(&nats.ObjectMeta{
		Name:        objectName(jobID),
		Description: "job result " + result.Status,
		Headers:     nats.Header{headerContentType: []string{resultContentType}},
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put result '%s' to bucket '%s': %w", jobID, a.bucket, err)
	}

	return nil
}

// Get reads an archived result. An unknown job id yields core.ErrObjectNotFound.
func (a *ResultArchive) Get(_ context.Context, jobID string) (core.JobResult, error) {
	if jobID == "" {
		return core.JobResult{}, ErrEmptyJobID
	}

	obj, err := a.store.Get(objectName(jobID))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return core.JobResult{}, fmt.Errorf("%w: job %s", core.ErrObjectNotFound, jobID)
		}

		return core.JobResult{}, fmt.Errorf("failed to get result '%s' from bucket '%s': %w", jobID, a.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return core.JobResult{}, fmt.Errorf("failed to read result '%s': %w", jobID, readErr)
	}

	if closeErr != nil {
		return core.JobResult{}, fmt.Errorf("failed to close result '%s': %w", jobID, closeErr)
	}

	var result core.JobResult

	decodeErr := json.Unmarshal(data, &result)
	if decodeErr != nil {
		return core.JobResult{}, fmt.Errorf("failed to decode result '%s': %w", jobID, decodeErr)
	}

	return result, nil
}

func objectName(jobID string) string {
	return jobID + resultSuffix
}
