package storage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/book-expert/tts-job-service/internal/core"
)

// Error codes S3-compatible providers use for missing and forbidden resources.
const (
	codeNotFound     = "NotFound"
	codeAccessDenied = "AccessDenied"
	codeForbidden    = "Forbidden"
)

// classify maps an SDK failure onto the gateway's error kinds.
func classify(err error, target string) error {
	var requestFailure awserr.RequestFailure
	if errors.As(err, &requestFailure) {
		switch requestFailure.StatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s: %w", core.ErrObjectNotFound, target, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s: %w", core.ErrAccessDenied, target, err)
		}
	}

	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, codeNotFound:
			return fmt.Errorf("%w: %s: %w", core.ErrObjectNotFound, target, err)
		case codeAccessDenied, codeForbidden:
			return fmt.Errorf("%w: %s: %w", core.ErrAccessDenied, target, err)
		}
	}

	return fmt.Errorf("%w: %s: %w", core.ErrTransport, target, err)
}

// classifyStatus maps an HTTP status from a capability URL onto the error kinds.
func classifyStatus(status int, target string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", core.ErrObjectNotFound, target)
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("%w: %s (status %d)", core.ErrAccessDenied, target, status)
	default:
		return fmt.Errorf("%w: %s returned status %d", core.ErrTransport, target, status)
	}
}
