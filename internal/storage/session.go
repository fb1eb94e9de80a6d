// Package storage provides the S3-compatible object storage gateway: uploads,
// downloads, pre-signed access URLs, listing and reachability checks.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// DefaultURLTTL is the expiry of access URLs when the caller picks none.
const DefaultURLTTL = time.Hour

// ErrBucketRequired indicates that no default bucket was configured.
var ErrBucketRequired = errors.New("storage bucket required")

// Options configures a Gateway.
type Options struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// EndpointURL points at a non-AWS provider (Backblaze B2, MinIO, ...).
	// Setting it switches to path-style addressing.
	EndpointURL string
	URLTTL      time.Duration
}

func newSession(opts Options) (*session.Session, error) {
	region := opts.Region
	if region == "" {
		region = DefaultRegion
	}

	awsConfig := &aws.Config{
		Region: aws.String(region),
		// The gateway never retries; callers own the retry policy.
		MaxRetries: aws.Int(0),
	}

	if opts.AccessKeyID != "" || opts.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(opts.AccessKeyID, opts.SecretAccessKey, "")
	}

	if opts.EndpointURL != "" {
		awsConfig.Endpoint = aws.String(opts.EndpointURL)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage session: %w", err)
	}

	return sess, nil
}
