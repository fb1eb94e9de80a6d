package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/book-expert/logger"
	"github.com/book-expert/tts-job-service/internal/core"
)

// placeholderName marks the layout prefixes created by EnsureLayout.
const placeholderName = ".placeholder"

const (
	filePermissions        = 0o600
	defaultDownloadTimeout = 10 * time.Minute
)

var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ass":  "text/x-ssa",
	".srt":  "application/x-subrip",
	".json": "application/json",
}

// Gateway mediates every byte transfer between the job pipeline and the bucket.
// It is safe for concurrent use and performs no retries.
type Gateway struct {
	client     *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	httpClient *http.Client
	bucket     string
	urlTTL     time.Duration
	log        *logger.Logger
}

// New creates a Gateway for the default bucket in opts.
func New(opts Options, log *logger.Logger) (*Gateway, error) {
	if opts.Bucket == "" {
		return nil, ErrBucketRequired
	}

	sess, err := newSession(opts)
	if err != nil {
		return nil, err
	}

	client := s3.New(sess)

	ttl := opts.URLTTL
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}

	log.Info("Storage gateway initialized for bucket: %s", opts.Bucket)

	return &Gateway{
		client:     client,
		uploader:   s3manager.NewUploaderWithClient(client),
		downloader: s3manager.NewDownloaderWithClient(client),
		httpClient: &http.Client{Timeout: defaultDownloadTimeout},
		bucket:     opts.Bucket,
		urlTTL:     ttl,
		log:        log,
	}, nil
}

// Bucket returns the default bucket name.
func (g *Gateway) Bucket() string {
	return g.bucket
}

// Upload transfers the local file to key and returns a fresh read URL with the
// default expiry.
func (g *Gateway) Upload(ctx context.Context, localPath, key string) (core.AccessURL, error) {
	return g.UploadWithTTL(ctx, localPath, key, g.urlTTL)
}

// UploadWithTTL is Upload with a caller-chosen URL expiry.
func (g *Gateway) UploadWithTTL(
	ctx context.Context,
	localPath, key string,
	ttl time.Duration,
) (core.AccessURL, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return core.AccessURL{}, fmt.Errorf("failed to open upload source '%s': %w", localPath, err)
	}
	defer file.Close()

	_, err = g.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentTypeFor(key)),
	})
	if err != nil {
		g.log.Error("Failed to upload %s to s3://%s/%s: %v", localPath, g.bucket, key, err)

		return core.AccessURL{}, classify(err, objectTarget(g.bucket, key))
	}

	g.log.Info("File uploaded to s3://%s/%s", g.bucket, key)

	return g.IssueAccessURL(key, core.OperationGet, ttl)
}

// Download fetches the object addressed by locator into localPath.
func (g *Gateway) Download(ctx context.Context, locator core.Locator, localPath string) (string, error) {
	if locator.Kind == core.LocatorURL {
		return g.fetchURL(ctx, locator, localPath)
	}

	bucket, key := g.resolve(locator)
	target := objectTarget(bucket, key)

	file, err := os.OpenFile(localPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return "", fmt.Errorf("failed to create download target '%s': %w", localPath, err)
	}

	_, downloadErr := g.downloader.DownloadWithContext(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	closeErr := file.Close()

	if downloadErr != nil {
		g.removePartial(localPath)
		g.log.Error("Failed to download %s: %v", target, downloadErr)

		return "", classify(downloadErr, target)
	}

	if closeErr != nil {
		g.removePartial(localPath)

		return "", fmt.Errorf("failed to close download target '%s': %w", localPath, closeErr)
	}

	g.log.Info("File downloaded from %s to: %s", target, localPath)

	return localPath, nil
}

// IssueAccessURL pre-signs op on key in the default bucket.
func (g *Gateway) IssueAccessURL(key string, op core.Operation, ttl time.Duration) (core.AccessURL, error) {
	if ttl <= 0 {
		ttl = g.urlTTL
	}

	var (
		signed string
		err    error
	)

	switch op {
	case core.OperationPut:
		request, _ := g.client.PutObjectRequest(&s3.PutObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(key),
		})
		signed, err = request.Presign(ttl)
	case core.OperationGet:
		request, _ := g.client.GetObjectRequest(&s3.GetObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(key),
		})
		signed, err = request.Presign(ttl)
	default:
		return core.AccessURL{}, fmt.Errorf("unsupported access url operation %q", op)
	}

	if err != nil {
		return core.AccessURL{}, classify(err, objectTarget(g.bucket, key))
	}

	g.log.Info("Generated pre-signed URL for %s (expires in %s)", key, ttl)

	return core.AccessURL{URL: signed, Key: key, ExpiresAt: time.Now().Add(ttl)}, nil
}

// ListUnder lists every object under prefix with a fresh read URL each.
func (g *Gateway) ListUnder(ctx context.Context, prefix string) ([]core.ObjectInfo, error) {
	var (
		objects []core.ObjectInfo
		signErr error
	)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	}

	err := g.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, object := range page.Contents {
			key := aws.StringValue(object.Key)
			if strings.HasSuffix(key, placeholderName) {
				continue
			}

			access, err := g.IssueAccessURL(key, core.OperationGet, g.urlTTL)
			if err != nil {
				signErr = err

				return false
			}

			objects = append(objects, core.ObjectInfo{
				Key:          key,
				Size:         aws.Int64Value(object.Size),
				LastModified: aws.TimeValue(object.LastModified),
				URL:          access.URL,
			})
		}

		return true
	})
	if err != nil {
		return nil, classify(err, objectTarget(g.bucket, prefix))
	}

	if signErr != nil {
		return nil, signErr
	}

	g.log.Info("Found %d objects under %s", len(objects), prefix)

	return objects, nil
}

// CheckReachable reports whether the default bucket answers a HEAD request.
func (g *Gateway) CheckReachable(ctx context.Context) bool {
	_, err := g.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)})
	if err == nil {
		g.log.Info("Bucket %s is accessible", g.bucket)

		return true
	}

	classified := classify(err, g.bucket)

	switch {
	case errors.Is(classified, core.ErrObjectNotFound):
		g.log.Error("Bucket %s not found", g.bucket)
	case errors.Is(classified, core.ErrAccessDenied):
		g.log.Error("Access denied to bucket %s", g.bucket)
	default:
		g.log.Error("Bucket access check failed: %v", classified)
	}

	return false
}

// Health adapts CheckReachable to an error-returning health check.
func (g *Gateway) Health(ctx context.Context) error {
	if !g.CheckReachable(ctx) {
		return fmt.Errorf("%w: bucket %s unreachable", core.ErrTransport, g.bucket)
	}

	return nil
}

// EnsureLayout writes empty placeholder objects so the standard prefixes exist.
func (g *Gateway) EnsureLayout(ctx context.Context) error {
	for _, prefix := range []string{core.VoicesPrefix, core.OutputPrefix, core.SubtitlesPrefix} {
		key := prefix + placeholderName

		_, err := g.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(g.bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(""),
			ContentType: aws.String("text/plain"),
		})
		if err != nil {
			return classify(err, objectTarget(g.bucket, key))
		}

		g.log.Info("Created prefix: %s", prefix)
	}

	return nil
}

// resolve picks the bucket and key for a non-URL locator.
func (g *Gateway) resolve(locator core.Locator) (string, string) {
	if locator.Kind == core.LocatorObject && locator.Bucket != "" {
		return locator.Bucket, locator.Key
	}

	return g.bucket, locator.Key
}

// fetchURL downloads a pre-authorized URL without touching bucket or key.
func (g *Gateway) fetchURL(ctx context.Context, locator core.Locator, localPath string) (string, error) {
	target := locator.String()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, locator.URL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrInvalidLocator, err)
	}

	response, err := g.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", core.ErrTransport, target, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", classifyStatus(response.StatusCode, target)
	}

	file, err := os.OpenFile(localPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return "", fmt.Errorf("failed to create download target '%s': %w", localPath, err)
	}

	_, copyErr := io.Copy(file, response.Body)
	closeErr := file.Close()

	if copyErr != nil {
		g.removePartial(localPath)

		return "", fmt.Errorf("%w: %s: %w", core.ErrTransport, target, copyErr)
	}

	if closeErr != nil {
		g.removePartial(localPath)

		return "", fmt.Errorf("failed to close download target '%s': %w", localPath, closeErr)
	}

	g.log.Info("File downloaded from URL %s to: %s", target, localPath)

	return localPath, nil
}

func (g *Gateway) removePartial(localPath string) {
	removeErr := os.Remove(localPath)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		g.log.Warn("Failed to remove partial download '%s': %v", localPath, removeErr)
	}
}

func objectTarget(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

func contentTypeFor(key string) string {
	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(key))]
	if !ok {
		return "application/octet-stream"
	}

	return contentType
}
