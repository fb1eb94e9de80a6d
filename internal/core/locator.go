package core

import (
	"fmt"
	"net/url"
	"strings"
)

// LocatorKind tags the addressing form of a Locator.
type LocatorKind int

const (
	// LocatorKey is a bare key in the gateway's default bucket.
	LocatorKey LocatorKind = iota
	// LocatorObject is an explicit bucket and key (s3://bucket/key).
	LocatorObject
	// LocatorURL is a pre-authorized network URL fetched as-is.
	LocatorURL
)

const objectScheme = "s3://"

// String returns the kind name used in logs.
func (k LocatorKind) String() string {
	switch k {
	case LocatorObject:
		return "object"
	case LocatorURL:
		return "url"
	default:
		return "key"
	}
}

// Locator references stored content. Its kind is decided once by ParseLocator.
type Locator struct {
	Kind   LocatorKind
	Bucket string
	Key    string
	URL    string
}

// ParseLocator classifies raw as an object path, a network URL, or a bare key,
// in that order.
func ParseLocator(raw string) (Locator, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Locator{}, fmt.Errorf("%w: empty locator", ErrInvalidLocator)
	}

	if rest, ok := strings.CutPrefix(trimmed, objectScheme); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Locator{}, fmt.Errorf("%w: missing bucket in %q", ErrInvalidLocator, raw)
		}

		if key == "" {
			return Locator{}, fmt.Errorf("%w: missing key in %q", ErrInvalidLocator, raw)
		}

		return Locator{Kind: LocatorObject, Bucket: bucket, Key: key}, nil
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Host == "" {
			return Locator{}, fmt.Errorf("%w: malformed url %q", ErrInvalidLocator, raw)
		}

		return Locator{Kind: LocatorURL, URL: trimmed}, nil
	}

	return Locator{Kind: LocatorKey, Key: strings.TrimPrefix(trimmed, "/")}, nil
}

// String renders the locator for logs. URLs are reduced to scheme and host so
// signatures do not end up in log files.
func (l Locator) String() string {
	switch l.Kind {
	case LocatorURL:
		parsed, err := url.Parse(l.URL)
		if err != nil {
			return "url"
		}

		return parsed.Scheme + "://" + parsed.Host + parsed.Path
	case LocatorObject:
		return objectScheme + l.Bucket + "/" + l.Key
	default:
		return l.Key
	}
}
