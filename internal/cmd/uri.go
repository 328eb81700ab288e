package cmd

import (
	"errors"
	"fmt"
	"strings"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedProvider indicates the URI scheme is not supported.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingBucket indicates the URI is missing a bucket name.
	ErrMissingBucket = errors.New("missing bucket name")
)

// ObjectURI represents a parsed storage URI.
//
// Example URIs:
//   - s3://bucket
//   - s3://bucket/prefix/
type ObjectURI struct {
	// Provider is the storage provider (e.g., "s3").
	Provider string

	// Bucket is the bucket name.
	Bucket string

	// Prefix is the key prefix. Empty means the bucket root.
	// Non-empty prefixes always carry a trailing slash.
	Prefix string
}

// String returns the URI in canonical form.
func (u *ObjectURI) String() string {
	if u.Prefix != "" {
		return fmt.Sprintf("%s://%s/%s", u.Provider, u.Bucket, u.Prefix)
	}
	return fmt.Sprintf("%s://%s/", u.Provider, u.Bucket)
}

// IsBucketRoot returns true if the URI targets the whole bucket.
func (u *ObjectURI) IsBucketRoot() bool {
	return u.Prefix == ""
}

// ParseURI parses a storage URI into its components.
//
// Supported formats:
//   - s3://bucket
//   - s3://bucket/
//   - s3://bucket/prefix
//   - s3://bucket/prefix/
//
// Purge targets are directory-like: a prefix without a trailing slash is
// normalized to carry one, so s3://bucket/logs never matches logs-archive/.
// Returns an error if the URI is malformed or uses an unsupported provider.
func ParseURI(uri string) (*ObjectURI, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	// Parse manually; url.Parse mangles keys containing characters it
	// treats as query or fragment delimiters.
	// Expected format: scheme://bucket/prefix
	schemeEnd := strings.Index(uri, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected s3://...)", ErrInvalidURI)
	}

	provider := strings.ToLower(uri[:schemeEnd])
	if provider != "s3" {
		return nil, fmt.Errorf("%w: %s (supported: s3)", ErrUnsupportedProvider, provider)
	}

	// Everything after ://
	remainder := uri[schemeEnd+3:]
	if remainder == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}

	// Split bucket from prefix at first /
	var bucket, prefix string
	slashIdx := strings.Index(remainder, "/")
	if slashIdx == -1 {
		bucket = remainder
	} else {
		bucket = remainder[:slashIdx]
		prefix = remainder[slashIdx+1:]
	}

	if bucket == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}
	if strings.ContainsAny(bucket, " \t") {
		return nil, fmt.Errorf("%w: invalid bucket name %q", ErrInvalidURI, bucket)
	}

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &ObjectURI{
		Provider: provider,
		Bucket:   bucket,
		Prefix:   prefix,
	}, nil
}
