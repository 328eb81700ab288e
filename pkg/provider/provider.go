// Package provider defines abstractions for versioned object-storage
// operations used by the purge pipeline.
//
// Providers implement a minimal surface: sub-prefix discovery, recursive
// versioned enumeration, batched deletion, and bucket lifecycle calls.
// Authentication uses SDK default credential chains - providers should not
// implement custom auth logic.
package provider

import "context"

// ObjectRef identifies one deletable unit in a versioned bucket: an object
// key plus its version identifier. Delete markers are included, since
// removing a key completely means removing its markers too.
//
// ObjectRefs are immutable once produced by enumeration.
type ObjectRef struct {
	// Key is the full object key (path) in the bucket.
	Key string

	// VersionID is the version identifier for this key.
	// "null" for objects written before versioning was enabled.
	VersionID string

	// DeleteMarker is true if this ref is a delete marker rather
	// than an object version.
	DeleteMarker bool
}

// Provider abstracts the storage calls the purge pipeline requires.
//
// Implementations are bound to a single bucket and should:
//   - Use SDK default credential chains (AWS default config)
//   - Support pagination via markers/continuation tokens
//   - Be safe for concurrent use
type Provider interface {
	// ListTopLevel returns one delimiter-bounded level under prefix:
	// the immediate child prefixes plus whether any objects live
	// directly at this level.
	ListTopLevel(ctx context.Context, prefix string) (*TopLevelListing, error)

	// ListVersions returns a page of object versions and delete markers
	// under the given prefix. Use the markers from VersionListResult for
	// subsequent pages. The sequence is finite and not restartable.
	ListVersions(ctx context.Context, opts VersionListOptions) (*VersionListResult, error)

	// BatchDelete removes the given refs in a single bulk call.
	// Failure is reported as a single outcome for the whole batch:
	// if any ref in the batch is rejected, BatchDelete returns an error.
	BatchDelete(ctx context.Context, refs []ObjectRef) error

	// EnableVersioning turns on bucket versioning. Versioned listing and
	// deletion require it; enabling it on an already-versioned bucket is
	// a no-op on the storage side.
	EnableVersioning(ctx context.Context) error

	// HeadBucket verifies the bucket exists and is accessible.
	// Returns ErrBucketNotFound or ErrAccessDenied otherwise.
	HeadBucket(ctx context.Context) error

	// DeleteBucket removes the (empty) bucket.
	DeleteBucket(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// TopLevelListing is the result of a one-level delimiter listing.
type TopLevelListing struct {
	// CommonPrefixes are the immediate child prefixes under the
	// requested prefix.
	CommonPrefixes []string

	// HasObjects is true when keys exist directly at this level,
	// outside any common prefix.
	HasObjects bool
}

// VersionListOptions configures a ListVersions operation.
type VersionListOptions struct {
	// Prefix filters results to keys starting with this value.
	Prefix string

	// KeyMarker resumes listing after this key. Empty starts from
	// the beginning.
	KeyMarker string

	// VersionIDMarker resumes listing after this version of KeyMarker.
	VersionIDMarker string

	// Delimiter restricts the listing to keys directly at the prefix
	// level (no delimiter in the remainder). Empty lists recursively.
	Delimiter string

	// MaxKeys limits the number of refs returned per page.
	// Zero uses the provider default (typically 1000).
	MaxKeys int
}

// VersionListResult contains a page of refs from a ListVersions operation.
type VersionListResult struct {
	// Refs contains object versions and delete markers, in the order
	// the storage service returned them.
	Refs []ObjectRef

	// NextKeyMarker and NextVersionIDMarker resume the listing.
	NextKeyMarker       string
	NextVersionIDMarker string

	// IsTruncated indicates whether more results are available.
	IsTruncated bool
}

// ProviderType identifies a storage provider.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or S3-compatible storage.
	ProviderS3 ProviderType = "s3"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
