package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/gonuke/pkg/provider"
)

// Provider implements provider.Provider for AWS S3 and S3-compatible storage.
type Provider struct {
	client  *s3.Client
	bucket  string
	maxKeys int
}

// Ensure Provider implements the interface.
var _ provider.Provider = (*Provider)(nil)

// New creates a new S3 provider with the given configuration.
//
// The provider uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "New",
			Provider: provider.ProviderS3,
			Bucket:   cfg.Bucket,
			Err:      err,
		}
	}

	// Build S3 client options
	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}

	// Custom endpoint for S3-compatible stores
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	return &Provider{
		client:  client,
		bucket:  cfg.Bucket,
		maxKeys: maxKeys,
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	// Only apply explicit region if user set one in config.
	// Let SDK resolve from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	// Set profile if specified
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	// Use explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for long-term credentials)
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	awsCfg.Region = resolveRegion(cfg.Region, cfg.Endpoint, awsCfg.Region)

	return awsCfg, nil
}

// ListTopLevel returns one delimiter-bounded level under prefix.
func (p *Provider) ListTopLevel(ctx context.Context, prefix string) (*provider.TopLevelListing, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(int32(p.maxKeys)),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	listing := &provider.TopLevelListing{}

	for {
		output, err := p.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, p.wrapError("ListTopLevel", "", err)
		}

		for _, cp := range output.CommonPrefixes {
			listing.CommonPrefixes = append(listing.CommonPrefixes, aws.ToString(cp.Prefix))
		}
		if len(output.Contents) > 0 {
			listing.HasObjects = true
		}

		if !aws.ToBool(output.IsTruncated) || output.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = output.NextContinuationToken
	}

	return listing, nil
}

// ListVersions returns a page of object versions and delete markers.
func (p *Provider) ListVersions(ctx context.Context, opts provider.VersionListOptions) (*provider.VersionListResult, error) {
	maxKeys := clampMaxKeys(opts.MaxKeys, p.maxKeys)

	input := &s3.ListObjectVersionsInput{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(int32(maxKeys)),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.KeyMarker != "" {
		input.KeyMarker = aws.String(opts.KeyMarker)
	}
	if opts.VersionIDMarker != "" {
		input.VersionIdMarker = aws.String(opts.VersionIDMarker)
	}

	output, err := p.client.ListObjectVersions(ctx, input)
	if err != nil {
		return nil, p.wrapError("ListVersions", opts.Prefix, err)
	}

	refs := make([]provider.ObjectRef, 0, len(output.Versions)+len(output.DeleteMarkers))
	for _, v := range output.Versions {
		refs = append(refs, provider.ObjectRef{
			Key:       aws.ToString(v.Key),
			VersionID: aws.ToString(v.VersionId),
		})
	}
	for _, m := range output.DeleteMarkers {
		refs = append(refs, provider.ObjectRef{
			Key:          aws.ToString(m.Key),
			VersionID:    aws.ToString(m.VersionId),
			DeleteMarker: true,
		})
	}

	result := &provider.VersionListResult{
		Refs:        refs,
		IsTruncated: aws.ToBool(output.IsTruncated),
	}
	if output.NextKeyMarker != nil {
		result.NextKeyMarker = *output.NextKeyMarker
	}
	if output.NextVersionIdMarker != nil {
		result.NextVersionIDMarker = *output.NextVersionIdMarker
	}

	return result, nil
}

// BatchDelete removes the given refs in a single DeleteObjects call.
//
// Per-key errors in the response are collapsed into one batch failure:
// callers treat the whole batch as not deleted.
func (p *Provider) BatchDelete(ctx context.Context, refs []provider.ObjectRef) error {
	if len(refs) == 0 {
		return nil
	}
	if len(refs) > MaxBatchDelete {
		return p.wrapError("BatchDelete", "",
			fmt.Errorf("batch of %d exceeds the DeleteObjects limit of %d", len(refs), MaxBatchDelete))
	}

	objects := make([]types.ObjectIdentifier, 0, len(refs))
	for _, ref := range refs {
		id := types.ObjectIdentifier{Key: aws.String(ref.Key)}
		if ref.VersionID != "" {
			id.VersionId = aws.String(ref.VersionID)
		}
		objects = append(objects, id)
	}

	output, err := p.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(p.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return p.wrapError("BatchDelete", "", err)
	}

	if len(output.Errors) > 0 {
		first := output.Errors[0]
		return &provider.ProviderError{
			Op:       "BatchDelete",
			Provider: provider.ProviderS3,
			Bucket:   p.bucket,
			Key:      aws.ToString(first.Key),
			Err: fmt.Errorf("%w: %d of %d keys failed, first: %s %s",
				provider.ErrBatchRejected, len(output.Errors), len(refs),
				aws.ToString(first.Code), aws.ToString(first.Message)),
		}
	}

	return nil
}

// EnableVersioning turns on bucket versioning.
func (p *Provider) EnableVersioning(ctx context.Context) error {
	_, err := p.client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(p.bucket),
		VersioningConfiguration: &types.VersioningConfiguration{
			Status: types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		return p.wrapError("EnableVersioning", "", err)
	}
	return nil
}

// HeadBucket verifies the bucket exists and is accessible.
func (p *Provider) HeadBucket(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		return p.wrapError("HeadBucket", "", err)
	}
	return nil
}

// DeleteBucket removes the bucket. S3 rejects the call while any object
// version remains.
func (p *Provider) DeleteBucket(ctx context.Context) error {
	_, err := p.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		return p.wrapError("DeleteBucket", "", err)
	}
	return nil
}

// Close releases any resources held by the provider.
// The S3 client doesn't require explicit cleanup, but this satisfies the interface.
func (p *Provider) Close() error {
	return nil
}

// wrapError converts S3 errors to provider errors with appropriate sentinel errors.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderS3,
		Bucket:   p.bucket,
		Key:      key,
		Err:      err,
	}

	// Check for specific S3 error types first
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	}

	// Check smithy API errors for error codes
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "NoSuchKey":
			wrapped.Err = provider.ErrNotFound
		case "NoSuchBucket", "NotFound":
			// HeadBucket reports a missing bucket as a bare NotFound
			wrapped.Err = provider.ErrBucketNotFound
		case "BucketNotEmpty":
			wrapped.Err = provider.ErrBucketNotEmpty
		case "AccessDenied", "Forbidden":
			wrapped.Err = provider.ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = provider.ErrInvalidCredentials
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			wrapped.Err = provider.ErrThrottled
		case "ServiceUnavailable", "InternalError":
			wrapped.Err = provider.ErrProviderUnavailable
		}
		return wrapped
	}

	// Fallback: check error message for common cases
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "NoSuchBucket"):
		wrapped.Err = provider.ErrBucketNotFound
	case strings.Contains(errMsg, "BucketNotEmpty"):
		wrapped.Err = provider.ErrBucketNotEmpty
	case strings.Contains(errMsg, "NotFound") || strings.Contains(errMsg, "404"):
		wrapped.Err = provider.ErrBucketNotFound
	case strings.Contains(errMsg, "AccessDenied") || strings.Contains(errMsg, "Forbidden") || strings.Contains(errMsg, "403"):
		wrapped.Err = provider.ErrAccessDenied
	case strings.Contains(errMsg, "InvalidAccessKeyId") || strings.Contains(errMsg, "SignatureDoesNotMatch"):
		wrapped.Err = provider.ErrInvalidCredentials
	case strings.Contains(errMsg, "SlowDown") || strings.Contains(errMsg, "Throttling") || strings.Contains(errMsg, "429"):
		wrapped.Err = provider.ErrThrottled
	case strings.Contains(errMsg, "ServiceUnavailable") || strings.Contains(errMsg, "503"):
		wrapped.Err = provider.ErrProviderUnavailable
	}

	return wrapped
}

// clampMaxKeys applies defaults and limits to maxKeys values.
// If requested is <= 0, uses providerDefault. Result is clamped to MaxAllowedKeys.
func clampMaxKeys(requested, providerDefault int) int {
	if requested <= 0 {
		requested = providerDefault
	}
	if requested > MaxAllowedKeys {
		return MaxAllowedKeys
	}
	return requested
}

// resolveRegion determines the final region to use after SDK config loading.
//
// The sdkRegion parameter is the region after SDK loading, which already
// incorporates explicit cfgRegion (if set) or env/profile resolution.
// This function only applies the fallback default:
//   - If sdkRegion is still empty AND no custom endpoint, default to us-east-1
//   - For S3-compatible stores (endpoint set), no defaulting occurs
func resolveRegion(cfgRegion, endpoint, sdkRegion string) string {
	// SDK already resolved region (from explicit config, env, or profile)
	if sdkRegion != "" {
		return sdkRegion
	}

	// Only default for AWS S3 (no custom endpoint)
	if endpoint == "" {
		return DefaultAWSRegion
	}

	// S3-compatible: no default, provider may not need region
	return ""
}
