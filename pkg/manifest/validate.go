package manifest

import (
	"fmt"
	"strings"
)

// SupportedVersion is the manifest schema version this build accepts.
const SupportedVersion = "1.0"

// ValidationError describes a manifest field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest: %s: %s", e.Field, e.Message)
}

// Validate checks required fields and value constraints.
//
// Validation runs before defaults are applied, so zero values in optional
// fields are accepted here and filled in by ApplyDefaults.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return &ValidationError{Field: "version", Message: "required"}
	}
	if m.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %q (supported: %s)", m.Version, SupportedVersion),
		}
	}

	if m.Connection.Provider == "" {
		return &ValidationError{Field: "connection.provider", Message: "required"}
	}
	if m.Connection.Provider != "s3" {
		return &ValidationError{
			Field:   "connection.provider",
			Message: fmt.Sprintf("unsupported provider %q (supported: s3)", m.Connection.Provider),
		}
	}
	if m.Connection.Bucket == "" {
		return &ValidationError{Field: "connection.bucket", Message: "required"}
	}

	if m.Target.Prefix != "" && strings.HasPrefix(m.Target.Prefix, "/") {
		return &ValidationError{Field: "target.prefix", Message: "must not start with /"}
	}
	if m.Target.DeleteBucket && m.Target.Prefix != "" {
		return &ValidationError{
			Field:   "target.delete_bucket",
			Message: "only allowed when target.prefix is empty (bucket-root purge)",
		}
	}

	if m.Purge.BatchSize < 0 {
		return &ValidationError{Field: "purge.batch_size", Message: "must not be negative"}
	}
	if m.Purge.BatchSize > MaxBatchSize {
		return &ValidationError{
			Field:   "purge.batch_size",
			Message: fmt.Sprintf("must be at most %d (bulk delete limit)", MaxBatchSize),
		}
	}
	if m.Purge.MaxQueue < 0 {
		return &ValidationError{Field: "purge.max_queue", Message: "must not be negative"}
	}
	if m.Purge.MaxThreads != 0 && m.Purge.MaxThreads < 3 {
		return &ValidationError{Field: "purge.max_threads", Message: "must be at least 3"}
	}

	return nil
}
