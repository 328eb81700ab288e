// Package output provides JSONL audit output for purge runs.
//
// Output is structured as typed record envelopes containing deleted
// objects, errors, progress updates, and a final summary. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: gonuke.<type>.v<version>
const (
	// TypeDeleted identifies deleted-object records.
	TypeDeleted = "gonuke.deleted.v1"

	// TypeError identifies error records.
	TypeError = "gonuke.error.v1"

	// TypeProgress identifies progress update records.
	TypeProgress = "gonuke.progress.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "gonuke.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific payload
// in the Data field. The type field determines how to interpret Data.
type Record struct {
	// Type identifies the record type (e.g., "gonuke.deleted.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this purge run.
	JobID string `json:"job_id"`

	// Provider identifies the storage provider (e.g., "s3").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// DeletedRecord is the data payload for one deleted object version.
//
// In dry-run mode the record is still emitted, flagged accordingly, and no
// delete call was made.
type DeletedRecord struct {
	// Key is the full object key (path) in the bucket.
	Key string `json:"key"`

	// VersionID is the deleted version identifier.
	VersionID string `json:"version_id"`

	// DeleteMarker is true if the deleted ref was a delete marker.
	DeleteMarker bool `json:"delete_marker,omitempty"`

	// DryRun is true if no delete call was actually issued.
	DryRun bool `json:"dry_run,omitempty"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than failing the run, matching the
// discard-on-failure deletion policy.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Prefix is the sub-prefix being listed when the error occurred.
	Prefix string `json:"prefix,omitempty"`

	// BatchSize is the number of refs lost with a failed batch.
	BatchSize int `json:"batch_size,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeBatchDeleteFailed indicates a discarded delete batch.
	ErrCodeBatchDeleteFailed = "BATCH_DELETE_FAILED"

	// ErrCodeListFailed indicates an abandoned sub-prefix listing.
	ErrCodeListFailed = "LIST_FAILED"
)

// ProgressRecord is the data payload for sampled progress updates.
type ProgressRecord struct {
	// Found is the number of refs produced by enumeration so far.
	Found int64 `json:"found"`

	// Deleted is the number of refs deleted so far.
	Deleted int64 `json:"deleted"`
}

// SummaryRecord is the data payload for the final run summary.
type SummaryRecord struct {
	// Found is the total number of refs enumerated.
	Found int64 `json:"found"`

	// Deleted is the total number of refs deleted.
	Deleted int64 `json:"deleted"`

	// SubPrefixes is the number of sub-prefixes the run partitioned
	// enumeration across.
	SubPrefixes int `json:"sub_prefixes"`

	// Errors is the count of non-fatal errors (failed batches and
	// abandoned listings).
	Errors int64 `json:"errors"`

	// BucketDeleted is true when bucket cleanup removed the bucket.
	BucketDeleted bool `json:"bucket_deleted,omitempty"`

	// Duration is the total run time.
	Duration time.Duration `json:"duration"`

	// DurationHuman is Duration in human-readable form.
	DurationHuman string `json:"duration_human"`

	// DryRun is true if the run made no delete calls.
	DryRun bool `json:"dry_run,omitempty"`
}

// ErrWriterClosed indicates a write was attempted after Close.
var ErrWriterClosed = errors.New("output writer closed")

// WriteError wraps failures from the output layer.
type WriteError struct {
	// Op is the operation that failed (e.g., "marshal_data", "write").
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return "output " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Err
}
