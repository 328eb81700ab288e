// Package manifest provides loading and validation of gonuke job manifests.
//
// A job manifest is a YAML or JSON file that configures all aspects of a
// purge job: provider connection, target, purge behavior, and output.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	connection:
//	  provider: s3
//	  bucket: my-data-bucket
//	  region: us-east-1
//	target:
//	  prefix: staging/
//	purge:
//	  batch_size: 100
//	  max_threads: 100
//	output:
//	  destination: stdout
package manifest

// Manifest represents a validated job manifest.
//
// Required fields are Version and Connection. Target, Purge, and Output are
// optional with sensible defaults.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Connection configures the cloud storage provider.
	Connection ConnectionConfig `json:"connection" yaml:"connection"`

	// Target selects what to purge (optional; defaults to the bucket root).
	Target TargetConfig `json:"target,omitempty" yaml:"target,omitempty"`

	// Purge configures purge behavior (optional).
	Purge PurgeConfig `json:"purge,omitempty" yaml:"purge,omitempty"`

	// Output configures audit output destination (optional).
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`
}

// ConnectionConfig configures the cloud storage provider connection.
type ConnectionConfig struct {
	// Provider is the storage provider type. Currently only "s3" is supported.
	Provider string `json:"provider" yaml:"provider"`

	// Bucket is the bucket name to purge.
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region (e.g., "us-east-1"). Optional.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint is a custom endpoint URL for S3-compatible storage. Optional.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Profile is the AWS credential profile name. Optional.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// TargetConfig selects the deletion target within the bucket.
type TargetConfig struct {
	// Prefix is the key prefix to purge. Empty purges the bucket root.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// DeleteBucket removes the bucket after a bucket-root purge.
	DeleteBucket bool `json:"delete_bucket,omitempty" yaml:"delete_bucket,omitempty"`
}

// PurgeConfig configures purge behavior.
type PurgeConfig struct {
	// BatchSize is the number of refs per bulk delete call. Default: 100.
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`

	// MaxQueue is the work queue capacity. Default: 10000.
	MaxQueue int `json:"max_queue,omitempty" yaml:"max_queue,omitempty"`

	// MaxThreads caps the combined worker pool size. Default: 100.
	MaxThreads int `json:"max_threads,omitempty" yaml:"max_threads,omitempty"`

	// DryRun logs every ref instead of deleting.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// OutputConfig configures audit output.
type OutputConfig struct {
	// Destination is "stdout" or a file path (optionally "file:" prefixed).
	// Empty disables JSONL audit output.
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Defaults applied by ApplyDefaults.
const (
	// DefaultBatchSize is the default bulk delete batch size.
	DefaultBatchSize = 100

	// MaxBatchSize is the largest batch a single bulk delete call accepts.
	MaxBatchSize = 1000

	// DefaultMaxQueue is the default work queue capacity.
	DefaultMaxQueue = 10000

	// DefaultMaxThreads is the default worker pool ceiling.
	DefaultMaxThreads = 100
)

// ApplyDefaults fills optional fields with their defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Purge.BatchSize <= 0 {
		m.Purge.BatchSize = DefaultBatchSize
	}
	if m.Purge.MaxQueue <= 0 {
		m.Purge.MaxQueue = DefaultMaxQueue
	}
	if m.Purge.MaxThreads <= 0 {
		m.Purge.MaxThreads = DefaultMaxThreads
	}
}
