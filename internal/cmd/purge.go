package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/gonuke/internal/observability"
	"github.com/3leaps/gonuke/pkg/manifest"
	"github.com/3leaps/gonuke/pkg/output"
	"github.com/3leaps/gonuke/pkg/provider"
	s3provider "github.com/3leaps/gonuke/pkg/provider/s3"
	"github.com/3leaps/gonuke/pkg/reaper"
)

var purgeCmd = &cobra.Command{
	Use:   "purge [s3://bucket[/prefix]]",
	Short: "Delete every object version under a path",
	Long: `Delete every object version and delete marker under the given path
in a versioned bucket.

The target comes either from a URI argument or from a job manifest
(--job). Enumeration is partitioned across the target's top-level
sub-prefixes and runs in parallel with batched deletion.

Example:
  gonuke purge s3://scratch-bucket --dry-run
  gonuke purge s3://scratch-bucket/tmp/ --batch-size 500
  gonuke purge s3://scratch-bucket --delete-bucket
  gonuke purge --job purge.yaml`,
	Args: cobra.MaximumNArgs(1),
}

var (
	purgeJobPath      string
	purgeDryRun       bool
	purgeBatchSize    int
	purgeMaxQueue     int
	purgeMaxThreads   int
	purgeDeleteBucket bool
	purgeRegion       string
	purgeEndpoint     string
	purgeProfile      string
	purgeOutput       string
)

func init() {
	purgeCmd.RunE = runPurge
	rootCmd.AddCommand(purgeCmd)

	purgeCmd.Flags().StringVarP(&purgeJobPath, "job", "j", "", "Path to job manifest (alternative to the URI argument)")
	purgeCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false, "Log what would be deleted without deleting")
	purgeCmd.Flags().IntVar(&purgeBatchSize, "batch-size", 0, "Refs per bulk delete call (default 100)")
	purgeCmd.Flags().IntVar(&purgeMaxQueue, "max-queue", 0, "Work queue capacity (default 10000)")
	purgeCmd.Flags().IntVar(&purgeMaxThreads, "max-threads", 0, "Combined worker pool ceiling (default 100)")
	purgeCmd.Flags().BoolVar(&purgeDeleteBucket, "delete-bucket", false, "Delete the bucket after a bucket-root purge")
	purgeCmd.Flags().StringVar(&purgeRegion, "region", "", "AWS region")
	purgeCmd.Flags().StringVar(&purgeEndpoint, "endpoint", "", "Custom endpoint for S3-compatible storage")
	purgeCmd.Flags().StringVar(&purgeProfile, "profile", "", "AWS credential profile")
	purgeCmd.Flags().StringVarP(&purgeOutput, "output", "o", "", "JSONL audit destination (stdout or file path)")

	_ = viper.BindPFlag("purge.batch_size", purgeCmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("purge.max_queue", purgeCmd.Flags().Lookup("max-queue"))
	_ = viper.BindPFlag("purge.max_threads", purgeCmd.Flags().Lookup("max-threads"))
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := buildManifest(args)
	if err != nil {
		observability.CLILogger.Error("Invalid purge job", zap.Error(err))
		return err
	}

	observability.CLILogger.Debug("Resolved purge job",
		zap.String("bucket", m.Connection.Bucket),
		zap.String("prefix", m.Target.Prefix),
		zap.Bool("dry_run", m.Purge.DryRun),
		zap.Bool("delete_bucket", m.Target.DeleteBucket))

	return executePurge(ctx, m)
}

// buildManifest resolves the job either from --job or from the URI
// argument plus flags. Flags override manifest values when both are given.
func buildManifest(args []string) (*manifest.Manifest, error) {
	var m *manifest.Manifest

	if purgeJobPath != "" {
		loaded, err := manifest.Load(purgeJobPath)
		if err != nil {
			return nil, err
		}
		m = loaded
	} else {
		if len(args) == 0 {
			return nil, errors.New("either a target URI or --job is required")
		}
		uri, err := ParseURI(args[0])
		if err != nil {
			return nil, err
		}
		m = &manifest.Manifest{
			Version: manifest.SupportedVersion,
			Connection: manifest.ConnectionConfig{
				Provider: uri.Provider,
				Bucket:   uri.Bucket,
			},
			Target: manifest.TargetConfig{Prefix: uri.Prefix},
		}
		m.ApplyDefaults()
	}

	// Flag and environment overrides.
	if purgeRegion != "" {
		m.Connection.Region = purgeRegion
	}
	if purgeEndpoint != "" {
		m.Connection.Endpoint = purgeEndpoint
	}
	if purgeProfile != "" {
		m.Connection.Profile = purgeProfile
	}
	if purgeDryRun {
		m.Purge.DryRun = true
	}
	if purgeDeleteBucket {
		m.Target.DeleteBucket = true
	}
	// Tuning overrides apply only when set explicitly. viper.GetInt alone
	// would report its registered default here and silently clobber the
	// manifest's values; IsSet excludes defaults and unchanged flags.
	if purgeCmd.Flags().Changed("batch-size") {
		m.Purge.BatchSize = purgeBatchSize
	} else if viper.IsSet("purge.batch_size") {
		m.Purge.BatchSize = viper.GetInt("purge.batch_size")
	}
	if purgeCmd.Flags().Changed("max-queue") {
		m.Purge.MaxQueue = purgeMaxQueue
	} else if viper.IsSet("purge.max_queue") {
		m.Purge.MaxQueue = viper.GetInt("purge.max_queue")
	}
	if purgeCmd.Flags().Changed("max-threads") {
		m.Purge.MaxThreads = purgeMaxThreads
	} else if viper.IsSet("purge.max_threads") {
		m.Purge.MaxThreads = viper.GetInt("purge.max_threads")
	}
	if purgeOutput != "" {
		m.Output.Destination = purgeOutput
	}

	if m.Target.DeleteBucket && m.Target.Prefix != "" {
		observability.CLILogger.Warn("--delete-bucket ignored: target is a prefix, not the bucket root")
		m.Target.DeleteBucket = false
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// executePurge runs the actual purge job.
func executePurge(ctx context.Context, m *manifest.Manifest) error {
	jobID := uuid.New().String()

	prov, err := createProvider(ctx, m)
	if err != nil {
		observability.CLILogger.Error("Failed to create storage provider", zap.Error(err))
		return err
	}
	defer func() { _ = prov.Close() }()

	// Startup precondition: an unresolvable bucket fails the run before
	// any worker is spawned. Everything after this is best-effort.
	if err := prov.HeadBucket(ctx); err != nil {
		switch {
		case provider.IsBucketNotFound(err):
			observability.CLILogger.Error("Bucket not found",
				zap.String("bucket", m.Connection.Bucket))
		case provider.IsAccessDenied(err):
			observability.CLILogger.Error("Bucket access denied",
				zap.String("bucket", m.Connection.Bucket))
		default:
			observability.CLILogger.Error("Bucket check failed", zap.Error(err))
		}
		return err
	}

	writer, cleanup, err := createWriter(m, jobID)
	if err != nil {
		observability.CLILogger.Error("Failed to create audit output", zap.Error(err))
		return err
	}
	defer cleanup()

	cfg := reaper.Config{
		Prefix:       m.Target.Prefix,
		BatchSize:    m.Purge.BatchSize,
		MaxQueue:     m.Purge.MaxQueue,
		MaxThreads:   m.Purge.MaxThreads,
		DryRun:       m.Purge.DryRun,
		DeleteBucket: m.Target.DeleteBucket,
	}
	if err := cfg.Validate(); err != nil {
		observability.CLILogger.Error("Invalid purge configuration", zap.Error(err))
		return err
	}

	r := reaper.New(prov, observability.CLILogger, cfg)
	if writer != nil {
		r.WithWriter(writer)
	}

	observability.CLILogger.Info("Starting purge job",
		zap.String("job_id", jobID),
		zap.String("bucket", m.Connection.Bucket),
		zap.String("prefix", m.Target.Prefix),
		zap.Bool("dry_run", cfg.DryRun))

	summary, err := r.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			fields := []zap.Field{zap.String("job_id", jobID)}
			if summary != nil {
				fields = append(fields, zap.Int64("deleted", summary.Deleted), zap.Int64("found", summary.Found))
			}
			observability.CLILogger.Warn("Purge cancelled", fields...)
			return err
		}
		observability.CLILogger.Error("Purge failed",
			zap.String("job_id", jobID),
			zap.Error(err))
		return err
	}

	// Individual batch failures are reported here, not as exit status.
	observability.CLILogger.Info("Purge completed",
		zap.String("job_id", jobID),
		zap.Int64("found", summary.Found),
		zap.Int64("deleted", summary.Deleted),
		zap.Int("sub_prefixes", summary.SubPrefixes),
		zap.Int64("errors", summary.Errors),
		zap.Bool("bucket_deleted", summary.BucketDeleted),
		zap.Duration("duration", summary.Duration))

	return nil
}

// createProvider creates a storage provider from the job configuration.
func createProvider(ctx context.Context, m *manifest.Manifest) (provider.Provider, error) {
	cfg := s3provider.Config{
		Bucket:   m.Connection.Bucket,
		Region:   m.Connection.Region,
		Endpoint: m.Connection.Endpoint,
		Profile:  m.Connection.Profile,
		// Force path-style URLs when custom endpoint is set.
		// S3-compatible services (moto, MinIO, etc.) require this.
		ForcePathStyle: m.Connection.Endpoint != "",
	}
	return s3provider.New(ctx, cfg)
}

// createWriter creates the JSONL audit writer from the job configuration.
// Returns a nil writer when audit output is disabled, plus a cleanup
// function and any error.
func createWriter(m *manifest.Manifest, jobID string) (output.Writer, func(), error) {
	dest := m.Output.Destination

	if dest == "" {
		return nil, func() {}, nil
	}
	if dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, jobID, m.Connection.Provider)
		return w, func() { _ = w.Close() }, nil
	}

	// Handle file: prefix
	path := strings.TrimPrefix(dest, "file:")

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create audit output file %s: %w", path, err)
	}

	w := output.NewJSONLWriter(f, jobID, m.Connection.Provider)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}
