// Package reaper implements the concurrent purge pipeline for versioned
// buckets.
//
// The reaper coordinates two worker pools coupled only through a bounded
// work queue and a pair of atomic counters:
//   - Listers: enumerate object versions per sub-prefix (parallelized by
//     one-level prefix discovery)
//   - Deleters: drain the queue into batches and issue bulk deletes
//
// The bounded queue provides backpressure so enumeration of very large
// buckets cannot outrun deletion and exhaust memory.
package reaper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/gonuke/pkg/output"
	"github.com/3leaps/gonuke/pkg/provider"
)

// Config configures purge behavior.
type Config struct {
	// Prefix is the key prefix to purge. Empty purges the whole bucket.
	Prefix string

	// BatchSize is the number of refs per bulk delete call.
	// Default: 100
	BatchSize int

	// MaxQueue is the work queue capacity. Listers block once this many
	// refs are waiting for deletion.
	// Default: 10000
	MaxQueue int

	// MaxThreads caps the combined size of the lister and deleter pools.
	// Must be at least 3 so the reclamped split keeps one lister.
	// Default: 100
	MaxThreads int

	// PageSize is the listing page size. Zero uses the provider default.
	PageSize int

	// DryRun logs every ref instead of deleting. No delete or
	// bucket-delete call is made.
	DryRun bool

	// DeleteBucket removes the bucket after the purge. Only effective
	// when Prefix is empty (bucket-root purge).
	DeleteBucket bool

	// SampleRate is the per-flush probability of emitting a progress
	// line. Progress is approximate by design.
	// Default: 0.01
	SampleRate float64
}

// MaxBatchSize is the largest batch a single bulk delete call accepts.
// Larger batches would be rejected wholesale by the storage service, and
// with discard-on-failure every flush would then silently delete nothing.
const MaxBatchSize = 1000

// DefaultConfig returns the default purge configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:  100,
		MaxQueue:   10000,
		MaxThreads: 100,
		SampleRate: 0.01,
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return &ConfigError{Field: "BatchSize", Message: "must be positive"}
	}
	if c.BatchSize > MaxBatchSize {
		return &ConfigError{Field: "BatchSize", Message: "must be at most 1000 (bulk delete limit)"}
	}
	if c.MaxQueue <= 0 {
		return &ConfigError{Field: "MaxQueue", Message: "must be positive"}
	}
	if c.MaxThreads < 3 {
		return &ConfigError{Field: "MaxThreads", Message: "must be at least 3"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "reaper config: " + e.Field + ": " + e.Message
}

// Summary contains aggregate statistics from a completed purge.
type Summary struct {
	// Found is the total number of refs produced by enumeration.
	Found int64

	// Deleted is the total number of refs covered by successful batch
	// deletes (or logged, in dry-run). Deleted <= Found always; they are
	// equal only if no batch failed.
	Deleted int64

	// SubPrefixes is the number of sub-prefixes enumeration was
	// partitioned across.
	SubPrefixes int

	// ListWorkers and DeleteWorkers are the pool sizes the run used.
	ListWorkers   int
	DeleteWorkers int

	// Errors counts non-fatal failures: discarded batches and abandoned
	// sub-prefix listings.
	Errors int64

	// BucketDeleted is true when bucket cleanup removed the bucket.
	BucketDeleted bool

	// Duration is the total run time.
	Duration time.Duration
}

// Reaper executes one purge run against a versioned bucket.
//
// Reaper is safe for single use only. Create a new Reaper for each run.
type Reaper struct {
	provider provider.Provider
	log      *zap.Logger
	writer   output.Writer
	config   Config

	counters Counters
	errCount atomic.Int64
}

// New creates a new reaper.
//
// Shared run state (counters, logger handle) lives on the Reaper and is
// passed into each worker at spawn time; there are no package-level
// globals. Use WithWriter to attach JSONL audit output.
func New(p provider.Provider, log *zap.Logger, cfg Config) *Reaper {
	// Apply defaults for zero values
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = def.MaxQueue
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = def.MaxThreads
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}

	return &Reaper{
		provider: p,
		log:      log,
		config:   cfg,
	}
}

// WithWriter sets an optional JSONL audit writer.
// Returns the reaper for method chaining.
func (r *Reaper) WithWriter(w output.Writer) *Reaper {
	r.writer = w
	return r
}

// Run executes the purge and returns summary statistics.
//
// The run is strictly linear: enable versioning, discover sub-prefixes,
// run the lister/deleter pools to drain, then optional bucket cleanup.
// Cancelling the context abandons in-flight batches without draining;
// nothing about a cancelled run is resumable.
func (r *Reaper) Run(ctx context.Context) (*Summary, error) {
	startTime := time.Now()

	// Versioned listing and versioned delete require versioning enabled.
	if err := r.provider.EnableVersioning(ctx); err != nil {
		return nil, err
	}

	subPrefixes, err := r.discoverSubPrefixes(ctx)
	if err != nil {
		return nil, err
	}

	listWorkers, deleteWorkers := workerSplit(len(subPrefixes), r.config.MaxThreads)

	summary := &Summary{
		SubPrefixes:   len(subPrefixes),
		ListWorkers:   listWorkers,
		DeleteWorkers: deleteWorkers,
	}

	if len(subPrefixes) == 0 {
		r.log.Info("Nothing to enumerate", zap.String("prefix", r.config.Prefix))
	} else {
		r.log.Info("Starting purge",
			zap.String("prefix", r.config.Prefix),
			zap.Int("sub_prefixes", len(subPrefixes)),
			zap.Int("list_workers", listWorkers),
			zap.Int("delete_workers", deleteWorkers),
			zap.Bool("dry_run", r.config.DryRun))

		if err := r.runPipeline(ctx, subPrefixes, listWorkers, deleteWorkers); err != nil {
			r.finishSummary(summary, startTime)
			return summary, err
		}
	}

	if r.config.DeleteBucket {
		summary.BucketDeleted = r.cleanupBucket(ctx)
	}

	r.finishSummary(summary, startTime)
	r.writeSummary(ctx, summary)

	return summary, nil
}

// discoverSubPrefixes performs the one-level delimiter listing that
// partitions enumeration work.
//
// Keys living directly at the target level have no common prefix and would
// otherwise escape the purge, so when the listing reports direct objects
// the target itself is appended as a final, delimiter-bounded sub-prefix.
func (r *Reaper) discoverSubPrefixes(ctx context.Context) ([]subPrefix, error) {
	listing, err := r.provider.ListTopLevel(ctx, r.config.Prefix)
	if err != nil {
		return nil, err
	}

	subPrefixes := make([]subPrefix, 0, len(listing.CommonPrefixes)+1)
	for _, p := range listing.CommonPrefixes {
		subPrefixes = append(subPrefixes, subPrefix{prefix: p})
	}
	if listing.HasObjects {
		subPrefixes = append(subPrefixes, subPrefix{prefix: r.config.Prefix, directOnly: true})
	}
	return subPrefixes, nil
}

// runPipeline spawns both pools against one shared queue, waits for
// enumeration to finish, closes the queue, and waits for the drain.
func (r *Reaper) runPipeline(ctx context.Context, subPrefixes []subPrefix, listWorkers, deleteWorkers int) error {
	queue := NewQueue(r.config.MaxQueue)

	// Sub-prefixes are a work list: with the reclamped split there are
	// fewer listers than prefixes, and each lister pulls the next prefix
	// when it finishes one.
	prefixCh := make(chan subPrefix, len(subPrefixes))
	for _, p := range subPrefixes {
		prefixCh <- p
	}
	close(prefixCh)

	var deleteWG sync.WaitGroup
	for i := 0; i < deleteWorkers; i++ {
		d := &deleter{
			provider:   r.provider,
			queue:      queue,
			counters:   &r.counters,
			log:        r.log,
			writer:     r.writer,
			batchSize:  r.config.BatchSize,
			dryRun:     r.config.DryRun,
			sampleRate: r.config.SampleRate,
			errCount:   &r.errCount,
		}
		deleteWG.Add(1)
		go func() {
			defer deleteWG.Done()
			d.run(ctx)
		}()
	}

	var listWG sync.WaitGroup
	for i := 0; i < listWorkers; i++ {
		l := &lister{
			provider: r.provider,
			queue:    queue,
			counters: &r.counters,
			log:      r.log,
			writer:   r.writer,
			pageSize: r.config.PageSize,
			errCount: &r.errCount,
		}
		listWG.Add(1)
		go func() {
			defer listWG.Done()
			l.run(ctx, prefixCh)
		}()
	}

	// Enumeration completion is awaited explicitly, separate from drain.
	listWG.Wait()
	queue.Close()
	deleteWG.Wait()

	if err := ctx.Err(); err != nil {
		// Consumers are gone; acknowledge whatever they never pulled so
		// the drain accounting still closes out.
		queue.DiscardPending()
		queue.Join()
		return err
	}

	// The drain barrier: every ref ever enqueued has been pulled and
	// acknowledged. With the queue closed and the deleters exited this
	// returns immediately; it is kept as the explicit completion signal.
	queue.Join()
	return nil
}

// cleanupBucket handles the optional post-drain bucket deletion. Returns
// true only when the bucket was actually removed.
//
// Only a bucket-root purge may remove the bucket; purging s3://bucket/sub/
// leaves the bucket alone regardless of the flag.
func (r *Reaper) cleanupBucket(ctx context.Context) bool {
	if r.config.Prefix != "" {
		r.log.Warn("Ignoring bucket deletion: purge target is a prefix, not the bucket root")
		return false
	}

	listing, err := r.provider.ListTopLevel(ctx, "")
	if err != nil {
		r.log.Warn("Bucket not removed: post-purge listing failed", zap.Error(err))
		return false
	}
	if listing.HasObjects || len(listing.CommonPrefixes) > 0 {
		r.log.Warn("Bucket not removed: still lists contents, storage may be eventually consistent")
		return false
	}

	if r.config.DryRun {
		r.log.Info("Would delete bucket")
		return false
	}

	if err := r.provider.DeleteBucket(ctx); err != nil {
		r.log.Warn("Bucket deletion failed", zap.Error(err))
		return false
	}

	r.log.Info("Bucket deleted")
	return true
}

// finishSummary copies the shared counters into the summary.
func (r *Reaper) finishSummary(summary *Summary, startTime time.Time) {
	summary.Found = r.counters.Found()
	summary.Deleted = r.counters.Deleted()
	summary.Errors = r.errCount.Load()
	summary.Duration = time.Since(startTime)
}

// writeSummary emits the final JSONL summary record.
func (r *Reaper) writeSummary(ctx context.Context, summary *Summary) {
	if r.writer == nil {
		return
	}
	rec := &output.SummaryRecord{
		Found:         summary.Found,
		Deleted:       summary.Deleted,
		SubPrefixes:   summary.SubPrefixes,
		Errors:        summary.Errors,
		BucketDeleted: summary.BucketDeleted,
		Duration:      summary.Duration,
		DurationHuman: summary.Duration.Round(time.Millisecond).String(),
		DryRun:        r.config.DryRun,
	}
	// Best effort - audit output must not fail the purge.
	_ = r.writer.WriteSummary(ctx, rec)
}
