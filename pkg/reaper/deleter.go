package reaper

import (
	"context"
	"math/rand/v2"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/3leaps/gonuke/pkg/output"
	"github.com/3leaps/gonuke/pkg/provider"
)

// deleter drains the work queue into batches and issues bulk deletes.
//
// Failure policy is discard-on-failure: a failed batch is dropped with one
// warning, no retry and no re-enqueue. This deliberately favors throughput
// over completeness; the only trace of the loss is that Deleted does not
// advance. Every pulled ref is acknowledged with Done whether or not its
// batch succeeded, so queue drain reflects "processed", not "deleted".
type deleter struct {
	provider   provider.Provider
	queue      *Queue
	counters   *Counters
	log        *zap.Logger
	writer     output.Writer
	batchSize  int
	dryRun     bool
	sampleRate float64
	errCount   *atomic.Int64
}

// run loops until the queue is closed and drained. The final partial batch
// is flushed explicitly on close; the flush-when-empty check below is only
// a latency optimization for mostly-idle queues, not the termination
// mechanism.
func (d *deleter) run(ctx context.Context) {
	batch := make([]provider.ObjectRef, 0, d.batchSize)

	for {
		ref, ok, err := d.queue.Get(ctx)
		if err != nil {
			// Cancelled: abandon the held batch without deleting, but
			// still acknowledge it so a drain waiter is not stranded.
			d.ack(batch)
			return
		}
		if !ok {
			d.flush(ctx, batch)
			return
		}

		batch = append(batch, ref)
		if len(batch) >= d.batchSize || d.queue.Len() == 0 {
			d.flush(ctx, batch)
			batch = batch[:0]
		}
	}
}

// flush attempts one bulk delete covering the whole batch, then
// acknowledges every ref regardless of outcome. In dry-run mode the delete
// call is replaced by one log line per ref with identical accounting.
func (d *deleter) flush(ctx context.Context, batch []provider.ObjectRef) {
	if len(batch) == 0 {
		return
	}
	defer d.ack(batch)

	if d.dryRun {
		for _, ref := range batch {
			d.log.Info("Would delete",
				zap.String("key", ref.Key),
				zap.String("version_id", ref.VersionID),
				zap.Bool("delete_marker", ref.DeleteMarker))
		}
		d.counters.AddDeleted(len(batch))
		d.writeDeleted(ctx, batch)
		return
	}

	if err := d.provider.BatchDelete(ctx, batch); err != nil {
		// discard-on-failure: drop the batch, count nothing deleted.
		d.errCount.Add(1)
		d.log.Warn("Batch delete failed, discarding batch",
			zap.Int("batch_size", len(batch)),
			zap.Error(err))
		d.writeError(ctx, len(batch), err)
		return
	}

	d.counters.AddDeleted(len(batch))
	d.writeDeleted(ctx, batch)

	// Approximate progress: a cheap random sample per flush rather than a
	// periodic report.
	if d.sampleRate > 0 && rand.Float64() < d.sampleRate {
		d.log.Info("Purge progress",
			zap.Int64("deleted", d.counters.Deleted()),
			zap.Int64("found", d.counters.Found()))
		d.writeProgress(ctx)
	}
}

// ack acknowledges every ref in the batch.
func (d *deleter) ack(batch []provider.ObjectRef) {
	for range batch {
		d.queue.Done()
	}
}

func (d *deleter) writeDeleted(ctx context.Context, batch []provider.ObjectRef) {
	if d.writer == nil {
		return
	}
	for _, ref := range batch {
		rec := &output.DeletedRecord{
			Key:          ref.Key,
			VersionID:    ref.VersionID,
			DeleteMarker: ref.DeleteMarker,
			DryRun:       d.dryRun,
		}
		// Best effort - audit output must not fail the purge.
		_ = d.writer.WriteDeleted(ctx, rec)
	}
}

func (d *deleter) writeError(ctx context.Context, batchSize int, err error) {
	if d.writer == nil {
		return
	}
	_ = d.writer.WriteError(ctx, &output.ErrorRecord{
		Code:      output.ErrCodeBatchDeleteFailed,
		Message:   err.Error(),
		BatchSize: batchSize,
	})
}

func (d *deleter) writeProgress(ctx context.Context) {
	if d.writer == nil {
		return
	}
	_ = d.writer.WriteProgress(ctx, &output.ProgressRecord{
		Found:   d.counters.Found(),
		Deleted: d.counters.Deleted(),
	})
}
