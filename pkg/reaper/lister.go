package reaper

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/3leaps/gonuke/pkg/output"
	"github.com/3leaps/gonuke/pkg/provider"
)

// lister enumerates every object version under the sub-prefixes it pulls
// from the shared prefix channel, pushing each ref into the work queue.
//
// Each lister is constructed explicitly with its collaborators; nothing is
// shared between listers beyond the queue and the counters.
type lister struct {
	provider provider.Provider
	queue    *Queue
	counters *Counters
	log      *zap.Logger
	writer   output.Writer
	pageSize int
	errCount *atomic.Int64
}

// subPrefix is one unit of enumeration work: a top-level prefix from the
// delimiter listing, or the residual pass over keys living directly at the
// target level (directOnly).
type subPrefix struct {
	prefix     string
	directOnly bool
}

// run pulls sub-prefixes until the prefix channel closes. A listing error
// abandons the current sub-prefix: the pool layer logs it and counts it,
// but sibling prefixes and workers continue. No resumption point is
// recorded.
func (l *lister) run(ctx context.Context, prefixes <-chan subPrefix) {
	for sp := range prefixes {
		err := l.listPrefix(ctx, sp)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrQueueClosed) {
			return
		}
		l.errCount.Add(1)
		l.log.Error("Listing failed, abandoning sub-prefix",
			zap.String("prefix", sp.prefix),
			zap.Error(err))
		l.writeError(ctx, sp.prefix, err)
	}
}

func (l *lister) writeError(ctx context.Context, prefix string, err error) {
	if l.writer == nil {
		return
	}
	// Best effort - audit output must not fail the purge.
	_ = l.writer.WriteError(ctx, &output.ErrorRecord{
		Code:    output.ErrCodeListFailed,
		Message: err.Error(),
		Prefix:  prefix,
	})
}

// listPrefix pages the versioned listing for one sub-prefix and enqueues
// every returned ref in storage order. Put is the only blocking point,
// providing backpressure when deletion lags enumeration.
func (l *lister) listPrefix(ctx context.Context, sp subPrefix) error {
	opts := provider.VersionListOptions{
		Prefix:  sp.prefix,
		MaxKeys: l.pageSize,
	}
	if sp.directOnly {
		// Residual pass: keys at this level only. The child prefixes
		// are covered by their own sub-prefix assignments.
		opts.Delimiter = "/"
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := l.provider.ListVersions(ctx, opts)
		if err != nil {
			return err
		}

		for _, ref := range result.Refs {
			if err := l.queue.Put(ctx, ref); err != nil {
				return err
			}
			l.counters.AddFound(1)
		}

		if !result.IsTruncated {
			return nil
		}
		opts.KeyMarker = result.NextKeyMarker
		opts.VersionIDMarker = result.NextVersionIDMarker
	}
}
