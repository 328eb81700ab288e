package reaper

import (
	"context"
	"errors"
	"sync"

	"github.com/3leaps/gonuke/pkg/provider"
)

// ErrQueueClosed is returned by Put after Close has been called.
var ErrQueueClosed = errors.New("work queue closed")

// Queue is a bounded FIFO of ObjectRefs connecting listers to deleters.
//
// Put blocks while the queue is at capacity, giving listers backpressure
// when deletion lags behind enumeration. Get blocks while the queue is
// empty. Every item pulled with Get must be acknowledged with Done once it
// has been handled (deleted, discarded, or dry-run logged); Join blocks
// until every item ever Put has been acknowledged.
//
// Close marks the end of enumeration. After Close, Get drains the remaining
// items and then reports closed, so consumers can flush deterministically
// instead of relying on emptiness checks.
type Queue struct {
	items chan provider.ObjectRef

	mu         sync.Mutex
	drained    *sync.Cond
	unfinished int
	closed     bool
}

// NewQueue creates a queue with the given capacity. Capacity must be > 0.
func NewQueue(capacity int) *Queue {
	q := &Queue{
		items: make(chan provider.ObjectRef, capacity),
	}
	q.drained = sync.NewCond(&q.mu)
	return q
}

// Put enqueues one ref, blocking while the queue is full. It returns
// ErrQueueClosed if the queue was closed, or the context error if ctx is
// cancelled while waiting.
func (q *Queue) Put(ctx context.Context, ref provider.ObjectRef) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	// Count the item before it becomes visible to consumers. Counting
	// after the send would race with a consumer that gets and acks the
	// item first, letting Join observe a spurious zero.
	q.unfinished++
	q.mu.Unlock()

	select {
	case q.items <- ref:
		return nil
	case <-ctx.Done():
		q.forget()
		return ctx.Err()
	}
}

// Get removes one ref in FIFO order, blocking while the queue is empty.
// ok is false once the queue is closed and fully drained. The context
// error is returned if ctx is cancelled while waiting.
func (q *Queue) Get(ctx context.Context) (ref provider.ObjectRef, ok bool, err error) {
	select {
	case ref, ok = <-q.items:
		return ref, ok, nil
	case <-ctx.Done():
		return provider.ObjectRef{}, false, ctx.Err()
	}
}

// Done acknowledges one previously Get'd ref. It must be called exactly
// once per item, regardless of whether the delete succeeded.
func (q *Queue) Done() {
	q.forget()
}

// forget decrements the unfinished count and wakes Join waiters at zero.
func (q *Queue) forget() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished <= 0 {
		panic("reaper: Queue.Done called more times than items were put")
	}
	q.unfinished--
	if q.unfinished == 0 {
		q.drained.Broadcast()
	}
}

// Close marks the end of production. Pending items remain available to Get;
// further Puts fail with ErrQueueClosed. Close is not safe to call
// concurrently with Put.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.items)
}

// Join blocks until the unfinished count reaches zero: every item ever Put
// has been pulled and acknowledged. It does not imply producers have
// exited. A queue that never held an item joins immediately.
func (q *Queue) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.unfinished > 0 {
		q.drained.Wait()
	}
}

// DiscardPending drains and acknowledges any refs still buffered without
// handing them to a consumer. Used on cancellation, where consumers have
// already exited and Join would otherwise wait forever.
func (q *Queue) DiscardPending() {
	for {
		select {
		case _, ok := <-q.items:
			if !ok {
				return
			}
			q.forget()
		default:
			return
		}
	}
}

// Len reports the number of refs currently buffered. It is a snapshot:
// the queue can refill or drain immediately after. Deleters use it only
// as a flush hint, never for termination.
func (q *Queue) Len() int {
	return len(q.items)
}
