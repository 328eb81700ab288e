package reaper

import "sync/atomic"

// Counters is the shared progress state for one purge run.
//
// Found counts every ref produced by enumeration; Deleted counts every ref
// included in a successful batch delete (or logged in dry-run). Both are
// increment-only and safe from any number of workers. One Counters value is
// constructed per run by the orchestrator and handed to every worker;
// nothing here is process-global.
type Counters struct {
	found   atomic.Int64
	deleted atomic.Int64
}

// AddFound records n newly enumerated refs and returns the new total.
func (c *Counters) AddFound(n int) int64 {
	return c.found.Add(int64(n))
}

// AddDeleted records n successfully deleted refs and returns the new total.
func (c *Counters) AddDeleted(n int) int64 {
	return c.deleted.Add(int64(n))
}

// Found returns the current found total.
func (c *Counters) Found() int64 {
	return c.found.Load()
}

// Deleted returns the current deleted total.
func (c *Counters) Deleted() int64 {
	return c.deleted.Load()
}
