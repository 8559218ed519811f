package writer

import "sync/atomic"

// Clock is the writer's logical clock.
//
// Every request accepted by the writer is stamped with a strictly
// increasing sequence number from this clock, so log lines for one
// request can be correlated and ordering is explicit.
type Clock struct {
	seq atomic.Int64
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}
