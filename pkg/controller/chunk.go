package controller

import (
	"fmt"
	"time"
)

// Chunk is the unit of partitioned work: one sub-interval of the overall
// integration domain, with its assignment state and watchdog timestamp.
//
// A Chunk is not safe for concurrent use on its own; the Controller owns the
// whole set and serializes every mutation behind its mutex.
type Chunk struct {
	ID int

	lower float64
	upper float64

	allocated   bool
	finished    bool
	lastTouched time.Time
}

func newChunk(id int, lower, upper float64) *Chunk {
	return &Chunk{ID: id, lower: lower, upper: upper}
}

// Bounds returns the immutable sub-interval this chunk covers.
func (c *Chunk) Bounds() (lower, upper float64) {
	return c.lower, c.upper
}

// IsFree reports whether the chunk is currently unassigned.
func (c *Chunk) IsFree() bool { return !c.allocated }

// IsFinished reports whether the chunk's partial result has been accepted.
func (c *Chunk) IsFinished() bool { return c.finished }

// Allocate marks the chunk assigned and arms its watchdog. Callers ensure
// only free, unfinished chunks are allocated.
func (c *Chunk) Allocate(now time.Time) {
	c.lastTouched = now
	c.allocated = true
}

// Deallocate releases the chunk. With finished=true the chunk is done for
// good; with finished=false it returns to the free pool for reassignment.
func (c *Chunk) Deallocate(finished bool) {
	c.allocated = false
	c.finished = finished
}

// ExpireIfStale reclaims the chunk if its assignment has gone quiet for
// longer than timeout. Returns true when a reclamation happened. Calling it
// on a free chunk is a no-op.
func (c *Chunk) ExpireIfStale(now time.Time, timeout time.Duration) bool {
	if !c.allocated {
		return false
	}
	if now.Sub(c.lastTouched) <= timeout {
		return false
	}
	c.Deallocate(false)
	return true
}

// ResetWatchdog refreshes the liveness timestamp without completing the
// chunk; used when the assigned worker signals it is still computing.
func (c *Chunk) ResetWatchdog(now time.Time) {
	c.lastTouched = now
}

func (c *Chunk) String() string {
	return fmt.Sprintf("chunk %d [%g, %g)", c.ID, c.lower, c.upper)
}
