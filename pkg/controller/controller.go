package controller

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/integrid/integrid/pkg/events"
	"github.com/integrid/integrid/pkg/log"
	"github.com/integrid/integrid/pkg/metrics"
	"github.com/integrid/integrid/pkg/types"
)

// DefaultWatchdogTimeout is how long an assignment may stay silent before a
// sweep reclaims it.
const DefaultWatchdogTimeout = 20 * time.Second

var (
	ErrInvalidBounds     = errors.New("lower bound must be less than higher bound")
	ErrInvalidChunkCount = errors.New("chunk count must be at least 1")
)

// Config holds the parameters of one computation run.
type Config struct {
	LowerBound  float64
	HigherBound float64
	ChunkCount  int
	Formula     string
	Method      types.Method

	// WatchdogTimeout defaults to DefaultWatchdogTimeout when zero.
	WatchdogTimeout time.Duration

	// Broker, when set, receives one event per observable step of the run.
	Broker *events.Broker
}

// Controller owns the full set of chunks for one computation run: it
// partitions the interval, allocates chunks to workers, reclaims abandoned
// assignments, and folds partial results into the final sum.
//
// All methods are safe for concurrent use; every mutation of the chunk set,
// the assignment map, and the accumulator is serialized behind one mutex.
type Controller struct {
	mu sync.Mutex

	chunks      []*Chunk
	assignments map[types.WorkerID]int // worker -> chunk id, live assignments only

	formula string
	method  types.Method

	sum      float64
	finished bool

	watchdogTimeout time.Duration
	broker          *events.Broker
	logger          zerolog.Logger
}

// New partitions [cfg.LowerBound, cfg.HigherBound) into cfg.ChunkCount
// equal-width contiguous chunks and returns a controller ready to hand them
// out. The last chunk's upper edge is clamped to the higher bound so the
// union of all chunks covers the domain exactly even under float step
// accumulation error.
func New(cfg Config) (*Controller, error) {
	if cfg.LowerBound >= cfg.HigherBound {
		return nil, fmt.Errorf("%w: [%g, %g)", ErrInvalidBounds, cfg.LowerBound, cfg.HigherBound)
	}
	if cfg.ChunkCount < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkCount, cfg.ChunkCount)
	}
	if !cfg.Method.Valid() {
		return nil, fmt.Errorf("unknown integration method %q", cfg.Method)
	}

	timeout := cfg.WatchdogTimeout
	if timeout == 0 {
		timeout = DefaultWatchdogTimeout
	}

	c := &Controller{
		chunks:          make([]*Chunk, 0, cfg.ChunkCount),
		assignments:     make(map[types.WorkerID]int),
		formula:         cfg.Formula,
		method:          cfg.Method,
		watchdogTimeout: timeout,
		broker:          cfg.Broker,
		logger:          log.WithComponent("controller"),
	}

	step := (cfg.HigherBound - cfg.LowerBound) / float64(cfg.ChunkCount)
	lower := cfg.LowerBound
	for i := 0; i < cfg.ChunkCount; i++ {
		upper := lower + step
		if i == cfg.ChunkCount-1 {
			upper = cfg.HigherBound
		}
		c.chunks = append(c.chunks, newChunk(i, lower, upper))
		lower = upper
	}

	metrics.ChunksTotal.WithLabelValues("free").Set(float64(cfg.ChunkCount))
	metrics.ChunksTotal.WithLabelValues("allocated").Set(0)
	metrics.ChunksTotal.WithLabelValues("finished").Set(0)

	c.publish(events.EventRunStarted,
		fmt.Sprintf("run started: %d chunks over [%g, %g)", cfg.ChunkCount, cfg.LowerBound, cfg.HigherBound),
		nil)
	return c, nil
}

// Chunks returns the chunk list for inspection. The slice is a copy; the
// chunks themselves are the live objects, so callers must not mutate them.
func (c *Controller) Chunks() []*Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Chunk, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// AllocateChunk assigns the first free chunk, in id order, to the worker and
// returns the task describing it. ok is false when no chunk is free right
// now, which is not an error: the caller replies NOJ and the worker retries.
//
// A worker that already holds a live assignment gets the same chunk again
// with a refreshed watchdog, so a lost TAS reply does not burn a second
// chunk and the one-chunk-per-worker invariant holds.
func (c *Controller) AllocateChunk(workerID types.WorkerID) (task types.Task, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if id, assigned := c.assignments[workerID]; assigned {
		chunk := c.chunks[id]
		chunk.ResetWatchdog(now)
		return c.taskFor(chunk), true
	}

	for _, chunk := range c.chunks {
		if !chunk.IsFree() || chunk.IsFinished() {
			continue
		}
		c.assignments[workerID] = chunk.ID
		chunk.Allocate(now)

		metrics.ChunksTotal.WithLabelValues("free").Dec()
		metrics.ChunksTotal.WithLabelValues("allocated").Inc()
		c.logger.Info().Int("chunk_id", chunk.ID).Str("worker_id", string(workerID)).
			Msg("chunk assigned")
		c.publish(events.EventChunkAssigned,
			fmt.Sprintf("%s assigned to %s", chunk, workerID),
			map[string]string{"chunk_id": strconv.Itoa(chunk.ID), "worker_id": string(workerID)})
		return c.taskFor(chunk), true
	}
	return types.Task{}, false
}

// AddResultPart folds a worker's partial result into the running sum and
// finalizes the worker's chunk. A result from a worker with no live
// assignment (never assigned, already finalized, or reclaimed by the
// watchdog) is silently discarded; this is the de-duplication point that
// keeps late and duplicate datagrams from double-counting.
//
// When the last chunk finishes, the final sum is returned with done=true.
func (c *Controller) AddResultPart(workerID types.WorkerID, value float64) (result float64, done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, assigned := c.assignments[workerID]
	if !assigned {
		metrics.ResultsDiscarded.Inc()
		c.logger.Debug().Str("worker_id", string(workerID)).Float64("value", value).
			Msg("stale result discarded")
		c.publish(events.EventResultStale,
			fmt.Sprintf("stale result from %s discarded", workerID), nil)
		return 0, false
	}

	chunk := c.chunks[id]
	delete(c.assignments, workerID)
	c.sum += value
	chunk.Deallocate(true)

	metrics.ResultsAccepted.Inc()
	metrics.ChunksTotal.WithLabelValues("allocated").Dec()
	metrics.ChunksTotal.WithLabelValues("finished").Inc()
	c.logger.Info().Int("chunk_id", id).Str("worker_id", string(workerID)).
		Float64("value", value).Msg("partial result accepted")
	c.publish(events.EventChunkCompleted,
		fmt.Sprintf("%s completed by %s", chunk, workerID),
		map[string]string{"chunk_id": strconv.Itoa(id), "worker_id": string(workerID)})

	for _, ch := range c.chunks {
		if !ch.IsFinished() {
			return 0, false
		}
	}
	c.finished = true
	c.publish(events.EventRunFinished,
		fmt.Sprintf("run finished: result %v", c.sum), nil)
	return c.sum, true
}

// SweepWatchdogs reclaims every assignment that has gone quiet for longer
// than the watchdog timeout, returning the reclaimed chunks to the free
// pool. Called once per coordinator loop pass.
func (c *Controller) SweepWatchdogs(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, chunk := range c.chunks {
		if !chunk.ExpireIfStale(now, c.watchdogTimeout) {
			continue
		}
		// Drop the mapping so a late result from the old owner is discarded
		// and the chunk can be reassigned cleanly.
		for workerID, id := range c.assignments {
			if id == chunk.ID {
				delete(c.assignments, workerID)
			}
		}
		metrics.ChunksReclaimed.Inc()
		metrics.ChunksTotal.WithLabelValues("allocated").Dec()
		metrics.ChunksTotal.WithLabelValues("free").Inc()
		c.logger.Warn().Int("chunk_id", chunk.ID).Msg("chunk assignment reclaimed by watchdog")
		c.publish(events.EventChunkReclaimed,
			fmt.Sprintf("%s reclaimed by watchdog", chunk),
			map[string]string{"chunk_id": strconv.Itoa(chunk.ID)})
	}
}

// ResetWatchdog refreshes the liveness timestamp of the worker's assigned
// chunk, if it still has one. Unknown workers are ignored.
func (c *Controller) ResetWatchdog(workerID types.WorkerID, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, assigned := c.assignments[workerID]; assigned {
		c.chunks[id].ResetWatchdog(now)
	}
}

// Finished reports whether every chunk has been completed.
func (c *Controller) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Result returns the accumulated sum. It is only valid once Finished
// reports true.
func (c *Controller) Result() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sum, c.finished
}

// Progress reports how many chunks are finished out of the total.
func (c *Controller) Progress() (finished, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chunk := range c.chunks {
		if chunk.IsFinished() {
			finished++
		}
	}
	return finished, len(c.chunks)
}

func (c *Controller) taskFor(chunk *Chunk) types.Task {
	lower, upper := chunk.Bounds()
	return types.Task{Formula: c.formula, Method: c.method, Lower: lower, Upper: upper}
}

func (c *Controller) publish(eventType events.EventType, message string, metadata map[string]string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(events.New(eventType, message, metadata))
}
