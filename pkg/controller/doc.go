/*
Package controller implements chunk lifecycle management and result
aggregation for a computation run.

The Controller partitions the integration interval into equal-width chunks at
construction, then drives each chunk through its lifecycle:

	free ──AllocateChunk──▶ allocated ──AddResultPart──▶ finished
	              ▲                │
	              └──SweepWatchdogs┘  (assignment gone quiet)

A finished chunk is never reallocated and its bounds never change. Each
worker identity holds at most one live assignment, and a chunk is assigned to
at most one worker at a time. The run is finished exactly when every chunk is
finished; only then is the accumulated sum valid.

Correctness under a lossy, reordering transport comes from two rules rather
than from message ordering: allocation only ever picks a free chunk, and a
result is folded in only when its sender currently holds a live assignment.
Late or duplicate results from workers whose chunks were reclaimed are
silently discarded.

Allocation is a linear scan in id order, which is fine at the chunk counts
this system targets (dozens); a free list would be the extension point if
that ever changed.
*/
package controller
