/*
Package coordinator is the server side of a computation run.

The coordinator binds one UDP socket and serves the protocol: GET is
answered with a task assignment or NOJ, GOT folds a partial result into the
run and is always acknowledged, DOG refreshes the sender's watchdog, and ERR
aborts the run. Each socket read is bounded by a short deadline so the loop
sweeps stale assignments and observes cancellation even when the network is
quiet.

Worker identity is the envelope prefix on each datagram, never the source
address, so a worker may change sockets mid-run without losing its
assignment. The coordinator keeps no per-worker state beyond the live
assignment map inside the controller.
*/
package coordinator
