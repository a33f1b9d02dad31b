/*
Package worker implements the transient computation process.

A worker mints a UUID identity, connects a UDP socket to the coordinator,
and loops: request a chunk (GET), compute it, submit the partial result
(GOT), wait for the acknowledgement (ACK), repeat. Every wait is bounded by
a receive timeout, after which the worker simply asks for work again; that
re-request is its entire recovery story for lost datagrams. While a
computation runs, a background ticker sends watchdog pings (DOG) so the
coordinator does not reclaim the chunk.

Workers are disposable. The only terminal outcome besides cancellation is a
math domain fault in the assigned formula, which the worker reports (ERR)
and then exits, since the same formula would fail for every chunk.
*/
package worker
