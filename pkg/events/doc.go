/*
Package events provides an in-process pub/sub broker for run observability.

The coordinator publishes one event per observable step of a computation run:
chunk assignments, completions, watchdog reclamations, stale results, and the
run outcome. The CLI subscribes and renders them as the run log; tests
subscribe to assert on run behavior without poking at controller internals.

Delivery is best-effort: a subscriber that falls behind its buffer misses
events rather than blocking the coordinator loop.
*/
package events
