/*
Package metrics provides Prometheus metrics and health reporting for integrid.

All collectors are package-level and registered in init, so any package can
record without wiring a registry through constructors:

	metrics.DatagramsReceived.WithLabelValues("GET").Inc()
	metrics.ChunksReclaimed.Inc()

The coordinator serves Handler() on /metrics and HealthHandler() on /healthz
when started with a metrics address. Workers record compute durations but do
not serve an endpoint; they are transient processes.
*/
package metrics
