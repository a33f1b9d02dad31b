/*
Package config loads and validates run configuration for both roles.

Configuration comes from an optional yaml file layered over the reference
defaults; CLI flags are applied on top by cmd/integrid. Validate implements
the configuration-fault class: every condition it checks (bounds ordering,
chunk count, address shape, method name, formula compilability) is detected
before a run starts and surfaced to the operator synchronously; no run is
started on a bad configuration.
*/
package config
