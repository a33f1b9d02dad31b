/*
Package log provides structured logging for integrid using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers and configurable log levels. All logs include
timestamps and support filtering by severity level.

# Usage

Initializing the logger:

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("coordinator listening")
	log.Warn("datagram dropped")

Component loggers:

	coordLog := log.WithComponent("coordinator")
	coordLog.Info().Int("chunks", 5).Msg("run started")

	workerLog := log.WithWorkerID(identity)
	workerLog.Debug().Float64("value", part).Msg("partial result computed")

# Integration Points

This package integrates with:

  - pkg/coordinator: logs the receive/dispatch/reply cycle
  - pkg/worker: logs the request/compute/submit cycle
  - pkg/controller: logs allocation and watchdog reclamation
  - cmd/integrid: initializes the logger from CLI flags
*/
package log
