package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/integrid/integrid/pkg/controller"
	"github.com/integrid/integrid/pkg/dispatch"
	"github.com/integrid/integrid/pkg/events"
	"github.com/integrid/integrid/pkg/log"
	"github.com/integrid/integrid/pkg/metrics"
	"github.com/integrid/integrid/pkg/protocol"
	"github.com/integrid/integrid/pkg/types"
)

// readTimeout bounds each socket read so the loop sweeps watchdogs and
// checks cancellation at least this often even when no datagrams arrive.
const readTimeout = 1 * time.Second

// ErrRunAborted means a worker reported that the run's formula is undefined
// somewhere in the domain. The run cannot complete with any worker.
var ErrRunAborted = errors.New("run aborted: formula undefined over the domain")

// Config holds one coordinator's configuration.
type Config struct {
	BindAddr string

	// MetricsAddr, when non-empty, serves /metrics and /healthz there.
	MetricsAddr string

	// Run describes the computation to distribute.
	Run controller.Config
}

// Coordinator binds the UDP socket, owns the run's controller, and serves
// the request/submit protocol until the run completes or aborts.
type Coordinator struct {
	conn     *net.UDPConn
	ctrl     *controller.Controller
	registry *dispatch.Registry
	broker   *events.Broker
	cfg      Config
	logger   zerolog.Logger

	result   float64
	done     bool
	terminal error

	mu    sync.Mutex
	state types.RunState
}

// New binds the socket and partitions the run. The broker is started here
// and stopped when Run returns.
func New(cfg Config) (*Coordinator, error) {
	broker := events.NewBroker()
	cfg.Run.Broker = broker

	ctrl, err := controller.New(cfg.Run)
	if err != nil {
		return nil, err
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind: %w", err)
	}

	c := &Coordinator{
		conn:   conn,
		ctrl:   ctrl,
		broker: broker,
		cfg:    cfg,
		logger: log.WithComponent("coordinator"),
		state:  types.RunStateRunning,
	}

	r := dispatch.NewRegistry()
	r.MustRegister(protocol.VerbGetChunk, c.handleGetChunk)
	r.MustRegister(protocol.VerbResultPart, c.handleResultPart)
	r.MustRegister(protocol.VerbResetWatchdog, c.handleResetWatchdog)
	r.MustRegister(protocol.VerbMathError, c.handleMathError)
	c.registry = r

	return c, nil
}

// Addr returns the bound UDP address, useful when binding to port 0.
func (c *Coordinator) Addr() string {
	return c.conn.LocalAddr().String()
}

// Broker returns the run's event broker so callers can subscribe before
// starting the run.
func (c *Coordinator) Broker() *events.Broker {
	return c.broker
}

// State reports the run lifecycle. It moves from running to finished or
// aborted exactly once and never back.
func (c *Coordinator) State() types.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s types.RunState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run serves the protocol until every chunk is finished, a worker reports a
// domain fault, or ctx is cancelled. On completion it returns the integral;
// on a domain fault it returns ErrRunAborted; on cancellation it returns
// ctx.Err().
func (c *Coordinator) Run(ctx context.Context) (float64, error) {
	defer c.conn.Close()

	c.broker.Start()
	defer c.broker.Stop()

	var metricsSrv *http.Server
	if c.cfg.MetricsAddr != "" {
		metricsSrv = c.startMetricsServer()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}
	metrics.SetComponentHealth("coordinator", true, "")

	c.logger.Info().Str("addr", c.Addr()).Msg("coordinator listening")

	buf := make([]byte, protocol.BufferSize)
	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info().Msg("coordinator stopping")
			return 0, err
		}
		if c.done {
			c.setState(types.RunStateFinished)
			c.logger.Info().Float64("result", c.result).Msg("run complete")
			return c.result, nil
		}
		if c.terminal != nil {
			c.setState(types.RunStateAborted)
			return 0, c.terminal
		}

		c.ctrl.SweepWatchdogs(time.Now())

		if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return 0, fmt.Errorf("set read deadline: %w", err)
		}
		n, remote, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("receive: %w", err)
		}

		workerID, msg, err := protocol.DecodeEnvelope(buf[:n])
		if err != nil {
			metrics.DatagramsDropped.WithLabelValues(metrics.DropReasonDecode).Inc()
			c.logger.Warn().Err(err).Str("remote", remote.String()).
				Msg("dropping malformed datagram")
			continue
		}
		metrics.DatagramsReceived.WithLabelValues(string(msg.Verb)).Inc()

		reply, err := c.registry.Dispatch(workerID, msg)
		if err != nil {
			metrics.DatagramsDropped.WithLabelValues(metrics.DropReasonUnknownVerb).Inc()
			c.logger.Warn().Err(err).Str("worker_id", string(workerID)).
				Msg("dropping unhandled datagram")
			continue
		}
		if reply != nil {
			if err := c.send(*reply, remote); err != nil {
				c.logger.Warn().Err(err).Str("remote", remote.String()).Msg("reply failed")
			}
		}
	}
}

// handleGetChunk assigns a chunk or says there is none.
func (c *Coordinator) handleGetChunk(workerID types.WorkerID, _ protocol.Message) *protocol.Message {
	task, ok := c.ctrl.AllocateChunk(workerID)
	if !ok {
		noj := protocol.NewNoJob()
		return &noj
	}
	tas := protocol.NewTask(task)
	return &tas
}

// handleResultPart folds a partial result in and acknowledges it. Stale
// results are still acknowledged so the worker moves on.
func (c *Coordinator) handleResultPart(workerID types.WorkerID, msg protocol.Message) *protocol.Message {
	value, err := protocol.ResultFromMessage(msg)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed result")
		return nil
	}
	if result, done := c.ctrl.AddResultPart(workerID, value); done {
		c.result = result
		c.done = true
	}
	ack := protocol.NewAcknowledge()
	return &ack
}

// handleResetWatchdog refreshes the worker's assignment. No reply.
func (c *Coordinator) handleResetWatchdog(workerID types.WorkerID, _ protocol.Message) *protocol.Message {
	c.ctrl.ResetWatchdog(workerID, time.Now())
	return nil
}

// handleMathError aborts the run: the formula fails identically for every
// worker, so reassigning the chunk would only loop forever.
func (c *Coordinator) handleMathError(workerID types.WorkerID, _ protocol.Message) *protocol.Message {
	c.logger.Error().Str("worker_id", string(workerID)).
		Msg("worker reported math domain error")
	c.broker.Publish(events.New(events.EventRunAborted,
		fmt.Sprintf("run aborted: math domain error reported by %s", workerID), nil))
	c.terminal = ErrRunAborted
	return nil
}

// send encodes a worker-bound message and fires it at the remote address.
func (c *Coordinator) send(msg protocol.Message, to *net.UDPAddr) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := c.conn.WriteToUDP(data, to); err != nil {
		return fmt.Errorf("send %s: %w", msg.Verb, err)
	}
	metrics.RepliesSent.WithLabelValues(string(msg.Verb)).Inc()
	return nil
}

func (c *Coordinator) startMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", metrics.HealthHandler())
	srv := &http.Server{Addr: c.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	c.logger.Info().Str("addr", c.cfg.MetricsAddr).Msg("metrics server listening")
	return srv
}
