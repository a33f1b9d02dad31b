package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/integrid/integrid/pkg/dispatch"
	"github.com/integrid/integrid/pkg/log"
	"github.com/integrid/integrid/pkg/metrics"
	"github.com/integrid/integrid/pkg/protocol"
	"github.com/integrid/integrid/pkg/types"
)

// Computer is the pluggable compute callback a worker drives: configure it
// with an assigned task, then compute the partial result. A
// types.ErrMathDomain failure from Compute means the formula itself is
// invalid over the assigned sub-interval and aborts the worker run.
type Computer interface {
	Configure(task types.Task) error
	Compute() (float64, error)
}

// State is the worker loop state.
type State string

const (
	StateRequesting State = "requesting"
	StateComputing  State = "computing"
	StateSubmitting State = "submitting"
	StateStopped    State = "stopped"
)

// Config holds worker configuration.
type Config struct {
	CoordinatorAddr string
	Computer        Computer

	// ReceiveTimeout bounds every wait for a reply; on expiry the worker
	// re-requests work, which is its sole recovery from lost datagrams.
	ReceiveTimeout time.Duration

	// NoJobBackoff is how long the worker waits after NOJ before asking
	// again.
	NoJobBackoff time.Duration

	// LivenessPeriod is how often a computing worker pings DOG so the
	// coordinator's watchdog does not reclaim its chunk mid-computation.
	LivenessPeriod time.Duration

	// ID overrides the minted identity; leave empty outside tests.
	ID types.WorkerID
}

// Worker is one transient computation process: it requests chunks from the
// coordinator over UDP, computes them, and submits partial results. Its
// identity is minted once at construction and is unrelated to the socket's
// source address.
type Worker struct {
	id       types.WorkerID
	conn     *net.UDPConn
	registry *dispatch.Registry
	computer Computer
	cfg      Config
	logger   zerolog.Logger

	state State

	// set while Run is active so handlers can honor cancellation
	ctx context.Context

	// terminal, once set, stops the loop after the current iteration
	terminal error
}

// New creates a worker bound to the coordinator address. The identity is a
// fresh UUID unless cfg.ID is set.
func New(cfg Config) (*Worker, error) {
	if cfg.Computer == nil {
		return nil, errors.New("worker needs a computer")
	}
	if cfg.ReceiveTimeout <= 0 || cfg.NoJobBackoff <= 0 || cfg.LivenessPeriod <= 0 {
		return nil, errors.New("worker timeouts must be positive")
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.CoordinatorAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve coordinator address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial coordinator: %w", err)
	}

	id := cfg.ID
	if id == "" {
		id = types.WorkerID(uuid.New().String())
	}

	w := &Worker{
		id:       id,
		conn:     conn,
		computer: cfg.Computer,
		cfg:      cfg,
		logger:   log.WithWorkerID(string(id)),
		state:    StateRequesting,
	}

	// The verbs a worker answers; everything else is a protocol error.
	r := dispatch.NewRegistry()
	r.MustRegister(protocol.VerbNoJob, w.handleNoJob)
	r.MustRegister(protocol.VerbTask, w.handleTask)
	r.MustRegister(protocol.VerbAcknowledge, w.handleAcknowledge)
	w.registry = r

	return w, nil
}

// ID returns the worker's identity.
func (w *Worker) ID() types.WorkerID { return w.id }

// State returns the current loop state.
func (w *Worker) State() State { return w.state }

// Run drives the request/compute/submit cycle until ctx is cancelled or the
// coordinator's formula turns out to be undefined over an assigned
// sub-interval, which is the one terminal error. Cancellation is
// cooperative: it is honored between loop iterations, not mid-computation.
func (w *Worker) Run(ctx context.Context) error {
	defer w.conn.Close()
	w.ctx = ctx

	w.logger.Info().Str("coordinator", w.cfg.CoordinatorAddr).Msg("worker starting")
	if err := w.send(protocol.NewGetChunk()); err != nil {
		return err
	}

	buf := make([]byte, protocol.BufferSize)
	for {
		if ctx.Err() != nil {
			w.state = StateStopped
			w.logger.Info().Msg("worker stopping")
			return nil
		}
		if w.terminal != nil {
			w.state = StateStopped
			return w.terminal
		}

		if err := w.conn.SetReadDeadline(time.Now().Add(w.cfg.ReceiveTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, err := w.conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// Nothing heard for a while: the request or the reply was
				// lost. Ask again.
				w.logger.Debug().Msg("receive timeout, re-requesting work")
				if err := w.send(protocol.NewGetChunk()); err != nil {
					return err
				}
				continue
			}
			if errors.Is(err, syscall.ECONNREFUSED) {
				// The coordinator is not there yet, or not anymore. A
				// transient worker just keeps asking.
				w.logger.Debug().Msg("coordinator unreachable, retrying")
				if !w.sleep(w.cfg.NoJobBackoff) {
					w.state = StateStopped
					return nil
				}
				if err := w.send(protocol.NewGetChunk()); err != nil {
					return err
				}
				continue
			}
			if ctx.Err() != nil {
				w.state = StateStopped
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		msg, err := protocol.Decode(buf[:n])
		if err != nil {
			metrics.DatagramsDropped.WithLabelValues(metrics.DropReasonDecode).Inc()
			w.logger.Warn().Err(err).Msg("dropping malformed datagram")
			continue
		}
		metrics.DatagramsReceived.WithLabelValues(string(msg.Verb)).Inc()

		reply, err := w.registry.Dispatch("", msg)
		if err != nil {
			metrics.DatagramsDropped.WithLabelValues(metrics.DropReasonUnknownVerb).Inc()
			w.logger.Warn().Err(err).Msg("dropping unhandled datagram")
			continue
		}
		if reply != nil {
			if err := w.send(*reply); err != nil {
				return err
			}
		}
	}
}

// handleNoJob waits out the backoff and asks again.
func (w *Worker) handleNoJob(_ types.WorkerID, _ protocol.Message) *protocol.Message {
	w.logger.Info().Msg("no work available, backing off")
	if !w.sleep(w.cfg.NoJobBackoff) {
		return nil
	}
	get := protocol.NewGetChunk()
	return &get
}

// handleTask computes the assigned chunk and submits the partial result, or
// reports a domain fault and goes terminal.
func (w *Worker) handleTask(_ types.WorkerID, msg protocol.Message) *protocol.Message {
	task, err := protocol.TaskFromMessage(msg)
	if err != nil {
		w.logger.Warn().Err(err).Msg("dropping malformed task")
		return nil
	}
	if err := w.computer.Configure(task); err != nil {
		w.logger.Warn().Err(err).Msg("dropping unusable task")
		return nil
	}

	w.state = StateComputing
	w.logger.Info().Float64("lower", task.Lower).Float64("upper", task.Upper).
		Str("method", string(task.Method)).Msg("computing chunk")

	stopPings := w.startLivenessPings()
	start := time.Now()
	value, err := w.computer.Compute()
	stopPings()
	metrics.ComputeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, types.ErrMathDomain) {
			// The formula is broken for everyone; report and stop for good.
			w.logger.Error().Err(err).Msg("math domain error, aborting")
			w.terminal = err
			errMsg := protocol.NewMathError()
			return &errMsg
		}
		w.logger.Error().Err(err).Msg("compute failed, dropping task")
		return nil
	}

	w.state = StateSubmitting
	w.logger.Info().Float64("value", value).Msg("submitting partial result")
	got := protocol.NewResultPart(value)
	return &got
}

// handleAcknowledge closes the submit cycle and asks for more work.
func (w *Worker) handleAcknowledge(_ types.WorkerID, _ protocol.Message) *protocol.Message {
	w.logger.Debug().Msg("result acknowledged")
	w.state = StateRequesting
	get := protocol.NewGetChunk()
	return &get
}

// startLivenessPings sends DOG on a ticker until the returned stop function
// is called, keeping the coordinator's watchdog quiet during computations
// longer than its timeout.
func (w *Worker) startLivenessPings() (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.cfg.LivenessPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.send(protocol.NewResetWatchdog()); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// send envelopes a message with the worker identity and fires it at the
// coordinator.
func (w *Worker) send(msg protocol.Message) error {
	data, err := protocol.EncodeEnvelope(w.id, msg)
	if err != nil {
		return err
	}
	if _, err := w.conn.Write(data); err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			// Connected UDP sockets surface the peer's absence on write.
			// Treat it as a lost datagram; the receive timeout recovers.
			w.logger.Debug().Str("verb", string(msg.Verb)).Msg("send refused, coordinator unreachable")
			return nil
		}
		return fmt.Errorf("send %s: %w", msg.Verb, err)
	}
	return nil
}

// sleep waits for d, returning false if the context was cancelled first.
func (w *Worker) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-w.ctx.Done():
		return false
	}
}
