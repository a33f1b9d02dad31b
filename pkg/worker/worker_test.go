package worker

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrid/integrid/pkg/log"
	"github.com/integrid/integrid/pkg/protocol"
	"github.com/integrid/integrid/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

// fakeComputer returns a canned value or error instead of integrating.
type fakeComputer struct {
	value      float64
	err        error
	configured []types.Task
}

func (f *fakeComputer) Configure(task types.Task) error {
	f.configured = append(f.configured, task)
	return nil
}

func (f *fakeComputer) Compute() (float64, error) {
	return f.value, f.err
}

// fakeCoordinator is a scripted UDP endpoint for driving a worker.
type fakeCoordinator struct {
	t    *testing.T
	conn *net.UDPConn
}

func newFakeCoordinator(t *testing.T) *fakeCoordinator {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &fakeCoordinator{t: t, conn: conn}
}

func (f *fakeCoordinator) addr() string {
	return f.conn.LocalAddr().String()
}

// receive blocks for the next datagram and decodes its envelope.
func (f *fakeCoordinator) receive() (types.WorkerID, protocol.Message, *net.UDPAddr) {
	f.t.Helper()
	buf := make([]byte, protocol.BufferSize)
	require.NoError(f.t, f.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	n, remote, err := f.conn.ReadFromUDP(buf)
	require.NoError(f.t, err)
	id, msg, err := protocol.DecodeEnvelope(buf[:n])
	require.NoError(f.t, err)
	return id, msg, remote
}

// reply sends a worker-bound message to the given worker address.
func (f *fakeCoordinator) reply(to *net.UDPAddr, msg protocol.Message) {
	f.t.Helper()
	data, err := protocol.Encode(msg)
	require.NoError(f.t, err)
	_, err = f.conn.WriteToUDP(data, to)
	require.NoError(f.t, err)
}

func newTestWorker(t *testing.T, coordAddr string, comp Computer) *Worker {
	t.Helper()
	w, err := New(Config{
		CoordinatorAddr: coordAddr,
		Computer:        comp,
		ReceiveTimeout:  200 * time.Millisecond,
		NoJobBackoff:    50 * time.Millisecond,
		LivenessPeriod:  50 * time.Millisecond,
	})
	require.NoError(t, err)
	return w
}

// TestNewValidation tests constructor misuse
func TestNewValidation(t *testing.T) {
	_, err := New(Config{CoordinatorAddr: "127.0.0.1:20001"})
	assert.Error(t, err)

	_, err = New(Config{
		CoordinatorAddr: "127.0.0.1:20001",
		Computer:        &fakeComputer{},
	})
	assert.Error(t, err) // zero timeouts

	_, err = New(Config{
		CoordinatorAddr: "not an address",
		Computer:        &fakeComputer{},
		ReceiveTimeout:  time.Second,
		NoJobBackoff:    time.Second,
		LivenessPeriod:  time.Second,
	})
	assert.Error(t, err)
}

// TestMintedIdentity tests that each worker gets a distinct UUID identity
func TestMintedIdentity(t *testing.T) {
	coord := newFakeCoordinator(t)
	a := newTestWorker(t, coord.addr(), &fakeComputer{})
	b := newTestWorker(t, coord.addr(), &fakeComputer{})
	assert.NotEmpty(t, a.ID())
	assert.NotEmpty(t, b.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

// TestRequestComputeSubmitCycle tests the full happy-path cycle against a
// scripted coordinator
func TestRequestComputeSubmitCycle(t *testing.T) {
	coord := newFakeCoordinator(t)
	comp := &fakeComputer{value: 1.25}
	w := newTestWorker(t, coord.addr(), comp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	id, msg, remote := coord.receive()
	assert.Equal(t, w.ID(), id)
	assert.Equal(t, protocol.VerbGetChunk, msg.Verb)

	coord.reply(remote, protocol.NewTask(types.Task{
		Formula: "2 * x + 1",
		Method:  types.MethodSimpson,
		Lower:   0,
		Upper:   0.4,
	}))

	id, msg, remote = coord.receive()
	assert.Equal(t, w.ID(), id)
	require.Equal(t, protocol.VerbResultPart, msg.Verb)
	require.Len(t, msg.Args, 1)
	assert.InDelta(t, 1.25, msg.Args[0].Num, 1e-12)

	require.Len(t, comp.configured, 1)
	assert.Equal(t, "2 * x + 1", comp.configured[0].Formula)
	assert.Equal(t, types.MethodSimpson, comp.configured[0].Method)

	coord.reply(remote, protocol.NewAcknowledge())

	// ACK closes the cycle with a fresh request.
	_, msg, _ = coord.receive()
	assert.Equal(t, protocol.VerbGetChunk, msg.Verb)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}

// TestNoJobBackoff tests that NOJ delays the next request instead of
// hammering the coordinator
func TestNoJobBackoff(t *testing.T) {
	coord := newFakeCoordinator(t)
	w := newTestWorker(t, coord.addr(), &fakeComputer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	_, msg, remote := coord.receive()
	require.Equal(t, protocol.VerbGetChunk, msg.Verb)

	before := time.Now()
	coord.reply(remote, protocol.NewNoJob())
	_, msg, _ = coord.receive()
	assert.Equal(t, protocol.VerbGetChunk, msg.Verb)
	assert.GreaterOrEqual(t, time.Since(before), 50*time.Millisecond)
}

// TestReceiveTimeoutRerequests tests recovery from a lost reply
func TestReceiveTimeoutRerequests(t *testing.T) {
	coord := newFakeCoordinator(t)
	w := newTestWorker(t, coord.addr(), &fakeComputer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	_, msg, _ := coord.receive()
	require.Equal(t, protocol.VerbGetChunk, msg.Verb)

	// Say nothing; the worker should ask again after its receive timeout.
	_, msg, _ = coord.receive()
	assert.Equal(t, protocol.VerbGetChunk, msg.Verb)
}

// TestMalformedDatagramIgnored tests that garbage from the network does not
// kill the loop
func TestMalformedDatagramIgnored(t *testing.T) {
	coord := newFakeCoordinator(t)
	comp := &fakeComputer{value: 3.5}
	w := newTestWorker(t, coord.addr(), comp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	_, _, remote := coord.receive()

	_, err := coord.conn.WriteToUDP([]byte("TAS(__import__,1)"), remote)
	require.NoError(t, err)
	// A verb the worker never answers is dropped the same way.
	coord.reply(remote, protocol.NewGetChunk())

	coord.reply(remote, protocol.NewTask(types.Task{
		Formula: "x", Method: types.MethodTrapezoid, Lower: 0, Upper: 1,
	}))

	_, msg, _ := coord.receive()
	assert.Equal(t, protocol.VerbResultPart, msg.Verb)
}

// TestMathDomainFaultIsTerminal tests that a domain fault reports ERR and
// stops the worker for good
func TestMathDomainFaultIsTerminal(t *testing.T) {
	coord := newFakeCoordinator(t)
	comp := &fakeComputer{err: fmt.Errorf("sqrt of negative: %w", types.ErrMathDomain)}
	w := newTestWorker(t, coord.addr(), comp)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	_, _, remote := coord.receive()
	coord.reply(remote, protocol.NewTask(types.Task{
		Formula: "sqrt(-1 - x)", Method: types.MethodSimpson, Lower: 0, Upper: 1,
	}))

	_, msg, _ := coord.receive()
	assert.Equal(t, protocol.VerbMathError, msg.Verb)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, types.ErrMathDomain)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after domain fault")
	}
	assert.Equal(t, StateStopped, w.State())
}

// TestLivenessPingsDuringCompute tests that a slow computation keeps sending
// watchdog pings
func TestLivenessPingsDuringCompute(t *testing.T) {
	coord := newFakeCoordinator(t)
	comp := &slowComputer{delay: 300 * time.Millisecond, value: 1}
	w := newTestWorker(t, coord.addr(), comp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	_, _, remote := coord.receive()
	coord.reply(remote, protocol.NewTask(types.Task{
		Formula: "x", Method: types.MethodSimpson, Lower: 0, Upper: 1,
	}))

	sawPing := false
	for {
		_, msg, _ := coord.receive()
		if msg.Verb == protocol.VerbResetWatchdog {
			sawPing = true
			continue
		}
		require.Equal(t, protocol.VerbResultPart, msg.Verb)
		break
	}
	assert.True(t, sawPing, "expected at least one watchdog ping mid-computation")
}

type slowComputer struct {
	delay time.Duration
	value float64
}

func (s *slowComputer) Configure(types.Task) error { return nil }

func (s *slowComputer) Compute() (float64, error) {
	time.Sleep(s.delay)
	return s.value, nil
}
