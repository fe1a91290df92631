// Package loqui implements a bidirectional, framed RPC session over a
// single duplex byte stream: request/response, one-way push, ping/pong
// liveness, and an encoding-negotiation handshake multiplexed onto one
// connection, with flow control and dead-peer detection.
//
// The session state machine and its I/O engine are the core; the
// on-wire frame codec is supplied by the wire package (or any type
// satisfying the same contract), concrete encoders by the encoding
// package, and request dispatch by the caller's OnRequest/OnPush
// callbacks.
package loqui

import (
	"bytes"
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/SmithJrBlaquaLuigi/loqui/wire"
)

// Session owns one Socket, one Stream Handler, one Inflight Table, and
// the three one-shot flags from §3: ready, stop, closeDone.
//
// Go has no single-threaded scheduler, unlike the spec's source model, so
// unlike that model Session protects its shared state with locks and
// atomics (a mutex for the encoder reference, an atomic for the ping
// interval) — the same generalization
// smux makes with streamLock around its streams map in
// _examples/SagerNet-smux/session.go.
type Session struct {
	sock    Socket
	cfg     *Config
	role    Role
	handler *wire.Handler

	inflight *inflightTable
	neg      *Negotiator
	watcher  *socketWatcher

	mu      sync.Mutex
	encoder Encoder

	onRequest func(seq uint32, payload any) (reply any, ok bool)
	onPush    func(payload any)

	ready     atomic.Bool
	stop      atomic.Bool
	closeDone atomic.Bool
	released  atomic.Bool // true once the terminator has released the socket; ioLoop exits

	readyOnce   sync.Once
	readyCh     chan struct{}
	closeOnce   sync.Once
	closeDoneCh chan struct{}
	ioDoneCh    chan struct{}

	pingIntervalNs atomic.Int64
	closeReason    atomic.Int32

	staging   bytes.Buffer // touched only by the I/O engine goroutine
	outbufMax int
	readChunk int

	logger *log.Logger
}

// NewSession constructs a Session bound to an already-connected Socket.
// Callers must register any encoders before calling Start, per §9's
// register_encoder precondition: the client's advertised list is
// snapshotted when Start emits Hello, and the server's pick runs when
// Hello arrives, so registrations after either point have no effect on
// this session's negotiation.
func NewSession(sock Socket, cfg *Config, role Role) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Verify(); err != nil {
		panic(err) // a bad Config is a programmer error caught at construction
	}
	s := &Session{
		sock:        sock,
		cfg:         cfg,
		role:        role,
		handler:     wire.NewHandler(),
		inflight:    newInflightTable(),
		neg:         newNegotiator(),
		watcher:     newSocketWatcher(cfg.PollInterval),
		readyCh:     make(chan struct{}),
		closeDoneCh: make(chan struct{}),
		ioDoneCh:    make(chan struct{}),
		outbufMax:   cfg.OutbufMax,
		readChunk:   cfg.ReadChunk,
		logger:      log.Default(),
	}
	s.pingIntervalNs.Store(int64(cfg.PingInterval))
	return s
}

// RegisterEncoder associates name with enc in this session's negotiator.
func (s *Session) RegisterEncoder(name string, enc Encoder) {
	s.neg.Register(name, enc)
}

// OnRequest sets the inbound request callback. Returning ok==true sends
// fn's reply value back to the peer as a Response; ok==false leaves the
// request under service so the caller can reply later via SendResponse.
func (s *Session) OnRequest(fn func(seq uint32, payload any) (reply any, ok bool)) {
	s.onRequest = fn
}

// OnPush sets the inbound push callback.
func (s *Session) OnPush(fn func(payload any)) {
	s.onPush = fn
}

// Role reports the session's role.
func (s *Session) Role() Role { return s.role }

// IsReady reports whether encoding negotiation has completed.
func (s *Session) IsReady() bool { return s.ready.Load() }

// IsClosed reports whether the session has finished tearing down.
func (s *Session) IsClosed() bool { return s.closeDone.Load() }

// CloseReason reports why the session closed, or ReasonUnspecified if it
// hasn't.
func (s *Session) CloseReason() CloseReason { return CloseReason(s.closeReason.Load()) }

func (s *Session) pingInterval() time.Duration {
	return time.Duration(s.pingIntervalNs.Load())
}

// Start launches the I/O engine and the ping loop. For the client role it
// also emits the initial Hello frame, advertising the currently
// registered encoders in registration order, per §4.D.
func (s *Session) Start() {
	if s.role == RoleClient {
		s.handler.SendHello(uint32(s.pingInterval()/time.Millisecond), s.neg.Advertised())
		s.watcher.signal()
	}
	go s.ioLoop()
	go s.pingLoop()
}

// markReady unblocks every goroutine suspended in awaitReady, whether
// negotiation actually succeeded or the session is closing out from
// under them — matching §4.H's "set ready (to unblock pending waiters)".
func (s *Session) markReady() {
	s.readyOnce.Do(func() { close(s.readyCh) })
}

// awaitReady is the suspension point described in §5: send_* operations
// that require an encoder block here until ready is set or the session
// closes.
func (s *Session) awaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.stop.Load() {
		return ErrConnectionTerminated
	}
	if !s.ready.Load() {
		return ErrNoEncoderAvailable
	}
	return nil
}

func (s *Session) currentEncoder() (Encoder, error) {
	s.mu.Lock()
	enc := s.encoder
	s.mu.Unlock()
	if enc == nil {
		return nil, ErrNoEncoderAvailable
	}
	return enc, nil
}

// SendRequest encodes value with the negotiated encoder, allocates a
// sequence number via the Stream Handler, registers a waiter under it,
// and schedules the frame for writing. Client role only.
func (s *Session) SendRequest(ctx context.Context, value any) (*ResultFuture, error) {
	if s.role != RoleClient {
		return nil, newProgrammerError("SendRequest", "only the client role may send requests")
	}
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}
	enc, err := s.currentEncoder()
	if err != nil {
		return nil, err
	}
	payload, err := enc.Encode(value)
	if err != nil {
		return nil, errors.Wrap(err, "loqui: encode request")
	}

	call := newPendingCall()
	seq := s.handler.SendRequest(payload)
	s.inflight.insert(seq, &inflightEntry{kind: entryPendingCall, call: call})
	s.watcher.signal()
	return &ResultFuture{call: call}, nil
}

// SendPush encodes value and forwards it as a one-way Push frame. Client
// role only. Per the spec's unification of the open question in §9,
// Push payloads encode on send and decode on receive symmetrically with
// Request payloads.
func (s *Session) SendPush(ctx context.Context, value any) error {
	if s.role != RoleClient {
		return newProgrammerError("SendPush", "only the client role may send pushes")
	}
	if err := s.awaitReady(ctx); err != nil {
		return err
	}
	enc, err := s.currentEncoder()
	if err != nil {
		return err
	}
	payload, err := enc.Encode(value)
	if err != nil {
		return errors.Wrap(err, "loqui: encode push")
	}
	s.handler.SendPush(payload)
	s.watcher.signal()
	return nil
}

// SendResponse encodes value and replies to the request under seq.
// Server role only; seq must belong to an open exchange.
func (s *Session) SendResponse(ctx context.Context, seq uint32, value any) error {
	if s.role != RoleServer {
		return newProgrammerError("SendResponse", "only the server role may send responses")
	}
	if err := s.awaitReady(ctx); err != nil {
		return err
	}
	entry := s.inflight.take(seq)
	if entry == nil || entry.kind != entryServingRequest {
		return newProgrammerError("SendResponse", "unknown sequence number")
	}
	enc, err := s.currentEncoder()
	if err != nil {
		return err
	}
	payload, err := enc.Encode(value)
	if err != nil {
		return errors.Wrap(err, "loqui: encode response")
	}
	s.handler.SendResponse(seq, payload)
	s.watcher.signal()
	return nil
}

// Ping emits a Ping frame and returns an awaitable resolved when the
// matching Pong arrives, or failed when the session closes first.
func (s *Session) Ping(ctx context.Context) (*ResultFuture, error) {
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}
	call := s.issuePing()
	return &ResultFuture{call: call}, nil
}

// issuePing is the shared implementation behind Ping and the keepalive
// loop in ping.go.
func (s *Session) issuePing() *pendingCall {
	call := newPendingCall()
	seq := s.handler.SendPing()
	s.inflight.insert(seq, &inflightEntry{kind: entryPendingCall, call: call})
	s.watcher.signal()
	return call
}

// dispatch handles one decoded wire event, implementing the transition
// table in spec.md §4.E. It runs exclusively on the I/O engine goroutine,
// so callback invocations are naturally serialized, per §5.
func (s *Session) dispatch(ev wire.Event) {
	switch ev.Kind {
	case wire.KindHello:
		s.handleHello(ev)
	case wire.KindSelectEncoding:
		s.handleSelectEncoding(ev)
	case wire.KindRequest:
		s.handleRequest(ev)
	case wire.KindResponse:
		s.handleResponse(ev)
	case wire.KindPush:
		s.handlePush(ev)
	case wire.KindPing:
		// no-op: the Stream Handler already queued the Pong.
	case wire.KindPong:
		s.handlePong(ev)
	case wire.KindGoAway:
		s.logger.Printf("loqui: received GoAway (seq=%d), no graceful drain implemented", ev.Seq)
	}
}

func (s *Session) handleHello(ev wire.Event) {
	if s.role != RoleServer || s.ready.Load() {
		return
	}
	name, enc, ok := s.neg.Pick(ev.Encodings)
	if !ok {
		s.Close(false, ReasonNoMutualEncoders)
		return
	}
	if ev.PingIntervalMs > 0 {
		s.pingIntervalNs.Store(int64(time.Duration(ev.PingIntervalMs) * time.Millisecond))
	}
	s.mu.Lock()
	s.encoder = enc
	s.mu.Unlock()
	s.handler.SendSelectEncoding(name)
	s.watcher.signal()
	s.ready.Store(true)
	s.markReady()
}

func (s *Session) handleSelectEncoding(ev wire.Event) {
	if s.role != RoleClient || s.ready.Load() {
		return
	}
	enc, ok := s.neg.Lookup(ev.EncodingName)
	if !ok {
		s.Close(false, ReasonUnknownEncoder)
		return
	}
	s.mu.Lock()
	s.encoder = enc
	s.mu.Unlock()
	s.ready.Store(true)
	s.markReady()
}

func (s *Session) handleRequest(ev wire.Event) {
	enc, err := s.currentEncoder()
	if err != nil {
		return
	}
	value, err := enc.Decode(ev.Payload)
	if err != nil {
		s.logger.Printf("loqui: dropping request seq=%d: decode error: %v", ev.Seq, err)
		return
	}
	if !s.inflight.insert(ev.Seq, &inflightEntry{kind: entryServingRequest, request: value}) {
		s.logger.Printf("loqui: dropping request seq=%d: sequence already in use", ev.Seq)
		return
	}
	if s.onRequest == nil {
		return
	}
	reply, ok := s.onRequest(ev.Seq, value)
	if !ok {
		return
	}
	entry := s.inflight.take(ev.Seq)
	if entry == nil {
		return // answered via SendResponse from within the callback already
	}
	enc, err = s.currentEncoder()
	if err != nil {
		return
	}
	payload, err := enc.Encode(reply)
	if err != nil {
		s.logger.Printf("loqui: dropping reply for seq=%d: encode error: %v", ev.Seq, err)
		return
	}
	s.handler.SendResponse(ev.Seq, payload)
	s.watcher.signal()
}

func (s *Session) handleResponse(ev wire.Event) {
	entry := s.inflight.take(ev.Seq)
	if entry == nil || entry.kind != entryPendingCall {
		return // unknown seq: dropped silently, per §7
	}
	enc, err := s.currentEncoder()
	if err != nil {
		entry.call.settle(nil, err)
		return
	}
	value, err := enc.Decode(ev.Payload)
	if err != nil {
		entry.call.settle(nil, errors.Wrap(err, "loqui: decode response"))
		return
	}
	entry.call.settle(value, nil)
}

func (s *Session) handlePush(ev wire.Event) {
	enc, err := s.currentEncoder()
	if err != nil {
		return
	}
	value, err := enc.Decode(ev.Payload)
	if err != nil {
		s.logger.Printf("loqui: dropping push: decode error: %v", err)
		return
	}
	if s.onPush != nil {
		s.onPush(value)
	}
}

func (s *Session) handlePong(ev wire.Event) {
	entry := s.inflight.take(ev.Seq)
	if entry == nil || entry.kind != entryPendingCall {
		return
	}
	entry.call.settle(nil, nil)
}
