package loqui

import (
	"context"
	"sync"
)

// pendingCall is the "awaitable result" from §9's design notes: a
// one-shot future with three observable states (pending, fulfilled,
// failed) and a single consumer. settle is safe to call more than once;
// only the first call has any effect, which is how shutdown can move a
// pending call to failed without racing a late fulfillment.
type pendingCall struct {
	done    chan struct{}
	once    sync.Once
	payload any
	err     error
}

func newPendingCall() *pendingCall {
	return &pendingCall{done: make(chan struct{})}
}

func (c *pendingCall) settle(payload any, err error) {
	c.once.Do(func() {
		c.payload = payload
		c.err = err
		close(c.done)
	})
}

// isDone reports whether settle has already run, without blocking. Used
// by the ping loop to check liveness without a second goroutine.
func (c *pendingCall) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// ResultFuture is the public handle returned by SendRequest and Ping.
type ResultFuture struct {
	call *pendingCall
}

// Wait blocks until the response/pong arrives or the session fails the
// call during shutdown, whichever happens first, or ctx is cancelled.
func (f *ResultFuture) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.call.done:
		return f.call.payload, f.call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// entryKind discriminates an Inflight Table entry, per §4.C and §9's
// "tagged variant, not two maps" note.
type entryKind int

const (
	entryPendingCall entryKind = iota
	entryServingRequest
)

// inflightEntry is the Inflight Table's value type: either an outbound
// pending call this process is waiting on, or an inbound request
// currently under service (retained so SendResponse can validate its
// seq).
type inflightEntry struct {
	kind    entryKind
	call    *pendingCall // set when kind == entryPendingCall
	request any          // set when kind == entryServingRequest
}

// inflightTable maps sequence numbers to pending exchanges. Guarded by a
// mutex rather than left lock-free, the same generalization smux makes
// with streamLock around its streams map in
// _examples/SagerNet-smux/session.go, since Go sessions are touched from
// multiple goroutines unlike the spec's single-scheduler source model.
type inflightTable struct {
	mu      sync.Mutex
	entries map[uint32]*inflightEntry
}

func newInflightTable() *inflightTable {
	return &inflightTable{entries: make(map[uint32]*inflightEntry)}
}

// insert adds an entry under seq. Precondition: seq absent. Returns false
// if the precondition is violated and leaves the existing entry in place.
// handleRequest logs and drops an inbound request whose seq collides;
// SendRequest and issuePing ignore the result, since their sequence
// numbers come from the Stream Handler's own counter.
func (t *inflightTable) insert(seq uint32, e *inflightEntry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[seq]; exists {
		return false
	}
	t.entries[seq] = e
	return true
}

// take removes and returns the entry for seq, or nil if absent.
func (t *inflightTable) take(seq uint32) *inflightEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[seq]
	if !ok {
		return nil
	}
	delete(t.entries, seq)
	return e
}

// peek returns the entry for seq without removing it.
func (t *inflightTable) peek(seq uint32) *inflightEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[seq]
}

// drainFailing removes every entry and fails every outbound-call entry
// with err. Order is unspecified, per §4.C.
func (t *inflightTable) drainFailing(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint32]*inflightEntry)
	t.mu.Unlock()

	for _, e := range entries {
		if e.kind == entryPendingCall {
			e.call.settle(nil, err)
		}
	}
}

func (t *inflightTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
