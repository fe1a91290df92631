package wire

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Handler is the reference Stream Handler: it owns outbound sequence
// allocation, the outbound frame queue, and the incoming byte->event
// decode loop. Sessions treat it as an external collaborator per §1/§4.B.
//
// Sequence allocation via atomic.AddUint32 is grounded directly on smux's
// requestID counter in _examples/SagerNet-smux/session.go's
// writeFrameInternal; the outbound queue is a bytes.Buffer guarded by a
// mutex rather than smux's channel-based shaper, since this session has
// no priority classes to shape between.
type Handler struct {
	seq uint32 // atomic, monotonically increasing

	outMu sync.Mutex
	out   bytes.Buffer

	recvMu sync.Mutex
	recv   bytes.Buffer
}

// NewHandler constructs a Handler with a fresh sequence counter.
func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) nextSeq() uint32 {
	return atomic.AddUint32(&h.seq, 1)
}

func (h *Handler) enqueue(kind Kind, seq uint32, body []byte) {
	var hdr [headerSize]byte
	encodeHeader(hdr[:], kind, uint16(len(body)), seq)
	h.outMu.Lock()
	h.out.Write(hdr[:])
	h.out.Write(body)
	h.outMu.Unlock()
}

// SendRequest enqueues a Request frame with a freshly allocated sequence
// number and returns it.
func (h *Handler) SendRequest(payload []byte) uint32 {
	seq := h.nextSeq()
	h.enqueue(KindRequest, seq, payload)
	return seq
}

// SendPush enqueues a Push frame. Push frames carry no reply, so no
// sequence number is returned, matching §6's send_push(value) signature.
func (h *Handler) SendPush(payload []byte) {
	h.enqueue(KindPush, h.nextSeq(), payload)
}

// SendResponse enqueues a Response frame under the request's seq.
func (h *Handler) SendResponse(seq uint32, payload []byte) {
	h.enqueue(KindResponse, seq, payload)
}

// SendPing enqueues a Ping frame and returns its sequence number.
func (h *Handler) SendPing() uint32 {
	seq := h.nextSeq()
	h.enqueue(KindPing, seq, nil)
	return seq
}

// SendHello enqueues a Hello frame. Only ever sent by the client role,
// when the session starts, per §4.D.
func (h *Handler) SendHello(pingIntervalMs uint32, encodings []string) {
	h.enqueue(KindHello, h.nextSeq(), encodeHello(pingIntervalMs, encodings))
}

// SendSelectEncoding enqueues a SelectEncoding frame. Only ever sent by
// the server role, in reply to Hello.
func (h *Handler) SendSelectEncoding(name string) {
	h.enqueue(KindSelectEncoding, h.nextSeq(), encodeSelectEncoding(name))
}

// SendGoAway enqueues a GoAway frame. Reserved per §4.H; not required for
// conformance but exposed for callers that want graceful-shutdown intent
// to reach the peer.
func (h *Handler) SendGoAway() {
	h.enqueue(KindGoAway, h.nextSeq(), nil)
}

// WriteBufferLen returns the number of bytes currently queued for
// sending.
func (h *Handler) WriteBufferLen() int {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	return h.out.Len()
}

// WriteBufferTake drains up to n bytes of wire-format output.
func (h *Handler) WriteBufferTake(n int) []byte {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	if n > h.out.Len() {
		n = h.out.Len()
	}
	if n <= 0 {
		return nil
	}
	return h.out.Next(n)
}

// OnBytes feeds a chunk of received bytes and returns every frame that
// could be fully decoded, in wire order. Partial frames are retained
// internally for the next call. Ping frames are acknowledged with a Pong
// transparently, per §4.B: the Pong is pushed straight onto the outbound
// queue and the Ping is still surfaced as an Event so the session can
// observe liveness traffic (it no-ops on it, per §4.E's table).
func (h *Handler) OnBytes(data []byte) ([]Event, error) {
	h.recvMu.Lock()
	defer h.recvMu.Unlock()

	h.recv.Write(data)

	var events []Event
	for {
		buffered := h.recv.Bytes()
		if len(buffered) < headerSize {
			break
		}
		ver := buffered[0]
		kind := Kind(buffered[1])
		length := int(buffered[2]) | int(buffered[3])<<8
		seq := uint32(buffered[4]) | uint32(buffered[5])<<8 | uint32(buffered[6])<<16 | uint32(buffered[7])<<24
		if ver != wireVersion {
			return events, ErrInvalidProtocol
		}
		if len(buffered) < headerSize+length {
			break // wait for more bytes
		}

		body := make([]byte, length)
		copy(body, buffered[headerSize:headerSize+length])
		h.recv.Next(headerSize + length)

		ev, err := h.decodeBody(kind, seq, body)
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (h *Handler) decodeBody(kind Kind, seq uint32, body []byte) (Event, error) {
	switch kind {
	case KindRequest, KindResponse, KindPush:
		return Event{Kind: kind, Seq: seq, Payload: body}, nil
	case KindPing:
		h.enqueue(KindPong, seq, nil)
		return Event{Kind: KindPing, Seq: seq}, nil
	case KindPong:
		return Event{Kind: KindPong, Seq: seq}, nil
	case KindGoAway:
		return Event{Kind: KindGoAway, Seq: seq}, nil
	case KindHello:
		ms, encodings, err := decodeHello(body)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: KindHello, Seq: seq, PingIntervalMs: ms, Encodings: encodings}, nil
	case KindSelectEncoding:
		name, err := decodeSelectEncoding(body)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: KindSelectEncoding, Seq: seq, EncodingName: name}, nil
	default:
		return Event{}, ErrInvalidProtocol
	}
}
