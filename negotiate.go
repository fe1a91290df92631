package loqui

import "sync"

// Encoder is the upward-facing contract from §3/§6: a named pair of pure
// functions selected by the handshake. value is an any so callers can
// register codecs for arbitrary Go types (see the encoding/ subpackage
// for the built-ins).
type Encoder interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Negotiator is the Encoding Negotiator (§4.D): a name->Encoder registry
// plus the Pick algorithm. There is no smux analogue (smux's wire version
// is fixed, not negotiated); this is modeled on the registry shape in
// _examples/other_examples/0272186f_xiqingping-birpc's Registry, built
// from scratch in the teacher's idiom — small struct, plain map, no
// generics.
type Negotiator struct {
	mu       sync.RWMutex
	encoders map[string]Encoder
	order    []string // registration order, advertised as-is in Hello
}

func newNegotiator() *Negotiator {
	return &Negotiator{encoders: make(map[string]Encoder)}
}

// Register associates name with enc. Per §9's design notes, registering
// after negotiation has completed has no effect on the current session:
// the client snapshots Advertised() into its Hello frame and the server
// runs Pick() against Hello's list the moment it arrives, so a
// registration landing after either point is simply never consulted.
func (n *Negotiator) Register(name string, enc Encoder) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.encoders[name]; !exists {
		n.order = append(n.order, name)
	}
	n.encoders[name] = enc
}

// Advertised returns the registered encoder names in registration order,
// the list a client side sends in its Hello frame.
func (n *Negotiator) Advertised() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Pick returns the first name in candidates present in the registry, and
// the matching Encoder, or ("", nil, false) if the intersection is empty.
func (n *Negotiator) Pick(candidates []string) (string, Encoder, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, name := range candidates {
		if enc, ok := n.encoders[name]; ok {
			return name, enc, true
		}
	}
	return "", nil, false
}

// Lookup returns the Encoder registered under name, if any.
func (n *Negotiator) Lookup(name string) (Encoder, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	enc, ok := n.encoders[name]
	return enc, ok
}
