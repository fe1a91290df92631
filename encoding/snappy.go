package encoding

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// encoder is the structural contract this package's types satisfy,
// matching loqui.Encoder without importing the root package (the root
// package is the one that knows about encoding, not the other way
// around).
type encoder interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Snappy wraps another Encoder and compresses its wire bytes with
// snappy's block codec, grounded on
// _examples/xtaci-kcptun/std/comp.go's CompStream — generalized from a
// streaming net.Conn wrapper to a block encoder/decoder pair, since
// this package compresses whole messages rather than a byte stream.
type Snappy struct {
	Inner encoder
}

// NewSnappy wraps inner with snappy block compression.
func NewSnappy(inner encoder) Snappy {
	return Snappy{Inner: inner}
}

// Encode delegates to Inner and compresses the result.
func (s Snappy) Encode(value any) ([]byte, error) {
	raw, err := s.Inner.Encode(value)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return snappy.Encode(nil, raw), nil
}

// Decode decompresses data and delegates to Inner.
func (s Snappy) Decode(data []byte) (any, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return s.Inner.Decode(raw)
}
