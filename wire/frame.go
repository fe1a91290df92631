// Package wire provides the reference implementation of the §4.B Stream
// Handler contract: a byte<->frame codec, out of scope for the session
// state machine itself but required for a runnable system. Its header
// layout (ver, cmd, length, seq) generalizes smux's rawHeader (ver, cmd,
// length, sid) from _examples/SagerNet-smux/session.go to the spec's
// eight frame kinds.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Kind enumerates the eight frame kinds named in §2/§4.B.
type Kind uint8

const (
	KindRequest        Kind = 1
	KindResponse       Kind = 2
	KindPush           Kind = 3
	KindPing           Kind = 4
	KindPong           Kind = 5
	KindHello          Kind = 6
	KindGoAway         Kind = 7
	KindSelectEncoding Kind = 8
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "Request"
	case KindResponse:
		return "Response"
	case KindPush:
		return "Push"
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	case KindHello:
		return "Hello"
	case KindGoAway:
		return "GoAway"
	case KindSelectEncoding:
		return "SelectEncoding"
	default:
		return "Unknown"
	}
}

const (
	wireVersion = 1
	headerSize  = 8 // ver uint8, cmd uint8, length uint16, seq uint32
)

// ErrInvalidProtocol mirrors smux's ErrInvalidProtocol sentinel for a
// header carrying an unrecognized version or frame kind.
var ErrInvalidProtocol = errors.New("wire: invalid protocol")

// Event is a decoded frame handed to the session's dispatcher. Hello
// carries PingIntervalMs and Encodings; SelectEncoding carries
// EncodingName; Request/Response/Push carry Payload; Ping/Pong/GoAway
// carry neither.
type Event struct {
	Kind           Kind
	Seq            uint32
	Payload        []byte
	PingIntervalMs uint32
	Encodings      []string
	EncodingName   string
}

func encodeHeader(buf []byte, kind Kind, length uint16, seq uint32) {
	buf[0] = wireVersion
	buf[1] = byte(kind)
	binary.LittleEndian.PutUint16(buf[2:4], length)
	binary.LittleEndian.PutUint32(buf[4:8], seq)
}

func encodeHello(pingIntervalMs uint32, encodings []string) []byte {
	size := 4
	for _, name := range encodings {
		size += 1 + len(name)
	}
	body := make([]byte, 4, size)
	binary.LittleEndian.PutUint32(body[0:4], pingIntervalMs)
	for _, name := range encodings {
		body = append(body, byte(len(name)))
		body = append(body, name...)
	}
	return body
}

func decodeHello(body []byte) (pingIntervalMs uint32, encodings []string, err error) {
	if len(body) < 4 {
		return 0, nil, errors.New("wire: truncated Hello body")
	}
	pingIntervalMs = binary.LittleEndian.Uint32(body[0:4])
	rest := body[4:]
	for len(rest) > 0 {
		n := int(rest[0])
		rest = rest[1:]
		if n > len(rest) {
			return 0, nil, errors.New("wire: truncated Hello encoding name")
		}
		encodings = append(encodings, string(rest[:n]))
		rest = rest[n:]
	}
	return pingIntervalMs, encodings, nil
}

func encodeSelectEncoding(name string) []byte {
	body := make([]byte, 1+len(name))
	body[0] = byte(len(name))
	copy(body[1:], name)
	return body
}

func decodeSelectEncoding(body []byte) (string, error) {
	if len(body) < 1 {
		return "", errors.New("wire: truncated SelectEncoding body")
	}
	n := int(body[0])
	if len(body) < 1+n {
		return "", errors.New("wire: truncated SelectEncoding name")
	}
	return string(body[1 : 1+n]), nil
}
