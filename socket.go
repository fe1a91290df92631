package loqui

import (
	"errors"
	"net"
	"time"
)

// ErrWouldBlock is the sentinel a Socket's Read returns for a transient,
// retry-worthy condition — the EAGAIN/EINPROGRESS case in §4.F step 3.
// Read's other two outcomes, per §6/§4.F: (n>0, nil) for data, or any
// other error (including a genuine EOF) to mean "the peer is gone,
// close()". Write has its own, asymmetric contract: (0, nil) means
// would-block (§4.F step 5's "If it returns 0, set write_blocked"); any
// other error is fatal.
var ErrWouldBlock = errors.New("loqui: socket operation would block")

// Socket is the downward dependency described in §6: a non-blocking
// descriptor abstraction.
type Socket interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
}

// netSocket adapts a blocking net.Conn to the Socket contract using short
// read/write deadlines as the idiomatic Go substitute for a raw
// non-blocking fd with EAGAIN/EINPROGRESS. A timeout on the deadline
// becomes ErrWouldBlock; any other error, including io.EOF, passes
// through as fatal — exactly what a real non-blocking socket would
// report as a kernel error distinct from EAGAIN.
type netSocket struct {
	conn net.Conn
	poll time.Duration
}

// NewNetSocket wraps conn as a Socket polled at the given interval. A
// poll of zero uses a 5ms default.
func NewNetSocket(conn net.Conn, poll time.Duration) Socket {
	if poll <= 0 {
		poll = 5 * time.Millisecond
	}
	return &netSocket{conn: conn, poll: poll}
}

func (s *netSocket) Read(p []byte) (int, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.poll))
	n, err := s.conn.Read(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

func (s *netSocket) Write(p []byte) (int, error) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.poll))
	n, err := s.conn.Write(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			// A partial write before the deadline fired still left n
			// bytes on the wire; report them so the caller's staging
			// buffer advances past them instead of resending them.
			return n, nil
		}
		return n, err
	}
	return n, nil
}

func (s *netSocket) Close() error {
	return s.conn.Close()
}
