package loqui

import "context"

// ioLoop is the I/O Engine from §4.F: the single cooperative goroutine
// that owns the socket and the staging buffer. It is the only reader and
// writer of the Socket for the lifetime of the session.
func (s *Session) ioLoop() {
	defer close(s.ioDoneCh)

	readBuf := make([]byte, s.readChunk)
	for {
		if s.released.Load() || s.stop.Load() {
			return
		}

		s.watcher.wait(context.Background())

		if s.tryRead(readBuf) {
			return // fatal read error or peer EOF: close() already requested
		}
		if s.released.Load() {
			return
		}

		s.maybeWrite()

		s.watcher.reset()
	}
}

// tryRead performs step 3 of §4.F: a single bounded read, dispatching
// every decoded event. Returns true if the read was fatal: Close has
// already been requested and the caller stops looping.
func (s *Session) tryRead(buf []byte) (fatal bool) {
	n, err := s.sock.Read(buf)
	if err == ErrWouldBlock {
		return false
	}
	if err != nil {
		s.Close(false, ReasonSocketError)
		return true
	}
	if n == 0 {
		s.Close(false, ReasonPeerEOF)
		return true
	}

	events, err := s.handler.OnBytes(buf[:n])
	for _, ev := range events {
		s.dispatch(ev)
	}
	if err != nil {
		s.logger.Printf("loqui: frame decode error: %v", err)
		s.Close(false, ReasonSocketError)
		return true
	}
	return false
}

// maybeWrite implements §4.F steps 4-6. A real non-blocking socket would
// gate the write attempt on an EPOLLOUT-style edge from the watcher
// before retrying a previously blocked send; our net.Conn-deadline
// substitute has no such edge to wait on, so each loop iteration's
// poll-interval wait (in ioLoop, via watcher.wait) already serves as the
// retry's natural backoff, and the write is simply attempted again.
// isWriteBlocked is retained purely as an observable state for callers
// and tests, not as a gate here.
func (s *Session) maybeWrite() {
	if s.staging.Len() > 0 {
		s.performWrite()
	}
	s.resumeSending()
}

func (s *Session) performWrite() {
	data := s.staging.Bytes()
	n, err := s.sock.Write(data)
	if err != nil {
		s.Close(false, ReasonSocketError)
		return
	}
	if n == 0 {
		s.watcher.markWriteBlocked()
		return
	}
	s.staging.Next(n)
	if s.staging.Len() > 0 {
		s.watcher.markWriteBlocked()
	} else {
		s.watcher.markWriteUnblocked()
	}
}

// resumeSending is §4.F's drain step: move bytes from the Stream
// Handler's unbounded outbound queue into the staging buffer while
// there's room, enforcing the OUTBUF_MAX invariant (Testable Property 1).
func (s *Session) resumeSending() {
	for s.handler.WriteBufferLen() > 0 && s.staging.Len() < s.outbufMax {
		room := s.outbufMax - s.staging.Len()
		chunk := s.handler.WriteBufferTake(room)
		if len(chunk) == 0 {
			break
		}
		wasEmpty := s.staging.Len() == 0
		s.staging.Write(chunk)
		if wasEmpty && !s.watcher.isWriteBlocked() {
			s.watcher.nudge()
		}
	}
}
