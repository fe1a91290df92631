package loqui

import "time"

// Close implements §4.H's Shutdown Path. It is idempotent: the first
// caller (whichever goroutine gets there first, including the I/O
// engine itself on a fatal socket error) records reason and starts the
// terminator; every later call just observes the same outcome.
//
// block selects between the two call sites §4.H distinguishes: a user
// calling Session.Close wants to know teardown finished before
// returning, while the I/O engine and ping loop want to request
// shutdown without stalling themselves waiting on their own exit.
func (s *Session) Close(block bool, reason CloseReason) error {
	s.closeOnce.Do(func() {
		s.closeReason.Store(int32(reason))
		s.stop.Store(true)
		s.markReady() // unblock any awaitReady waiters with ErrConnectionTerminated
		go s.terminate()
	})
	if block {
		<-s.closeDoneCh
	}
	return nil
}

// terminate is the Shutdown Path's actual cleanup, run once on its own
// goroutine. It gives the I/O engine one grace period (Config.ShutdownGrace,
// or Config.PingInterval when that is zero) to notice stop and exit on
// its own before forcing teardown — matching smux's Close ordering in
// _examples/SagerNet-smux/session.go, which signals via a channel close
// and then unconditionally releases the underlying conn regardless of
// whether the read/write loops had already unwound.
func (s *Session) terminate() {
	grace := s.cfg.shutdownGrace()
	select {
	case <-s.ioDoneCh:
	case <-time.After(grace):
	}

	s.inflight.drainFailing(closeErrorForReason(CloseReason(s.closeReason.Load())))
	s.released.Store(true)
	s.watcher.signal() // wake ioLoop so it observes released and exits
	_ = s.sock.Close()

	select {
	case <-s.ioDoneCh:
	case <-time.After(grace):
	}

	s.closeDone.Store(true)
	close(s.closeDoneCh) // terminate only ever runs once, via Close's sync.Once
}
