package loqui

import "time"

// pingLoop is §4.G's keepalive: once the session is ready, it issues a
// Ping on every tick of the negotiated interval and checks that the
// previous one was answered before issuing the next. A Ping still
// outstanding at the next tick means the peer has gone silent for a
// full interval, so the session is declared dead.
//
// Grounded on smux's keepalive goroutine in
// _examples/SagerNet-smux/session.go, which likewise loops on a ticker
// and calls Close on the session once a ping round goes unanswered.
func (s *Session) pingLoop() {
	select {
	case <-s.readyCh:
	case <-s.ioDoneCh:
		return
	}
	if s.stop.Load() {
		return
	}

	var outstanding *pendingCall
	for {
		interval := s.pingInterval()
		if interval <= 0 {
			interval = time.Second
		}
		timer := time.NewTimer(interval)

		select {
		case <-timer.C:
		case <-s.ioDoneCh:
			timer.Stop()
			return
		}

		if s.stop.Load() {
			return
		}
		if outstanding != nil && !outstanding.isDone() {
			s.Close(false, ReasonPingTimeout)
			return
		}
		outstanding = s.issuePing()
	}
}
