package loqui

import (
	"bytes"
	"testing"
)

func TestResumeSendingEnforcesOutbufMax(t *testing.T) {
	sock := &controllableSocket{}
	cfg := DefaultConfig()
	cfg.OutbufMax = 64
	sess := NewSession(sock, cfg, RoleClient)

	sess.handler.SendPush(bytes.Repeat([]byte("x"), 4096))

	sess.resumeSending()
	if sess.staging.Len() > cfg.OutbufMax {
		t.Fatalf("staging buffer exceeded OutbufMax: %d > %d", sess.staging.Len(), cfg.OutbufMax)
	}
	if sess.staging.Len() != cfg.OutbufMax {
		t.Fatalf("staging buffer should fill to the cap when backlog exists, got %d", sess.staging.Len())
	}
	if sess.handler.WriteBufferLen() == 0 {
		t.Fatalf("remaining bytes should still be queued in the Stream Handler")
	}
}

func TestMaybeWriteRetriesAfterSocketUnblocks(t *testing.T) {
	sock := &controllableSocket{}
	cfg := DefaultConfig()
	cfg.OutbufMax = 64
	sess := NewSession(sock, cfg, RoleClient)

	sess.handler.SendPush(bytes.Repeat([]byte("y"), 200))
	sess.resumeSending()

	sock.setBlocked(true)
	sess.maybeWrite()
	if !sess.watcher.isWriteBlocked() {
		t.Fatalf("watcher should observe write_blocked while the socket refuses writes")
	}
	if sock.writtenLen() != 0 {
		t.Fatalf("nothing should reach the socket while blocked, got %d bytes", sock.writtenLen())
	}

	sock.setBlocked(false)
	for i := 0; i < 10 && sess.staging.Len() > 0; i++ {
		sess.maybeWrite()
	}
	if sess.watcher.isWriteBlocked() {
		t.Fatalf("watcher should clear write_blocked once writes succeed")
	}
	const wantTotal = 8 + 200 // frame header + payload
	if sock.writtenLen() != wantTotal {
		t.Fatalf("want all %d bytes eventually written, got %d", wantTotal, sock.writtenLen())
	}
}
