package loqui

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/SmithJrBlaquaLuigi/loqui/wire"
)

// writeAll retries past this Socket's transient would-block signal
// until every byte of data has been handed to the peer.
func writeAll(t *testing.T, sock Socket, data []byte) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(data) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("writeAll: timed out with %d bytes remaining", len(data))
		}
		n, err := sock.Write(data)
		if err != nil {
			t.Fatalf("writeAll: %v", err)
		}
		data = data[n:]
	}
}

func testSessionPair(t *testing.T, pingInterval time.Duration) (*Session, *Session, func()) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	cfg := DefaultConfig()
	cfg.PingInterval = pingInterval
	cfg.PollInterval = 2 * time.Millisecond

	client := NewSession(NewNetSocket(clientConn, 2*time.Millisecond), cfg, RoleClient)
	server := NewSession(NewNetSocket(serverConn, 2*time.Millisecond), cfg, RoleServer)

	cleanup := func() {
		client.Close(true, ReasonExplicitClose)
		server.Close(true, ReasonExplicitClose)
	}
	return client, server, cleanup
}

func TestSessionHappyPathRequestResponse(t *testing.T) {
	client, server, cleanup := testSessionPair(t, time.Minute)
	defer cleanup()

	client.RegisterEncoder("identity", identityEncoder{})
	server.RegisterEncoder("identity", identityEncoder{})
	server.OnRequest(func(seq uint32, payload any) (any, bool) {
		s, _ := payload.(string)
		return s + "-ack", true
	})

	client.Start()
	server.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	future, err := client.SendRequest(ctx, "hello")
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	reply, err := future.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if reply != "hello-ack" {
		t.Fatalf("want hello-ack, got %v", reply)
	}
}

func TestSessionPushIsDeliveredWithoutReply(t *testing.T) {
	client, server, cleanup := testSessionPair(t, time.Minute)
	defer cleanup()

	client.RegisterEncoder("identity", identityEncoder{})
	server.RegisterEncoder("identity", identityEncoder{})

	received := make(chan any, 1)
	server.OnPush(func(payload any) { received <- payload })

	client.Start()
	server.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.SendPush(ctx, "fire and forget"); err != nil {
		t.Fatalf("SendPush: %v", err)
	}

	select {
	case got := <-received:
		if got != "fire and forget" {
			t.Fatalf("unexpected push payload: %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("push was never delivered")
	}
}

func TestSessionPingPong(t *testing.T) {
	client, server, cleanup := testSessionPair(t, time.Minute)
	defer cleanup()

	client.RegisterEncoder("identity", identityEncoder{})
	server.RegisterEncoder("identity", identityEncoder{})
	client.Start()
	server.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	future, err := client.Ping(ctx)
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, err := future.Wait(ctx); err != nil {
		t.Fatalf("ping should be answered: %v", err)
	}
}

func TestSessionNoMutualEncoderFailsNegotiation(t *testing.T) {
	client, server, cleanup := testSessionPair(t, 150*time.Millisecond)
	defer cleanup()

	client.RegisterEncoder("clientonly", identityEncoder{})
	server.RegisterEncoder("serveronly", identityEncoder{})

	client.Start()
	server.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.SendRequest(ctx, "hello")
	if err == nil {
		t.Fatalf("want negotiation to fail when there is no mutual encoder")
	}
}

func TestSessionDropsResponseForUnknownSequence(t *testing.T) {
	client, server, cleanup := testSessionPair(t, time.Minute)
	defer cleanup()

	client.RegisterEncoder("identity", identityEncoder{})
	server.RegisterEncoder("identity", identityEncoder{})
	server.OnRequest(func(seq uint32, payload any) (any, bool) {
		s, _ := payload.(string)
		return s, true
	})
	client.Start()
	server.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Wait for negotiation via a throwaway request before injecting junk.
	warm, err := client.SendRequest(ctx, "warmup")
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if _, err := warm.Wait(ctx); err != nil {
		t.Fatalf("warmup request failed: %v", err)
	}

	junk := wire.NewHandler()
	junk.SendResponse(999999, []byte("\"unsolicited\""))
	writeAll(t, server.sock, junk.WriteBufferTake(junk.WriteBufferLen()))

	future, err := client.SendRequest(ctx, "after-junk")
	if err != nil {
		t.Fatalf("SendRequest after junk: %v", err)
	}
	reply, err := future.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait after junk: %v", err)
	}
	if reply != "after-junk" {
		t.Fatalf("unexpected reply after unsolicited response: %v", reply)
	}
}

func TestSessionOutOfOrderResponsesMatchBySequence(t *testing.T) {
	client, server, cleanup := testSessionPair(t, time.Minute)
	defer cleanup()

	client.RegisterEncoder("identity", identityEncoder{})
	server.RegisterEncoder("identity", identityEncoder{})

	seqs := make(chan uint32, 2)
	server.OnRequest(func(seq uint32, payload any) (any, bool) {
		seqs <- seq
		return nil, false // answered later, out of arrival order
	})

	client.Start()
	server.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, err := client.SendRequest(ctx, "first")
	if err != nil {
		t.Fatalf("SendRequest first: %v", err)
	}
	second, err := client.SendRequest(ctx, "second")
	if err != nil {
		t.Fatalf("SendRequest second: %v", err)
	}

	firstSeq := <-seqs
	secondSeq := <-seqs

	// Answer in reverse arrival order: the second request's response
	// goes out over the wire before the first's.
	if err := server.SendResponse(ctx, secondSeq, "second-ack"); err != nil {
		t.Fatalf("SendResponse second: %v", err)
	}
	if err := server.SendResponse(ctx, firstSeq, "first-ack"); err != nil {
		t.Fatalf("SendResponse first: %v", err)
	}

	firstReply, err := first.Wait(ctx)
	if err != nil {
		t.Fatalf("first.Wait: %v", err)
	}
	if firstReply != "first-ack" {
		t.Fatalf("first request got mismatched reply: %v", firstReply)
	}

	secondReply, err := second.Wait(ctx)
	if err != nil {
		t.Fatalf("second.Wait: %v", err)
	}
	if secondReply != "second-ack" {
		t.Fatalf("second request got mismatched reply: %v", secondReply)
	}
}

func TestSessionRoleSafety(t *testing.T) {
	client, server, cleanup := testSessionPair(t, time.Minute)
	defer cleanup()

	client.RegisterEncoder("identity", identityEncoder{})
	server.RegisterEncoder("identity", identityEncoder{})
	client.Start()
	server.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := server.SendRequest(ctx, "nope"); err == nil {
		t.Fatalf("server should not be allowed to send requests")
	}
	if err := server.SendPush(ctx, "nope"); err == nil {
		t.Fatalf("server should not be allowed to send pushes")
	}
	if err := client.SendResponse(ctx, 1, "nope"); err == nil {
		t.Fatalf("client should not be allowed to send responses")
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	client, server, cleanup := testSessionPair(t, time.Minute)
	_ = server
	client.RegisterEncoder("identity", identityEncoder{})
	server.RegisterEncoder("identity", identityEncoder{})
	client.Start()
	server.Start()

	if err := client.Close(true, ReasonExplicitClose); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := client.Close(true, ReasonPeerEOF); err != nil {
		t.Fatalf("second Close should be a harmless no-op: %v", err)
	}
	if client.CloseReason() != ReasonExplicitClose {
		t.Fatalf("want the first reason to stick, got %v", client.CloseReason())
	}
	cleanup()
}

func TestSessionClosePendingCallsFailOnShutdown(t *testing.T) {
	client, server, cleanup := testSessionPair(t, time.Minute)
	defer cleanup()

	client.RegisterEncoder("identity", identityEncoder{})
	server.RegisterEncoder("identity", identityEncoder{})
	// No OnRequest handler registered server-side: the request is left
	// permanently pending so we can observe it fail on shutdown.
	client.Start()
	server.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	future, err := client.SendRequest(ctx, "never answered")
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	client.Close(true, ReasonExplicitClose)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if _, err := future.Wait(waitCtx); err == nil {
		t.Fatalf("pending call should fail once the session closes")
	}
}
