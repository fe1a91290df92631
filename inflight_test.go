package loqui

import (
	"context"
	"testing"
	"time"
)

func TestPendingCallSettleOnce(t *testing.T) {
	c := newPendingCall()
	if c.isDone() {
		t.Fatalf("new call should not be done")
	}
	c.settle("first", nil)
	c.settle("second", ErrConnectionTerminated) // must be a no-op
	if !c.isDone() {
		t.Fatalf("call should be done after settle")
	}

	f := &ResultFuture{call: c}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	value, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "first" {
		t.Fatalf("want first settle to win, got %v", value)
	}
}

func TestResultFutureWaitRespectsContext(t *testing.T) {
	c := newPendingCall()
	f := &ResultFuture{call: c}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); err == nil {
		t.Fatalf("want context deadline error, got nil")
	}
}

func TestInflightTableInsertRejectsDuplicateSeq(t *testing.T) {
	table := newInflightTable()
	if !table.insert(1, &inflightEntry{kind: entryPendingCall, call: newPendingCall()}) {
		t.Fatalf("first insert should succeed")
	}
	if table.insert(1, &inflightEntry{kind: entryPendingCall, call: newPendingCall()}) {
		t.Fatalf("duplicate seq insert should fail")
	}
}

func TestInflightTableTakeRemovesEntry(t *testing.T) {
	table := newInflightTable()
	table.insert(7, &inflightEntry{kind: entryServingRequest, request: "hi"})
	if table.peek(7) == nil {
		t.Fatalf("entry should be visible via peek")
	}
	entry := table.take(7)
	if entry == nil || entry.request != "hi" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if table.take(7) != nil {
		t.Fatalf("entry should be gone after take")
	}
}

func TestInflightTableDrainFailingSettlesPendingCallsOnly(t *testing.T) {
	table := newInflightTable()
	call := newPendingCall()
	table.insert(1, &inflightEntry{kind: entryPendingCall, call: call})
	table.insert(2, &inflightEntry{kind: entryServingRequest, request: "pending request"})

	table.drainFailing(ErrConnectionTerminated)

	if !call.isDone() {
		t.Fatalf("pending call should be settled by drainFailing")
	}
	if call.err != ErrConnectionTerminated {
		t.Fatalf("want ErrConnectionTerminated, got %v", call.err)
	}
	if table.len() != 0 {
		t.Fatalf("table should be empty after drain, has %d entries", table.len())
	}
}
