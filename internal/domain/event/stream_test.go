package event

import (
	"context"
	"testing"
	"time"
)

func TestStreamDeliversInOrder(t *testing.T) {
	s := NewStream(8)
	ctx := context.Background()

	types := []Type{TypeIterationStart, TypeActionStart, TypeActionSuccess, TypeTaskCompleted}
	for _, ty := range types {
		if !s.Emit(ctx, New(ty, "t1", nil)) {
			t.Fatalf("Emit(%s) returned false", ty)
		}
	}
	s.Close()

	var got []Type
	for ev := range s.Events() {
		got = append(got, ev.Type)
	}
	if len(got) != len(types) {
		t.Fatalf("received %d events, want %d", len(got), len(types))
	}
	for i := range types {
		if got[i] != types[i] {
			t.Fatalf("event[%d] = %s, want %s", i, got[i], types[i])
		}
	}
}

func TestEmitUnblocksOnCancel(t *testing.T) {
	s := NewStream(1)
	ctx, cancel := context.WithCancel(context.Background())

	// Fill the buffer; nobody consumes.
	s.Emit(ctx, New(TypeIterationStart, "t1", nil))

	done := make(chan bool, 1)
	go func() {
		done <- s.Emit(ctx, New(TypeReasoning, "t1", Reasoning{Text: "thinking"}))
	}()

	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("Emit must report failure after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Emit did not unblock after cancellation")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewStream(1)
	s.Close()
	s.Close()
}
