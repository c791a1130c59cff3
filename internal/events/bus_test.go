package events

import (
	"testing"
	"time"
)

func TestBusDeliversInSubmissionOrder(t *testing.T) {
	b := NewBus(0)
	now := time.Now()
	go func() {
		b.Emit(NewState("t1", "pulling", now))
		b.Emit(NewState("t1", "running", now))
		b.Emit(NewLog("t1", "hello", now))
		b.Emit(NewDone("t1", 0, "Success", "done", now))
		b.Close()
	}()

	var kinds []Kind
	for evt := range b.Events() {
		kinds = append(kinds, evt.Kind)
	}
	want := []Kind{KindState, KindState, KindLog, KindDone}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestBusEmitAfterCloseDoesNotPanicOrBlock(t *testing.T) {
	b := NewBus(1)
	b.Close()
	done := make(chan struct{})
	go func() {
		b.Emit(NewState("t1", "running", time.Now()))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit after Close blocked")
	}
}
