package events

import "testing"

type testEvent string

func (e testEvent) EventType() string { return string(e) }

func TestBufferFlushPreservesOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(testEvent("a"))
	buf.Emit(nil)
	buf.Emit(testEvent("b"))
	if buf.Len() != 2 {
		t.Fatalf("expected 2 queued events, got %d", buf.Len())
	}
	rec := &Recorder{}
	buf.Flush(rec)
	types := rec.Types()
	if len(types) != 2 || types[0] != "a" || types[1] != "b" {
		t.Fatalf("unexpected order %v", types)
	}
	if buf.Len() != 0 {
		t.Fatalf("flush should clear the buffer")
	}
}

func TestBufferResetDropsEvents(t *testing.T) {
	var buf Buffer
	buf.Emit(testEvent("a"))
	buf.Reset()
	rec := &Recorder{}
	buf.Flush(rec)
	if len(rec.Events()) != 0 {
		t.Fatalf("reset buffer must not publish")
	}
	if rec.Count("a") != 0 {
		t.Fatalf("unexpected count")
	}
}
