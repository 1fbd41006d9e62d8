package diagnostics

import "testing"

func TestConsolePushDrainRoundTrip(t *testing.T) {
	c := NewConsole(4096)
	c.Push(Event{ChunkSeq: 41, Stage: "voice", TaskIndex: 3, Severity: Warn, Message: "clipping detected"})
	c.Push(Event{ChunkSeq: 41, Stage: "fx", TaskIndex: 7, Severity: Error, Message: "nan in buffer"})

	var got []Event
	c.Drain(func(ev Event) { got = append(got, ev) })

	if len(got) != 2 {
		t.Fatalf("drained %d events, want 2", len(got))
	}
	if got[0].Message != "clipping detected" || got[0].Severity != Warn || got[0].TaskIndex != 3 || got[0].ChunkSeq != 41 {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if got[1].Message != "nan in buffer" || got[1].Severity != Error || got[1].Stage != "fx" {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
	if c.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", c.Dropped())
	}
}

func TestConsoleDrainEmptyIsNoop(t *testing.T) {
	c := NewConsole(1024)
	called := false
	c.Drain(func(Event) { called = true })
	if called {
		t.Fatalf("expected Drain over an empty console to call fn zero times")
	}
}

func TestConsoleDropsOnOverflow(t *testing.T) {
	c := NewConsole(32) // deliberately tiny
	big := make([]byte, 256)
	for i := range big {
		big[i] = 'x'
	}
	for i := 0; i < 10; i++ {
		c.Push(Event{ChunkSeq: 1, Stage: "voice", Message: string(big)})
	}
	if c.Dropped() == 0 {
		t.Fatalf("expected at least one drop when events exceed ring capacity")
	}
}
