package port

import (
	"context"
	"testing"
	"time"
)

// TestTickClockRaisesTicks tests that ticks arrive as interrupts on the
// idling goroutine.
func TestTickClockRaisesTicks(t *testing.T) {
	h := NewHost(4, 16)
	ticks := 0
	clock := NewTickClock(h, func() { ticks++ })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock.Start(time.Millisecond)
	for ticks < 5 {
		if err := h.Idle(ctx); err != nil {
			t.Fatalf("Idle: %v after %d ticks", err, ticks)
		}
	}
	clock.Stop()

	if clock.Count() < 5 {
		t.Fatalf("clock counted %d ticks, want at least 5", clock.Count())
	}
	if got := uint64(ticks) + h.Lost(); got > uint64(clock.Count()) {
		t.Fatalf("served %d + lost %d ticks exceed the %d raised", ticks, h.Lost(), clock.Count())
	}
}

// TestTickClockStopWithoutStart tests that Stop never blocks on an idle
// clock.
func TestTickClockStopWithoutStart(t *testing.T) {
	clock := NewTickClock(NewHost(4, 4), func() {})
	done := make(chan struct{})
	go func() {
		clock.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}
	if clock.Count() != 0 {
		t.Fatalf("count = %d, want 0", clock.Count())
	}
}
