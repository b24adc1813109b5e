package sched

import (
	"errors"
	"testing"
)

// TestSignalBroadcast tests delivery to every catching task that can take
// events, followed by the system handler.
func TestSignalBroadcast(t *testing.T) {
	rec := &recorder{}
	handled := 0
	var a, b, c TaskID
	var status, other Signal
	k, _ := newTestKernel(t, DefaultConfig(), func(bld *Builder) {
		a = bld.AddTask(TaskDef{Name: "a", Priority: 0, Handler: rec.handler("a")})
		b = bld.AddTask(TaskDef{Name: "b", Priority: 1, Handler: rec.handler("b")})
		c = bld.AddTask(TaskDef{Name: "c", Priority: 2, Handler: rec.handler("c")})
		status = bld.AddSignal(SignalDef{Name: "status", Tasks: []TaskID{c, a}, Handler: func() { handled++ }})
		other = bld.AddSignal(SignalDef{Name: "other", Tasks: []TaskID{b}})
	})
	rec.k = k

	if got := k.Signals(); len(got) != 2 || got[0] != status || got[1] != other {
		t.Fatalf("signals = %v", got)
	}

	k.Suspend(c)
	if err := k.Signal(status); err != nil {
		t.Fatalf("signal: %v", err)
	}
	if !k.Pending() {
		t.Fatal("signal did not mark an event pending")
	}
	k.Step()

	if got := rec.tasks(); !equalStrings(got, []string{"a"}) {
		t.Fatalf("delivered to %v, want [a]", got)
	}
	if rec.got[0].kind != SignalEvent || rec.got[0].obj != int(status) {
		t.Fatalf("message = %+v", rec.got[0])
	}
	if handled != 1 {
		t.Fatalf("system handler ran %d times, want 1", handled)
	}

	k.Resume(c)
	k.Signal(other)
	k.Signal(status)
	k.Step()
	if got := rec.tasks(); !equalStrings(got, []string{"a", "b", "c", "a"}) {
		t.Fatalf("delivered to %v, want [a b c a]", got)
	}
}

// TestSignalQueueFull tests the bounded signal backlog.
func TestSignalQueueFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SignalQueueSize = 2
	var sig Signal
	k, _ := newTestKernel(t, cfg, func(b *Builder) {
		b.AddTask(TaskDef{Name: "t", Priority: 0, Handler: func(*Message) {}})
		sig = b.AddSignal(SignalDef{Name: "s", Tasks: []TaskID{0}})
	})

	for i := 0; i < 2; i++ {
		if err := k.Signal(sig); err != nil {
			t.Fatalf("signal %d: %v", i, err)
		}
	}
	if err := k.Signal(sig); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("third signal = %v, want ErrQueueFull", err)
	}
	k.Step()
	if err := k.Signal(sig); err != nil {
		t.Fatalf("signal after drain: %v", err)
	}
}

// TestUndeclaredSignalIsFatal tests the signal number assertion.
func TestUndeclaredSignalIsFatal(t *testing.T) {
	k, _ := newTestKernel(t, DefaultConfig(), func(b *Builder) {
		b.AddTask(TaskDef{Name: "t", Priority: 0, Handler: func(*Message) {}})
		b.AddSignal(SignalDef{Name: "s"})
	})
	expectFatal(t, ErrCodeSignal, func() { k.Signal(3) })
}
