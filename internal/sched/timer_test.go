package sched

import "testing"

func timerKernel(t *testing.T, cfg Config, onTick func()) *Kernel {
	t.Helper()
	k, _ := newTestKernel(t, cfg, func(b *Builder) {
		b.AddTask(TaskDef{Name: "t", Priority: 0, Handler: func(*Message) {}})
		if onTick != nil {
			b.OnTick(onTick)
		}
	})
	return k
}

func tick(k *Kernel, n int) {
	for i := 0; i < n; i++ {
		k.Tick()
	}
}

// TestTimerOneShot tests that a one-shot timer fires once per kick.
func TestTimerOneShot(t *testing.T) {
	k := timerKernel(t, DefaultConfig(), nil)
	fired := 0
	id := k.TimerAssign(OneShot, func(TimerID, any) { fired++ }, nil)

	tick(k, 5)
	if fired != 0 {
		t.Fatal("unarmed timer fired")
	}

	k.TimerKick(id, 3)
	tick(k, 2)
	if fired != 0 || k.TimerRemaining(id) != 1 {
		t.Fatalf("after 2 ticks: fired %d, remaining %d", fired, k.TimerRemaining(id))
	}
	tick(k, 1)
	if fired != 1 {
		t.Fatalf("fired %d times on expiry, want 1", fired)
	}
	tick(k, 5)
	if fired != 1 {
		t.Fatalf("one-shot fired %d times, want 1", fired)
	}

	k.TimerKick(id, 2)
	tick(k, 2)
	if fired != 2 {
		t.Fatalf("fired %d times after a second kick, want 2", fired)
	}
	if info := k.TimerInfo(id); info.Expirations != 2 || info.Kicks != 2 {
		t.Fatalf("info = %+v", info)
	}
	if n := k.Ticks(); n != 15 {
		t.Fatalf("ticks = %d, want 15", n)
	}
}

// TestTimerPeriodic tests reloading, the callback argument and stopping.
func TestTimerPeriodic(t *testing.T) {
	k := timerKernel(t, DefaultConfig(), nil)
	var got []string
	id := k.TimerAssign(Periodic, func(_ TimerID, arg any) { got = append(got, arg.(string)) }, "p")

	k.TimerKick(id, 3)
	tick(k, 10)
	if len(got) != 3 || got[0] != "p" {
		t.Fatalf("fired %v, want 3 times with \"p\"", got)
	}
	if r := k.TimerRemaining(id); r != 2 {
		t.Fatalf("remaining = %d, want 2", r)
	}

	k.TimerStop(id)
	tick(k, 10)
	if len(got) != 3 {
		t.Fatalf("stopped timer fired: %d", len(got))
	}
}

// TestTimerReassign tests replacing the callback of an armed timer.
func TestTimerReassign(t *testing.T) {
	k := timerKernel(t, DefaultConfig(), nil)
	var first, second int
	id := k.TimerAssign(Periodic, func(TimerID, any) { first++ }, nil)
	k.TimerKick(id, 1)
	tick(k, 1)

	k.TimerReassign(id, func(TimerID, any) { second++ }, nil)
	if r := k.TimerRemaining(id); r != 0 {
		t.Fatalf("reassigned timer still armed: %d", r)
	}
	tick(k, 3)
	if second != 0 {
		t.Fatal("reassigned timer fired before a kick")
	}
	k.TimerKick(id, 1)
	tick(k, 2)
	if first != 1 || second != 2 {
		t.Fatalf("first %d second %d, want 1 and 2", first, second)
	}
	if info := k.TimerInfo(id); info.Reassigns != 1 {
		t.Fatalf("reassigns = %d, want 1", info.Reassigns)
	}
}

// TestTimerKillFreesSlot tests that a killed timer's slot is reused.
func TestTimerKillFreesSlot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTimers = 2
	k := timerKernel(t, cfg, nil)
	fired := 0
	a := k.TimerAssign(OneShot, func(TimerID, any) { fired++ }, nil)
	b := k.TimerAssign(OneShot, func(TimerID, any) {}, nil)
	if a == b {
		t.Fatal("two timers share a slot")
	}

	k.TimerKick(a, 2)
	k.TimerKill(a)
	tick(k, 3)
	if fired != 0 {
		t.Fatal("killed timer fired")
	}

	if again := k.TimerAssign(OneShot, func(TimerID, any) {}, nil); again != a {
		t.Fatalf("assign after kill = %d, want %d", again, a)
	}
	if info := k.TimerInfo(a); info.Kills != 1 {
		t.Fatalf("kills = %d, want 1", info.Kills)
	}
	expectFatal(t, ErrCodeTimerNoRoom, func() { k.TimerAssign(OneShot, func(TimerID, any) {}, nil) })
}

// TestTimerUnusedIsFatal tests kicking a killed timer.
func TestTimerUnusedIsFatal(t *testing.T) {
	k := timerKernel(t, DefaultConfig(), nil)
	id := k.TimerAssign(OneShot, func(TimerID, any) {}, nil)
	k.TimerKill(id)
	expectFatal(t, ErrCodeTimerUnused, func() { k.TimerKick(id, 1) })
}

// TestTickChain tests that the main-timer chain runs on every tick.
func TestTickChain(t *testing.T) {
	n := 0
	k := timerKernel(t, DefaultConfig(), func() { n++ })
	tick(k, 4)
	if n != 4 {
		t.Fatalf("tick chain ran %d times, want 4", n)
	}
}

// TestTimerWakesTask tests the usual pattern: a timer callback sets a flag
// and the waiting task is dispatched for it.
func TestTimerWakesTask(t *testing.T) {
	rec := &recorder{}
	var task TaskID
	k, _ := newTestKernel(t, DefaultConfig(), func(b *Builder) {
		task = b.AddTask(TaskDef{Name: "blink", Priority: 0, Handler: rec.handler("blink")})
	})
	rec.k = k

	e := k.EFlagAssign(task)
	k.EFlagSetWait(e, WaitAll, 0b1)
	id := k.TimerAssign(Periodic, func(TimerID, any) { k.EFlagSetFlags(e, 0b1, FlagSet) }, nil)
	k.TimerKick(id, 2)

	for i := 0; i < 6; i++ {
		k.Tick()
		k.Step()
	}
	if len(rec.got) != 3 {
		t.Fatalf("task woken %d times in 6 ticks, want 3", len(rec.got))
	}
	for _, g := range rec.got {
		if g.kind != EFlagEvent {
			t.Fatalf("got %s event, want EFlag", g.kind)
		}
	}
}
