package sched

import "testing"

func eflagKernel(t *testing.T, cfg Config, rec *recorder) (*Kernel, TaskID, TaskID) {
	t.Helper()
	var a, b TaskID
	k, _ := newTestKernel(t, cfg, func(bld *Builder) {
		a = bld.AddTask(TaskDef{Name: "a", Priority: 0, Handler: rec.handler("a")})
		b = bld.AddTask(TaskDef{Name: "b", Priority: 1, Handler: rec.handler("b")})
	})
	rec.k = k
	return k, a, b
}

type flagStep struct {
	bits Flags
	op   FlagOp
}

// TestEFlagConditions tests ANY and ALL matching, including bits cleared
// before the condition completes.
func TestEFlagConditions(t *testing.T) {
	tests := []struct {
		name  string
		mode  WaitMode
		mask  Flags
		steps []flagStep
		want  bool
	}{
		{"any miss", WaitAny, 0b110, []flagStep{{0b001, FlagSet}}, false},
		{"any hit", WaitAny, 0b110, []flagStep{{0b001, FlagSet}, {0b100, FlagSet}}, true},
		{"all partial", WaitAll, 0b011, []flagStep{{0b001, FlagSet}}, false},
		{"all complete", WaitAll, 0b011, []flagStep{{0b001, FlagSet}, {0b010, FlagSet}}, true},
		{"all cleared", WaitAll, 0b011, []flagStep{{0b001, FlagSet}, {0b001, FlagClear}, {0b010, FlagSet}}, false},
		{"extra bits", WaitAll, 0b001, []flagStep{{0b101, FlagSet}}, true},
	}

	rec := &recorder{}
	k, a, _ := eflagKernel(t, DefaultConfig(), rec)
	e := k.EFlagAssign(a)
	if k.Identify(a).EFlag() != e {
		t.Fatalf("task bound to register %d, want %d", k.Identify(a).EFlag(), e)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k.EFlagSetWait(e, tt.mode, tt.mask)
			var got bool
			for _, s := range tt.steps {
				got = k.EFlagSetFlags(e, s.bits, s.op)
			}
			if got != tt.want {
				t.Fatalf("satisfied = %v, want %v", got, tt.want)
			}
			if _, pending := k.checkCondition(e); pending != tt.want {
				t.Fatalf("pending = %v, want %v", pending, tt.want)
			}
		})
	}
}

// TestEFlagConsumedOnce tests that a satisfied condition is reported to the
// dispatcher exactly once and clears the flags.
func TestEFlagConsumedOnce(t *testing.T) {
	rec := &recorder{}
	k, a, _ := eflagKernel(t, DefaultConfig(), rec)
	e := k.EFlagAssign(a)
	k.EFlagSetWait(e, WaitAll, 0b11)

	if k.EFlagSetFlags(e, 0b01, FlagSet) {
		t.Fatal("half the mask satisfied WaitAll")
	}
	if got := k.ReadyPriorities(); len(got) != 0 {
		t.Fatalf("task ready before the condition held: %v", got)
	}
	if !k.EFlagSetFlags(e, 0b10, FlagSet) {
		t.Fatal("full mask did not satisfy WaitAll")
	}
	if got := k.ReadyPriorities(); !equalInts(got, []int{0}) {
		t.Fatalf("ready list = %v, want [0]", got)
	}

	k.Step()

	if len(rec.got) != 1 || rec.got[0].kind != EFlagEvent || rec.got[0].obj != 0b11 {
		t.Fatalf("dispatches = %+v, want one EFlag event with flags 0b11", rec.got)
	}
	if f := k.EFlagGetFlags(e); f != 0 {
		t.Fatalf("flags after dispatch = %#x, want 0", f)
	}
	if _, pending := k.checkCondition(e); pending {
		t.Fatal("condition reported twice")
	}

	k.Step()
	if len(rec.got) != 1 {
		t.Fatalf("handler ran again without a new condition")
	}
}

// TestEFlagWidth tests that only the configured number of bits is kept.
func TestEFlagWidth(t *testing.T) {
	for _, width := range []int{8, 16, 32} {
		cfg := DefaultConfig()
		cfg.EFlagWidth = width
		rec := &recorder{}
		k, a, _ := eflagKernel(t, cfg, rec)
		e := k.EFlagAssign(a)
		k.EFlagSetWait(e, WaitAny, 1)

		k.EFlagSetFlags(e, ^Flags(0)&^1, FlagSet)
		want := cfg.flagMask() &^ 1
		if got := k.EFlagGetFlags(e); got != want {
			t.Fatalf("width %d: flags = %#x, want %#x", width, got, want)
		}
	}
}

// TestEFlagReassignAndFree tests moving a register between tasks.
func TestEFlagReassignAndFree(t *testing.T) {
	rec := &recorder{}
	k, a, b := eflagKernel(t, DefaultConfig(), rec)
	e := k.EFlagAssign(a)
	k.EFlagSetWait(e, WaitAny, 0b1)
	k.EFlagSetFlags(e, 0b10, FlagSet)

	k.EFlagReassign(e, b)
	if k.Identify(a).EFlag() != NoEFlag || k.Identify(b).EFlag() != e {
		t.Fatal("register not moved from a to b")
	}
	if f := k.EFlagGetFlags(e); f != 0 {
		t.Fatalf("flags after reassign = %#x, want 0", f)
	}

	k.EFlagSetFlags(e, 0b1, FlagSet)
	if got := k.ReadyPriorities(); !equalInts(got, []int{1}) {
		t.Fatalf("ready list = %v, want [1]", got)
	}

	info := k.EFlagInfo(e)
	if info.Sets != 2 || info.Gets != 1 {
		t.Fatalf("info = %+v", info)
	}
	k.EFlagClearInfo(e)
	if info := k.EFlagInfo(e); info != (EFlagInfo{}) {
		t.Fatalf("info after clear = %+v", info)
	}

	k.EFlagFree(e)
	if k.Identify(b).EFlag() != NoEFlag {
		t.Fatal("freed register still bound")
	}
	if again := k.EFlagAssign(a); again != e {
		t.Fatalf("assign after free = %d, want %d", again, e)
	}
}

// TestEFlagUnusedIsFatal tests access to a freed register.
func TestEFlagUnusedIsFatal(t *testing.T) {
	rec := &recorder{}
	k, a, _ := eflagKernel(t, DefaultConfig(), rec)
	e := k.EFlagAssign(a)
	k.EFlagFree(e)
	expectFatal(t, ErrCodeEFlagUnused, func() { k.EFlagSetFlags(e, 1, FlagSet) })
}

// TestEFlagNoRoomIsFatal tests running out of registers.
func TestEFlagNoRoomIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEFlags = 1
	rec := &recorder{}
	k, a, b := eflagKernel(t, cfg, rec)
	k.EFlagAssign(a)
	expectFatal(t, ErrCodeEFlagNoRoom, func() { k.EFlagAssign(b) })
}
