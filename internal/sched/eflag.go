package sched

// EFlagID identifies an event flag register.
type EFlagID int

// NoEFlag marks a task without an event flag register.
const NoEFlag EFlagID = -1

// Flags is a set of event flags. Only the low Config.EFlagWidth bits are
// kept.
type Flags uint32

// WaitMode selects how the wait mask is matched.
type WaitMode int

const (
	WaitAny WaitMode = iota // any bit of the mask is set
	WaitAll                 // every bit of the mask is set
)

// FlagOp selects how SetFlags combines bits with the register.
type FlagOp int

const (
	FlagSet   FlagOp = iota // flags |= bits
	FlagClear               // flags &^= bits
)

// EFlagInfo holds register performance counters.
type EFlagInfo struct {
	Sets uint32
	Gets uint32
}

type eflagRegister struct {
	used    bool
	mode    WaitMode
	pending bool // satisfied condition not yet consumed by the dispatcher
	flags   Flags
	mask    Flags
	owner   *Task
	info    EFlagInfo
}

func (k *Kernel) eflagReg(id EFlagID) *eflagRegister {
	if !k.assert(id >= 0 && int(id) < len(k.eflags), ErrCodeEFlagID, "bad eflag register %d", id) {
		return nil
	}
	r := &k.eflags[id]
	if !k.assert(r.used, ErrCodeEFlagUnused, "eflag register %d not assigned", id) {
		return nil
	}
	return r
}

// EFlagAssign claims a free register for the task. Running out of
// registers is fatal.
func (k *Kernel) EFlagAssign(task TaskID) EFlagID {
	t := k.Identify(task)
	if t == nil {
		return NoEFlag
	}

	k.enterCritical()
	defer k.exitCritical()

	for i := range k.eflags {
		r := &k.eflags[i]
		if r.used {
			continue
		}
		*r = eflagRegister{used: true, owner: t}
		t.eflag = EFlagID(i)
		k.trace(TraceEFlagAssign, t.ID, i, 0)
		return t.eflag
	}
	k.assert(false, ErrCodeEFlagNoRoom, "no free eflag register for %s", t.def.Name)
	return NoEFlag
}

// EFlagReassign moves a register to another task, clearing its flags.
func (k *Kernel) EFlagReassign(id EFlagID, task TaskID) {
	r := k.eflagReg(id)
	t := k.Identify(task)
	if r == nil || t == nil {
		return
	}

	k.enterCritical()
	defer k.exitCritical()

	r.flags = 0
	r.pending = false
	if r.owner != nil && r.owner.eflag == id {
		r.owner.eflag = NoEFlag
	}
	r.owner = t
	t.eflag = id
	k.trace(TraceEFlagAssign, t.ID, int(id), 0)
}

// EFlagFree releases a register.
func (k *Kernel) EFlagFree(id EFlagID) {
	r := k.eflagReg(id)
	if r == nil {
		return
	}

	k.enterCritical()
	defer k.exitCritical()

	r.used = false
	r.pending = false
	if r.owner != nil && r.owner.eflag == id {
		r.owner.eflag = NoEFlag
	}
	r.owner = nil
	k.trace(TraceEFlagFree, NoTask, int(id), 0)
}

// EFlagSetWait configures what the owner waits for. Current flags and any
// pending condition are cleared.
func (k *Kernel) EFlagSetWait(id EFlagID, mode WaitMode, mask Flags) {
	r := k.eflagReg(id)
	if r == nil {
		return
	}
	if !k.assert(mode == WaitAny || mode == WaitAll, ErrCodeEFlagID, "eflag %d: bad wait mode %d", id, mode) {
		return
	}

	k.enterCritical()
	defer k.exitCritical()

	r.flags = 0
	r.pending = false
	r.mode = mode
	r.mask = mask & k.flagMask
	k.trace(TraceEFlagSetWait, ownerID(r.owner), int(id), int64(r.mask))
}

// EFlagSetFlags sets or clears bits and evaluates the wait condition. When
// it is satisfied the owner is made ready and the condition stays pending
// until dispatched. It reports whether the condition was satisfied.
func (k *Kernel) EFlagSetFlags(id EFlagID, bits Flags, op FlagOp) bool {
	r := k.eflagReg(id)
	if r == nil {
		return false
	}

	k.enterCritical()
	defer k.exitCritical()

	if op == FlagSet {
		r.flags |= bits & k.flagMask
	} else {
		r.flags &^= bits
	}
	r.info.Sets++
	k.trace(TraceEFlagSetFlags, ownerID(r.owner), int(id), int64(r.flags))

	ready := r.flags & r.mask
	var satisfied bool
	if r.mode == WaitAll {
		satisfied = ready == r.mask
	} else {
		satisfied = ready != 0
	}
	if !satisfied {
		return false
	}
	r.pending = true
	if r.owner != nil {
		k.setReady(r.owner)
	}
	return true
}

// EFlagGetFlags returns the live flags of the register.
func (k *Kernel) EFlagGetFlags(id EFlagID) Flags {
	r := k.eflagReg(id)
	if r == nil {
		return 0
	}

	k.enterCritical()
	defer k.exitCritical()

	r.info.Gets++
	return r.flags
}

// EFlagInfo returns the performance counters of the register.
func (k *Kernel) EFlagInfo(id EFlagID) EFlagInfo {
	r := k.eflagReg(id)
	if r == nil {
		return EFlagInfo{}
	}
	k.enterCritical()
	defer k.exitCritical()
	return r.info
}

// EFlagClearInfo zeroes the performance counters of the register.
func (k *Kernel) EFlagClearInfo(id EFlagID) {
	r := k.eflagReg(id)
	if r == nil {
		return
	}
	k.enterCritical()
	r.info = EFlagInfo{}
	k.exitCritical()
}

// checkCondition consumes a pending condition: it returns the flags that
// satisfied it and clears both flags and pending. A second call returns
// false until the condition is satisfied again.
func (k *Kernel) checkCondition(id EFlagID) (Flags, bool) {
	if id == NoEFlag {
		return 0, false
	}
	r := k.eflagReg(id)
	if r == nil {
		return 0, false
	}

	k.enterCritical()
	defer k.exitCritical()

	flags := r.flags
	if !r.pending {
		return flags, false
	}
	r.pending = false
	r.flags = 0
	return flags, true
}

// orphanEFlags detaches t from every register it owns. The registers stay
// assigned so they can be reassigned; their conditions no longer ready
// anybody. Must be called inside a critical section.
func (k *Kernel) orphanEFlags(t *Task) {
	for i := range k.eflags {
		r := &k.eflags[i]
		if r.used && r.owner == t {
			r.owner = nil
			r.pending = false
			r.flags = 0
		}
	}
	t.eflag = NoEFlag
}

func ownerID(t *Task) TaskID {
	if t == nil {
		return NoTask
	}
	return t.ID
}
