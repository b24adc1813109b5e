package sched

// MutexID identifies a mutex.
type MutexID int

// NoMutex marks a task that neither owns nor waits for a mutex.
const NoMutex MutexID = -1

// MutexInfo holds mutex performance counters.
type MutexInfo struct {
	Takes   uint32
	Gives   uint32
	Unlinks uint32
}

// mutexCB is a binary lock. The wait table has one slot per priority level,
// so a mutex holds at most one waiter per priority.
type mutexCB struct {
	name    string
	locked  bool
	owner   *Task
	waiters []*Task
	info    MutexInfo
}

func (k *Kernel) mutexCB(id MutexID) *mutexCB {
	if !k.assert(id >= 0 && int(id) < len(k.mutexes), ErrCodeMutexID, "bad mutex %d", id) {
		return nil
	}
	return &k.mutexes[id]
}

// MutexTake locks the mutex for the task. If another task holds it the task
// is placed in the wait slot of its priority and ErrMutexNotAvailable is
// returned; the task is made ready again, with a MutexEvent, once the owner
// gives the mutex back. Taking a mutex already owned is a no-op.
func (k *Kernel) MutexTake(id MutexID, task TaskID) error {
	m := k.mutexCB(id)
	t := k.Identify(task)
	if m == nil || t == nil {
		return ErrMutexNotAvailable
	}

	k.enterCritical()
	defer k.exitCritical()

	pty := t.def.Priority
	if m.locked {
		if m.owner == t {
			return nil
		}
		w := m.waiters[pty]
		if !k.assert(w == nil || w == t, ErrCodeMutexWaitSlot,
			"mutex %d: %s and %s share wait slot %d", id, t.def.Name, nameOf(w), pty) {
			return ErrMutexNotAvailable
		}
		m.waiters[pty] = t
		t.mutex = id
		k.trace(TraceMutexTake, t.ID, int(id), 0)
		return ErrMutexNotAvailable
	}

	m.locked = true
	m.owner = t
	if m.waiters[pty] == t {
		m.waiters[pty] = nil
	}
	t.mutex = id
	m.info.Takes++
	k.trace(TraceMutexTake, t.ID, int(id), 1)
	return nil
}

// MutexGive unlocks the mutex owned by the task and readies the highest
// priority waiter. It does nothing if the task is not the owner.
func (k *Kernel) MutexGive(task TaskID) {
	t := k.Identify(task)
	if t == nil || t.mutex == NoMutex {
		return
	}
	m := k.mutexCB(t.mutex)
	if m == nil {
		return
	}

	k.enterCritical()
	defer k.exitCritical()

	k.give(m, t)
}

func (k *Kernel) give(m *mutexCB, t *Task) {
	if m.owner != t {
		return
	}
	id := t.mutex
	m.locked = false
	m.owner = nil
	t.mutex = NoMutex
	m.info.Gives++
	k.trace(TraceMutexGive, t.ID, int(id), 0)

	for _, w := range m.waiters {
		if w != nil && k.setReady(w) {
			break
		}
	}
}

// MutexUnlink detaches the task from its mutex: an owned mutex is given back
// and a wait slot is cleared. Suspend, Kill and CreateTask do it
// implicitly.
func (k *Kernel) MutexUnlink(task TaskID) {
	t := k.Identify(task)
	if t == nil {
		return
	}
	k.enterCritical()
	defer k.exitCritical()
	k.unlink(t)
}

// unlink must be called inside a critical section.
func (k *Kernel) unlink(t *Task) {
	id := t.mutex
	if id == NoMutex {
		return
	}
	m := &k.mutexes[id]

	k.give(m, t)
	t.mutex = NoMutex
	if pty := t.def.Priority; m.waiters[pty] == t {
		m.waiters[pty] = nil
	}
	m.info.Unlinks++
	k.trace(TraceMutexUnlink, t.ID, int(id), 0)
}

// MutexWaiters returns the tasks waiting for the mutex, highest priority
// first.
func (k *Kernel) MutexWaiters(id MutexID) []TaskID {
	m := k.mutexCB(id)
	if m == nil {
		return nil
	}

	k.enterCritical()
	defer k.exitCritical()

	var out []TaskID
	for _, w := range m.waiters {
		if w != nil {
			out = append(out, w.ID)
		}
	}
	return out
}

// MutexOwner returns the task holding the mutex, or NoTask.
func (k *Kernel) MutexOwner(id MutexID) TaskID {
	m := k.mutexCB(id)
	if m == nil {
		return NoTask
	}
	k.enterCritical()
	defer k.exitCritical()
	return ownerID(m.owner)
}

// MutexInfo returns the performance counters of the mutex.
func (k *Kernel) MutexInfo(id MutexID) MutexInfo {
	m := k.mutexCB(id)
	if m == nil {
		return MutexInfo{}
	}
	k.enterCritical()
	defer k.exitCritical()
	return m.info
}

// MutexClearInfo zeroes the performance counters of the mutex.
func (k *Kernel) MutexClearInfo(id MutexID) {
	m := k.mutexCB(id)
	if m == nil {
		return
	}
	k.enterCritical()
	m.info = MutexInfo{}
	k.exitCritical()
}

// mutexAvailable reports whether the mutex bound to t is unlocked, which is
// what a waiter woken by MutexGive is dispatched for.
func (k *Kernel) mutexAvailable(t *Task) bool {
	if t.mutex == NoMutex {
		return false
	}
	k.enterCritical()
	defer k.exitCritical()
	return !k.mutexes[t.mutex].locked
}

func nameOf(t *Task) string {
	if t == nil {
		return "<none>"
	}
	return t.def.Name
}
