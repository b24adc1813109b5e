package sched

import "time"

// TaskID uniquely identifies a task in the kernel. It is the task's index in
// the task table.
type TaskID int

// NoTask marks an empty task reference.
const NoTask TaskID = -1

// TaskState is the lifecycle state of a task.
type TaskState int

const (
	// StateBlocked: waiting for an event from a queue, flag register,
	// mutex or signal.
	StateBlocked TaskState = iota
	// StateReady: at least one pending event and a node in the ready list.
	StateReady
	// StateSuspended: cannot receive events until resumed.
	StateSuspended
	// StateZombie: known to the kernel but not available; only CreateTask
	// brings it back.
	StateZombie
)

func (s TaskState) String() string {
	switch s {
	case StateBlocked:
		return "Blocked"
	case StateReady:
		return "Ready"
	case StateSuspended:
		return "Suspended"
	case StateZombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// receivesEvents reports whether a task in this state may be made ready.
func (s TaskState) receivesEvents() bool {
	return s == StateBlocked || s == StateReady
}

// Handler is a task's entry point. It runs to completion on every dispatch.
type Handler func(msg *Message)

// TaskDef is the fixed part of a task control block. It is immutable once
// the kernel is built.
type TaskDef struct {
	Name     string
	Priority int       // 0 .. PriorityLevels-1, where 0 is the highest priority
	Handler  Handler   // required
	Init     func()    // optional, called on create and resume
	Kill     func()    // optional, called before the task becomes a zombie
	Queues   []QueueID // consumed queues, scanned in this order
	Initial  TaskState // StateBlocked or StateZombie
}

// Task is the runtime part of a task control block.
type Task struct {
	ID  TaskID
	def TaskDef

	state TaskState
	eflag EFlagID
	mutex MutexID

	// runtime statistics, maintained when Config.RuntimeStats is set
	ExecCount uint64
	ExecTime  time.Duration
}

// Name returns the task name given at registration.
func (t *Task) Name() string { return t.def.Name }

// Priority returns the task priority, which is also its ready-list slot.
func (t *Task) Priority() int { return t.def.Priority }

// State returns the current lifecycle state.
func (t *Task) State() TaskState { return t.state }

// EFlag returns the event flag register bound to the task, or NoEFlag.
func (t *Task) EFlag() EFlagID { return t.eflag }

// Mutex returns the mutex the task owns or waits for, or NoMutex.
func (t *Task) Mutex() MutexID { return t.mutex }

// Identify returns the task control block for id.
func (k *Kernel) Identify(id TaskID) *Task {
	if !k.assert(id >= 0 && int(id) < len(k.tasks), ErrCodeTaskID, "identify: bad task %d", id) {
		return nil
	}
	return k.tasks[id]
}

// setReady makes t eligible for dispatch. It fails for suspended and zombie
// tasks.
func (k *Kernel) setReady(t *Task) bool {
	k.enterCritical()
	defer k.exitCritical()

	if !t.state.receivesEvents() {
		return false
	}
	k.ready.insert(&k.nodes[t.def.Priority])
	t.state = StateReady
	k.pending = true
	k.trace(TraceTaskReady, t.ID, -1, 0)
	return true
}

// CreateTask (re)initializes a task into state, which must be StateBlocked or
// StateZombie. Its mutex is unlinked, its event flag registers orphaned, its
// queues depleted and its Init hook called.
func (k *Kernel) CreateTask(id TaskID, state TaskState) {
	t := k.Identify(id)
	if t == nil {
		return
	}
	if !k.assert(state == StateBlocked || state == StateZombie, ErrCodeTaskState,
		"create %s: initial state %s", t.def.Name, state) {
		return
	}

	k.enterCritical()
	k.ready.remove(t.def.Priority)
	t.state = state
	k.unlink(t)
	k.orphanEFlags(t)
	k.exitCritical()

	k.depleteQueues(t)
	if t.def.Init != nil {
		t.def.Init()
	}
	k.trace(TraceTaskCreate, t.ID, -1, int64(state))
}

// Suspend stops a task from receiving events. It is removed from the ready
// list, unlinked from its mutex and its queues are depleted. A zombie cannot
// be suspended. It reports whether the state changed.
func (k *Kernel) Suspend(id TaskID) bool {
	return k.killSuspend(id, StateSuspended)
}

// Kill turns a task into a zombie. Beyond what Suspend does, it orphans the
// task's event flag registers and calls its kill hook.
func (k *Kernel) Kill(id TaskID) bool {
	return k.killSuspend(id, StateZombie)
}

func (k *Kernel) killSuspend(id TaskID, state TaskState) bool {
	t := k.Identify(id)
	if t == nil {
		return false
	}

	k.enterCritical()
	if t.state == state || (state == StateSuspended && t.state == StateZombie) {
		k.exitCritical()
		return false
	}
	t.state = state
	k.ready.remove(t.def.Priority)
	k.unlink(t)
	if state == StateZombie {
		k.orphanEFlags(t)
		if t.def.Kill != nil {
			t.def.Kill()
		}
	}
	k.exitCritical()

	k.depleteQueues(t)
	kind := TraceTaskSuspend
	if state == StateZombie {
		kind = TraceTaskKill
	}
	k.trace(kind, t.ID, -1, 0)
	return true
}

// Resume moves a suspended task back to StateBlocked and calls its Init
// hook. It reports whether the task was suspended.
func (k *Kernel) Resume(id TaskID) bool {
	t := k.Identify(id)
	if t == nil {
		return false
	}

	k.enterCritical()
	if t.state != StateSuspended {
		k.exitCritical()
		return false
	}
	t.state = StateBlocked
	k.exitCritical()

	if t.def.Init != nil {
		t.def.Init()
	}
	k.trace(TraceTaskResume, t.ID, -1, 0)
	return true
}

// depleteQueues empties every queue bound to t.
func (k *Kernel) depleteQueues(t *Task) {
	for _, q := range t.def.Queues {
		k.QueueDeplete(q)
	}
	k.trace(TraceTaskDeplete, t.ID, -1, 0)
}

// ClearStats resets the runtime statistics of every task.
func (k *Kernel) ClearStats() {
	k.enterCritical()
	defer k.exitCritical()
	for _, t := range k.tasks {
		t.ExecCount = 0
		t.ExecTime = 0
	}
}
