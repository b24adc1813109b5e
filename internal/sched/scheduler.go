// internal/sched/scheduler.go

package sched

import (
	"context"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
)

// Port is what a platform supplies to the kernel.
type Port interface {
	// EnterCritical masks interrupts. Calls nest.
	EnterCritical()
	// ExitCritical undoes one EnterCritical; interrupts are unmasked when
	// the outermost one exits.
	ExitCritical()
	// KickWatchdog is called on every idle pass of the dispatcher.
	KickWatchdog()
	// Idle waits for the next interrupt or for ctx to end.
	Idle(ctx context.Context) error
	// Reset restarts the system after a fatal error under FatalReset.
	Reset(err error)
}

// MessageKind tells which resource produced a message.
type MessageKind int

const (
	QueueEvent MessageKind = iota
	EFlagEvent
	SignalEvent
	MutexEvent
)

func (mk MessageKind) String() string {
	switch mk {
	case QueueEvent:
		return "Queue"
	case EFlagEvent:
		return "EFlag"
	case SignalEvent:
		return "Signal"
	case MutexEvent:
		return "Mutex"
	default:
		return "Unknown"
	}
}

// Message is handed to a task handler. Only the field matching Kind is
// meaningful.
type Message struct {
	Kind   MessageKind
	Queue  QueueID // QueueEvent: queue holding the element to remove
	Flags  Flags   // EFlagEvent: flags that satisfied the wait
	Signal Signal  // SignalEvent
	Mutex  MutexID // MutexEvent: mutex that became available
	Task   *Task   // task the message is dispatched to
}

// Kernel is a run-to-completion priority scheduler together with its
// queues, event flag registers, mutexes, software timers and signals. It is
// built once by a Builder and its tables never grow.
type Kernel struct {
	cfg      Config
	port     Port
	flagMask Flags

	tasks   []*Task
	nodes   []readyNode // one per priority level
	ready   readyList
	queues  []*queue
	eflags  []eflagRegister
	mutexes []mutexCB
	timers  []timerCB

	signals  *treemap.Map // Signal -> *signalEntry
	sigQueue QueueID

	idle   func()
	onTick []func()

	pending     bool // an event arrived since the last idle decision
	dispatching bool
	ticks       uint64
	fatals      uint64

	traceCh      chan TraceEvent
	traceDropped uint64
}

// Config returns the configuration the kernel was built with.
func (k *Kernel) Config() Config { return k.cfg }

func (k *Kernel) enterCritical() { k.port.EnterCritical() }
func (k *Kernel) exitCritical()  { k.port.ExitCritical() }

// Pending reports whether an event arrived that the dispatcher has not
// looked at yet. Interrupts held off until the section exits run first, so
// whatever they made pending is seen.
func (k *Kernel) Pending() bool {
	k.enterCritical()
	k.exitCritical()
	return k.pending
}

// ReadyPriorities returns the ready list in dispatch order.
func (k *Kernel) ReadyPriorities() []int {
	k.enterCritical()
	defer k.exitCritical()
	return k.ready.priorities()
}

// Run executes the scheduler until ctx is done. Whenever a pass leaves
// nothing pending it parks in Port.Idle until an interrupt arrives.
func (k *Kernel) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		k.Step()
		if k.Pending() {
			continue
		}
		if err := k.port.Idle(ctx); err != nil {
			return err
		}
	}
}

// Step performs one scheduler pass: pending signals are broadcast, every
// ready task is dispatched in priority order until the ready list is empty,
// and finally the idle hook runs if nothing new became pending.
func (k *Kernel) Step() {
	if !k.assert(!k.dispatching, ErrCodeReentrant, "scheduler entered from a task handler") {
		return
	}
	k.dispatching = true
	defer func() { k.dispatching = false }()

	k.dispatchSignals()

	k.enterCritical()
	k.pending = false
	k.exitCritical()

	for {
		k.enterCritical()
		if k.ready.empty() {
			k.exitCritical()
			break
		}
		t := k.ready.head()
		k.exitCritical()
		k.dispatchSignals()
		k.dispatchTask(t)
	}
	k.toIdle()
}

func (k *Kernel) toIdle() {
	k.port.KickWatchdog()

	if k.Pending() {
		return
	}
	k.trace(TraceIdle, NoTask, -1, 0)
	if k.idle != nil {
		k.idle()
	}
}

// dispatchTask feeds one unit of work to t, the head of the ready list: a
// satisfied flag condition, then an available mutex, then the first
// non-empty bound queue. A task left with queue backlog goes back in the
// ready list; otherwise it blocks.
func (k *Kernel) dispatchTask(t *Task) {
	pty := t.def.Priority

	k.enterCritical()
	k.ready.remove(pty)
	ok := t.state.receivesEvents()
	k.exitCritical()
	if !ok {
		return
	}

	if flags, ok := k.checkCondition(t.eflag); ok {
		msg := Message{Kind: EFlagEvent, Flags: flags, Task: t}
		if !k.dispatch(t, &msg) {
			return
		}
	}

	if k.mutexAvailable(t) {
		msg := Message{Kind: MutexEvent, Mutex: t.mutex, Task: t}
		if !k.dispatch(t, &msg) {
			return
		}
	}

	for i, q := range t.def.Queues {
		n := k.QueueLen(q)
		if n == 0 {
			continue
		}
		if n > 1 || k.backlog(t.def.Queues[i+1:]) {
			k.enterCritical()
			k.pending = true
			k.ready.insert(&k.nodes[pty])
			k.exitCritical()
		}
		msg := Message{Kind: QueueEvent, Queue: q, Task: t}
		if !k.dispatch(t, &msg) {
			return
		}
		break
	}

	k.enterCritical()
	if !k.ready.find(pty) && t.state == StateReady {
		t.state = StateBlocked
	}
	k.exitCritical()
}

func (k *Kernel) backlog(queues []QueueID) bool {
	for _, q := range queues {
		if k.QueueLen(q) != 0 {
			return true
		}
	}
	return false
}

// dispatch runs the handler to completion and reports whether the task can
// still take events afterwards (it may have suspended or killed itself).
func (k *Kernel) dispatch(t *Task, msg *Message) bool {
	var start time.Time
	if k.cfg.RuntimeStats {
		start = time.Now()
	}

	t.def.Handler(msg)

	if k.cfg.RuntimeStats {
		k.enterCritical()
		t.ExecCount++
		t.ExecTime += time.Since(start)
		k.exitCritical()
	}
	k.trace(TraceDispatch, t.ID, objectOf(msg), int64(msg.Kind))

	k.enterCritical()
	defer k.exitCritical()
	return t.state.receivesEvents()
}

func objectOf(msg *Message) int {
	switch msg.Kind {
	case QueueEvent:
		return int(msg.Queue)
	case EFlagEvent:
		return int(msg.Flags)
	case SignalEvent:
		return int(msg.Signal)
	case MutexEvent:
		return int(msg.Mutex)
	default:
		return -1
	}
}
