package sched

import (
	"github.com/emirpasic/gods/maps/treemap"
)

// Signal is a signal number, 0 .. Config.MaxSignals-1.
type Signal int

// SignalDef lists the tasks that catch a signal and an optional system
// handler run after they all got it.
type SignalDef struct {
	Name    string
	Tasks   []TaskID
	Handler func()
}

type signalEntry struct {
	def   SignalDef
	tasks []*Task
}

// Signal queues a signal for broadcast on the next dispatch point. Safe to
// call from interrupt context. ErrQueueFull means too many signals are
// already pending.
func (k *Kernel) Signal(sig Signal) error {
	if !k.assert(k.signals.Size() > 0, ErrCodeSignal, "signal %d: no signals declared", sig) {
		return nil
	}
	if _, ok := k.signals.Get(int(sig)); !k.assert(ok, ErrCodeSignal, "signal %d not declared", sig) {
		return nil
	}
	k.trace(TraceSignal, NoTask, int(sig), 0)
	return k.QueueInsert(k.sigQueue, []byte{byte(sig)})
}

// dispatchSignals drains the signal queue. Each signal goes to every
// catching task that can receive events, then to its system handler.
func (k *Kernel) dispatchSignals() {
	if k.sigQueue == NoQueue {
		return
	}
	var buf [1]byte
	for k.QueueRemove(k.sigQueue, buf[:]) == nil {
		sig := Signal(buf[0])
		v, ok := k.signals.Get(int(sig))
		if !ok {
			continue
		}
		e := v.(*signalEntry)
		for _, t := range e.tasks {
			k.enterCritical()
			ok := t.state.receivesEvents()
			k.exitCritical()
			if !ok {
				continue
			}
			msg := Message{Kind: SignalEvent, Signal: sig, Task: t}
			k.dispatch(t, &msg)
		}
		if e.def.Handler != nil {
			e.def.Handler()
		}
	}
}

// Signals returns the declared signal numbers in ascending order.
func (k *Kernel) Signals() []Signal {
	keys := k.signals.Keys()
	out := make([]Signal, len(keys))
	for i, key := range keys {
		out[i] = Signal(key.(int))
	}
	return out
}

func newSignalTable() *treemap.Map {
	return treemap.NewWithIntComparator()
}
