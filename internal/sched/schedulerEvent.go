// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// TraceKind represents the type of kernel trace event
type TraceKind int

const (
	TraceIdle TraceKind = iota
	TraceDispatch
	TraceTaskReady
	TraceTaskCreate
	TraceTaskSuspend
	TraceTaskKill
	TraceTaskResume
	TraceTaskDeplete
	TraceQueueInsert
	TraceQueueRemove
	TraceQueueFull
	TraceQueueDeplete
	TraceEFlagAssign
	TraceEFlagFree
	TraceEFlagSetWait
	TraceEFlagSetFlags
	TraceMutexTake
	TraceMutexGive
	TraceMutexUnlink
	TraceTimerAssign
	TraceTimerKick
	TraceTimerStop
	TraceTimerKill
	TraceTimerExpire
	TraceSignal
	TraceFatal
)

// TraceEvent is emitted at every trace point of the kernel.
type TraceEvent struct {
	Time   time.Time
	Tick   uint64
	Kind   TraceKind
	Task   TaskID // NoTask when no task is involved
	Object int    // queue, register, mutex, timer or signal index; -1 if none
	Arg    int64  // kind specific: message kind, flags, state, fatal code...
}

func (tk TraceKind) String() string {
	switch tk {
	case TraceIdle:
		return "Idle"
	case TraceDispatch:
		return "Dispatch"
	case TraceTaskReady:
		return "Ready"
	case TraceTaskCreate:
		return "Create"
	case TraceTaskSuspend:
		return "Suspend"
	case TraceTaskKill:
		return "Kill"
	case TraceTaskResume:
		return "Resume"
	case TraceTaskDeplete:
		return "DepleteTask"
	case TraceQueueInsert:
		return "QInsert"
	case TraceQueueRemove:
		return "QRemove"
	case TraceQueueFull:
		return "QFull"
	case TraceQueueDeplete:
		return "QDeplete"
	case TraceEFlagAssign:
		return "EFAssign"
	case TraceEFlagFree:
		return "EFFree"
	case TraceEFlagSetWait:
		return "EFSetWait"
	case TraceEFlagSetFlags:
		return "EFSetFlags"
	case TraceMutexTake:
		return "MtxTake"
	case TraceMutexGive:
		return "MtxGive"
	case TraceMutexUnlink:
		return "MtxUnlink"
	case TraceTimerAssign:
		return "TmrAssign"
	case TraceTimerKick:
		return "TmrKick"
	case TraceTimerStop:
		return "TmrStop"
	case TraceTimerKill:
		return "TmrKill"
	case TraceTimerExpire:
		return "TmrExpire"
	case TraceSignal:
		return "Signal"
	case TraceFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// EnableTrace opens the trace stream with room for n events. Must be called
// before Run().
func (k *Kernel) EnableTrace(n int) {
	if n <= 0 {
		n = k.cfg.TraceBuffer
	}
	k.traceCh = make(chan TraceEvent, n)
}

// TraceChannel exposes the read-only trace stream, nil until EnableTrace.
func (k *Kernel) TraceChannel() <-chan TraceEvent { return k.traceCh }

// TraceDropped returns how many events were lost to a full trace buffer.
func (k *Kernel) TraceDropped() uint64 { return k.traceDropped }

// CloseTrace closes the trace stream so consumers can finish.
func (k *Kernel) CloseTrace() {
	if k.traceCh != nil {
		close(k.traceCh)
		k.traceCh = nil
	}
}

// trace never blocks: trace points sit inside critical sections and
// interrupt handlers.
func (k *Kernel) trace(kind TraceKind, task TaskID, obj int, arg int64) {
	if k.traceCh == nil {
		return
	}
	ev := TraceEvent{
		Time:   time.Now(),
		Tick:   k.ticks,
		Kind:   kind,
		Task:   task,
		Object: obj,
		Arg:    arg,
	}
	select {
	case k.traceCh <- ev:
	default:
		k.traceDropped++
	}
}
