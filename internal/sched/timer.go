package sched

// TimerID identifies a software timer.
type TimerID int

// NoTimer is returned when no timer could be assigned.
const NoTimer TimerID = -1

// TimerType selects what happens when a timer expires.
type TimerType int

const (
	OneShot  TimerType = iota // stays disarmed until kicked again
	Periodic                  // reloads and keeps firing until stopped or killed
)

// TimerFunc runs in tick (interrupt) context when a timer expires. It must be
// short; usually it sets flags or inserts into a queue.
type TimerFunc func(id TimerID, arg any)

// TimerInfo holds timer performance counters.
type TimerInfo struct {
	Expirations uint32
	Kicks       uint32
	Kills       uint32
	Reassigns   uint32
}

type timerCB struct {
	used   bool
	typ    TimerType
	tout   uint32 // ticks left, 0 = disarmed
	reload uint32
	fn     TimerFunc
	arg    any
	info   TimerInfo
}

func (k *Kernel) timerCB(id TimerID) *timerCB {
	if !k.assert(id >= 0 && int(id) < len(k.timers), ErrCodeTimerID, "bad timer %d", id) {
		return nil
	}
	p := &k.timers[id]
	if !k.assert(p.used, ErrCodeTimerUnused, "timer %d not assigned", id) {
		return nil
	}
	return p
}

// TimerAssign claims a free timer. It starts disarmed. Running out of timers
// is fatal.
func (k *Kernel) TimerAssign(typ TimerType, fn TimerFunc, arg any) TimerID {
	if !k.assert(fn != nil, ErrCodeTimerID, "timer assign: nil callback") {
		return NoTimer
	}

	k.enterCritical()
	defer k.exitCritical()

	for i := range k.timers {
		p := &k.timers[i]
		if p.used {
			continue
		}
		*p = timerCB{used: true, typ: typ, fn: fn, arg: arg, info: p.info}
		k.trace(TraceTimerAssign, NoTask, i, int64(typ))
		return TimerID(i)
	}
	k.assert(false, ErrCodeTimerNoRoom, "no free timer")
	return NoTimer
}

// TimerReassign stops the timer and gives it a new callback.
func (k *Kernel) TimerReassign(id TimerID, fn TimerFunc, arg any) {
	if !k.assert(fn != nil, ErrCodeTimerID, "timer reassign: nil callback") {
		return
	}
	p := k.timerCB(id)
	if p == nil {
		return
	}

	k.enterCritical()
	defer k.exitCritical()

	p.tout, p.reload = 0, 0
	p.fn = fn
	p.arg = arg
	p.info.Reassigns++
}

// TimerKick arms the timer to expire after ticks ticks. For periodic timers
// ticks is also the period. Zero disarms it.
func (k *Kernel) TimerKick(id TimerID, ticks uint32) {
	p := k.timerCB(id)
	if p == nil {
		return
	}

	k.enterCritical()
	p.tout, p.reload = ticks, ticks
	p.info.Kicks++
	k.exitCritical()

	k.trace(TraceTimerKick, NoTask, int(id), int64(ticks))
}

// TimerStop disarms the timer.
func (k *Kernel) TimerStop(id TimerID) {
	k.TimerKick(id, 0)
	k.trace(TraceTimerStop, NoTask, int(id), 0)
}

// TimerKill frees the timer slot.
func (k *Kernel) TimerKill(id TimerID) {
	p := k.timerCB(id)
	if p == nil {
		return
	}

	k.enterCritical()
	p.used = false
	p.tout, p.reload = 0, 0
	p.info.Kills++
	k.exitCritical()

	k.trace(TraceTimerKill, NoTask, int(id), 0)
}

// TimerRemaining returns the ticks left before the timer expires.
func (k *Kernel) TimerRemaining(id TimerID) uint32 {
	p := k.timerCB(id)
	if p == nil {
		return 0
	}
	k.enterCritical()
	defer k.exitCritical()
	return p.tout
}

// TimerInfo returns the performance counters of the timer.
func (k *Kernel) TimerInfo(id TimerID) TimerInfo {
	if !k.assert(id >= 0 && int(id) < len(k.timers), ErrCodeTimerID, "bad timer %d", id) {
		return TimerInfo{}
	}
	k.enterCritical()
	defer k.exitCritical()
	return k.timers[id].info
}

// Tick is the periodic hardware tick handler. Every armed timer counts down
// and fires its callback on reaching zero; the main-timer chain registered
// with Builder.OnTick runs afterwards. Ports call it in interrupt context.
func (k *Kernel) Tick() {
	k.enterCritical()
	defer k.exitCritical()

	k.ticks++
	for i := range k.timers {
		p := &k.timers[i]
		if !p.used || p.tout == 0 {
			continue
		}
		if p.tout--; p.tout != 0 {
			continue
		}
		if p.typ == Periodic {
			p.tout = p.reload
		}
		p.info.Expirations++
		k.trace(TraceTimerExpire, NoTask, i, 0)
		p.fn(TimerID(i), p.arg)
	}
	for _, fn := range k.onTick {
		fn()
	}
}

// Ticks returns how many times Tick has run.
func (k *Kernel) Ticks() uint64 {
	k.enterCritical()
	defer k.exitCritical()
	return k.ticks
}
