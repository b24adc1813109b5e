package sched

import (
	"errors"
	"fmt"
)

// Operational conditions. Callers decide whether and how to retry.
var (
	ErrQueueFull         = errors.New("queue full")
	ErrQueueEmpty        = errors.New("queue empty")
	ErrMutexNotAvailable = errors.New("mutex not available")
)

// FatalCode classifies an invariant violation.
type FatalCode int

const (
	ErrCodeTaskID FatalCode = iota + 1
	ErrCodeTaskState
	ErrCodeQueueID
	ErrCodeQueueElem
	ErrCodeEFlagID
	ErrCodeEFlagNoRoom
	ErrCodeEFlagUnused
	ErrCodeMutexID
	ErrCodeMutexWaitSlot
	ErrCodeTimerID
	ErrCodeTimerNoRoom
	ErrCodeTimerUnused
	ErrCodeSignal
	ErrCodeReentrant
	ErrCodePort // fault reported by the platform port, e.g. critical section nesting
)

func (c FatalCode) String() string {
	switch c {
	case ErrCodeTaskID:
		return "task-id"
	case ErrCodeTaskState:
		return "task-state"
	case ErrCodeQueueID:
		return "queue-id"
	case ErrCodeQueueElem:
		return "queue-elem"
	case ErrCodeEFlagID:
		return "eflag-id"
	case ErrCodeEFlagNoRoom:
		return "eflag-no-room"
	case ErrCodeEFlagUnused:
		return "eflag-unused"
	case ErrCodeMutexID:
		return "mutex-id"
	case ErrCodeMutexWaitSlot:
		return "mutex-wait-slot"
	case ErrCodeTimerID:
		return "timer-id"
	case ErrCodeTimerNoRoom:
		return "timer-no-room"
	case ErrCodeTimerUnused:
		return "timer-unused"
	case ErrCodeSignal:
		return "signal"
	case ErrCodeReentrant:
		return "reentrant"
	case ErrCodePort:
		return "port"
	default:
		return "unknown"
	}
}

// FatalError is a programming or configuration error. It is never returned
// to callers; it goes through Kernel.Fatal.
type FatalError struct {
	Code FatalCode
	Msg  string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("rksys fatal [%s]: %s", e.Code, e.Msg)
}

// Fatal runs the fatal-error path selected by Config.FatalPolicy. Ports
// call it for their own faults, such as exceeding the nesting limit.
func (k *Kernel) Fatal(err error) {
	var fe *FatalError
	if !errors.As(err, &fe) {
		fe = &FatalError{Code: ErrCodePort, Msg: err.Error()}
	}
	k.fatals++
	k.trace(TraceFatal, NoTask, -1, int64(fe.Code))

	switch k.cfg.FatalPolicy {
	case FatalIgnore:
		return
	case FatalReset:
		k.port.Reset(fe)
	default:
		panic(fe)
	}
}

// assert checks an invariant: on a false condition it raises the fatal
// path and reports false so the caller can bail out under FatalIgnore.
func (k *Kernel) assert(cond bool, code FatalCode, format string, args ...any) bool {
	if cond {
		return true
	}
	k.Fatal(&FatalError{Code: code, Msg: fmt.Sprintf(format, args...)})
	return false
}
