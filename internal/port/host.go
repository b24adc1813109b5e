// Package port provides the platform port the kernel runs on when hosted on
// a regular OS process.
//
// A microcontroller has one thread of control that interrupt handlers
// preempt whenever interrupts are unmasked. Host reproduces that on the
// goroutine running the kernel: Raise queues an interrupt from any goroutine,
// and the queued handler runs on the kernel's goroutine the next time the
// critical section depth drops to zero or the kernel idles. While it runs,
// interrupts stay masked, so handlers never nest.
package port

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
)

// ErrNesting is reported when critical sections nest deeper than allowed or
// are exited more often than entered.
var ErrNesting = errors.New("critical section nesting")

// Host is a single-core platform port backed by a goroutine-safe interrupt
// line.
type Host struct {
	depth      int // only touched by the kernel goroutine
	maxNesting int
	irq        chan func()

	kicks  atomic.Uint64
	served atomic.Uint64
	lost   atomic.Uint64

	fault func(error)
	reset func(error)
}

// Option configures a Host.
type Option func(*Host)

// WithFault sets where nesting faults go; normally Kernel.Fatal. The default
// panics.
func WithFault(fn func(error)) Option {
	return func(h *Host) { h.fault = fn }
}

// WithReset sets what Reset does. The default logs the error and panics,
// which is as close to rebooting as a process gets without exiting.
func WithReset(fn func(error)) Option {
	return func(h *Host) { h.reset = fn }
}

// NewHost returns a port allowing maxNesting nested critical sections and
// queueing up to backlog interrupts.
func NewHost(maxNesting, backlog int, opts ...Option) *Host {
	if maxNesting <= 0 {
		maxNesting = 8
	}
	if backlog <= 0 {
		backlog = 64
	}
	h := &Host{
		maxNesting: maxNesting,
		irq:        make(chan func(), backlog),
		fault:      func(err error) { panic(err) },
		reset: func(err error) {
			log.Printf("rksys: reset: %v", err)
			panic(err)
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetFault replaces the fault handler once the kernel exists.
func (h *Host) SetFault(fn func(error)) { h.fault = fn }

// EnterCritical masks interrupts.
func (h *Host) EnterCritical() {
	h.depth++
	if h.depth > h.maxNesting {
		h.fault(fmt.Errorf("%w: depth %d exceeds %d", ErrNesting, h.depth, h.maxNesting))
	}
}

// ExitCritical unmasks interrupts when the outermost section exits, and
// runs whatever interrupts were raised meanwhile.
func (h *Host) ExitCritical() {
	if h.depth == 0 {
		h.fault(fmt.Errorf("%w: exit without enter", ErrNesting))
		return
	}
	h.depth--
	if h.depth == 0 {
		h.service()
	}
}

// Depth returns the current nesting depth.
func (h *Host) Depth() int { return h.depth }

// service runs queued interrupt handlers with interrupts masked.
func (h *Host) service() {
	for {
		select {
		case isr := <-h.irq:
			h.run(isr)
		default:
			return
		}
	}
}

func (h *Host) run(isr func()) {
	h.depth = 1
	isr()
	h.depth = 0
	h.served.Add(1)
}

// Raise queues an interrupt handler. It blocks while the interrupt backlog
// is full. Do not call it from the kernel goroutine with a full backlog.
func (h *Host) Raise(isr func()) {
	h.irq <- isr
}

// TryRaise queues an interrupt handler unless the backlog is full.
func (h *Host) TryRaise(isr func()) bool {
	select {
	case h.irq <- isr:
		return true
	default:
		return false
	}
}

// Idle waits for an interrupt, runs it and every other queued one, and
// returns. It returns ctx.Err() when ctx ends first.
func (h *Host) Idle(ctx context.Context) error {
	select {
	case isr := <-h.irq:
		h.run(isr)
		h.service()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll runs every queued interrupt without waiting, as if interrupts had
// just been unmasked.
func (h *Host) Poll() {
	if h.depth == 0 {
		h.service()
	}
}

// KickWatchdog feeds the watchdog; Host only counts the kicks.
func (h *Host) KickWatchdog() { h.kicks.Add(1) }

// WatchdogKicks returns how often the watchdog was fed.
func (h *Host) WatchdogKicks() uint64 { return h.kicks.Load() }

// Served returns how many interrupt handlers ran.
func (h *Host) Served() uint64 { return h.served.Load() }

// Lost returns how many ticks were dropped because the backlog was full.
func (h *Host) Lost() uint64 { return h.lost.Load() }

// Reset handles a fatal error under the reset policy.
func (h *Host) Reset(err error) { h.reset(err) }
