// internal/port/tickclock.go

package port

import (
	"sync/atomic"
	"time"
)

// TickClock raises the periodic tick interrupt on a Host and counts ticks
// atomically.
type TickClock struct {
	host    *Host
	isr     func()
	count   atomic.Int64
	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewTickClock creates a clock that raises isr (usually Kernel.Tick) on
// host. It does not start ticking until Start.
func NewTickClock(host *Host, isr func()) *TickClock {
	return &TickClock{
		host: host,
		isr:  isr,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start begins raising ticks at the given interval.
func (c *TickClock) Start(interval time.Duration) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer close(c.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				if !c.host.TryRaise(c.isr) {
					// the foreground is not draining interrupts; a
					// real tick would be lost the same way
					c.host.lost.Add(1)
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop signals the clock to stop raising ticks and waits for it.
func (c *TickClock) Stop() {
	close(c.stop)
	if c.started.Load() {
		<-c.done
	}
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}
