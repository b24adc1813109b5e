// Package job holds the demo application: a handful of tasks that exercise
// every kernel primitive.
package job

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"rksys/internal/sched"
)

// Blink is the flag the blink timer raises.
const Blink sched.Flags = 1 << 0

// Demo is the demo application. Register declares it on a builder, Start
// claims its runtime resources once the kernel exists.
type Demo struct {
	out io.Writer
	k   *sched.Kernel

	RX     sched.QueueID // console bytes, filled by the RX interrupt
	Jobs   [2]sched.QueueID
	Shared sched.MutexID
	Status sched.Signal

	Console sched.TaskID
	Blinker sched.TaskID
	Writers [2]sched.TaskID

	blinkFlags sched.EFlagID
	blinkTimer sched.TimerID
	jobTimer   sched.TimerID
	blinks     int
	seq        uint16
	waiting    [2]bool

	// OnStatus runs when the status signal has been delivered.
	OnStatus func()
	// OnQuit runs when 'q' arrives on the console.
	OnQuit func()
}

// Register declares the demo's tasks, queues, mutex and signal.
func Register(b *sched.Builder, out io.Writer) *Demo {
	d := &Demo{out: out}

	d.RX = b.AddQueue(sched.QueueDef{Name: "rx", ElemSize: 1, Capacity: 16, Schedulable: true})
	d.Jobs[0] = b.AddQueue(sched.QueueDef{Name: "jobs-a", ElemSize: 2, Capacity: 4, Schedulable: true})
	d.Jobs[1] = b.AddQueue(sched.QueueDef{Name: "jobs-b", ElemSize: 2, Capacity: 4, Schedulable: true})
	d.Shared = b.AddMutex("out")

	d.Console = b.AddTask(sched.TaskDef{
		Name:     "console",
		Priority: 0,
		Handler:  d.console,
		Queues:   []sched.QueueID{d.RX},
	})
	d.Blinker = b.AddTask(sched.TaskDef{
		Name:     "blinker",
		Priority: 2,
		Handler:  d.blinker,
		Init:     func() { d.blinks = 0 },
	})
	for i := range d.Writers {
		i := i
		d.Writers[i] = b.AddTask(sched.TaskDef{
			Name:     fmt.Sprintf("writer-%c", 'a'+i),
			Priority: 3 + i,
			Handler:  func(msg *sched.Message) { d.writer(i, msg) },
			Kill:     func() { d.waiting[i] = false },
			Queues:   []sched.QueueID{d.Jobs[i]},
		})
	}
	d.Status = b.AddSignal(sched.SignalDef{
		Name:    "status",
		Tasks:   []sched.TaskID{d.Console, d.Blinker},
		Handler: func() { d.onStatus() },
	})
	return d
}

// Start binds the blinker's flag register and arms the timers: the blinker
// every blinkTicks, the writers' jobs every jobTicks.
func (d *Demo) Start(k *sched.Kernel, blinkTicks, jobTicks uint32) {
	d.k = k

	d.blinkFlags = k.EFlagAssign(d.Blinker)
	k.EFlagSetWait(d.blinkFlags, sched.WaitAll, Blink)

	d.blinkTimer = k.TimerAssign(sched.Periodic, func(sched.TimerID, any) {
		k.EFlagSetFlags(d.blinkFlags, Blink, sched.FlagSet)
	}, nil)
	k.TimerKick(d.blinkTimer, blinkTicks)

	d.jobTimer = k.TimerAssign(sched.Periodic, func(sched.TimerID, any) {
		d.seq++
		var job [2]byte
		binary.LittleEndian.PutUint16(job[:], d.seq)
		for _, q := range d.Jobs {
			// a full queue just skips this round
			_ = k.QueueInsert(q, job[:])
		}
	}, nil)
	k.TimerKick(d.jobTimer, jobTicks)
}

// RXInterrupt returns the handler a serial driver raises for byte c.
func (d *Demo) RXInterrupt(c byte) func() {
	return func() {
		if err := d.k.QueueInsert(d.RX, []byte{c}); err != nil {
			fmt.Fprintf(d.out, "rx: dropped %q: %v\n", c, err)
		}
	}
}

func (d *Demo) console(msg *sched.Message) {
	switch msg.Kind {
	case sched.SignalEvent:
		fmt.Fprintln(d.out, "console: status requested")
		return
	case sched.QueueEvent:
	default:
		return
	}

	var c [1]byte
	if err := d.k.QueueRemove(msg.Queue, c[:]); err != nil {
		return
	}
	switch c[0] {
	case 's':
		if err := d.k.Signal(d.Status); err != nil {
			fmt.Fprintf(d.out, "console: status: %v\n", err)
		}
	case 'p':
		if d.k.Suspend(d.Blinker) {
			fmt.Fprintln(d.out, "console: blinker suspended")
		} else if d.k.Resume(d.Blinker) {
			fmt.Fprintln(d.out, "console: blinker resumed")
		}
	case 'k':
		if d.k.Kill(d.Writers[1]) {
			fmt.Fprintln(d.out, "console: writer-b killed")
		} else {
			d.k.CreateTask(d.Writers[1], sched.StateBlocked)
			fmt.Fprintln(d.out, "console: writer-b created")
		}
	case 'q':
		if d.OnQuit != nil {
			d.OnQuit()
		}
	default:
		fmt.Fprintf(d.out, "console: %q\n", c[0])
	}
}

func (d *Demo) blinker(msg *sched.Message) {
	switch msg.Kind {
	case sched.EFlagEvent:
		d.blinks++
		fmt.Fprintf(d.out, "blinker: blink %d (flags %#x)\n", d.blinks, msg.Flags)
	case sched.SignalEvent:
		fmt.Fprintf(d.out, "blinker: %d blinks so far\n", d.blinks)
	}
}

// writer holds the shared mutex from one job to the next, so the other
// writer has to wait for it.
func (d *Demo) writer(i int, msg *sched.Message) {
	self := d.Writers[i]
	name := d.k.Identify(self).Name()

	switch msg.Kind {
	case sched.QueueEvent:
		var job [2]byte
		if err := d.k.QueueRemove(msg.Queue, job[:]); err != nil {
			return
		}
		n := binary.LittleEndian.Uint16(job[:])
		if d.k.MutexOwner(d.Shared) == self {
			busy(200 * time.Microsecond)
			fmt.Fprintf(d.out, "%s: job %d, releasing\n", name, n)
			d.k.MutexGive(self)
			return
		}
		if err := d.k.MutexTake(d.Shared, self); err != nil {
			d.waiting[i] = true
			return
		}
		fmt.Fprintf(d.out, "%s: job %d, locked\n", name, n)
	case sched.MutexEvent:
		if !d.waiting[i] {
			return
		}
		if err := d.k.MutexTake(msg.Mutex, self); err == nil {
			d.waiting[i] = false
			fmt.Fprintf(d.out, "%s: locked after waiting\n", name)
		}
	}
}

func (d *Demo) onStatus() {
	if d.OnStatus != nil {
		d.OnStatus()
	}
}

// busy burns d of CPU time the way a real handler computes; handlers must not
// sleep.
func busy(d time.Duration) {
	for start := time.Now(); time.Since(start) < d; {
	}
}
