package sched

import (
	"errors"
	"fmt"
)

// Builder collects the static system description: tasks, queues, mutexes,
// signals and hooks. Build validates it and lays out the fixed tables. It
// runs once at startup, before the scheduler and the interrupts are started.
type Builder struct {
	cfg     Config
	tasks   []TaskDef
	queues  []QueueDef
	mutexes []string
	signals []SignalDef
	idle    func()
	onTick  []func()
}

// NewBuilder starts a system description sized by cfg.
func NewBuilder(cfg Config) *Builder {
	cfg.clamp()
	return &Builder{cfg: cfg}
}

// AddQueue declares a queue and returns its id.
func (b *Builder) AddQueue(def QueueDef) QueueID {
	b.queues = append(b.queues, def)
	return QueueID(len(b.queues) - 1)
}

// AddTask declares a task and returns its id.
func (b *Builder) AddTask(def TaskDef) TaskID {
	b.tasks = append(b.tasks, def)
	return TaskID(len(b.tasks) - 1)
}

// AddMutex declares a mutex and returns its id.
func (b *Builder) AddMutex(name string) MutexID {
	b.mutexes = append(b.mutexes, name)
	return MutexID(len(b.mutexes) - 1)
}

// AddSignal declares the next signal number.
func (b *Builder) AddSignal(def SignalDef) Signal {
	b.signals = append(b.signals, def)
	return Signal(len(b.signals) - 1)
}

// Idle sets the hook run whenever a scheduler pass ends with nothing to do.
func (b *Builder) Idle(fn func()) { b.idle = fn }

// OnTick appends fn to the main-timer interrupt chain run after the software
// timers on every tick.
func (b *Builder) OnTick(fn func()) { b.onTick = append(b.onTick, fn) }

// Build validates the description and returns the kernel. Tasks are created
// in their initial state, in registration order.
func (b *Builder) Build(port Port) (*Kernel, error) {
	if port == nil {
		return nil, errors.New("build: nil port")
	}
	cfg := b.cfg
	if err := b.validate(); err != nil {
		return nil, err
	}

	k := &Kernel{
		cfg:      cfg,
		port:     port,
		flagMask: cfg.flagMask(),
		nodes:    make([]readyNode, cfg.PriorityLevels),
		ready:    newReadyList(),
		eflags:   make([]eflagRegister, cfg.MaxEFlags),
		mutexes:  make([]mutexCB, len(b.mutexes)),
		timers:   make([]timerCB, cfg.MaxTimers),
		signals:  newSignalTable(),
		sigQueue: NoQueue,
		idle:     b.idle,
		onTick:   b.onTick,
	}
	for i := range k.nodes {
		k.nodes[i].pty = i
	}

	for _, def := range b.queues {
		k.queues = append(k.queues, newQueue(def))
	}
	if len(b.signals) > 0 {
		k.sigQueue = QueueID(len(k.queues))
		k.queues = append(k.queues, newQueue(QueueDef{
			Name:     "signals",
			ElemSize: 1,
			Capacity: cfg.SignalQueueSize,
		}))
	}

	for i, def := range b.tasks {
		t := &Task{ID: TaskID(i), def: def, state: def.Initial, eflag: NoEFlag, mutex: NoMutex}
		k.tasks = append(k.tasks, t)
		k.nodes[def.Priority].task = t
		for _, q := range def.Queues {
			k.queues[q].consumer = t
		}
	}

	for i, name := range b.mutexes {
		k.mutexes[i] = mutexCB{name: name, waiters: make([]*Task, cfg.PriorityLevels)}
	}

	for i, def := range b.signals {
		e := &signalEntry{def: def}
		for _, id := range def.Tasks {
			e.tasks = append(e.tasks, k.tasks[id])
		}
		k.signals.Put(i, e)
	}

	for _, t := range k.tasks {
		k.CreateTask(t.ID, t.def.Initial)
	}
	return k, nil
}

func (b *Builder) validate() error {
	cfg := b.cfg

	if len(b.tasks) == 0 {
		return errors.New("build: no tasks")
	}
	if len(b.tasks) > cfg.MaxTasks {
		return fmt.Errorf("build: %d tasks, max_tasks is %d", len(b.tasks), cfg.MaxTasks)
	}
	if len(b.queues) > cfg.MaxQueues {
		return fmt.Errorf("build: %d queues, max_queues is %d", len(b.queues), cfg.MaxQueues)
	}
	if len(b.mutexes) > cfg.MaxMutexes {
		return fmt.Errorf("build: %d mutexes, max_mutexes is %d", len(b.mutexes), cfg.MaxMutexes)
	}
	if len(b.signals) > cfg.MaxSignals {
		return fmt.Errorf("build: %d signals, max_signals is %d", len(b.signals), cfg.MaxSignals)
	}

	for i, q := range b.queues {
		if q.ElemSize <= 0 || q.Capacity <= 0 {
			return fmt.Errorf("build: queue %d (%s): element size and capacity must be > 0", i, q.Name)
		}
	}

	// Priority doubles as the ready-list slot and the mutex wait slot, so
	// it must be unique.
	owner := make(map[int]string, len(b.tasks))
	consumer := make(map[QueueID]string)
	for i, t := range b.tasks {
		if t.Handler == nil {
			return fmt.Errorf("build: task %d (%s): nil handler", i, t.Name)
		}
		if t.Priority < 0 || t.Priority >= cfg.PriorityLevels {
			return fmt.Errorf("build: task %s: priority %d out of range [0,%d)", t.Name, t.Priority, cfg.PriorityLevels)
		}
		if other, dup := owner[t.Priority]; dup {
			return fmt.Errorf("build: tasks %s and %s share priority %d", other, t.Name, t.Priority)
		}
		owner[t.Priority] = t.Name
		if t.Initial != StateBlocked && t.Initial != StateZombie {
			return fmt.Errorf("build: task %s: initial state %s", t.Name, t.Initial)
		}
		for _, q := range t.Queues {
			if q < 0 || int(q) >= len(b.queues) {
				return fmt.Errorf("build: task %s: unknown queue %d", t.Name, q)
			}
			if other, dup := consumer[q]; dup {
				return fmt.Errorf("build: queue %d consumed by both %s and %s", q, other, t.Name)
			}
			consumer[q] = t.Name
		}
	}

	for i, s := range b.signals {
		for _, id := range s.Tasks {
			if id < 0 || int(id) >= len(b.tasks) {
				return fmt.Errorf("build: signal %d (%s): unknown task %d", i, s.Name, id)
			}
		}
	}
	return nil
}
