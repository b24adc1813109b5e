package sched

import "time"

// Snapshot is a point-in-time view of every kernel table, for consoles and
// post-mortem dumps.
type Snapshot struct {
	Fingerprint string         `yaml:"fingerprint" json:"fingerprint"`
	Ticks       uint64         `yaml:"ticks" json:"ticks"`
	Pending     bool           `yaml:"pending" json:"pending"`
	Ready       []int          `yaml:"ready" json:"ready"`
	Fatals      uint64         `yaml:"fatals" json:"fatals"`
	Tasks       []TaskStatus   `yaml:"tasks" json:"tasks"`
	Queues      []QueueStatus  `yaml:"queues" json:"queues"`
	EFlags      []EFlagStatus  `yaml:"eflags,omitempty" json:"eflags,omitempty"`
	Mutexes     []MutexStatus  `yaml:"mutexes,omitempty" json:"mutexes,omitempty"`
	Timers      []TimerStatus  `yaml:"timers,omitempty" json:"timers,omitempty"`
	Signals     []SignalStatus `yaml:"signals,omitempty" json:"signals,omitempty"`
}

type TaskStatus struct {
	ID        int           `yaml:"id" json:"id"`
	Name      string        `yaml:"name" json:"name"`
	Priority  int           `yaml:"priority" json:"priority"`
	State     string        `yaml:"state" json:"state"`
	EFlag     int           `yaml:"eflag" json:"eflag"`
	Mutex     int           `yaml:"mutex" json:"mutex"`
	ExecCount uint64        `yaml:"exec_count" json:"exec_count"`
	ExecTime  time.Duration `yaml:"exec_time" json:"exec_time"`
}

type QueueStatus struct {
	ID       int       `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Consumer string    `yaml:"consumer" json:"consumer"`
	Len      int       `yaml:"len" json:"len"`
	Capacity int       `yaml:"capacity" json:"capacity"`
	Info     QueueInfo `yaml:"info" json:"info"`
}

type EFlagStatus struct {
	ID      int       `yaml:"id" json:"id"`
	Owner   string    `yaml:"owner" json:"owner"`
	Flags   Flags     `yaml:"flags" json:"flags"`
	Mask    Flags     `yaml:"mask" json:"mask"`
	WaitAll bool      `yaml:"wait_all" json:"wait_all"`
	Pending bool      `yaml:"pending" json:"pending"`
	Info    EFlagInfo `yaml:"info" json:"info"`
}

type MutexStatus struct {
	ID      int       `yaml:"id" json:"id"`
	Name    string    `yaml:"name" json:"name"`
	Owner   string    `yaml:"owner" json:"owner"`
	Waiters []string  `yaml:"waiters,omitempty" json:"waiters,omitempty"`
	Info    MutexInfo `yaml:"info" json:"info"`
}

type TimerStatus struct {
	ID       int       `yaml:"id" json:"id"`
	Periodic bool      `yaml:"periodic" json:"periodic"`
	Remain   uint32    `yaml:"remain" json:"remain"`
	Reload   uint32    `yaml:"reload" json:"reload"`
	Info     TimerInfo `yaml:"info" json:"info"`
}

type SignalStatus struct {
	Number int      `yaml:"number" json:"number"`
	Name   string   `yaml:"name" json:"name"`
	Tasks  []string `yaml:"tasks" json:"tasks"`
}

// Snapshot copies the kernel tables inside one critical section.
func (k *Kernel) Snapshot() Snapshot {
	k.enterCritical()
	defer k.exitCritical()

	s := Snapshot{
		Fingerprint: k.cfg.Fingerprint(),
		Ticks:       k.ticks,
		Pending:     k.pending,
		Ready:       k.ready.priorities(),
		Fatals:      k.fatals,
	}
	for _, t := range k.tasks {
		s.Tasks = append(s.Tasks, TaskStatus{
			ID:        int(t.ID),
			Name:      t.def.Name,
			Priority:  t.def.Priority,
			State:     t.state.String(),
			EFlag:     int(t.eflag),
			Mutex:     int(t.mutex),
			ExecCount: t.ExecCount,
			ExecTime:  t.ExecTime,
		})
	}
	for i, q := range k.queues {
		s.Queues = append(s.Queues, QueueStatus{
			ID:       i,
			Name:     q.def.Name,
			Consumer: nameOf(q.consumer),
			Len:      q.count,
			Capacity: q.def.Capacity,
			Info:     q.info,
		})
	}
	for i, r := range k.eflags {
		if !r.used {
			continue
		}
		s.EFlags = append(s.EFlags, EFlagStatus{
			ID:      i,
			Owner:   nameOf(r.owner),
			Flags:   r.flags,
			Mask:    r.mask,
			WaitAll: r.mode == WaitAll,
			Pending: r.pending,
			Info:    r.info,
		})
	}
	for i, m := range k.mutexes {
		ms := MutexStatus{ID: i, Name: m.name, Owner: nameOf(m.owner), Info: m.info}
		for _, w := range m.waiters {
			if w != nil {
				ms.Waiters = append(ms.Waiters, w.def.Name)
			}
		}
		s.Mutexes = append(s.Mutexes, ms)
	}
	for i, p := range k.timers {
		if !p.used {
			continue
		}
		s.Timers = append(s.Timers, TimerStatus{
			ID:       i,
			Periodic: p.typ == Periodic,
			Remain:   p.tout,
			Reload:   p.reload,
			Info:     p.info,
		})
	}
	for _, v := range k.signals.Values() {
		e := v.(*signalEntry)
		ss := SignalStatus{Name: e.def.Name}
		for _, t := range e.tasks {
			ss.Tasks = append(ss.Tasks, t.def.Name)
		}
		s.Signals = append(s.Signals, ss)
	}
	for i := range s.Signals {
		s.Signals[i].Number = i
	}
	return s
}
