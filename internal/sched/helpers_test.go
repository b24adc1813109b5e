package sched

import (
	"testing"

	"rksys/internal/port"
)

// newTestKernel builds a kernel on a host port. build declares the system.
func newTestKernel(t *testing.T, cfg Config, build func(b *Builder)) (*Kernel, *port.Host) {
	t.Helper()

	host := port.NewHost(cfg.MaxNesting, 16)
	b := NewBuilder(cfg)
	build(b)
	k, err := b.Build(host)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	host.SetFault(k.Fatal)
	return k, host
}

// expectFatal runs fn and fails unless it raises a fatal error with code.
func expectFatal(t *testing.T, code FatalCode, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		fe, ok := r.(*FatalError)
		if !ok {
			t.Fatalf("expected fatal %s, got %v", code, r)
		}
		if fe.Code != code {
			t.Fatalf("expected fatal %s, got %s (%s)", code, fe.Code, fe.Msg)
		}
	}()
	fn()
}

// received is what a recording handler saw.
type received struct {
	task string
	kind MessageKind
	obj  int
	data byte
}

// recorder collects dispatches across tasks in order.
type recorder struct {
	k   *Kernel
	got []received
}

// handler records every message; queue messages consume one element.
func (r *recorder) handler(name string) Handler {
	return func(msg *Message) {
		rec := received{task: name, kind: msg.Kind, obj: objectOf(msg)}
		if msg.Kind == QueueEvent {
			buf := make([]byte, r.k.queues[msg.Queue].def.ElemSize)
			if err := r.k.QueueRemove(msg.Queue, buf); err != nil {
				panic("queue message with empty queue")
			}
			rec.data = buf[0]
		}
		r.got = append(r.got, rec)
	}
}

func (r *recorder) tasks() []string {
	out := make([]string, len(r.got))
	for i, g := range r.got {
		out[i] = g.task
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
