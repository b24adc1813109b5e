// Package trace consumes the kernel trace stream and writes it to sinks:
// the console, a CSV file or a SQLite database.
package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"rksys/internal/sched"
)

// Sink receives trace events one at a time.
type Sink interface {
	Write(ev sched.TraceEvent) error
	Close() error
}

// Drain copies events from ch into every sink until ch is closed or ctx
// ends, then closes the sinks. Write errors are collected, not fatal.
func Drain(ctx context.Context, ch <-chan sched.TraceEvent, sinks ...Sink) error {
	var errs []error
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return errors.Join(errs...)
			}
			for _, s := range sinks {
				if err := s.Write(ev); err != nil {
					errs = append(errs, err)
				}
			}
		case <-ctx.Done():
			return errors.Join(errs...)
		}
	}
}

// Namer resolves task ids to names for readable output.
type Namer func(id sched.TaskID) string

// KernelNamer names tasks from the kernel's task table.
func KernelNamer(k *sched.Kernel) Namer {
	return func(id sched.TaskID) string {
		if id == sched.NoTask {
			return "-"
		}
		return k.Identify(id).Name()
	}
}

// Printer writes one human readable line per event.
type Printer struct {
	w        io.Writer
	name     Namer
	skipTick bool
}

// NewPrinter writes to w. Timer expirations and idle passes are frequent,
// so quiet drops them.
func NewPrinter(w io.Writer, name Namer, quiet bool) *Printer {
	return &Printer{w: w, name: name, skipTick: quiet}
}

func (p *Printer) Write(ev sched.TraceEvent) error {
	// periodic events would drown everything else
	if p.skipTick && (ev.Kind == sched.TraceIdle || ev.Kind == sched.TraceTimerExpire) {
		return nil
	}

	// an auxiliary function to center the event kind in the output
	center := func(str string, width int) string {
		spaces := (width - len(str)) / 2
		if spaces < 0 {
			spaces = 0
		}
		return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", max(0, width-(spaces+len(str))))
	}

	task := "-"
	if p.name != nil {
		task = p.name(ev.Task)
	}
	_, err := fmt.Fprintf(p.w, "%s = Tick: %07d [%s] => Task: %-10s obj=%3d arg=%d\n",
		ev.Time.Format("Jan 02 15:04:05.000"),
		ev.Tick,
		center(ev.Kind.String(), 12),
		task,
		ev.Object,
		ev.Arg,
	)
	return err
}

func (p *Printer) Close() error { return nil }

func stamp(t time.Time) string { return t.Format(time.RFC3339Nano) }
