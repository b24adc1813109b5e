package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"rksys/internal/sched"
)

// CSVSink logs every event as a CSV record.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// NewCSVSink creates path and writes the header.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace csv: %w", err)
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"timestamp", "tick", "event", "task_id", "object", "arg"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("trace csv: %w", err)
	}
	w.Flush()
	return &CSVSink{f: f, w: w}, nil
}

func (s *CSVSink) Write(ev sched.TraceEvent) error {
	rec := []string{
		stamp(ev.Time),
		strconv.FormatUint(ev.Tick, 10),
		ev.Kind.String(),
		strconv.Itoa(int(ev.Task)),
		strconv.Itoa(ev.Object),
		strconv.FormatInt(ev.Arg, 10),
	}
	if err := s.w.Write(rec); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
