package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tty "github.com/mattn/go-tty"

	"rksys/internal/job"
	"rksys/internal/port"
	"rksys/internal/sched"
	"rksys/internal/snapshot"
	"rksys/internal/trace"
)

func main() {
	var (
		cfgPath  = flag.String("config", "rksys.yml", "kernel configuration file")
		csvPath  = flag.String("csv", "", "write the trace stream to this CSV file")
		dbPath   = flag.String("db", "", "write the trace stream to this SQLite database")
		verbose  = flag.Bool("trace", false, "print the trace stream")
		format   = flag.String("format", "yaml", "snapshot format: yaml or json")
		dumpPath = flag.String("dump", "", "save a final snapshot to this file")
		blink    = flag.Uint("blink", 50, "blink period in ticks")
		jobs     = flag.Uint("jobs", 20, "writer job period in ticks")
	)
	flag.Parse()

	// Read the configuration
	cfg := sched.Load(*cfgPath)
	log.Printf("config %s: %+v", cfg.Fingerprint(), cfg)

	snapFormat, err := snapshot.ParseFormat(*format)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	host := port.NewHost(cfg.MaxNesting, 64)
	b := sched.NewBuilder(cfg)
	demo := job.Register(b, os.Stdout)
	b.Idle(func() {})

	k, err := b.Build(host)
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	host.SetFault(k.Fatal)

	demo.OnQuit = cancel
	demo.OnStatus = func() {
		if err := snapshot.Write(os.Stdout, k.Snapshot(), snapFormat); err != nil {
			log.Printf("snapshot: %v", err)
		}
	}

	var sinks []trace.Sink
	if *verbose {
		sinks = append(sinks, trace.NewPrinter(os.Stdout, trace.KernelNamer(k), true))
	}
	if *csvPath != "" {
		s, err := trace.NewCSVSink(*csvPath)
		if err != nil {
			log.Fatal(err)
		}
		sinks = append(sinks, s)
	}
	if *dbPath != "" {
		s, err := trace.OpenSQLite(*dbPath, cfg.Fingerprint())
		if err != nil {
			log.Fatal(err)
		}
		sinks = append(sinks, s)
	}

	var wg sync.WaitGroup
	if len(sinks) > 0 {
		k.EnableTrace(cfg.TraceBuffer)
		ch := k.TraceChannel()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := trace.Drain(context.Background(), ch, sinks...); err != nil {
				log.Printf("trace: %v", err)
			}
		}()
	}

	demo.Start(k, uint32(*blink), uint32(*jobs))

	clock := port.NewTickClock(host, k.Tick)
	clock.Start(time.Duration(cfg.TickMS) * time.Millisecond)

	stopRX := startConsole(ctx, host, demo)
	log.Printf("running: s=status p=pause blinker k=kill/create writer-b q=quit")

	if err := k.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("run: %v", err)
	}

	clock.Stop()
	stopRX()
	k.CloseTrace()
	wg.Wait()

	if n := k.TraceDropped(); n > 0 {
		log.Printf("trace: %d events dropped", n)
	}
	if *dumpPath != "" {
		if err := snapshot.Save(*dumpPath, k.Snapshot(), snapFormat); err != nil {
			log.Printf("dump: %v", err)
		}
	}
	log.Printf("stopped after %d ticks, %d interrupts, %d watchdog kicks",
		clock.Count(), host.Served(), host.WatchdogKicks())
}

// startConsole feeds key presses to the demo as RX interrupts. Without a
// terminal the console stays silent and the demo runs on timers alone.
func startConsole(ctx context.Context, host *port.Host, demo *job.Demo) func() {
	t, err := tty.Open()
	if err != nil {
		log.Printf("console: %v", err)
		return func() {}
	}

	go func() {
		for ctx.Err() == nil {
			r, err := t.ReadRune()
			if err != nil {
				return
			}
			if r > 0x7f {
				continue
			}
			host.Raise(demo.RXInterrupt(byte(r)))
		}
	}()
	return func() { t.Close() }
}
