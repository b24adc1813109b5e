package sched

import (
	"encoding/hex"
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
	"golang.org/x/crypto/sha3"
)

// FatalPolicy selects what the kernel does on an invariant violation.
type FatalPolicy string

const (
	FatalIgnore FatalPolicy = "ignore" // trace it and keep going
	FatalHalt   FatalPolicy = "halt"   // panic with the *FatalError
	FatalReset  FatalPolicy = "reset"  // hand the error to Port.Reset
)

// Config mirrors rksys.yml. Every table of the kernel is sized from it at
// build time and never grows afterwards.
type Config struct {
	TickMS          int         `yaml:"tick_ms"`           // 10 (by default)
	PriorityLevels  int         `yaml:"priority_levels"`   // 8
	MaxTasks        int         `yaml:"max_tasks"`         // 8
	MaxQueues       int         `yaml:"max_queues"`        // 8
	MaxEFlags       int         `yaml:"max_eflags"`        // 4
	MaxMutexes      int         `yaml:"max_mutexes"`       // 4
	MaxTimers       int         `yaml:"max_timers"`        // 8
	MaxSignals      int         `yaml:"max_signals"`       // 4
	SignalQueueSize int         `yaml:"signal_queue_size"` // 4
	EFlagWidth      int         `yaml:"eflag_width"`       // 8, 16 or 32 bits
	MaxNesting      int         `yaml:"max_nesting"`       // critical section nesting limit
	RuntimeStats    bool        `yaml:"runtime_stats"`
	FatalPolicy     FatalPolicy `yaml:"fatal_policy"`
	TraceBuffer     int         `yaml:"trace_buffer"`
}

// Upper bounds inherited from the 8-bit targets the kernel was sized for.
const (
	maxPriorityLevels = 32
	maxTasks          = 32
	maxTableSize      = 16
)

// DefaultConfig is used when no configuration file is found.
func DefaultConfig() Config {
	return Config{
		TickMS:          10,
		PriorityLevels:  8,
		MaxTasks:        8,
		MaxQueues:       8,
		MaxEFlags:       4,
		MaxMutexes:      4,
		MaxTimers:       8,
		MaxSignals:      4,
		SignalQueueSize: 4,
		EFlagWidth:      8,
		MaxNesting:      8,
		RuntimeStats:    false,
		FatalPolicy:     FatalHalt,
		TraceBuffer:     256,
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only
func Load(path string) Config {
	cfg := DefaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)
	cfg.clamp()
	return cfg
}

// Parse is Load for an in-memory document. Unlike Load it reports
// malformed YAML instead of silently keeping the defaults.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.clamp()
	return cfg, nil
}

// sanity clamps
func (c *Config) clamp() {
	d := DefaultConfig()

	if c.TickMS <= 0 {
		c.TickMS = d.TickMS
	}
	c.PriorityLevels = clampInt(c.PriorityLevels, d.PriorityLevels, maxPriorityLevels)
	c.MaxTasks = clampInt(c.MaxTasks, d.MaxTasks, maxTasks)
	c.MaxQueues = clampInt(c.MaxQueues, d.MaxQueues, maxTableSize)
	c.MaxEFlags = clampInt(c.MaxEFlags, d.MaxEFlags, maxTableSize)
	c.MaxMutexes = clampInt(c.MaxMutexes, d.MaxMutexes, maxTableSize)
	c.MaxTimers = clampInt(c.MaxTimers, d.MaxTimers, maxTableSize)
	c.MaxSignals = clampInt(c.MaxSignals, d.MaxSignals, maxTableSize)
	c.SignalQueueSize = clampInt(c.SignalQueueSize, d.SignalQueueSize, maxTableSize)

	switch c.EFlagWidth {
	case 8, 16, 32:
	default:
		c.EFlagWidth = d.EFlagWidth
	}
	if c.MaxNesting <= 0 {
		c.MaxNesting = d.MaxNesting
	}
	switch c.FatalPolicy {
	case FatalIgnore, FatalHalt, FatalReset:
	default:
		c.FatalPolicy = d.FatalPolicy
	}
	if c.TraceBuffer <= 0 {
		c.TraceBuffer = d.TraceBuffer
	}
}

func clampInt(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// flagMask is the set of bits an event flag register can hold.
func (c Config) flagMask() Flags {
	if c.EFlagWidth >= 32 {
		return ^Flags(0)
	}
	return Flags(1)<<c.EFlagWidth - 1
}

// Fingerprint identifies a configuration in trace sessions. Two kernels
// with the same table sizes and policies share a fingerprint.
func (c Config) Fingerprint() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		data = []byte(fmt.Sprintf("%+v", c))
	}
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
