// internal/app/system/timeouts/timeouts.go
// Package timeouts holds the deadlines handlers put on backend calls.
//
//   - Ping: health checks
//   - Read: one row by id, login lookups
//   - List: scoped selects and directory loads
//   - Write: inserts, updates and deletes
//   - Export: workbook generation over a whole scope
package timeouts

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Set is one complete group of timeouts.
type Set struct {
	Ping   time.Duration
	Read   time.Duration
	List   time.Duration
	Write  time.Duration
	Export time.Duration
}

// Defaults is the Set used until Configure is called.
func Defaults() Set {
	return Set{
		Ping:   2 * time.Second,
		Read:   5 * time.Second,
		List:   10 * time.Second,
		Write:  10 * time.Second,
		Export: 60 * time.Second,
	}
}

// Merge returns s with every positive field of o applied.
func (s Set) Merge(o Set) Set {
	pick := func(cur, next time.Duration) time.Duration {
		if next > 0 {
			return next
		}
		return cur
	}
	return Set{
		Ping:   pick(s.Ping, o.Ping),
		Read:   pick(s.Read, o.Read),
		List:   pick(s.List, o.List),
		Write:  pick(s.Write, o.Write),
		Export: pick(s.Export, o.Export),
	}
}

var current atomic.Pointer[Set]

func init() { Reset() }

// Current returns the active Set.
func Current() Set { return *current.Load() }

func Ping() time.Duration   { return Current().Ping }
func Read() time.Duration   { return Current().Read }
func List() time.Duration   { return Current().List }
func Write() time.Duration  { return Current().Write }
func Export() time.Duration { return Current().Export }

// Configure overlays cfg on the active Set; zero fields are ignored. Call it
// during startup before handlers are built.
func Configure(cfg Set) {
	next := Current().Merge(cfg)
	current.Store(&next)
}

// Reset restores Defaults.
func Reset() {
	d := Defaults()
	current.Store(&d)
}

// FromLookup builds a Set from string settings named ping, read, list, write
// and export (e.g. "2s", "500ms"). Unparseable or non-positive values are
// skipped. It returns the Set and how many fields were taken.
func FromLookup(lookup func(name string) string) (Set, int) {
	var s Set
	n := 0
	for name, dst := range map[string]*time.Duration{
		"ping":   &s.Ping,
		"read":   &s.Read,
		"list":   &s.List,
		"write":  &s.Write,
		"export": &s.Export,
	} {
		v := strings.TrimSpace(lookup(name))
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
			n++
		}
	}
	return s, n
}

// WithTimeout is context.WithTimeout whose cancel logs a warning when the
// deadline, not the caller, ended the operation.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Export(), h.Log, "student export")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
