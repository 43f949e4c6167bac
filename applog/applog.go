// Package applog implements the logging facet of spec.md §4.10's "Logging &
// signal facade" component: a process-global log context, set once (later
// calls to Init are ignored), exposing verbosity gating, an optional ANSI
// colour flag, and an elapsed-since-Init clock, atop
// github.com/joeycumines/logiface (the teacher's own logging facade
// dependency) with github.com/joeycumines/stumpy as the JSON backend.
//
// Grounded on the teacher's logging.go: a package-scoped globalLogger set
// once via SetStructuredLogger, falling back to a no-op logger when unset.
// applog keeps that idempotent-singleton shape but replaces the teacher's
// hand-rolled Logger interface with logiface/stumpy, since this module
// already depends on them.
package applog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Level re-exports logiface's syslog-style level so callers configuring
// applog never need to import logiface directly.
type Level = logiface.Level

const (
	LevelError         = logiface.LevelError
	LevelWarning       = logiface.LevelWarning
	LevelNotice        = logiface.LevelNotice
	LevelInformational = logiface.LevelInformational
	LevelDebug         = logiface.LevelDebug
)

// Config configures the one-shot global log context.
type Config struct {
	// Level is the minimum enabled verbosity (spec.md §4.10's "level 0..MAX");
	// higher logiface.Level values are more verbose.
	Level Level
	// Colour enables a minimal ANSI wrap of Print output. Rendering itself
	// remains an external-collaborator concern per spec.md §1; this flag only
	// decides whether applog emits the escape codes.
	Colour bool
	// Writer receives both the structured log output and Print output.
	// Defaults to os.Stderr.
	Writer io.Writer
	// Rates throttles repeated identical conditions (e.g. the instruction
	// interpreter re-logging the same +1/+2 thousands of times in lenient
	// mode) per category, using go-catrate's sliding-window limiter. A nil
	// or empty map disables throttling.
	Rates map[time.Duration]int
}

var (
	once   sync.Once
	mu     sync.Mutex // guards printMu-independent shared writer state below
	logger *logiface.Logger[*stumpy.Event]

	anchor  time.Time
	colour  bool
	limiter *catrate.Limiter

	printMu sync.Mutex
	writer  io.Writer
)

// Init sets up the global log context. Only the first call has any effect,
// mirroring spec.md §4.10's "subsequent initialisations are ignored"; later
// calls are silent no-ops, never errors.
func Init(cfg Config) {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()

		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		writer = w
		colour = cfg.Colour
		anchor = time.Now()
		if len(cfg.Rates) > 0 {
			limiter = catrate.NewLimiter(cfg.Rates)
		}

		logger = stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(w)),
			logiface.WithLevel[*stumpy.Event](cfg.Level),
		)
	})
}

// Elapsed returns the time since Init was called (the first call, if Init
// was called more than once), or zero before any Init call.
func Elapsed() time.Duration {
	mu.Lock()
	defer mu.Unlock()
	if anchor.IsZero() {
		return 0
	}
	return time.Since(anchor)
}

func active() *logiface.Logger[*stumpy.Event] {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// throttled reports whether a log at the given category should be
// suppressed by the configured rate limiter. A nil limiter (no Rates
// configured) never throttles.
func throttled(category string) bool {
	mu.Lock()
	l := limiter
	mu.Unlock()
	if l == nil {
		return false
	}
	_, ok := l.Allow(category)
	return !ok
}

func emit(build func(*logiface.Logger[*stumpy.Event]) *logiface.Builder[*stumpy.Event], module, format string, args ...any) {
	l := active()
	if l == nil {
		return
	}
	b := build(l)
	if b == nil {
		// level disabled, or logger nil-method returned a no-op builder
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if throttled(module + ":" + msg) {
		return
	}
	b.Str(`module`, module).Dur(`elapsed`, Elapsed()).Log(msg)
}

// Error logs an error-level message prefixed with module, per spec.md
// §4.10's log_error.
func Error(module, format string, args ...any) {
	emit(func(l *logiface.Logger[*stumpy.Event]) *logiface.Builder[*stumpy.Event] { return l.Err() }, module, format, args...)
}

// Warning logs a warning-level message prefixed with module.
func Warning(module, format string, args ...any) {
	emit(func(l *logiface.Logger[*stumpy.Event]) *logiface.Builder[*stumpy.Event] { return l.Warning() }, module, format, args...)
}

// Notice logs a notice-level message prefixed with module.
func Notice(module, format string, args ...any) {
	emit(func(l *logiface.Logger[*stumpy.Event]) *logiface.Builder[*stumpy.Event] { return l.Notice() }, module, format, args...)
}

// Info logs an informational message prefixed with module.
func Info(module, format string, args ...any) {
	emit(func(l *logiface.Logger[*stumpy.Event]) *logiface.Builder[*stumpy.Event] { return l.Info() }, module, format, args...)
}

// Debug logs a debug-level message prefixed with module.
func Debug(module, format string, args ...any) {
	emit(func(l *logiface.Logger[*stumpy.Event]) *logiface.Builder[*stumpy.Event] { return l.Debug() }, module, format, args...)
}

const (
	ansiReset = "\033[0m"
	ansiDim   = "\033[2m"
)

// Print writes a printf-style line directly to the configured writer under
// a shared, non-reentrant lock, matching spec.md §4.10's "print" and its
// "internal spinlock that protects lines from interleaving between
// threads". A no-op before Init.
func Print(format string, args ...any) {
	mu.Lock()
	w, useColour := writer, colour
	mu.Unlock()
	if w == nil {
		return
	}

	printMu.Lock()
	defer printMu.Unlock()

	line := fmt.Sprintf(format, args...)
	if useColour {
		fmt.Fprintf(w, "%s%s%s\n", ansiDim, line, ansiReset)
	} else {
		fmt.Fprintln(w, line)
	}
}
