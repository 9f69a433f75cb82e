// Package logtest provides a log.Logger that keeps entries in memory.
package logtest

import (
	"strings"
	"sync"

	"github.com/geotrust-match/matchnode/pkg/log"
)

// Entry is one recorded log call.
type Entry struct {
	Level         log.Level
	Logger        string
	Message       string
	KeysAndValues []any
}

// Value returns the value logged under key, including pairs bound with WithKV.
func (e Entry) Value(key string) (any, bool) {
	for i := 0; i+1 < len(e.KeysAndValues); i += 2 {
		if k, ok := e.KeysAndValues[i].(string); ok && k == key {
			return e.KeysAndValues[i+1], true
		}
	}
	return nil, false
}

type sink struct {
	mu      sync.Mutex
	entries []Entry
}

// Recorder is a log.Logger for tests. Children created with WithName or
// WithKV share the parent's entries.
type Recorder struct {
	sink *sink
	name string
	kv   []any
}

var _ log.Logger = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{sink: &sink{}}
}

func (r *Recorder) record(level log.Level, msg string, keysAndValues []any) {
	kv := make([]any, 0, len(r.kv)+len(keysAndValues))
	kv = append(kv, r.kv...)
	kv = append(kv, keysAndValues...)

	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	r.sink.entries = append(r.sink.entries, Entry{Level: level, Logger: r.name, Message: msg, KeysAndValues: kv})
}

func (r *Recorder) Debug(msg string, kv ...any) { r.record(log.LevelDebug, msg, kv) }
func (r *Recorder) Info(msg string, kv ...any)  { r.record(log.LevelInfo, msg, kv) }
func (r *Recorder) Warn(msg string, kv ...any)  { r.record(log.LevelWarn, msg, kv) }
func (r *Recorder) Error(msg string, kv ...any) { r.record(log.LevelError, msg, kv) }
func (r *Recorder) Fatal(msg string, kv ...any) { r.record(log.LevelFatal, msg, kv) }

func (r *Recorder) WithKV(key string, value any) log.Logger {
	kv := make([]any, 0, len(r.kv)+2)
	kv = append(kv, r.kv...)
	return &Recorder{sink: r.sink, name: r.name, kv: append(kv, key, value)}
}

func (r *Recorder) GetAllKV() []any { return r.kv }

func (r *Recorder) WithName(name string) log.Logger {
	full := name
	if r.name != "" {
		full = r.name + "." + name
	}
	return &Recorder{sink: r.sink, name: full, kv: r.kv}
}

func (r *Recorder) Name() string { return r.name }

func (r *Recorder) AddCallerSkip(int) log.Logger { return r }

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	return append([]Entry(nil), r.sink.entries...)
}

// AtLevel returns the entries recorded at level.
func (r *Recorder) AtLevel(level log.Level) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether any entry at level has a message containing substr.
func (r *Recorder) Contains(level log.Level, substr string) bool {
	for _, e := range r.AtLevel(level) {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
