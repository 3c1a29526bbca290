package logging

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Entry is one message captured by a Recorder.
type Entry struct {
	Level     LogLevel
	Component string
	Message   string
	Err       error
	Fields    []any
}

// Recorder is a Logger that keeps every entry in memory. Tests use it to
// assert on emitted messages.
type Recorder struct {
	mu        *sync.Mutex
	entries   *[]Entry
	component string
	fields    []any
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (r *Recorder) add(level LogLevel, err error, msg string, fields []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := append(append([]any{}, r.fields...), fields...)
	*r.entries = append(*r.entries, Entry{
		Level:     level,
		Component: r.component,
		Message:   msg,
		Err:       err,
		Fields:    all,
	})
}

func (r *Recorder) Debug(_ context.Context, msg string, fields ...any) {
	r.add(LevelDebug, nil, msg, fields)
}

func (r *Recorder) Info(_ context.Context, msg string, fields ...any) {
	r.add(LevelInfo, nil, msg, fields)
}

func (r *Recorder) Warn(_ context.Context, err error, msg string, fields ...any) {
	r.add(LevelWarn, err, msg, fields)
}

func (r *Recorder) Error(_ context.Context, err error, msg string, fields ...any) {
	r.add(LevelError, err, msg, fields)
}

func (r *Recorder) With(fields ...any) Logger {
	return &Recorder{
		mu:        r.mu,
		entries:   r.entries,
		component: r.component,
		fields:    append(append([]any{}, r.fields...), fields...),
	}
}

func (r *Recorder) WithComponent(component string) Logger {
	return &Recorder{mu: r.mu, entries: r.entries, component: component, fields: r.fields}
}

// Entries returns a copy of the captured entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Entry(nil), *r.entries...)
}

// Text renders all entries one per line, for substring assertions.
func (r *Recorder) Text() string {
	var b strings.Builder
	for _, e := range r.Entries() {
		fmt.Fprintf(&b, "%s %s", e.Level, e.Message)
		for i := 0; i+1 < len(e.Fields); i += 2 {
			fmt.Fprintf(&b, " %v=%v", e.Fields[i], e.Fields[i+1])
		}
		if e.Err != nil {
			fmt.Fprintf(&b, " error=%v", e.Err)
		}
		b.WriteByte('\n')
	}

	return b.String()
}

// Count returns how many entries at the given level contain substr.
func (r *Recorder) Count(level LogLevel, substr string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			n++
		}
	}

	return n
}
