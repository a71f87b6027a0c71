package logger

import (
	"sync"
)

// TestLogger records entries in memory for assertions.
type TestLogger struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	name    string
	fields  []Field
}

type LogEntry struct {
	Level   string
	Name    string
	Message string
	Fields  []Field
}

// NewTestLogger creates an empty recording logger.
func NewTestLogger() *TestLogger {
	entries := make([]LogEntry, 0)
	return &TestLogger{
		mu:      &sync.Mutex{},
		entries: &entries,
	}
}

func (l *TestLogger) Debug(msg string, fields ...Field) {
	l.log("DEBUG", msg, fields...)
}

func (l *TestLogger) Info(msg string, fields ...Field) {
	l.log("INFO", msg, fields...)
}

func (l *TestLogger) Warn(msg string, fields ...Field) {
	l.log("WARN", msg, fields...)
}

func (l *TestLogger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields...)
}

func (l *TestLogger) Fatal(msg string, fields ...Field) {
	l.log("FATAL", msg, fields...)
}

// With returns a logger sharing the same entry list.
func (l *TestLogger) With(fields ...Field) Logger {
	child := *l
	child.fields = append(append([]Field{}, l.fields...), fields...)
	return &child
}

// Named returns a logger sharing the same entry list.
func (l *TestLogger) Named(name string) Logger {
	child := *l
	if child.name != "" {
		name = child.name + "." + name
	}
	child.name = name
	return &child
}

func (l *TestLogger) Sync() error {
	return nil
}

func (l *TestLogger) log(level, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	*l.entries = append(*l.entries, LogEntry{
		Level:   level,
		Name:    l.name,
		Message: msg,
		Fields:  append(append([]Field{}, l.fields...), fields...),
	})
}

// GetEntries returns a copy of the recorded entries.
func (l *TestLogger) GetEntries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]LogEntry, len(*l.entries))
	copy(entries, *l.entries)
	return entries
}

// Messages returns the recorded messages at level, or all of them when level is empty.
func (l *TestLogger) Messages(level string) []string {
	var out []string
	for _, e := range l.GetEntries() {
		if level == "" || e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Clear drops all recorded entries.
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = (*l.entries)[:0]
}
