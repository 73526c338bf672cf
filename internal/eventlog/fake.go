package eventlog

import (
	"maps"
	"sync"
)

// Entry is a recorded event for test assertions.
type Entry struct {
	Message string
	Fields  map[string]string
}

// FakeLog is an in-memory EventLog for tests.
type FakeLog struct {
	mu      sync.Mutex
	entries []Entry
}

var _ EventLog = (*FakeLog)(nil)

// NewFakeLog creates an empty FakeLog.
func NewFakeLog() *FakeLog {
	return &FakeLog{}
}

func (l *FakeLog) Write(message string, fields map[string]string) error {
	copied := make(map[string]string, len(fields))
	maps.Copy(copied, fields)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Message: message, Fields: copied})
	return nil
}

func (l *FakeLog) Close() error { return nil }

// Entries returns a snapshot of recorded entries.
func (l *FakeLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Find returns entries whose field matches value.
func (l *FakeLog) Find(field, value string) []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		if e.Fields[field] == value {
			out = append(out, e)
		}
	}
	return out
}
