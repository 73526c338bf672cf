package eventlog

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
)

// JournaldLog writes entries to systemd-journald over its native socket.
type JournaldLog struct{}

var _ EventLog = (*JournaldLog)(nil)

// JournaldAvailable reports whether the journald socket is reachable.
func JournaldAvailable() bool {
	return journal.Enabled()
}

// Write sends the entry to journald with the fields as journal variables.
func (l *JournaldLog) Write(message string, fields map[string]string) error {
	return journal.Send(message, journal.PriInfo, fields)
}

// Close is a no-op; the journald socket is managed by go-systemd.
func (l *JournaldLog) Close() error { return nil }

// WriterLog writes entries as single lines to an io.Writer, typically
// stderr. Fields are rendered key=value in sorted order so output is
// stable.
type WriterLog struct {
	mu sync.Mutex
	w  io.Writer
}

var _ EventLog = (*WriterLog)(nil)

// NewWriterLog creates a WriterLog on w.
func NewWriterLog(w io.Writer) *WriterLog {
	return &WriterLog{w: w}
}

func (l *WriterLog) Write(message string, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprintf(l.w, "tandem: %s", message); err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := fmt.Fprintf(l.w, " %s=%q", k, fields[k]); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(l.w)
	return err
}

func (l *WriterLog) Close() error { return nil }

// Open returns the best available event log: journald when its socket is
// reachable, otherwise a line-oriented log on fallback.
func Open(fallback io.Writer) EventLog {
	if JournaldAvailable() {
		return &JournaldLog{}
	}
	return NewWriterLog(fallback)
}
