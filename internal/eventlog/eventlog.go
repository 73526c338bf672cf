// Package eventlog records supervisor lifecycle events as structured
// entries. The default sink is systemd-journald when available, with a
// stderr fallback; callers only see domain concepts.
package eventlog

import (
	"strconv"
	"strings"
	"time"
)

// EventLog is a sink for structured lifecycle entries.
type EventLog interface {
	// Write sends a structured entry to the backing store.
	Write(message string, fields map[string]string) error

	// Close releases any resources.
	Close() error
}

// Lifecycle event constants.
const (
	EventStarted    = "started"
	EventExited     = "exited"
	EventReady      = "ready"
	EventRestarting = "restarting"
	EventReplacing  = "replacing"
)

// Event field names. Journald requires uppercase field names.
const (
	FieldEvent    = "TANDEM_EVENT"
	FieldRole     = "TANDEM_ROLE"
	FieldCommand  = "TANDEM_COMMAND"
	FieldExitCode = "TANDEM_EXIT_CODE"
	FieldPID      = "TANDEM_PID"
	FieldPort     = "TANDEM_PORT"
	FieldAttempt  = "TANDEM_ATTEMPT"
)

// EmitStarted writes a child started event.
func EmitStarted(log EventLog, role string, command []string, pid int) error {
	return log.Write("child started", map[string]string{
		FieldEvent:   EventStarted,
		FieldRole:    role,
		FieldCommand: strings.Join(command, " "),
		FieldPID:     strconv.Itoa(pid),
	})
}

// EmitExited writes a child exited event.
func EmitExited(log EventLog, role string, exitCode int, command []string) error {
	return log.Write("child exited", map[string]string{
		FieldEvent:    EventExited,
		FieldRole:     role,
		FieldExitCode: strconv.Itoa(exitCode),
		FieldCommand:  strings.Join(command, " "),
	})
}

// EmitReady writes a readiness event once the web port accepts connections.
func EmitReady(log EventLog, port int) error {
	return log.Write("web port ready", map[string]string{
		FieldEvent: EventReady,
		FieldPort:  strconv.Itoa(port),
	})
}

// EmitRestarting writes a restart event before relaunching the secondary.
func EmitRestarting(log EventLog, role string, attempt int, delay time.Duration) error {
	return log.Write("restarting child after "+delay.String(), map[string]string{
		FieldEvent:   EventRestarting,
		FieldRole:    role,
		FieldAttempt: strconv.Itoa(attempt),
	})
}

// EmitReplacing writes an event just before the supervisor execs the
// primary. This is the last entry this process will ever write.
func EmitReplacing(log EventLog, command []string) error {
	return log.Write("replacing supervisor with primary", map[string]string{
		FieldEvent:   EventReplacing,
		FieldCommand: strings.Join(command, " "),
	})
}
