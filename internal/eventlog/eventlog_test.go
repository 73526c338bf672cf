package eventlog

import (
	"strings"
	"testing"
	"time"
)

func TestWriterLog_Format(t *testing.T) {
	var buf strings.Builder
	l := NewWriterLog(&buf)

	if err := l.Write("child started", map[string]string{
		FieldEvent: EventStarted,
		FieldRole:  "bot",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "tandem: child started") {
		t.Errorf("line = %q, want tandem: prefix and message first", got)
	}
	// Sorted field order keeps output stable.
	if !strings.Contains(got, `TANDEM_EVENT="started" TANDEM_ROLE="bot"`) {
		t.Errorf("line = %q, want sorted key=value fields", got)
	}
}

func TestEmitHelpers(t *testing.T) {
	l := NewFakeLog()

	EmitStarted(l, "web", []string{"gunicorn", "main:app"}, 42)
	EmitExited(l, "web", 2, []string{"gunicorn", "main:app"})
	EmitReady(l, 8080)
	EmitRestarting(l, "bot", 3, time.Second)

	entries := l.Entries()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	started := entries[0]
	if started.Fields[FieldEvent] != EventStarted || started.Fields[FieldPID] != "42" {
		t.Errorf("started entry = %+v", started)
	}
	if started.Fields[FieldCommand] != "gunicorn main:app" {
		t.Errorf("command = %q, want joined command", started.Fields[FieldCommand])
	}

	exited := entries[1]
	if exited.Fields[FieldExitCode] != "2" {
		t.Errorf("exit code = %q, want 2", exited.Fields[FieldExitCode])
	}

	ready := entries[2]
	if ready.Fields[FieldEvent] != EventReady || ready.Fields[FieldPort] != "8080" {
		t.Errorf("ready entry = %+v", ready)
	}

	restarting := entries[3]
	if restarting.Fields[FieldAttempt] != "3" {
		t.Errorf("attempt = %q, want 3", restarting.Fields[FieldAttempt])
	}
}

func TestFakeLog_Find(t *testing.T) {
	l := NewFakeLog()
	EmitStarted(l, "web", []string{"a"}, 1)
	EmitStarted(l, "bot", []string{"b"}, 2)
	EmitExited(l, "bot", 0, []string{"b"})

	bot := l.Find(FieldRole, "bot")
	if len(bot) != 2 {
		t.Errorf("Find(role=bot) = %d entries, want 2", len(bot))
	}
}
