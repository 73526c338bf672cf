package history

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.Begin(ctx, []string{"gunicorn", "main:app"}, []string{"python", "bot.py"}, "web", 8080)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if err := s.RecordSecondaryExit(ctx, id, 1); err != nil {
		t.Fatalf("RecordSecondaryExit: %v", err)
	}
	if err := s.RecordRestart(ctx, id); err != nil {
		t.Fatalf("RecordRestart: %v", err)
	}
	if err := s.Finish(ctx, id, 0); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}

	r := runs[0]
	if r.WebCommand != "gunicorn main:app" {
		t.Errorf("WebCommand = %q", r.WebCommand)
	}
	if r.BotCommand != "python bot.py" {
		t.Errorf("BotCommand = %q", r.BotCommand)
	}
	if r.Port != 8080 || r.Foreground != "web" {
		t.Errorf("port/foreground = %d/%s", r.Port, r.Foreground)
	}
	if r.PrimaryExit == nil || *r.PrimaryExit != 0 {
		t.Errorf("PrimaryExit = %v, want 0", r.PrimaryExit)
	}
	if r.SecondaryExits != 1 {
		t.Errorf("SecondaryExits = %d, want 1", r.SecondaryExits)
	}
	if r.LastSecondaryExit == nil || *r.LastSecondaryExit != 1 {
		t.Errorf("LastSecondaryExit = %v, want 1", r.LastSecondaryExit)
	}
	if r.Restarts != 1 {
		t.Errorf("Restarts = %d, want 1", r.Restarts)
	}
	if r.EndedAt == nil {
		t.Error("EndedAt = nil, want set")
	}
}

func TestStore_RecentOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := s.Begin(ctx, []string{"web"}, []string{"bot"}, "web", 10000+i); err != nil {
			t.Fatalf("Begin: %v", err)
		}
	}

	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	// Newest first.
	if runs[0].Port != 10002 || runs[1].Port != 10001 {
		t.Errorf("ports = %d, %d; want 10002, 10001", runs[0].Port, runs[1].Port)
	}
}

func TestStore_UnfinishedRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.Begin(ctx, []string{"web"}, []string{"bot"}, "bot", 9090); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	runs, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	r := runs[0]
	if r.PrimaryExit != nil {
		t.Errorf("PrimaryExit = %v, want nil for running supervisor", r.PrimaryExit)
	}
	if r.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil", r.EndedAt)
	}
}
