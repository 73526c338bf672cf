//go:build unix

package supervisor

import (
	"context"
	"testing"

	"github.com/mbrock/tandem/internal/config"
	"github.com/mbrock/tandem/internal/eventlog"
	"github.com/mbrock/tandem/internal/executor"
)

// These run real child processes through the default executor.

func TestRun_RealPrimaryExitCode(t *testing.T) {
	cfg := config.Default()
	cfg.WebCommand = []string{"sh", "-c", "exit 4"}
	cfg.BotCommand = []string{"sh", "-c", "exit 0"}
	cfg.ProbeTimeout = 0

	s := New(cfg, executor.Default(), eventlog.NewFakeLog())
	s.notifyReady = func() {}

	code, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 4 {
		t.Errorf("Run = %d, want 4", code)
	}
}

func TestRun_RealSecondaryFailureIgnored(t *testing.T) {
	cfg := config.Default()
	cfg.WebCommand = []string{"sh", "-c", "sleep 0.2; exit 0"}
	cfg.BotCommand = []string{"sh", "-c", "exit 1"}
	cfg.ProbeTimeout = 0

	s := New(cfg, executor.Default(), eventlog.NewFakeLog())
	s.notifyReady = func() {}

	code, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Errorf("Run = %d, want 0 despite secondary failure", code)
	}
}

func TestRun_RealPrimaryMissingBinary(t *testing.T) {
	cfg := config.Default()
	cfg.WebCommand = []string{"/nonexistent/tandem-test-binary"}
	cfg.BotCommand = []string{"sh", "-c", "sleep 1"}
	cfg.ProbeTimeout = 0

	s := New(cfg, executor.Default(), eventlog.NewFakeLog())
	s.notifyReady = func() {}

	code, err := s.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded with missing primary binary")
	}
	if code == 0 {
		t.Error("Run = 0, want non-zero")
	}
}
