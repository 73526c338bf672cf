package executor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestFakeExecutor_StartOrder(t *testing.T) {
	exec := NewFakeExecutor()
	exec.RegisterCommand("first", func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
		return 0
	})
	exec.RegisterCommand("second", func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
		return 0
	})

	for _, name := range []string{"first", "second"} {
		proc, err := exec.Start([]string{name}, StartOptions{})
		if err != nil {
			t.Fatalf("Start(%s): %v", name, err)
		}
		if code, _ := proc.Wait(); code != 0 {
			t.Errorf("Wait(%s) = %d, want 0", name, code)
		}
	}

	started := exec.Started()
	if len(started) != 2 || started[0] != "first" || started[1] != "second" {
		t.Errorf("Started = %v, want [first second]", started)
	}
}

func TestFakeExecutor_UnknownCommand(t *testing.T) {
	exec := NewFakeExecutor()
	_, err := exec.Start([]string{"missing"}, StartOptions{})
	if err == nil {
		t.Fatal("Start succeeded for unregistered command")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want executable-not-found", err)
	}
}

func TestFakeExecutor_SignalCancelsHandler(t *testing.T) {
	exec := NewFakeExecutor()
	exec.RegisterCommand("loop", func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
		<-ctx.Done()
		return 143
	})

	proc, err := exec.Start([]string{"loop"}, StartOptions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := proc.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if code, _ := proc.Wait(); code != 143 {
		t.Errorf("Wait = %d, want 143", code)
	}
}

func TestFakeExecutor_Output(t *testing.T) {
	exec := NewFakeExecutor()
	exec.RegisterCommand("echo", func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
		fmt.Fprintln(stdout, "hello")
		return 0
	})

	var out strings.Builder
	proc, err := exec.Start([]string{"echo"}, StartOptions{Stdout: &out})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	proc.Wait()

	if got := out.String(); got != "hello\n" {
		t.Errorf("stdout = %q, want %q", got, "hello\n")
	}
}
