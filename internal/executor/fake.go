package executor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"syscall"
)

// FakeCommand is a function that simulates a command execution.
// It receives the command arguments, stdin, stdout, stderr and should
// return an exit code. The context is cancelled when the process is
// signalled with SIGTERM or SIGKILL.
type FakeCommand func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int

// FakeExecutor is a test implementation of Executor that runs registered
// fake commands in goroutines. It records every start so tests can assert
// launch ordering.
type FakeExecutor struct {
	mu       sync.RWMutex
	commands map[string]FakeCommand
	started  []string
}

// NewFakeExecutor creates a new FakeExecutor.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		commands: make(map[string]FakeCommand),
	}
}

// RegisterCommand registers a fake command implementation.
// The name should match the first element of the command slice.
func (e *FakeExecutor) RegisterCommand(name string, handler FakeCommand) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands[name] = handler
}

// Started returns the names of commands started so far, in launch order.
func (e *FakeExecutor) Started() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.started))
	copy(out, e.started)
	return out
}

// fakeProcess implements Process for FakeExecutor.
type fakeProcess struct {
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	exitCode int
	signals  []syscall.Signal
}

func (p *fakeProcess) Wait() (int, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, nil
}

func (p *fakeProcess) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	if sig == syscall.SIGTERM || sig == syscall.SIGKILL {
		p.cancel()
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

func (p *fakeProcess) PID() int { return 0 }

// Signals returns the signals delivered to this process so far.
func (p *fakeProcess) Signals() []syscall.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]syscall.Signal, len(p.signals))
	copy(out, p.signals)
	return out
}

func (e *FakeExecutor) start(cmdArgs []string, opts StartOptions) (Process, error) {
	if len(cmdArgs) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	e.mu.Lock()
	handler, ok := e.commands[cmdArgs[0]]
	if ok {
		e.started = append(e.started, cmdArgs[0])
	}
	e.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("executable %q not found", cmdArgs[0])
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	proc := &fakeProcess{
		cancel: cancel,
		done:   done,
	}

	go func() {
		exitCode := handler(ctx, opts.Stdin, opts.Stdout, opts.Stderr, cmdArgs)
		proc.mu.Lock()
		proc.exitCode = exitCode
		proc.mu.Unlock()
		close(done)
	}()

	return proc, nil
}

// Start implements Executor.Start for FakeExecutor.
func (e *FakeExecutor) Start(cmdArgs []string, opts StartOptions) (Process, error) {
	return e.start(cmdArgs, opts)
}

// StartPTY implements Executor.StartPTY for FakeExecutor. There is no real
// PTY; the handler just writes to opts.Stdout like the combined stream would.
func (e *FakeExecutor) StartPTY(cmdArgs []string, opts StartOptions) (Process, error) {
	opts.Stderr = opts.Stdout
	return e.start(cmdArgs, opts)
}
