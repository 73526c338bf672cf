// Package executor provides an abstraction for starting child processes.
package executor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// Process represents a running child process.
type Process interface {
	// Wait blocks until the process exits and returns the exit code.
	// Returns 0 for success, non-zero for failure.
	Wait() (exitCode int, err error)
	// Signal sends sig to the process.
	Signal(sig syscall.Signal) error
	// Kill sends SIGKILL to the process.
	Kill() error
	// PID returns the OS process ID, or 0 if unknown.
	PID() int
}

// StartOptions configures I/O and environment for a child.
type StartOptions struct {
	// Env entries are appended to the inherited environment.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Executor starts processes.
type Executor interface {
	// Start starts a command with the given options.
	Start(cmd []string, opts StartOptions) (Process, error)

	// StartPTY starts a command with a PTY as its controlling terminal.
	// Combined output from the PTY is copied to opts.Stdout.
	StartPTY(cmd []string, opts StartOptions) (Process, error)
}

// ExecExecutor is the default Executor that uses os/exec.
type ExecExecutor struct{}

// execProcess wraps exec.Cmd to implement Process.
type execProcess struct {
	cmd    *exec.Cmd
	master *os.File // PTY master, closed after Wait
}

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if p.master != nil {
		p.master.Close()
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

func (p *execProcess) Signal(sig syscall.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Start implements Executor.Start using os/exec.
func (e *ExecExecutor) Start(cmdArgs []string, opts StartOptions) (Process, error) {
	if len(cmdArgs) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &execProcess{cmd: cmd}, nil
}

// StartPTY implements Executor.StartPTY using creack/pty. The child becomes
// a session leader with the PTY as its controlling terminal, which keeps
// its stdio line-buffered even when the supervisor's stdio is a pipe.
func (e *ExecExecutor) StartPTY(cmdArgs []string, opts StartOptions) (Process, error) {
	if len(cmdArgs) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)
	cmd.Env = append(os.Environ(), append([]string{"TERM=dumb"}, opts.Env...)...)

	master, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}

	if opts.Stdout != nil {
		go func() {
			// EIO on master read means the child closed its side.
			_, _ = io.Copy(opts.Stdout, master)
		}()
	}

	return &execProcess{cmd: cmd, master: master}, nil
}

// Default returns the default ExecExecutor.
func Default() Executor {
	return &ExecExecutor{}
}
