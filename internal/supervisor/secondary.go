package supervisor

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/mbrock/tandem/internal/config"
	"github.com/mbrock/tandem/internal/eventlog"
	"github.com/mbrock/tandem/internal/executor"
)

// launchSecondary starts the detached child and arranges for its
// completion to arrive on ch. A start failure is reported as an immediate
// exit with code 127 so the configured policy decides what it means.
func (s *Supervisor) launchSecondary(ctx context.Context, childEnv []string, ch chan<- secondaryExit) {
	role, cmd := s.cfg.Secondary()

	// Fill in role and command up front so a start failure still
	// produces an attributed exited event.
	s.mu.Lock()
	s.secondary.role = string(role)
	s.secondary.command = cmd
	s.mu.Unlock()

	opts := executor.StartOptions{
		Env:    childEnv,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	var (
		proc executor.Process
		err  error
	)
	if s.cfg.BotTTY && role == config.RoleBot {
		proc, err = s.exec.StartPTY(cmd, opts)
	} else {
		proc, err = s.exec.Start(cmd, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tandem: starting secondary: %v\n", err)
		ch <- secondaryExit{code: 127, err: err}
		return
	}

	s.markStarted(&s.secondary, proc.PID())
	s.mu.Lock()
	s.secondaryProc = proc
	s.mu.Unlock()
	_ = eventlog.EmitStarted(s.events, string(role), cmd, proc.PID())

	go func() {
		code, err := proc.Wait()
		if err != nil {
			fmt.Fprintf(os.Stderr, "tandem: waiting for secondary: %v\n", err)
		}
		ch <- secondaryExit{code: code}
	}()
}

// signalSecondary delivers sig to the secondary child if it is running.
func (s *Supervisor) signalSecondary(sig syscall.Signal) {
	s.mu.Lock()
	proc := s.secondaryProc
	running := s.secondary.running
	s.mu.Unlock()
	if proc != nil && running {
		_ = proc.Signal(sig)
	}
}

// handleSecondaryExit routes a captured secondary completion to the
// configured policy. It returns true when the supervisor should stop
// (propagate policy).
func (s *Supervisor) handleSecondaryExit(ctx context.Context, exit secondaryExit, childEnv []string, ch chan<- secondaryExit) bool {
	s.markExited(&s.secondary, exit.code)
	_ = eventlog.EmitExited(s.events, s.secondary.role, exit.code, s.secondary.command)

	if s.hist != nil && s.histID != 0 {
		if err := s.hist.RecordSecondaryExit(ctx, s.histID, exit.code); err != nil {
			fmt.Fprintf(os.Stderr, "tandem: recording secondary exit: %v\n", err)
		}
	}

	switch s.cfg.BotPolicy {
	case config.PolicyPropagate:
		return true

	case config.PolicyRestart:
		// A start failure cannot be fixed by retrying the same command.
		if exit.err != nil {
			fmt.Fprintf(os.Stderr, "tandem: secondary cannot start; giving up on restarts\n")
			return false
		}
		s.scheduleRestart(ctx, childEnv, ch)
		return false

	default:
		// PolicyLog: the exit is recorded and the primary stays in
		// charge of the supervisor's fate, as in the original launcher.
		return false
	}
}

// scheduleRestart relaunches the secondary after a backoff delay without
// blocking the supervisor's main loop.
func (s *Supervisor) scheduleRestart(ctx context.Context, childEnv []string, ch chan<- secondaryExit) {
	s.mu.Lock()
	// A child that ran longer than the backoff cap counts as stable;
	// start the backoff ladder over.
	if !s.secondary.startedAt.IsZero() && s.secondary.exitedAt != nil {
		if s.secondary.exitedAt.Sub(s.secondary.startedAt) > s.cfg.RestartBackoffMax {
			s.secondary.restarts = 0
		}
	}
	attempt := s.secondary.restarts
	s.secondary.restarts++
	role := s.secondary.role
	s.mu.Unlock()

	delay := backoff(s.cfg.RestartBackoffMin, s.cfg.RestartBackoffMax, attempt)
	_ = eventlog.EmitRestarting(s.events, role, attempt+1, delay)

	if s.hist != nil && s.histID != 0 {
		if err := s.hist.RecordRestart(ctx, s.histID); err != nil {
			fmt.Fprintf(os.Stderr, "tandem: recording restart: %v\n", err)
		}
	}

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-s.doneCh:
			return
		case <-time.After(delay):
		}
		s.launchSecondary(ctx, childEnv, ch)
	}()
}

// backoff returns min doubled attempt times, capped at max.
func backoff(min, max time.Duration, attempt int) time.Duration {
	d := min
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
