// Package supervisor runs the two-child entrypoint sequence: launch the
// secondary child detached, then run the primary child in the foreground
// and adopt its exit code.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/mbrock/tandem/internal/config"
	"github.com/mbrock/tandem/internal/eventlog"
	"github.com/mbrock/tandem/internal/executor"
	"github.com/mbrock/tandem/internal/history"
	"github.com/mbrock/tandem/internal/probe"
)

// terminationGrace is how long a child gets between SIGTERM and SIGKILL.
const terminationGrace = 10 * time.Second

// ChildStatus describes one child for the status surface.
type ChildStatus struct {
	Role      string     `json:"role"`
	Command   string     `json:"command"`
	PID       int        `json:"pid"`
	Running   bool       `json:"running"`
	ExitCode  *int       `json:"exit_code,omitempty"`
	Restarts  int        `json:"restarts"`
	StartedAt time.Time  `json:"started_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`
}

// Snapshot is a point-in-time view of the supervised processes.
type Snapshot struct {
	Port      int         `json:"port"`
	Ready     bool        `json:"ready"`
	StartedAt time.Time   `json:"started_at"`
	Primary   ChildStatus `json:"primary"`
	Secondary ChildStatus `json:"secondary"`
}

// Supervisor launches and tracks the two children.
type Supervisor struct {
	cfg    config.Config
	exec   executor.Executor
	events eventlog.EventLog

	hist   *history.Store
	histID int64

	// Seams for tests; default to the real implementations.
	notifyReady func()
	replace     func(cmd []string, extraEnv []string) error

	// doneCh is closed when Run returns so pending restart timers
	// cannot launch an unsupervised child.
	doneCh chan struct{}

	mu            sync.Mutex
	startedAt     time.Time
	ready         bool
	primary       childState
	secondary     childState
	secondaryProc executor.Process
}

type childState struct {
	role      string
	command   []string
	pid       int
	running   bool
	exitCode  *int
	restarts  int
	startedAt time.Time
	exitedAt  *time.Time
}

// secondaryExit is the captured completion of the secondary child.
// The original launcher dropped this on the floor; we route it to the
// configured policy instead.
type secondaryExit struct {
	code int
	err  error
}

// New creates a Supervisor. The event log must not be nil.
func New(cfg config.Config, exec executor.Executor, events eventlog.EventLog) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		exec:   exec,
		events: events,
		notifyReady: func() {
			// Best effort; NOTIFY_SOCKET is usually absent in containers.
			_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
		},
		replace: executor.Replace,
	}
}

// SetHistory attaches a run-history store.
func (s *Supervisor) SetHistory(st *history.Store) {
	s.hist = st
}

// Snapshot returns the current process view for the status server.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Port:      s.cfg.Port,
		Ready:     s.ready,
		StartedAt: s.startedAt,
		Primary:   s.primary.status(),
		Secondary: s.secondary.status(),
	}
}

func (c *childState) status() ChildStatus {
	return ChildStatus{
		Role:      c.role,
		Command:   strings.Join(c.command, " "),
		PID:       c.pid,
		Running:   c.running,
		ExitCode:  c.exitCode,
		Restarts:  c.restarts,
		StartedAt: c.startedAt,
		ExitedAt:  c.exitedAt,
	}
}

// Run executes the startup sequence and blocks until the primary exits.
// It returns the supervisor's exit code, which is the primary's exit code
// unless the secondary policy is propagate and the secondary failed first.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.doneCh = make(chan struct{})
	defer close(s.doneCh)

	childEnv := []string{fmt.Sprintf("PORT=%d", s.cfg.Port)}

	if s.hist != nil {
		id, err := s.hist.Begin(ctx, s.cfg.WebCommand, s.cfg.BotCommand, string(s.cfg.Foreground), s.cfg.Port)
		if err != nil {
			// History is an observability aid, not a startup dependency.
			fmt.Fprintf(os.Stderr, "tandem: recording run: %v\n", err)
		} else {
			s.histID = id
		}
	}

	// Secondary always launches first. There is deliberately no barrier
	// between its launch and the primary's: the launcher being reproduced
	// gave no initialization-order guarantee either.
	secCh := make(chan secondaryExit, 1)
	s.launchSecondary(ctx, childEnv, secCh)

	if s.cfg.Mode == config.ModeExec {
		return s.execPrimary(childEnv)
	}

	_, primaryCmd := s.cfg.Primary()
	primaryProc, err := s.exec.Start(primaryCmd, executor.StartOptions{
		Env:    childEnv,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		s.signalSecondary(syscall.SIGTERM)
		return 1, fmt.Errorf("starting primary: %w", err)
	}
	s.markStarted(&s.primary, primaryProc.PID())
	_ = eventlog.EmitStarted(s.events, s.primary.role, primaryCmd, primaryProc.PID())

	primaryCh := make(chan int, 1)
	go func() {
		code, err := primaryProc.Wait()
		if err != nil {
			fmt.Fprintf(os.Stderr, "tandem: waiting for primary: %v\n", err)
		}
		primaryCh <- code
	}()

	s.watchReadiness(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			// Forward to the primary; the secondary shares our process
			// group and receives the original delivery from the runtime.
			_ = primaryProc.Signal(sig.(syscall.Signal))

		case <-ctx.Done():
			return s.stopPrimary(primaryProc, primaryCh)

		case code := <-primaryCh:
			s.finishPrimary(ctx, code)
			s.signalSecondary(syscall.SIGTERM)
			return code, nil

		case exit := <-secCh:
			if stop := s.handleSecondaryExit(ctx, exit, childEnv, secCh); stop {
				code, _ := s.stopPrimary(primaryProc, primaryCh)
				// Propagate always fails the supervisor, even when both
				// children exited 0: a secondary that was supposed to
				// outlive the primary is gone.
				if exit.code != 0 {
					code = exit.code
				} else if code == 0 {
					code = 1
				}
				return code, fmt.Errorf("secondary exited with code %d; propagate policy stops the supervisor", exit.code)
			}
		}
	}
}

// execPrimary replaces the supervisor's process image with the primary.
// On success this never returns.
func (s *Supervisor) execPrimary(childEnv []string) (int, error) {
	_, primaryCmd := s.cfg.Primary()
	_ = eventlog.EmitReplacing(s.events, primaryCmd)
	_ = s.events.Close()
	if err := s.replace(primaryCmd, childEnv); err != nil {
		return 1, fmt.Errorf("exec primary: %w", err)
	}
	return 0, nil
}

// stopPrimary terminates the primary gracefully and returns its exit code.
func (s *Supervisor) stopPrimary(proc executor.Process, primaryCh <-chan int) (int, error) {
	_ = proc.Signal(syscall.SIGTERM)
	select {
	case code := <-primaryCh:
		s.finishPrimary(context.Background(), code)
		return code, nil
	case <-time.After(terminationGrace):
		_ = proc.Kill()
		code := <-primaryCh
		s.finishPrimary(context.Background(), code)
		return code, nil
	}
}

func (s *Supervisor) finishPrimary(ctx context.Context, code int) {
	s.markExited(&s.primary, code)
	_ = eventlog.EmitExited(s.events, s.primary.role, code, s.primary.command)
	if s.hist != nil && s.histID != 0 {
		if err := s.hist.Finish(ctx, s.histID, code); err != nil {
			fmt.Fprintf(os.Stderr, "tandem: recording primary exit: %v\n", err)
		}
	}
}

// watchReadiness probes the web port in the background and reports
// readiness once it accepts a connection.
func (s *Supervisor) watchReadiness(ctx context.Context) {
	if s.cfg.ProbeTimeout <= 0 {
		return
	}
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.Port)
	go func() {
		if err := probe.WaitTCP(ctx, addr, s.cfg.ProbeTimeout); err != nil {
			fmt.Fprintf(os.Stderr, "tandem: readiness probe: %v\n", err)
			return
		}
		s.mu.Lock()
		s.ready = true
		s.mu.Unlock()
		_ = eventlog.EmitReady(s.events, s.cfg.Port)
		s.notifyReady()
	}()
}

func (s *Supervisor) markStarted(c *childState, pid int) {
	role, cmd := s.cfg.Primary()
	if c == &s.secondary {
		role, cmd = s.cfg.Secondary()
	}
	s.mu.Lock()
	c.role = string(role)
	c.command = cmd
	c.pid = pid
	c.running = true
	c.exitCode = nil
	c.exitedAt = nil
	c.startedAt = time.Now()
	s.mu.Unlock()
}

func (s *Supervisor) markExited(c *childState, code int) {
	now := time.Now()
	s.mu.Lock()
	c.running = false
	c.exitCode = &code
	c.exitedAt = &now
	s.mu.Unlock()
}

