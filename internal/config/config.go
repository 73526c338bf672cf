// Package config holds the supervisor configuration.
//
// The original launcher scripts read the environment ad hoc at each use
// site. Here everything is resolved exactly once into a Config value that
// gets injected into the supervisor, so tests can construct configurations
// directly instead of mutating the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultPort is the web port used when $PORT is unset or empty.
// Matches the hosting-platform fallback the launcher scripts documented.
const DefaultPort = 10000

// Role identifies which child owns the foreground position.
type Role string

const (
	RoleWeb Role = "web"
	RoleBot Role = "bot"
)

// Mode selects how the primary child is run.
//
// ModeWait spawns the primary and waits, forwarding signals and its exit
// code. ModeExec replaces the supervisor's process image with the primary
// after the secondary is launched; the OS then sees a single process and
// delivers signals directly, but readiness probing, history recording and
// the status server are gone along with the supervisor.
type Mode string

const (
	ModeWait Mode = "wait"
	ModeExec Mode = "exec"
)

// Policy decides what happens when the secondary child exits.
//
// PolicyLog records the exit and keeps going. This reproduces the launcher
// scripts' fire-and-forget behavior, except the exit is observed and logged
// instead of silently dropped.
type Policy string

const (
	PolicyLog       Policy = "log"
	PolicyRestart   Policy = "restart"
	PolicyPropagate Policy = "propagate"
)

// Validation errors.
var (
	ErrNoWebCommand  = errors.New("web command is required")
	ErrNoBotCommand  = errors.New("bot command is required")
	ErrBadPort       = errors.New("port must be between 1 and 65535")
	ErrBadForeground = errors.New("foreground must be \"web\" or \"bot\"")
	ErrBadMode       = errors.New("mode must be \"wait\" or \"exec\"")
	ErrBadPolicy     = errors.New("policy must be \"log\", \"restart\" or \"propagate\"")
)

// Config is the complete supervisor configuration, populated once at
// startup from flags and environment.
type Config struct {
	// Port is the TCP port the web child binds on 0.0.0.0.
	Port int

	// WebCommand and BotCommand are the two child entry points.
	WebCommand []string
	BotCommand []string

	// Foreground names the primary child; the other runs as secondary.
	Foreground Role

	Mode      Mode
	BotPolicy Policy

	// BotTTY runs the secondary under a PTY so its output stays
	// line-buffered even when not connected to a terminal.
	BotTTY bool

	// Restart backoff bounds for PolicyRestart.
	RestartBackoffMin time.Duration
	RestartBackoffMax time.Duration

	// ProbeTimeout bounds the readiness probe of the web port.
	// Zero disables probing.
	ProbeTimeout time.Duration

	// StatusAddr, when non-empty, serves the admin status endpoints.
	// This is never the application PORT; that belongs to the web child.
	StatusAddr string

	// StateDir holds the run history database. Empty disables history.
	StateDir string
}

// Default returns a Config with every knob at its documented default.
// Commands are left empty; callers must fill them in.
func Default() Config {
	return Config{
		Port:              DefaultPort,
		Foreground:        RoleWeb,
		Mode:              ModeWait,
		BotPolicy:         PolicyLog,
		RestartBackoffMin: time.Second,
		RestartBackoffMax: time.Minute,
		ProbeTimeout:      30 * time.Second,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if len(c.WebCommand) == 0 {
		return ErrNoWebCommand
	}
	if len(c.BotCommand) == 0 {
		return ErrNoBotCommand
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrBadPort
	}
	switch c.Foreground {
	case RoleWeb, RoleBot:
	default:
		return fmt.Errorf("%w (got %q)", ErrBadForeground, c.Foreground)
	}
	switch c.Mode {
	case ModeWait, ModeExec:
	default:
		return fmt.Errorf("%w (got %q)", ErrBadMode, c.Mode)
	}
	switch c.BotPolicy {
	case PolicyLog, PolicyRestart, PolicyPropagate:
	default:
		return fmt.Errorf("%w (got %q)", ErrBadPolicy, c.BotPolicy)
	}
	return nil
}

// Primary returns the foreground child's role and command.
func (c *Config) Primary() (Role, []string) {
	if c.Foreground == RoleBot {
		return RoleBot, c.BotCommand
	}
	return RoleWeb, c.WebCommand
}

// Secondary returns the detached child's role and command.
func (c *Config) Secondary() (Role, []string) {
	if c.Foreground == RoleBot {
		return RoleWeb, c.WebCommand
	}
	return RoleBot, c.BotCommand
}

// ResolvePort resolves the web port from $PORT, falling back to def when
// the variable is unset or empty. An unparseable or out-of-range value is
// an error rather than a silent fallback: the platform told us a port and
// we could not honor it.
func ResolvePort(def int) (int, error) {
	v := os.Getenv("PORT")
	if v == "" {
		return def, nil
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing $PORT %q: %w", v, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("$PORT %d: %w", port, ErrBadPort)
	}
	return port, nil
}
