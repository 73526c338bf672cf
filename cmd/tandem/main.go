// tandem - dual-process container entrypoint supervisor
//
// Usage:
//
//	tandem run --web <command> --bot <command>   Start both children, supervise
//	tandem check --web <command> --bot <command> Validate and print resolved config
//	tandem history                               Show past runs
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/mbrock/tandem/internal/config"
	"github.com/mbrock/tandem/internal/dirs"
	"github.com/mbrock/tandem/internal/eventlog"
	"github.com/mbrock/tandem/internal/executor"
	"github.com/mbrock/tandem/internal/history"
	"github.com/mbrock/tandem/internal/status"
	"github.com/mbrock/tandem/internal/supervisor"
)

// Global flags
var (
	webFlag         string
	botFlag         string
	foregroundFlag  string
	modeFlag        string
	policyFlag      string
	botTTYFlag      bool
	defaultPortFlag int
	probeFlag       time.Duration
	statusAddrFlag  string
	stateDirFlag    string
	noHistoryFlag   bool
	historyLimit    int
)

func main() {
	flag.StringVar(&webFlag, "web", os.Getenv("TANDEM_WEB_CMD"), "Web server command (overrides TANDEM_WEB_CMD)")
	flag.StringVar(&botFlag, "bot", os.Getenv("TANDEM_BOT_CMD"), "Bot polling command (overrides TANDEM_BOT_CMD)")
	flag.StringVar(&foregroundFlag, "foreground", "web", "Which child runs foreground: web, bot")
	flag.StringVar(&modeFlag, "mode", "wait", "Primary mode: wait (spawn and forward exit code), exec (replace process image)")
	flag.StringVar(&policyFlag, "bot-policy", "log", "Secondary exit policy: log, restart, propagate")
	flag.BoolVar(&botTTYFlag, "bot-tty", false, "Run the bot child under a PTY (line-buffered output)")
	flag.IntVar(&defaultPortFlag, "default-port", config.DefaultPort, "Port used when $PORT is unset or empty")
	flag.DurationVar(&probeFlag, "probe-timeout", 30*time.Second, "Readiness probe timeout for the web port (0 disables)")
	flag.StringVar(&statusAddrFlag, "status-addr", os.Getenv("TANDEM_STATUS_ADDR"), "Admin status server address, e.g. 127.0.0.1:9090 (empty disables)")
	flag.StringVar(&stateDirFlag, "state-dir", "", "Run history directory (default: XDG state dir)")
	flag.BoolVar(&noHistoryFlag, "no-history", false, "Disable run history recording")
	flag.IntVarP(&historyLimit, "limit", "n", 20, "Number of history entries to show")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `tandem - dual-process container entrypoint supervisor

Starts a bot child detached and a web child on 0.0.0.0:$PORT, then adopts
the foreground child's exit code.

Usage:
  tandem run --web <command> --bot <command>     Start both children, supervise
  tandem check --web <command> --bot <command>   Validate and print resolved config
  tandem history                                 Show past runs

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	cmd := "run"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "run":
		cmdRun()
	case "check":
		cmdCheck()
	case "history":
		cmdHistory()
	default:
		fatal("unknown command: %s", cmd)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// buildConfig resolves flags and environment into a validated Config.
func buildConfig() (config.Config, error) {
	cfg := config.Default()
	cfg.WebCommand = splitCommand(webFlag)
	cfg.BotCommand = splitCommand(botFlag)
	cfg.Foreground = config.Role(foregroundFlag)
	cfg.Mode = config.Mode(modeFlag)
	cfg.BotPolicy = config.Policy(policyFlag)
	cfg.BotTTY = botTTYFlag
	cfg.ProbeTimeout = probeFlag
	cfg.StatusAddr = statusAddrFlag

	port, err := config.ResolvePort(defaultPortFlag)
	if err != nil {
		return cfg, err
	}
	cfg.Port = port

	if !noHistoryFlag {
		cfg.StateDir = stateDirFlag
		if cfg.StateDir == "" {
			cfg.StateDir = dirs.StateDir()
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// splitCommand splits a command string on whitespace.
// Simple shell-style split (TODO: quoted-argument parsing).
func splitCommand(s string) []string {
	return strings.Fields(s)
}

func cmdRun() {
	cfg, err := buildConfig()
	if err != nil {
		fatal("%v", err)
	}

	// Interactive runs keep events on the terminal where the operator is
	// watching; detached runs prefer journald when its socket is present.
	var events eventlog.EventLog
	if term.IsTerminal(int(os.Stderr.Fd())) {
		events = eventlog.NewWriterLog(os.Stderr)
	} else {
		events = eventlog.Open(os.Stderr)
	}
	defer events.Close()

	sup := supervisor.New(cfg, executor.Default(), events)

	var hist *history.Store
	if cfg.StateDir != "" && cfg.Mode == config.ModeWait {
		hist, err = history.Open(cfg.StateDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tandem: history disabled: %v\n", err)
		} else {
			defer hist.Close()
			sup.SetHistory(hist)
		}
	}

	if cfg.StatusAddr != "" && cfg.Mode == config.ModeWait {
		ln, err := status.Listen(cfg.StatusAddr)
		if err != nil {
			fatal("status server: %v", err)
		}
		srv := status.New(sup, hist)
		go func() {
			if err := srv.Serve(ln); err != nil {
				fmt.Fprintf(os.Stderr, "tandem: status server: %v\n", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	code, err := sup.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "tandem: %v\n", err)
	}

	if hist != nil {
		hist.Close()
	}
	os.Exit(code)
}

func cmdCheck() {
	cfg, err := buildConfig()
	if err != nil {
		fatal("%v", err)
	}

	primaryRole, primaryCmd := cfg.Primary()
	secondaryRole, secondaryCmd := cfg.Secondary()

	fmt.Printf("port:       %d\n", cfg.Port)
	fmt.Printf("mode:       %s\n", cfg.Mode)
	fmt.Printf("primary:    %s: %s\n", primaryRole, strings.Join(primaryCmd, " "))
	fmt.Printf("secondary:  %s: %s (policy: %s)\n", secondaryRole, strings.Join(secondaryCmd, " "), cfg.BotPolicy)
	if cfg.StatusAddr != "" {
		fmt.Printf("status:     %s\n", cfg.StatusAddr)
	}
	if cfg.StateDir != "" {
		fmt.Printf("state dir:  %s\n", cfg.StateDir)
	}
}

func cmdHistory() {
	dir := stateDirFlag
	if dir == "" {
		dir = dirs.StateDir()
	}

	hist, err := history.Open(dir)
	if err != nil {
		fatal("opening history: %v", err)
	}
	defer hist.Close()

	runs, err := hist.Recent(context.Background(), historyLimit)
	if err != nil {
		fatal("listing history: %v", err)
	}

	if len(runs) == 0 {
		fmt.Println("no history")
		return
	}

	fmt.Printf("%-6s %-20s %-6s %-6s %-9s %s\n", "ID", "STARTED", "EXIT", "PORT", "RESTARTS", "COMMAND")
	for _, r := range runs {
		exitStr := "-"
		if r.PrimaryExit != nil {
			exitStr = fmt.Sprintf("%d", *r.PrimaryExit)
		}
		fmt.Printf("%-6d %-20s %-6s %-6d %-9d %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), exitStr, r.Port, r.Restarts,
			truncate(r.WebCommand, 40))
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
