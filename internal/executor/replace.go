//go:build unix

package executor

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Replace replaces the current process image with the given command via
// execve, appending extraEnv to the inherited environment. On success it
// never returns; the caller's PID now runs the new program and receives
// signals directly from the OS.
func Replace(cmdArgs []string, extraEnv []string) error {
	if len(cmdArgs) == 0 {
		return fmt.Errorf("empty command")
	}
	path, err := exec.LookPath(cmdArgs[0])
	if err != nil {
		return fmt.Errorf("looking up %s: %w", cmdArgs[0], err)
	}
	return unix.Exec(path, cmdArgs, append(os.Environ(), extraEnv...))
}
