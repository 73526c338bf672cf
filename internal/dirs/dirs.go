// Package dirs resolves where tandem keeps its on-disk state.
package dirs

import (
	"os"
	"path/filepath"
)

// StateDir returns the directory holding the run history database.
// TANDEM_STATE_DIR overrides everything; otherwise the XDG state home is
// used, then ~/.local/state. Minimal container images often lack HOME
// entirely, so the last resort is a directory under the temp dir.
func StateDir() string {
	if v := os.Getenv("TANDEM_STATE_DIR"); v != "" {
		return v
	}
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, "tandem")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "state", "tandem")
	}
	return filepath.Join(os.TempDir(), "tandem-state")
}
