//go:build !windows

package scan

import (
	"os"
	"os/exec"
)

func hideWindow(cmd *exec.Cmd) {}

// IsElevated reports whether the process runs as root.
func IsElevated() bool {
	return os.Geteuid() == 0
}
