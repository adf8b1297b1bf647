//go:build unix

package invoke

import (
	"os/exec"
	"syscall"
)

// setProcessGroup places the child in its own process group so that
// cancellation also reaches the processes it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
