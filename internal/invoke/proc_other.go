//go:build !unix

package invoke

import "os/exec"

func setProcessGroup(*exec.Cmd) {}
