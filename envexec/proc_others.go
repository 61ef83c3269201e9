//go:build !linux && !darwin

package envexec

import (
	"os"
	"syscall"
)

// Reexec is a no-op where resource limits are not supported
func Reexec() {}

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// killGroup only kills the direct child, there is no process group
func killGroup(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		p.Kill()
	}
}

func maxRSS(*os.ProcessState) Size {
	return 0
}

func exitStatus(s *os.ProcessState) (int, bool) {
	return s.ExitCode(), false
}

func limitedArgs(path string, args []string, _ Limit) (string, []string, error) {
	return path, args, nil
}
