//go:build linux || darwin

package envexec

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// killGroup kills every process in the process group led by pgid
func killGroup(pgid int) {
	if pgid <= 0 {
		return
	}
	unix.Kill(-pgid, unix.SIGKILL)
}

func exitStatus(s *os.ProcessState) (status int, signalled bool) {
	ws, ok := s.Sys().(syscall.WaitStatus)
	if !ok {
		return s.ExitCode(), false
	}
	if ws.Signaled() {
		return int(ws.Signal()), true
	}
	return ws.ExitStatus(), false
}
