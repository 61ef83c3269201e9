package envexec

import (
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

// maxRSS returns the peak rss, linux reports it in KiB
func maxRSS(s *os.ProcessState) Size {
	if ru, ok := s.SysUsage().(*syscall.Rusage); ok && ru != nil {
		return Size(ru.Maxrss) << 10
	}
	return 0
}

// execve replaces the process image without allocating
func execve(argv0 *byte, argv, envv []*byte) error {
	_, _, errno := unix.RawSyscall(unix.SYS_EXECVE,
		uintptr(unsafe.Pointer(argv0)),
		uintptr(unsafe.Pointer(&argv[0])),
		uintptr(unsafe.Pointer(&envv[0])))
	return errno
}
