package envexec

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// maxRSS returns the peak rss, darwin reports it in bytes
func maxRSS(s *os.ProcessState) Size {
	if ru, ok := s.SysUsage().(*syscall.Rusage); ok && ru != nil {
		return Size(ru.Maxrss)
	}
	return 0
}

// execve goes through libc, raw system calls are not supported on darwin
func execve(argv0 *byte, argv, envv []*byte) error {
	return unix.Exec(unix.BytePtrToString(argv0), ptrStrings(argv), ptrStrings(envv))
}

func ptrStrings(ps []*byte) []string {
	rt := make([]string, 0, len(ps))
	for _, p := range ps {
		if p == nil {
			break
		}
		rt = append(rt, unix.BytePtrToString(p))
	}
	return rt
}
