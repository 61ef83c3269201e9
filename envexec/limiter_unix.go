//go:build linux || darwin

package envexec

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"syscall"

	"github.com/criyle/go-sandbox/pkg/rlimit"
	"golang.org/x/sys/unix"
)

// limiterArg marks the current binary being executed as the limiter: it
// applies the rlimits to itself and then execve the target program, so the
// limits are in place before any user code runs.
//
//	<self> limiterArg <address space> <file size> <path> <argv...>
const limiterArg = "__code_runner_limiter__"

var selfPath = sync.OnceValues(os.Executable)

// Reexec must be called at the very beginning of main (and TestMain of
// packages that run commands). When the process is started as the limiter
// it never returns.
func Reexec() {
	if len(os.Args) < 2 || os.Args[1] != limiterArg {
		return
	}
	err := runLimiter(os.Args[2:])
	fmt.Fprintln(os.Stderr, "limiter:", err)
	os.Exit(127)
}

func runLimiter(args []string) error {
	if len(args) < 4 {
		return errors.New("invalid arguments")
	}
	as, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("address space: %w", err)
	}
	fsize, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("file size: %w", err)
	}
	// everything execve needs is allocated before the limits apply, the
	// runtime cannot grow its heap once the address space is capped
	argv0, err := unix.BytePtrFromString(args[2])
	if err != nil {
		return err
	}
	argv, err := cStrings(args[3:])
	if err != nil {
		return err
	}
	envv, err := cStrings(os.Environ())
	if err != nil {
		return err
	}
	rLimits := rlimit.RLimits{
		AddressSpace: as,
		FileSize:     fsize,
		DisableCore:  true,
	}
	for _, rl := range rLimits.PrepareRLimit() {
		if err := syscall.Setrlimit(rl.Res, &rl.Rlim); err != nil {
			return fmt.Errorf("setrlimit(%d): %w", rl.Res, err)
		}
	}
	return execve(argv0, argv, envv)
}

// cStrings converts ss to a nil terminated array of C strings
func cStrings(ss []string) ([]*byte, error) {
	rt := make([]*byte, 0, len(ss)+1)
	for _, s := range ss {
		p, err := unix.BytePtrFromString(s)
		if err != nil {
			return nil, err
		}
		rt = append(rt, p)
	}
	return append(rt, nil), nil
}

// limitedArgs wraps the program with the limiter when any limit is set
func limitedArgs(path string, args []string, l Limit) (string, []string, error) {
	if l.AddressSpace == 0 && l.FileSize == 0 {
		return path, args, nil
	}
	self, err := selfPath()
	if err != nil {
		return "", nil, fmt.Errorf("envexec: locate limiter: %w", err)
	}
	wrapped := make([]string, 0, len(args)+5)
	wrapped = append(wrapped,
		self,
		limiterArg,
		strconv.FormatUint(l.AddressSpace.Byte(), 10),
		strconv.FormatUint(l.FileSize.Byte(), 10),
		path,
	)
	wrapped = append(wrapped, args...)
	return self, wrapped, nil
}
