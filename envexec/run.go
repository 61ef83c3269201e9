package envexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// collectGrace bounds the wait for output pipes after the process group is
// killed, in case a descendant escaped the group and still holds them
const collectGrace = time.Second

var errNoArgs = errors.New("envexec: no program given")

// Run starts the cmd, waits until it exits or the deadline is reached and
// returns the result. It never returns a process that is still running: the
// whole process group is killed before Run returns.
func (c *Cmd) Run(ctx context.Context) Result {
	if len(c.Args) == 0 {
		return failedResult(errNoArgs)
	}
	path, err := lookPath(c.Args[0], c.Dir)
	if err != nil {
		return failedResult(err)
	}
	name, args, err := limitedArgs(path, c.Args, c.Limit)
	if err != nil {
		return failedResult(err)
	}

	outputLimit := c.Limit.Output
	if outputLimit == 0 {
		outputLimit = DefaultOutputLimit
	}

	var (
		files   []*os.File // files to close once the child started
		cleanUp []*os.File // files to close after collection
	)
	defer func() {
		closeFiles(cleanUp...)
	}()
	newPipe := func() (r, w *os.File, err error) {
		r, w, err = os.Pipe()
		if err != nil {
			return nil, nil, fmt.Errorf("envexec: create pipe: %w", err)
		}
		return r, w, nil
	}
	stdinR, stdinW, err := newPipe()
	if err != nil {
		return failedResult(err)
	}
	files, cleanUp = append(files, stdinR), append(cleanUp, stdinW)
	stdoutR, stdoutW, err := newPipe()
	if err != nil {
		closeFiles(files...)
		return failedResult(err)
	}
	files, cleanUp = append(files, stdoutW), append(cleanUp, stdoutR)
	stderrR, stderrW, err := newPipe()
	if err != nil {
		closeFiles(files...)
		return failedResult(err)
	}
	files, cleanUp = append(files, stderrW), append(cleanUp, stderrR)

	cmd := &exec.Cmd{
		Path:        name,
		Args:        args,
		Env:         c.Env,
		Dir:         c.Dir,
		Stdin:       stdinR,
		Stdout:      stdoutW,
		Stderr:      stderrW,
		SysProcAttr: sysProcAttr(),
	}

	start := time.Now()
	err = cmd.Start()
	closeFiles(files...)
	if err != nil {
		return failedResult(fmt.Errorf("envexec: start %s: %w", c.Args[0], err))
	}
	pgid := cmd.Process.Pid

	// stdin is written fully and closed, the child sees EOF afterwards
	go func() {
		io.WriteString(stdinW, c.Stdin)
		stdinW.Close()
	}()

	stdout := &collector{limit: int(outputLimit)}
	stderr := &collector{limit: int(outputLimit)}
	var wg sync.WaitGroup
	wg.Add(2)
	go stdout.collect(&wg, stdoutR)
	go stderr.collect(&wg, stderrR)

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	var rt Result
	wait := &waiter{timeLimit: c.TimeLimit}
	wr, waitErr := wait.Wait(ctx, waitCh)
	switch wr {
	case waitTimeLimitExceeded:
		killGroup(pgid)
		waitErr = <-waitCh
		rt.Status = StatusTimeLimitExceeded
	case waitCanceled:
		killGroup(pgid)
		waitErr = <-waitCh
		rt.Status = StatusFailed
		rt.Error = ctx.Err().Error()
	}
	rt.RunTime = time.Since(start)

	// descendants left behind by the main process go down with the group
	killGroup(pgid)
	waitCollect(&wg, collectGrace, stdoutR, stderrR)

	rt.Stdout, rt.Stderr = stdout.Bytes(), stderr.Bytes()
	rt.OutputTruncated = stdout.truncated || stderr.truncated
	if cmd.ProcessState != nil {
		rt.Memory = maxRSS(cmd.ProcessState)
	}
	if rt.Status != StatusInvalid {
		return rt
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		rt.Status = StatusCompleted
	case errors.As(waitErr, &exitErr):
		rt.Status = StatusCompleted
		rt.ExitStatus, rt.Signalled = exitStatus(exitErr.ProcessState)
		if rt.Signalled {
			rt.Error = exitErr.ProcessState.String()
		}
	default:
		rt.Status = StatusFailed
		rt.Error = waitErr.Error()
	}
	return rt
}

func failedResult(err error) Result {
	return Result{
		Status:     StatusFailed,
		ExitStatus: -1,
		Error:      err.Error(),
	}
}

// lookPath resolves the program: paths with a separator are relative to dir,
// bare names are searched in PATH
func lookPath(prog, dir string) (string, error) {
	if !strings.ContainsRune(prog, filepath.Separator) {
		return exec.LookPath(prog)
	}
	p := prog
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
		if !filepath.IsAbs(p) {
			abs, err := filepath.Abs(p)
			if err != nil {
				return "", err
			}
			p = abs
		}
	}
	return exec.LookPath(p)
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// collector keeps the first limit bytes written to it and discards the rest.
// The buffer is not embedded so io.Copy cannot bypass Write through ReadFrom.
type collector struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *collector) Write(p []byte) (int, error) {
	if remain := c.limit - c.buf.Len(); remain < len(p) {
		c.truncated = true
		if remain > 0 {
			c.buf.Write(p[:remain])
		}
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *collector) Bytes() []byte {
	return c.buf.Bytes()
}

func (c *collector) collect(wg *sync.WaitGroup, r io.Reader) {
	defer wg.Done()
	io.Copy(c, r)
}

// waitCollect waits for the collectors, closing the read ends after grace so
// readers blocked on a pipe held by an escaped process return
func waitCollect(wg *sync.WaitGroup, grace time.Duration, readers ...*os.File) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		closeFiles(readers...)
		<-done
	}
}
