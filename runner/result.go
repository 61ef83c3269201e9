package runner

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/criyle/code-runner/envexec"
)

// Result messages
const (
	MessageFinished          = "Execution finished"
	MessageCompileFailed     = "Compilation failed"
	MessageTimeLimitExceeded = "Time limit exceeded"
	MessageFailed            = "Execution failed"
)

// Stderr markers
const (
	MarkerTimeLimitExceeded = "[TimeLimitExceeded]"
	MarkerSignalled         = "[Signalled]"
)

// Result is the normalized outcome of a run. Failed is set whenever stderr
// is not empty or no program result could be produced.
type Result struct {
	Stdout  string
	Stderr  string
	Message string
	Failed  bool

	ExitStatus      int
	RunTime         time.Duration
	Memory          envexec.Size
	OutputTruncated bool
}

func (r Result) String() string {
	return fmt.Sprintf("Result{Message:%q Failed:%v ExitStatus:%d RunTime:%v Stdout:(len:%d) Stderr:(len:%d)}",
		r.Message, r.Failed, r.ExitStatus, r.RunTime, len(r.Stdout), len(r.Stderr))
}

func finished(rt envexec.Result) Result {
	stderr := text(rt.Stderr)
	if rt.Signalled {
		if stderr != "" && !strings.HasSuffix(stderr, "\n") {
			stderr += "\n"
		}
		stderr += MarkerSignalled + ": " + rt.Error
	}
	return Result{
		Stdout:          text(rt.Stdout),
		Stderr:          stderr,
		Message:         MessageFinished,
		Failed:          stderr != "",
		ExitStatus:      rt.ExitStatus,
		RunTime:         rt.RunTime,
		Memory:          rt.Memory,
		OutputTruncated: rt.OutputTruncated,
	}
}

func compileFailed(diagnostics string, rt envexec.Result) Result {
	return Result{
		Stderr:     strings.ToValidUTF8(diagnostics, "�"),
		Message:    MessageCompileFailed,
		Failed:     true,
		ExitStatus: rt.ExitStatus,
		RunTime:    rt.RunTime,
	}
}

func timeLimitExceeded(what string, d time.Duration) Result {
	return Result{
		Stderr:     fmt.Sprintf("%s: %s timed out after %s seconds", MarkerTimeLimitExceeded, what, strconv.FormatFloat(d.Seconds(), 'f', -1, 64)),
		Message:    MessageTimeLimitExceeded,
		Failed:     true,
		ExitStatus: -1,
		RunTime:    d,
	}
}

func executionFailed(reason string) Result {
	return Result{
		Stderr:     reason,
		Message:    MessageFailed,
		Failed:     true,
		ExitStatus: -1,
	}
}

// text decodes captured bytes as UTF-8, invalid sequences become U+FFFD
func text(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
