package runner

import (
	"context"
	"fmt"

	"github.com/criyle/code-runner/envexec"
	"github.com/criyle/code-runner/language"
	"github.com/criyle/code-runner/workspace"
	"go.uber.org/zap"
)

// compile builds the submission inside the workspace. It returns false with
// the final result when execution must not proceed.
func (r *Runner) compile(ctx context.Context, ws *workspace.Workspace, spec language.Spec, p language.Paths, limit envexec.Limit) (Result, bool) {
	c := &envexec.Cmd{
		Args:      spec.CompileArgs(p),
		Env:       r.env,
		Dir:       ws.Dir(),
		TimeLimit: r.compileTimeLimit,
		Limit:     limit,
	}
	rt := c.Run(ctx)
	switch rt.Status {
	case envexec.StatusTimeLimitExceeded:
		return timeLimitExceeded("Compilation", r.compileTimeLimit), false
	case envexec.StatusFailed:
		r.logger.Warn("compiler failed to run", zap.Strings("args", c.Args), zap.String("error", rt.Error), zap.Stringer("status", rt.Status))
		return executionFailed(rt.Error), false
	}
	if rt.ExitStatus == 0 && !rt.Signalled {
		return Result{}, true
	}

	// diagnostics usually go to stderr, some toolchains use stdout
	msg := string(rt.Stderr)
	if msg == "" {
		msg = string(rt.Stdout)
	}
	if msg == "" {
		msg = rt.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("compiler exited with status %d", rt.ExitStatus)
	}
	return compileFailed(msg, rt), false
}
