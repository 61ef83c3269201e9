package runner

import (
	"context"

	"github.com/criyle/code-runner/envexec"
	"github.com/criyle/code-runner/language"
	"github.com/criyle/code-runner/workspace"
	"go.uber.org/zap"
)

func (r *Runner) execute(ctx context.Context, ws *workspace.Workspace, spec language.Spec, p language.Paths, limit envexec.Limit, stdin string) Result {
	c := &envexec.Cmd{
		Args:      spec.RunArgs(p),
		Env:       r.env,
		Dir:       ws.Dir(),
		Stdin:     stdin,
		TimeLimit: r.timeLimit,
		Limit:     limit,
	}
	rt := c.Run(ctx)
	switch rt.Status {
	case envexec.StatusTimeLimitExceeded:
		return timeLimitExceeded("Code execution", r.timeLimit)
	case envexec.StatusFailed:
		r.logger.Warn("program failed to run", zap.Strings("args", c.Args), zap.String("error", rt.Error), zap.Stringer("status", rt.Status))
		return executionFailed(rt.Error)
	}
	return finished(rt)
}
