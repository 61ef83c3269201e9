// Package runner implements the execution pipeline: it provisions a
// workspace, builds the submission when the language needs it, runs it under
// the time and memory limits and normalizes every outcome into a Result.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/criyle/code-runner/envexec"
	"github.com/criyle/code-runner/language"
	"github.com/criyle/code-runner/workspace"
	"go.uber.org/zap"
)

// Default limits
const (
	DefaultTimeLimit        = 5 * time.Second
	DefaultCompileTimeLimit = 10 * time.Second

	DefaultMemoryLimit   envexec.Size = 1 << 30
	DefaultFileSizeLimit envexec.Size = 64 << 20
	DefaultOutputLimit                = envexec.DefaultOutputLimit
)

// Config defines the runner configuration
type Config struct {
	Registry  *language.Registry
	Workspace *workspace.Manager

	TimeLimit        time.Duration
	CompileTimeLimit time.Duration
	MemoryLimit      envexec.Size // address space limit unless the language overrides it
	FileSizeLimit    envexec.Size
	OutputLimit      envexec.Size

	// Env is the environment of compilers and programs, nil inherits
	Env []string

	Logger *zap.Logger
}

// Request defines a single submission, Source is already decoded
type Request struct {
	RequestID string
	Language  string
	Source    string
	Stdin     string
}

// Runner runs submissions. It holds no per invocation state and is safe for
// concurrent use.
type Runner struct {
	registry  *language.Registry
	workspace *workspace.Manager

	timeLimit        time.Duration
	compileTimeLimit time.Duration
	memoryLimit      envexec.Size
	fileSizeLimit    envexec.Size
	outputLimit      envexec.Size
	env              []string

	logger *zap.Logger
}

// New creates a runner, zero values of conf take the defaults
func New(conf Config) *Runner {
	r := &Runner{
		registry:         conf.Registry,
		workspace:        conf.Workspace,
		timeLimit:        conf.TimeLimit,
		compileTimeLimit: conf.CompileTimeLimit,
		memoryLimit:      conf.MemoryLimit,
		fileSizeLimit:    conf.FileSizeLimit,
		outputLimit:      conf.OutputLimit,
		env:              conf.Env,
		logger:           conf.Logger,
	}
	if r.registry == nil {
		r.registry = language.Default()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.workspace == nil {
		r.workspace = workspace.NewManager("", workspace.WithLogger(r.logger))
	}
	if r.timeLimit <= 0 {
		r.timeLimit = DefaultTimeLimit
	}
	if r.compileTimeLimit <= 0 {
		r.compileTimeLimit = DefaultCompileTimeLimit
	}
	if r.memoryLimit == 0 {
		r.memoryLimit = DefaultMemoryLimit
	}
	if r.fileSizeLimit == 0 {
		r.fileSizeLimit = DefaultFileSizeLimit
	}
	if r.outputLimit == 0 {
		r.outputLimit = DefaultOutputLimit
	}
	return r
}

// Registry returns the language registry used by the runner
func (r *Runner) Registry() *language.Registry {
	return r.registry
}

// Run executes the request. The returned error is either
// language.ErrUnsupportedLanguage or a *workspace.Error when the pipeline
// cannot run at all, every other outcome is reported through the Result.
// The workspace is removed before Run returns.
func (r *Runner) Run(ctx context.Context, req *Request) (res Result, err error) {
	if req == nil {
		return executionFailed("empty request"), nil
	}
	var ws *workspace.Workspace
	defer func() {
		r.workspace.Teardown(ws)
	}()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("runner panic", zap.String("requestId", req.RequestID), zap.Any("panic", p), zap.Stack("stack"))
			res, err = executionFailed(fmt.Sprintf("internal error: %v", p)), nil
		}
	}()

	spec, err := r.registry.Lookup(req.Language)
	if err != nil {
		return Result{}, err
	}
	ws, err = r.workspace.Provision()
	if err != nil {
		r.logger.Error("provision workspace failed", zap.String("requestId", req.RequestID), zap.Error(err))
		return Result{}, err
	}
	if err := ws.WriteSource(spec.SourceFile, req.Source); err != nil {
		r.logger.Error("write source failed", zap.String("requestId", req.RequestID), zap.Error(err))
		return Result{}, err
	}

	paths := language.Paths{
		Source:  spec.SourceFile,
		WorkDir: ws.Dir(),
	}
	if spec.ArtifactFile != "" {
		paths.Artifact = "./" + spec.ArtifactFile
	}
	limit := r.limit(spec)
	logger := r.logger.With(zap.String("requestId", req.RequestID), zap.String("language", spec.ID))

	if spec.Compiled() {
		if res, ok := r.compile(ctx, ws, spec, paths, limit); !ok {
			logger.Debug("compile finished", zap.String("message", res.Message))
			return res, nil
		}
	}
	res = r.execute(ctx, ws, spec, paths, limit, req.Stdin)
	logger.Debug("run finished",
		zap.String("message", res.Message),
		zap.Bool("failed", res.Failed),
		zap.Int("exitStatus", res.ExitStatus),
		zap.Duration("runTime", res.RunTime))
	return res, nil
}

func (r *Runner) limit(spec language.Spec) envexec.Limit {
	l := envexec.Limit{
		AddressSpace: r.memoryLimit,
		FileSize:     r.fileSizeLimit,
		Output:       r.outputLimit,
	}
	if spec.MemoryLimit > 0 {
		l.AddressSpace = spec.MemoryLimit
	}
	return l
}
