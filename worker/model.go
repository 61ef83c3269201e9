package worker

import (
	"context"

	"github.com/criyle/code-runner/runner"
)

// Request defines a single submission for the worker
type Request = runner.Request

// Response defines the outcome of a request. Error is set when the pipeline
// could not produce a Result.
type Response struct {
	RequestID string
	Result    runner.Result
	Error     error
}

// Executor runs a single request to completion
type Executor interface {
	Run(context.Context, *runner.Request) (runner.Result, error)
}
