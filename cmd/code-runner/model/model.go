// Package model defines the JSON bodies of the REST interface and their
// conversion to the runner types.
package model

import (
	"fmt"

	"github.com/criyle/code-runner/codec"
	"github.com/criyle/code-runner/runner"
)

// Request is the body of POST /run
type Request struct {
	RequestID string `json:"requestId,omitempty"`
	Language  string `json:"language"`
	Code      string `json:"code"` // base64 encoded source
	Stdin     string `json:"stdin,omitempty"`
}

// Response is the body of a successful POST /run
type Response struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	Message    string `json:"message"`
	Error      bool   `json:"error"`
	ExitStatus int    `json:"exitStatus"`
	RunTime    int64  `json:"runTime"` // milliseconds
	Memory     uint64 `json:"memory,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// ErrorResponse is the body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConvertRequest decodes the source and converts to runner request
func ConvertRequest(r *Request) (*runner.Request, error) {
	if r.Language == "" {
		return nil, fmt.Errorf("language is required")
	}
	src, err := codec.Decode(r.Code)
	if err != nil {
		return nil, fmt.Errorf("code: %w", err)
	}
	return &runner.Request{
		RequestID: r.RequestID,
		Language:  r.Language,
		Source:    src,
		Stdin:     r.Stdin,
	}, nil
}

// ConvertResponse converts runner result to response body
func ConvertResponse(r runner.Result) Response {
	return Response{
		Stdout:     r.Stdout,
		Stderr:     r.Stderr,
		Message:    r.Message,
		Error:      r.Failed,
		ExitStatus: r.ExitStatus,
		RunTime:    r.RunTime.Milliseconds(),
		Memory:     r.Memory.Byte(),
		Truncated:  r.OutputTruncated,
	}
}
