// Package envexec runs a single program in its own process group with a wall
// clock deadline, an address space ceiling and captured standard streams.
package envexec

import (
	"time"

	"github.com/criyle/go-sandbox/runner"
)

// Size represent data size in bytes
type Size = runner.Size

// DefaultOutputLimit bounds each captured stream when Limit.Output is zero
const DefaultOutputLimit Size = 4 << 20

// Limit defines the resource limits applied to the child before exec
type Limit struct {
	AddressSpace Size // RLIMIT_AS, 0 means unlimited
	FileSize     Size // RLIMIT_FSIZE, 0 means unlimited
	Output       Size // captured bytes per stream
}

// Cmd defines a program to run
type Cmd struct {
	// exec argument, environment (nil inherits the current environment)
	Args []string
	Env  []string

	// Dir is the working directory, relative program paths resolve against it
	Dir string

	// Stdin is written to the child and then closed
	Stdin string

	// TimeLimit is the wall clock deadline, 0 means no deadline
	TimeLimit time.Duration
	Limit     Limit
}

// Result defines the running result for a Cmd
type Result struct {
	Status Status

	// ExitStatus is the exit code, or the signal number if Signalled
	ExitStatus int
	Signalled  bool

	Error string // error

	Stdout []byte
	Stderr []byte

	// OutputTruncated is set when a stream exceeded the output limit
	OutputTruncated bool

	RunTime time.Duration
	Memory  Size // peak resident set size if the platform reports it
}
