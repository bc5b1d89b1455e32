package process

import (
	"github.com/datarhei/shelllogger/stats"
)

// ExecutionError is returned if a command could not be run at all, e.g.
// because the shell or the requested tracer is missing.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// DiagnosticError reports missing diagnostic data, e.g. a trace file that
// has not been written. It is only logged, the result of the run is valid.
type DiagnosticError = stats.DiagnosticError
