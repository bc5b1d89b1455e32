// Package process runs shell commands and records everything about their
// execution: output, exit code, resource usage, and an optional trace.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/datarhei/shelllogger/glob"
	"github.com/datarhei/shelllogger/log"
	"github.com/datarhei/shelllogger/psutil"
	"github.com/datarhei/shelllogger/stats"
	timesrc "github.com/datarhei/shelllogger/time"
	"github.com/datarhei/shelllogger/trace"

	"github.com/go-playground/validator/v10"
	"github.com/lestrrat-go/strftime"
	"github.com/lithammer/shortuuid/v4"
)

// Config is the configuration of a Runner
type Config struct {
	Shell      string          // Path to the shell. Defaults to /bin/sh.
	Login      bool            // Whether to start the shell as a login shell.
	PSUtil     psutil.Util     // Source of the host statistics. If nil, no statistics will be sampled.
	Metrics    *stats.Registry // Available metrics. Defaults to stats.NewRegistry().
	Tracers    *trace.Registry // Available tracers. Defaults to trace.NewRegistry().
	EnvExclude []string        // Glob patterns for names of environment variables to leave out of the snapshot.
	Stdout     io.Writer       // Live output for stdout. Defaults to os.Stdout.
	Stderr     io.Writer       // Live output for stderr. Defaults to os.Stderr.
	Clock      timesrc.Source  // Source for the start and end timestamps.
	Logger     log.Logger
}

// Options describe one run of a command.
type Options struct {
	Command         string        `validate:"required"` // The shell command.
	Dir             string        // Working directory, defaults to the current one.
	StreamDir       string        `validate:"required"` // Directory for the capture files.
	Stats           []string      // Names of the metrics to sample.
	Interval        time.Duration `validate:"gte=0"` // Sampling interval, defaults to one second.
	Trace           string        // Name of the tracer.
	TraceExpression string        // Filter expression for the tracer.
	TraceSummary    bool          // Let the tracer only write a summary.
	LiveStdout      bool          // Echo stdout while the command is running.
	LiveStderr      bool          // Echo stderr while the command is running.
	ReturnInfo      bool          // Keep stdout, stderr, and the trace in the result.
	Verbose         bool          // Print the command before running it.
	KeepStdin       bool          // Connect stdin of the command instead of /dev/null.
}

// Result is the outcome of one run of a command.
type Result struct {
	Command    string               // The shell command as requested.
	ID         string               // Unique ID of the run, part of the capture file names.
	Dir        string               // Working directory.
	Start      time.Time            // Start of the command, millisecond resolution.
	Finish     time.Time            // End of the command, millisecond resolution.
	Duration   time.Duration        // Wall time of the command.
	ReturnCode int                  // Exit code, 128+n if the command has been killed by signal n.
	Stdout     *string              // Captured stdout, only with Options.ReturnInfo.
	Stderr     *string              // Captured stderr, only with Options.ReturnInfo.
	Console    string               // Both streams in the order of their arrival.
	Trace      *string              // Captured trace, only with Options.ReturnInfo.
	TracePath  string               // Path of the trace file, if a trace has been requested.
	Stats      map[string]stats.Stat // Sampled metrics by name.
	Aux        Aux                  // Snapshot of the environment.
}

// CaptureFile returns the path of a capture file of this result. The kind is
// one of "stdout", "stderr", or "trace".
func (r *Result) CaptureFile(streamDir, kind string) string {
	return CapturePath(streamDir, r.Start, r.ID, kind)
}

var captureFormat = mustStrftime("%Y-%m-%d_%H%M%S")

func mustStrftime(pattern string) *strftime.Strftime {
	f, err := strftime.New(pattern)
	if err != nil {
		panic(err)
	}

	return f
}

// CapturePath returns the path of a capture file for a command with the given
// start time and ID.
func CapturePath(streamDir string, start time.Time, id, kind string) string {
	return filepath.Join(streamDir, captureFormat.FormatString(start)+"_"+id+"_"+kind)
}

type Runner struct {
	shell   string
	login   bool
	psutil  psutil.Util
	metrics *stats.Registry
	tracers *trace.Registry
	exclude glob.Set
	stdout  io.Writer
	stderr  io.Writer
	clock   timesrc.Source
	logger  log.Logger

	validate *validator.Validate
}

// New returns a Runner. An error is returned if an exclude pattern is invalid.
func New(config Config) (*Runner, error) {
	r := &Runner{
		shell:    config.Shell,
		login:    config.Login,
		psutil:   config.PSUtil,
		metrics:  config.Metrics,
		tracers:  config.Tracers,
		stdout:   config.Stdout,
		stderr:   config.Stderr,
		clock:    config.Clock,
		logger:   config.Logger,
		validate: validator.New(),
	}

	exclude, err := glob.CompileSet(config.EnvExclude)
	if err != nil {
		return nil, fmt.Errorf("environment exclude list: %w", err)
	}

	r.exclude = exclude

	if len(r.shell) == 0 {
		r.shell = "/bin/sh"
	}

	if r.metrics == nil {
		r.metrics = stats.NewRegistry()
	}

	if r.tracers == nil {
		r.tracers = trace.NewRegistry()
	}

	if r.stdout == nil {
		r.stdout = os.Stdout
	}

	if r.stderr == nil {
		r.stderr = os.Stderr
	}

	if r.clock == nil {
		r.clock = &timesrc.StdSource{}
	}

	if r.logger == nil {
		r.logger = log.New("")
	}

	return r, nil
}

// Shell returns the path of the shell and whether it is started as login shell.
func (r *Runner) Shell() (string, bool) {
	return r.shell, r.login
}

// Run executes the command and blocks until it exited. A non-zero exit code
// is not an error. An *ExecutionError is returned if the command could not be
// started.
func (r *Runner) Run(ctx context.Context, o Options) (*Result, error) {
	if err := r.validate.Struct(o); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	interval := o.Interval
	if interval == 0 {
		interval = time.Second
	}

	dir, err := r.workingDir(o.Dir)
	if err != nil {
		return nil, &ExecutionError{Op: "chdir", Err: err}
	}

	samplers, err := r.metrics.Samplers(o.Stats, r.psutil, r.logger.WithComponent("Sampler"))
	if err != nil {
		return nil, err
	}

	result := &Result{
		Command: o.Command,
		ID:      "cmd_" + shortuuid.New(),
		Dir:     dir,
		Start:   r.clock.Now().Truncate(time.Millisecond),
		Stats:   map[string]stats.Stat{},
	}

	logger := r.logger.WithField("cmd_id", result.ID)

	command := o.Command

	if len(o.Trace) != 0 {
		tracer, err := r.tracers.New(o.Trace, trace.Config{
			Expression: o.TraceExpression,
			Summary:    o.TraceSummary,
		})
		if err != nil {
			return nil, &ExecutionError{Op: "trace", Err: err}
		}

		if _, err := exec.LookPath(tracer.Binary()); err != nil {
			return nil, &ExecutionError{Op: "trace", Err: err}
		}

		result.TracePath = result.CaptureFile(o.StreamDir, "trace")
		command = tracer.Wrap(command, result.TracePath)
	}

	stdoutFile, err := r.createCapture(result.CaptureFile(o.StreamDir, "stdout"))
	if err != nil {
		return nil, &ExecutionError{Op: "capture", Err: err}
	}
	defer stdoutFile.Close()

	stderrFile, err := r.createCapture(result.CaptureFile(o.StreamDir, "stderr"))
	if err != nil {
		return nil, &ExecutionError{Op: "capture", Err: err}
	}
	defer stderrFile.Close()

	result.Aux = r.snapshot(ctx, dir)

	args := []string{}
	if r.login {
		args = append(args, "-l")
	}
	args = append(args, "-c", command)

	cmd := exec.CommandContext(ctx, r.shell, args...)
	cmd.Dir = dir

	// A nil Stdin reads from os.DevNull
	if o.KeepStdin {
		cmd.Stdin = os.Stdin
	}

	stdoutReader, stdoutWriter, err := os.Pipe()
	if err != nil {
		return nil, &ExecutionError{Op: "start", Err: err}
	}
	defer stdoutReader.Close()
	defer stdoutWriter.Close()

	stderrReader, stderrWriter, err := os.Pipe()
	if err != nil {
		return nil, &ExecutionError{Op: "start", Err: err}
	}
	defer stderrReader.Close()
	defer stderrWriter.Close()

	cmd.Stdout, cmd.Stderr = stdoutWriter, stderrWriter

	if o.Verbose {
		fmt.Fprintln(r.stdout, o.Command)
	}

	for i, s := range samplers {
		if err := s.Start(interval); err != nil {
			finishSamplers(samplers[:i])
			return nil, fmt.Errorf("starting sampler %s: %w", s.Name(), err)
		}
	}

	logger.Debug().WithFields(log.Fields{
		"command": o.Command,
		"dir":     dir,
		"stats":   o.Stats,
		"trace":   o.Trace,
	}).Log("Starting")

	began := time.Now()

	if err := cmd.Start(); err != nil {
		finishSamplers(samplers)
		logger.Error().WithError(err).Log("Starting failed")
		return nil, &ExecutionError{Op: "start", Err: err}
	}

	// The child holds its own copies of the write ends. The reads only
	// see EOF after these are closed.
	stdoutWriter.Close()
	stderrWriter.Close()

	var stdoutBuffer, stderrBuffer *bytes.Buffer
	if o.ReturnInfo {
		stdoutBuffer, stderrBuffer = &bytes.Buffer{}, &bytes.Buffer{}
	}

	t := newTee()
	t.poll(
		stream{file: stdoutReader, sink: sink{capture: stdoutFile, buffer: stdoutBuffer, echo: echo(o.LiveStdout, r.stdout)}},
		stream{file: stderrReader, sink: sink{capture: stderrFile, buffer: stderrBuffer, echo: echo(o.LiveStderr, r.stderr)}},
	)

	teeErr := t.wait()
	waitErr := cmd.Wait()

	result.Duration = time.Since(began)
	result.Finish = r.clock.Now().Truncate(time.Millisecond)
	if result.Finish.Before(result.Start) {
		result.Finish = result.Start
	}

	for _, s := range samplers {
		result.Stats[s.Name()] = s.Finish()
	}

	result.ReturnCode = r.exitCode(logger, waitErr)
	result.Console = t.Combined()

	if teeErr != nil {
		logger.Warn().WithError(&DiagnosticError{Source: "output", Err: teeErr}).Log("Capturing output failed")
	}

	if o.ReturnInfo {
		stdout, stderr := stdoutBuffer.String(), stderrBuffer.String()
		result.Stdout, result.Stderr = &stdout, &stderr
	}

	if len(result.TracePath) != 0 {
		r.readTrace(logger, result, o.ReturnInfo)
	}

	logger.Debug().WithFields(log.Fields{
		"return_code": result.ReturnCode,
		"duration":    result.Duration.String(),
	}).Log("Exited")

	return result, nil
}

func (r *Runner) workingDir(dir string) (string, error) {
	if len(dir) == 0 {
		return os.Getwd()
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}

	return dir, nil
}

func (r *Runner) createCapture(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func (r *Runner) readTrace(logger log.Logger, result *Result, keep bool) {
	data, err := os.ReadFile(result.TracePath)
	if err != nil {
		logger.Warn().WithError(&DiagnosticError{Source: "trace", Err: err}).Log("Reading trace failed")
		result.TracePath = ""
		return
	}

	if keep {
		text := string(data)
		result.Trace = &text
	}
}

// exitCode returns the exit code of the shell. A shell that has been killed
// by a signal gets 128 plus the signal number, like a shell reports it.
func (r *Runner) exitCode(logger log.Logger, err error) int {
	if err == nil {
		return 0
	}

	var exiterr *exec.ExitError
	if !errors.As(err, &exiterr) {
		// Some other error regarding I/O triggered during Wait()
		logger.Warn().WithError(err).Log("Waiting failed")
		return -1
	}

	if status, ok := exiterr.Sys().(syscall.WaitStatus); ok {
		logger.WithFields(log.Fields{
			"exited":    status.Exited(),
			"signaled":  status.Signaled(),
			"exit_code": exiterr.ExitCode(),
		}).Debug().Log("Exit status")

		if status.Signaled() {
			return 128 + int(status.Signal())
		}
	}

	return exiterr.ExitCode()
}

func echo(enabled bool, w io.Writer) io.Writer {
	if !enabled {
		return nil
	}

	return w
}

func finishSamplers(samplers []*stats.Sampler) {
	for _, s := range samplers {
		s.Finish()
	}
}
