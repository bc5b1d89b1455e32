// Package log provides a leveled, structured logger with four severities.
package log

import (
	"fmt"
	"maps"
	"runtime"
	"strings"
	"time"

	"github.com/datarhei/shelllogger/encoding/json"
)

// Level represents a log level
type Level uint

const (
	Lsilent Level = 0
	Lerror  Level = 1
	Lwarn   Level = 2
	Linfo   Level = 3
	Ldebug  Level = 4
)

var levelNames = []string{
	"SILENT",
	"ERROR",
	"WARN",
	"INFO",
	"DEBUG",
}

// String returns a string representing the log level.
func (level Level) String() string {
	if level > Ldebug {
		return `¯\_(ツ)_/¯`
	}

	return levelNames[level]
}

func (level *Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(level.String())
}

// ParseLevel returns the level for one of the names silent, error, warn, info, or debug.
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(n, name) {
			return Level(i), nil
		}
	}

	return Lsilent, fmt.Errorf("unknown log level '%s'", name)
}

type Fields map[string]interface{}

// Logger is an interface that provides means for writing log messages.
//
// A message will be written to an output if the log level of the message
// has the same or a higher severity than the output. Otherwise it will be
// discarded.
type Logger interface {
	// WithOutput returns a Logger that writes its messages to the given writer.
	WithOutput(w Writer) Logger

	// WithComponent returns a new Logger with the given component name.
	WithComponent(component string) Logger

	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger

	WithError(err error) Logger

	// Log writes the message according to fmt.Printf.
	Log(format string, args ...interface{})

	Debug() Logger
	Info() Logger
	Warn() Logger
	Error() Logger

	// Write implements the io.Writer interface. Messages will be written with debug level.
	Write(p []byte) (int, error)

	Close()
}

type logger struct {
	output    Writer
	component string
}

// New returns an implementation of the Logger interface. Without
// an output all messages are discarded.
func New(component string) Logger {
	return &logger{
		component: component,
	}
}

func (l *logger) Close() {
	if l.output != nil {
		l.output.Close()
	}
}

func (l *logger) WithOutput(w Writer) Logger {
	return &logger{
		output:    w,
		component: l.component,
	}
}

func (l *logger) WithComponent(component string) Logger {
	return &logger{
		output:    l.output,
		component: component,
	}
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return newEvent(l).WithField(key, value)
}

func (l *logger) WithFields(f Fields) Logger {
	return newEvent(l).WithFields(f)
}

func (l *logger) WithError(err error) Logger {
	return newEvent(l).WithError(err)
}

func (l *logger) Log(format string, args ...interface{}) {
	newEvent(l).Log(format, args...)
}

func (l *logger) Debug() Logger {
	return newEvent(l).Debug()
}

func (l *logger) Info() Logger {
	return newEvent(l).Info()
}

func (l *logger) Warn() Logger {
	return newEvent(l).Warn()
}

func (l *logger) Error() Logger {
	return newEvent(l).Error()
}

func (l *logger) Write(p []byte) (int, error) {
	return newEvent(l).Write(p)
}

// Event is a single log message as it is handed to a Writer.
type Event struct {
	logger *logger

	Time      time.Time
	Level     Level
	Component string
	Caller    string
	Message   string

	Data Fields
}

func newEvent(l *logger) *Event {
	return &Event{
		logger:    l,
		Component: l.component,
		Data:      Fields{},
	}
}

func (e *Event) clone() *Event {
	return &Event{
		logger:    e.logger,
		Time:      e.Time,
		Level:     e.Level,
		Component: e.Component,
		Caller:    e.Caller,
		Message:   e.Message,
		Data:      maps.Clone(e.Data),
	}
}

func (e *Event) Close() {
	e.logger.Close()
}

func (e *Event) WithOutput(w Writer) Logger {
	return e.logger.WithOutput(w)
}

func (e *Event) WithComponent(component string) Logger {
	clone := e.clone()
	clone.Component = component

	return clone
}

func (e *Event) WithField(key string, value interface{}) Logger {
	return e.WithFields(Fields{
		key: value,
	})
}

func (e *Event) WithFields(f Fields) Logger {
	clone := e.clone()

	for k, v := range f {
		clone.Data[k] = v
	}

	return clone
}

func (e *Event) WithError(err error) Logger {
	if err == nil {
		return e
	}

	return e.WithField("error", err)
}

func (e *Event) Debug() Logger {
	return e.withLevel(Ldebug)
}

func (e *Event) Info() Logger {
	return e.withLevel(Linfo)
}

func (e *Event) Warn() Logger {
	return e.withLevel(Lwarn)
}

func (e *Event) Error() Logger {
	return e.withLevel(Lerror)
}

func (e *Event) withLevel(level Level) Logger {
	clone := e.clone()
	clone.Level = level

	return clone
}

func (e *Event) Log(format string, args ...interface{}) {
	if e.logger.output == nil {
		return
	}

	n := e.clone()
	n.logger = nil
	n.Time = time.Now()

	if _, file, line, ok := runtime.Caller(1); ok {
		n.Caller = fmt.Sprintf("%s:%d", shortFile(file), line)
	}

	if n.Level == Lsilent {
		n.Level = Ldebug
	}

	if len(args) == 0 {
		n.Message = format
	} else {
		n.Message = fmt.Sprintf(format, args...)
	}

	e.logger.output.Write(n)
}

func (e *Event) Write(p []byte) (int, error) {
	e.Log("%s", strings.TrimSpace(string(p)))

	return len(p), nil
}

// shortFile keeps the package directory and the file name.
func shortFile(file string) string {
	i := strings.LastIndexByte(file, '/')
	if i <= 0 {
		return file
	}

	j := strings.LastIndexByte(file[:i], '/')
	if j < 0 {
		return file
	}

	return file[j+1:]
}
