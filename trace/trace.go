// Package trace wraps a shell command with an external tracer that writes
// its diagnostic stream to a file.
package trace

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownTracer = errors.New("unknown tracer")

type Tracer interface {
	// Name returns the name the tracer is registered with.
	Name() string

	// Binary returns the executable that needs to be available.
	Binary() string

	// Wrap returns a command that runs the given command under the tracer
	// and writes the trace to output.
	Wrap(command, output string) string
}

type Config struct {
	Expression string // Filter expression, passed with -e
	Summary    bool   // Only write a summary of counts and times
}

type Factory func(config Config) Tracer

type Registry struct {
	lock      sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the strace and ltrace tracers.
func NewRegistry() *Registry {
	r := &Registry{
		factories: map[string]Factory{},
	}

	r.Register("strace", NewStrace)
	r.Register("ltrace", NewLtrace)

	return r
}

func (r *Registry) Register(name string, factory Factory) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.factories[name] = factory
}

func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// New returns the tracer with the given name.
func (r *Registry) New(name string, config Config) (Tracer, error) {
	r.lock.RLock()
	factory, ok := r.factories[name]
	r.lock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTracer, name)
	}

	return factory(config), nil
}

type tracer struct {
	name   string
	binary string
	flags  []string
	config Config
}

// NewStrace returns a tracer for system calls that follows forks.
func NewStrace(config Config) Tracer {
	return &tracer{
		name:   "strace",
		binary: "strace",
		flags:  []string{"-f"},
		config: config,
	}
}

// NewLtrace returns a tracer for library calls that follows forks and
// demangles C++ symbols.
func NewLtrace(config Config) Tracer {
	return &tracer{
		name:   "ltrace",
		binary: "ltrace",
		flags:  []string{"-C", "-f"},
		config: config,
	}
}

// NewTracer returns a tracer for any binary that accepts the -o, -c,
// and -e flags the same way strace does.
func NewTracer(name, binary string, flags []string, config Config) Tracer {
	return &tracer{
		name:   name,
		binary: binary,
		flags:  append([]string{}, flags...),
		config: config,
	}
}

func (t *tracer) Name() string {
	return t.name
}

func (t *tracer) Binary() string {
	return t.binary
}

func (t *tracer) Wrap(command, output string) string {
	args := []string{t.binary}
	args = append(args, t.flags...)
	args = append(args, "-o", Quote(output))

	if t.config.Summary {
		args = append(args, "-c")
	}

	if len(t.config.Expression) != 0 {
		args = append(args, "-e", Quote(t.config.Expression))
	}

	args = append(args, command)

	return strings.Join(args, " ")
}

// Quote returns s as a single shell word.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
