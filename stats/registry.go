package stats

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/datarhei/shelllogger/log"
	"github.com/datarhei/shelllogger/psutil"
)

var ErrUnknownMetric = errors.New("unknown metric")

// Factory creates a fresh metric. The util is never nil.
type Factory func(u psutil.Util) Metric

// Registry maps metric names to their factories.
type Registry struct {
	lock      sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the cpu, memory, disk, and network metrics.
func NewRegistry() *Registry {
	r := &Registry{
		factories: map[string]Factory{},
	}

	r.Register("cpu", NewCPU)
	r.Register("memory", NewMemory)
	r.Register("disk", func(u psutil.Util) Metric {
		return NewDisk(u, DefaultExtraMounts())
	})
	r.Register("network", NewNetwork)

	return r
}

// Register adds or replaces the factory for the given name.
func (r *Registry) Register(name string, factory Factory) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.factories[name] = factory
}

// Names returns the sorted names of all registered metrics.
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

// Samplers creates one sampler per requested name. Names that are requested
// more than once get one sampler. If u is nil, the samplers don't sample
// anything.
func (r *Registry) Samplers(names []string, u psutil.Util, logger log.Logger) ([]*Sampler, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	samplers := []*Sampler{}
	seen := []string{}

	for _, name := range names {
		if slices.Contains(seen, name) {
			continue
		}

		factory, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
		}

		seen = append(seen, name)

		var metric Metric
		if u == nil {
			metric = NewNopMetric(name)
		} else {
			metric = factory(u)
		}

		samplers = append(samplers, NewSampler(metric, logger))
	}

	return samplers, nil
}
