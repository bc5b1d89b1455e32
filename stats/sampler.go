package stats

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/datarhei/shelllogger/log"
)

var ErrStarted = errors.New("sampler already started")

// DiagnosticError reports that diagnostic data could not be collected.
// The data is missing from the result but the result is still valid.
type DiagnosticError struct {
	Source string
	Err    error
}

func (e *DiagnosticError) Error() string {
	return "collecting " + e.Source + ": " + e.Err.Error()
}

func (e *DiagnosticError) Unwrap() error {
	return e.Err
}

// Sampler collects a Metric once per interval on a dedicated OS thread.
type Sampler struct {
	metric Metric
	logger log.Logger

	lock    sync.Mutex
	stop    chan struct{}
	done    chan Stat
	started bool
	result  *Stat
}

// NewSampler returns a sampler for the metric. The sampler takes
// ownership of the metric.
func NewSampler(metric Metric, logger log.Logger) *Sampler {
	s := &Sampler{
		metric: metric,
		logger: logger,
	}

	if s.logger == nil {
		s.logger = log.New("")
	}

	s.logger = s.logger.WithField("metric", metric.Name())

	return s
}

func (s *Sampler) Name() string {
	return s.metric.Name()
}

// Start takes the first sample immediately and then one per interval
// until Finish is called.
func (s *Sampler) Start(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.started {
		return ErrStarted
	}

	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan Stat, 1)

	go s.run(interval, s.stop, s.done)

	return nil
}

// Finish stops the sampler and returns the collected samples. Finish on a
// sampler that never started returns an empty Stat.
func (s *Sampler) Finish() Stat {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.result != nil {
		return *s.result
	}

	if !s.started {
		return Stat{}
	}

	close(s.stop)
	stat := <-s.done

	s.result = &stat

	return stat
}

func (s *Sampler) run(interval time.Duration, stop <-chan struct{}, done chan<- Stat) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failed := false

	collect := func(now time.Time) {
		err := s.metric.Collect(now)
		if err == nil || failed {
			return
		}

		failed = true

		s.logger.Warn().WithError(&DiagnosticError{
			Source: s.metric.Name(),
			Err:    err,
		}).Log("Sample missing")
	}

	collect(time.Now())

	for {
		select {
		case <-stop:
			done <- s.metric.Stat()
			return
		case t := <-ticker.C:
			collect(t)
		}
	}
}
