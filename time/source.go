// Package time provides an exchangeable clock.
package time

import (
	"sync"
	"time"
)

// Source provides the current time.
type Source interface {
	Now() time.Time
}

// StdSource is the wall clock. The returned times carry no monotonic
// reading, so they compare equal after a round trip through text.
type StdSource struct{}

func (s *StdSource) Now() time.Time {
	return time.Now().Round(0)
}

// TestSource is a clock that only moves when told so.
type TestSource struct {
	N time.Time

	lock sync.Mutex
}

func (t *TestSource) Now() time.Time {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.N
}

func (t *TestSource) Set(sec int64, nsec int64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.N = time.Unix(sec, nsec)
}

// Advance moves the clock forward by d.
func (t *TestSource) Advance(d time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.N = t.N.Add(d)
}
