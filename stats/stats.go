// Package stats samples resource metrics in the background while a
// command is running.
//
// Each metric is driven by its own Sampler. The sampler owns the metric
// while it runs and hands the finished series back over a channel when
// it is stopped.
package stats

import (
	"time"
)

// Sample is one measurement. The timestamp is in milliseconds since epoch.
type Sample struct {
	Timestamp int64
	Value     float64
}

// Series is an ordered sequence of samples with non-decreasing timestamps.
type Series []Sample

// Summary describes a series by its extremes and its mean.
type Summary struct {
	Count int
	Min   float64
	Max   float64
	Avg   float64
}

func (s Series) Summary() Summary {
	summary := Summary{
		Count: len(s),
	}

	if len(s) == 0 {
		return summary
	}

	summary.Min = s[0].Value
	summary.Max = s[0].Value

	var sum float64

	for _, sample := range s {
		if sample.Value < summary.Min {
			summary.Min = sample.Value
		}

		if sample.Value > summary.Max {
			summary.Max = sample.Value
		}

		sum += sample.Value
	}

	summary.Avg = sum / float64(len(s))

	return summary
}

// Stat is the result of one sampler. Scalar metrics fill Series, metrics
// with several instances (disk per mount point, network per interface)
// fill Groups.
type Stat struct {
	Series Series
	Groups map[string]Series
}

// IsEmpty returns whether no sample has been taken.
func (s Stat) IsEmpty() bool {
	if len(s.Series) != 0 {
		return false
	}

	for _, series := range s.Groups {
		if len(series) != 0 {
			return false
		}
	}

	return true
}

// Metric measures one resource. A metric is only used by one goroutine at a time.
type Metric interface {
	// Name returns the name the metric is registered with.
	Name() string

	// Collect takes one sample at the given time.
	Collect(now time.Time) error

	// Stat returns all samples taken so far.
	Stat() Stat
}

type nopMetric struct {
	name string
}

// NewNopMetric returns a metric that never samples anything.
func NewNopMetric(name string) Metric {
	return &nopMetric{name: name}
}

func (m *nopMetric) Name() string                { return m.name }
func (m *nopMetric) Collect(now time.Time) error { return nil }
func (m *nopMetric) Stat() Stat                  { return Stat{} }
