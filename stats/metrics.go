package stats

import (
	"time"

	"github.com/datarhei/shelllogger/psutil"
)

type cpuMetric struct {
	util     psutil.Util
	previous *psutil.CPUTimes
	series   Series
}

// NewCPU returns a metric for the busy share of all CPUs in percent. The
// first sample covers the time since the metric has been created.
func NewCPU(u psutil.Util) Metric {
	m := &cpuMetric{
		util: u,
	}

	m.previous, _ = u.CPUTimes()

	return m
}

func (m *cpuMetric) Name() string {
	return "cpu"
}

func (m *cpuMetric) Collect(now time.Time) error {
	current, err := m.util.CPUTimes()
	if err != nil {
		return err
	}

	if m.previous != nil {
		info := m.util.CPU(m.previous, current)
		m.series = append(m.series, Sample{
			Timestamp: now.UnixMilli(),
			Value:     info.Busy(),
		})
	}

	m.previous = current

	return nil
}

func (m *cpuMetric) Stat() Stat {
	return Stat{
		Series: append(Series{}, m.series...),
	}
}

type memoryMetric struct {
	util   psutil.Util
	series Series
}

// NewMemory returns a metric for the used share of the memory in percent.
func NewMemory(u psutil.Util) Metric {
	return &memoryMetric{
		util: u,
	}
}

func (m *memoryMetric) Name() string {
	return "memory"
}

func (m *memoryMetric) Collect(now time.Time) error {
	info, err := m.util.Memory()
	if err != nil {
		return err
	}

	m.series = append(m.series, Sample{
		Timestamp: now.UnixMilli(),
		Value:     info.UsedPercent(),
	})

	return nil
}

func (m *memoryMetric) Stat() Stat {
	return Stat{
		Series: append(Series{}, m.series...),
	}
}

func copyGroups(groups map[string]Series) map[string]Series {
	c := make(map[string]Series, len(groups))

	for k, v := range groups {
		c[k] = append(Series{}, v...)
	}

	return c
}
