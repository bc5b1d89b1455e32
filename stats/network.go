package stats

import (
	"time"

	"github.com/datarhei/shelllogger/psutil"
)

type counter struct {
	at    time.Time
	bytes uint64
}

type networkMetric struct {
	util     psutil.Util
	previous map[string]counter
	groups   map[string]Series
}

// NewNetwork returns a metric for the throughput in bytes per second of
// each network interface, sent and received combined.
func NewNetwork(u psutil.Util) Metric {
	m := &networkMetric{
		util:     u,
		previous: map[string]counter{},
		groups:   map[string]Series{},
	}

	m.read(time.Now())

	return m
}

func (m *networkMetric) Name() string {
	return "network"
}

func (m *networkMetric) read(now time.Time) (map[string]counter, error) {
	info, err := m.util.Network()
	if err != nil {
		return nil, err
	}

	current := make(map[string]counter, len(info))

	for _, nic := range info {
		current[nic.Name] = counter{
			at:    now,
			bytes: nic.BytesSent + nic.BytesRecv,
		}
	}

	if len(m.previous) == 0 {
		m.previous = current
	}

	return current, nil
}

func (m *networkMetric) Collect(now time.Time) error {
	current, err := m.read(now)
	if err != nil {
		return err
	}

	for name, c := range current {
		p, ok := m.previous[name]
		if !ok {
			continue
		}

		rate := float64(0)

		if elapsed := c.at.Sub(p.at).Seconds(); elapsed > 0 && c.bytes >= p.bytes {
			rate = float64(c.bytes-p.bytes) / elapsed
		}

		m.groups[name] = append(m.groups[name], Sample{
			Timestamp: now.UnixMilli(),
			Value:     rate,
		})
	}

	m.previous = current

	return nil
}

func (m *networkMetric) Stat() Stat {
	return Stat{
		Groups: copyGroups(m.groups),
	}
}
