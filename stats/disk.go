package stats

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/datarhei/shelllogger/psutil"
)

type diskMetric struct {
	util   psutil.Util
	mounts []string
	err    error
	groups map[string]Series
}

// DefaultExtraMounts returns the temporary filesystems that are commonly
// not listed as physical partitions.
func DefaultExtraMounts() []string {
	candidates := []string{
		"/tmp",
		"/dev/shm",
		fmt.Sprintf("/run/user/%d", os.Getuid()),
	}

	mounts := []string{}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			mounts = append(mounts, path)
		}
	}

	return mounts
}

// NewDisk returns a metric for the used share of each partition in percent, plus the
// used share of the partitions of the extra paths.
func NewDisk(u psutil.Util, extra []string) Metric {
	m := &diskMetric{
		util:   u,
		groups: map[string]Series{},
	}

	m.mounts, m.err = u.Partitions()

	for _, path := range extra {
		if !slices.Contains(m.mounts, path) {
			m.mounts = append(m.mounts, path)
		}
	}

	return m
}

func (m *diskMetric) Name() string {
	return "disk"
}

func (m *diskMetric) Collect(now time.Time) error {
	errs := []error{}

	if m.err != nil {
		errs = append(errs, fmt.Errorf("partitions: %w", m.err))
		m.err = nil
	}

	for _, mount := range m.mounts {
		info, err := m.util.Disk(mount)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mount, err))
			continue
		}

		m.groups[mount] = append(m.groups[mount], Sample{
			Timestamp: now.UnixMilli(),
			Value:     info.UsedPercent(),
		})
	}

	return errors.Join(errs...)
}

func (m *diskMetric) Stat() Stat {
	return Stat{
		Groups: copyGroups(m.groups),
	}
}
