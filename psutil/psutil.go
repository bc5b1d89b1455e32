// Package psutil reads the resource counters of the host. If the
// process runs inside a cgroup with limits, CPU and memory are
// reported relative to these limits.
package psutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

var cgroup1Files = []string{
	"cpu/cpu.cfs_quota_us",
	"cpu/cpu.cfs_period_us",
	"cpuacct/cpuacct.usage",
	"memory/memory.limit_in_bytes",
	"memory/memory.usage_in_bytes",
}

var cgroup2Files = []string{
	"cpu.max",
	"cpu.stat",
	"memory.max",
	"memory.current",
}

// https://www.kernel.org/doc/html/latest/admin-guide/cgroup-v2.html

type DiskInfo struct {
	Path        string
	Fstype      string
	Total       uint64
	Used        uint64
	InodesTotal uint64
	InodesUsed  uint64
}

// UsedPercent returns the used share of the partition in percent.
func (d *DiskInfo) UsedPercent() float64 {
	if d.Total == 0 {
		return 0
	}

	return 100 * float64(d.Used) / float64(d.Total)
}

type MemoryInfo struct {
	Total     uint64 // bytes
	Available uint64 // bytes
	Used      uint64 // bytes
}

// UsedPercent returns the used share of the memory in percent.
func (m *MemoryInfo) UsedPercent() float64 {
	if m.Total == 0 {
		return 0
	}

	return 100 * float64(m.Used) / float64(m.Total)
}

type NetworkInfo struct {
	Name      string // interface name
	BytesSent uint64 // number of bytes sent
	BytesRecv uint64 // number of bytes received
}

type CPUInfo struct {
	System float64 // percent 0-100
	User   float64 // percent 0-100
	Idle   float64 // percent 0-100
	Other  float64 // percent 0-100
}

// Busy returns the share of the CPU that was not idle.
func (c CPUInfo) Busy() float64 {
	return 100 - c.Idle
}

// CPUTimes are the accumulated CPU times in seconds, or in nanoseconds
// if they come from a cgroup with a CPU limit.
type CPUTimes struct {
	At     time.Time
	Total  float64
	System float64
	User   float64
	Idle   float64
	Other  float64
}

type Util interface {
	// CPUCounts returns the number of logical cores, or the number of cores
	// granted to the cgroup.
	CPUCounts() (float64, error)

	// CPUTimes returns the accumulated CPU times up to now.
	CPUTimes() (*CPUTimes, error)

	// CPU returns the CPU load in percent between two readings of CPUTimes. The
	// values range from 0 to 100, independently of the number of logical cores.
	CPU(previous, current *CPUTimes) CPUInfo

	// Memory return the current memory usage.
	Memory() (*MemoryInfo, error)

	// Disk returns the current usage of the partition specified by the path.
	Disk(path string) (*DiskInfo, error)

	// Partitions returns the mount points of all physical partitions.
	Partitions() ([]string, error)

	// Network returns the current network interface statistics per network adapter.
	Network() ([]NetworkInfo, error)
}

type util struct {
	root fs.FS

	cpuLimit   uint64  // Max. allowed CPU time in nanoseconds per second
	ncpu       float64 // Actual available CPUs
	hasCgroup  bool
	cgroupType int
}

// New returns a new util. The root is the mount point of the cgroup
// filesystem, an empty root defaults to /sys/fs/cgroup.
func New(root string) (Util, error) {
	if len(root) == 0 {
		root = "/sys/fs/cgroup"
	}

	u := &util{
		root: os.DirFS(root),
	}

	u.cgroupType = u.detectCgroupVersion()
	if u.cgroupType != 0 {
		u.hasCgroup = true
	}

	if u.hasCgroup {
		u.cpuLimit, u.ncpu = u.cgroupCPULimit(u.cgroupType)
	}

	if u.ncpu == 0 {
		var err error
		u.ncpu, err = u.CPUCounts()
		if err != nil {
			return nil, err
		}
	}

	if _, err := u.Memory(); err != nil {
		return nil, fmt.Errorf("unable to determine system memory: %w", err)
	}

	return u, nil
}

func (u *util) detectCgroupVersion() int {
	f, err := u.root.Open(".")
	if err != nil {
		// no cgroup available
		return 0
	}

	f.Close()

	for _, file := range cgroup1Files {
		if f, err := u.root.Open(file); err == nil {
			f.Close()
			return 1
		}
	}

	for _, file := range cgroup2Files {
		if f, err := u.root.Open(file); err == nil {
			f.Close()
			return 2
		}
	}

	return 0
}

func (u *util) cgroupCPULimit(version int) (uint64, float64) {
	var quota, period float64

	switch version {
	case 1:
		lines, err := u.readFile("cpu/cpu.cfs_quota_us")
		if err != nil {
			return 0, 0
		}

		quota, err = strconv.ParseFloat(lines[0], 64) // microseconds
		if err != nil || quota <= 0 {
			return 0, 0
		}

		lines, err = u.readFile("cpu/cpu.cfs_period_us")
		if err != nil {
			return 0, 0
		}

		period, err = strconv.ParseFloat(lines[0], 64) // microseconds
		if err != nil {
			return 0, 0
		}
	case 2:
		lines, err := u.readFile("cpu.max")
		if err != nil {
			return 0, 0
		}

		if strings.HasPrefix(lines[0], "max") {
			return 0, 0
		}

		fields := strings.Split(lines[0], " ")
		if len(fields) != 2 {
			return 0, 0
		}

		quota, err = strconv.ParseFloat(fields[0], 64) // microseconds
		if err != nil {
			return 0, 0
		}

		period, err = strconv.ParseFloat(fields[1], 64) // microseconds
		if err != nil {
			return 0, 0
		}
	default:
		return 0, 0
	}

	if period <= 0 {
		return 0, 0
	}

	return uint64(1e6/period*quota) * 1e3, quota / period // nanoseconds
}

func (u *util) CPUCounts() (float64, error) {
	if u.hasCgroup && u.ncpu > 0 {
		return u.ncpu, nil
	}

	ncpu, err := cpu.Counts(true)
	if err != nil {
		return 0, err
	}

	return float64(ncpu), nil
}

func (u *util) CPUTimes() (*CPUTimes, error) {
	now := time.Now()

	if u.hasCgroup && u.cpuLimit > 0 {
		if stat, err := u.cgroupCPUTimes(u.cgroupType); err == nil {
			stat.At = now
			return stat, nil
		}
	}

	times, err := cpu.Times(true)
	if err != nil {
		return nil, err
	}

	if len(times) == 0 {
		return nil, errors.New("cpu.Times() returned an empty slice")
	}

	s := &CPUTimes{
		At: now,
	}

	for _, t := range times {
		s.Total += cpuTotal(&t)
		s.System += t.System
		s.User += t.User
		s.Idle += t.Idle
	}

	s.Other = s.Total - s.System - s.User - s.Idle
	if s.Other < 0.0001 {
		s.Other = 0
	}

	return s, nil
}

func (u *util) CPU(previous, current *CPUTimes) CPUInfo {
	s := CPUInfo{
		Idle: 100,
	}

	if previous == nil || current == nil {
		return s
	}

	var total float64

	limited := u.hasCgroup && u.cpuLimit > 0

	if limited {
		total = float64(u.cpuLimit) * current.At.Sub(previous.At).Seconds()
	} else {
		total = current.Total - previous.Total
	}

	if total <= 0 {
		return s
	}

	s.System = 100 * (current.System - previous.System) / total
	s.User = 100 * (current.User - previous.User) / total
	s.Idle = 100 * (current.Idle - previous.Idle) / total
	s.Other = 100 * (current.Other - previous.Other) / total

	if limited {
		s.Idle = 100 - s.User - s.System
	}

	return s
}

func (u *util) cgroupCPUTimes(version int) (*CPUTimes, error) {
	info := &CPUTimes{}

	switch version {
	case 1:
		lines, err := u.readFile("cpuacct/cpuacct.usage")
		if err != nil {
			return nil, err
		}

		usage, err := strconv.ParseFloat(lines[0], 64) // nanoseconds
		if err != nil {
			return nil, err
		}

		info.System = usage
	case 2:
		lines, err := u.readFile("cpu.stat")
		if err != nil {
			return nil, err
		}

		var usage float64

		if _, err := fmt.Sscanf(lines[0], "usage_usec %f", &usage); err != nil {
			return nil, err
		}

		info.System = usage * 1e3 // convert to nanoseconds
	default:
		return nil, fmt.Errorf("unknown cgroup version %d", version)
	}

	return info, nil
}

func (u *util) Memory() (*MemoryInfo, error) {
	info, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}

	if u.hasCgroup {
		if cginfo, err := u.cgroupVirtualMemory(u.cgroupType); err == nil {
			// if total is a huge garbage number, then there are no limits set
			if cginfo.Total <= info.Total {
				return cginfo, nil
			}
		}
	}

	return &MemoryInfo{
		Total:     info.Total,
		Available: info.Available,
		Used:      info.Used,
	}, nil
}

func (u *util) cgroupVirtualMemory(version int) (*MemoryInfo, error) {
	var limitFile, usageFile string

	switch version {
	case 1:
		limitFile, usageFile = "memory/memory.limit_in_bytes", "memory/memory.usage_in_bytes"
	case 2:
		limitFile, usageFile = "memory.max", "memory.current"
	default:
		return nil, fmt.Errorf("unknown cgroup version %d", version)
	}

	lines, err := u.readFile(limitFile)
	if err != nil {
		return nil, err
	}

	total, err := strconv.ParseUint(lines[0], 10, 64)
	if err != nil {
		if version == 1 {
			return nil, err
		}

		// cgroup v2 writes "max" if there's no limit
		total = uint64(math.MaxUint64)
	}

	lines, err = u.readFile(usageFile)
	if err != nil {
		return nil, err
	}

	used, err := strconv.ParseUint(lines[0], 10, 64)
	if err != nil {
		return nil, err
	}

	info := &MemoryInfo{
		Total: total,
		Used:  used,
	}

	if total > used {
		info.Available = total - used
	}

	return info, nil
}

func (u *util) Disk(path string) (*DiskInfo, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}

	info := &DiskInfo{
		Path:        usage.Path,
		Fstype:      usage.Fstype,
		Total:       usage.Total,
		Used:        usage.Used,
		InodesTotal: usage.InodesTotal,
		InodesUsed:  usage.InodesUsed,
	}

	return info, nil
}

func (u *util) Partitions() ([]string, error) {
	partitions, err := disk.Partitions(false)
	if err != nil {
		return nil, err
	}

	mounts := []string{}

	for _, p := range partitions {
		mounts = append(mounts, p.Mountpoint)
	}

	return mounts, nil
}

func (u *util) Network() ([]NetworkInfo, error) {
	netio, err := net.IOCounters(true)
	if err != nil {
		return nil, err
	}

	info := []NetworkInfo{}

	for _, io := range netio {
		info = append(info, NetworkInfo{
			Name:      io.Name,
			BytesSent: io.BytesSent,
			BytesRecv: io.BytesRecv,
		})
	}

	return info, nil
}

func (u *util) readFile(path string) ([]string, error) {
	file, err := u.root.Open(path)
	if err != nil {
		return nil, err
	}

	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")

	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	return lines, nil
}

func cpuTotal(c *cpu.TimesStat) float64 {
	return c.User + c.System + c.Idle + c.Nice + c.Iowait + c.Irq +
		c.Softirq + c.Steal + c.Guest + c.GuestNice
}
