package psutil

import (
	"sync"
	"time"

	"github.com/datarhei/shelllogger/psutil"
)

// MockPSUtil reports fixed values. CPUTimes advances by one second of
// CPUInfo-shaped usage per call.
type MockPSUtil struct {
	Lock sync.Mutex

	CPUInfo  psutil.CPUInfo
	MemInfo  psutil.MemoryInfo
	Mounts   []string
	DiskInfo map[string]psutil.DiskInfo
	NetInfo  []psutil.NetworkInfo

	// Err is returned by every call if set.
	Err error

	ticks float64
}

func New() *MockPSUtil {
	return &MockPSUtil{
		CPUInfo: psutil.CPUInfo{
			System: 10,
			User:   50,
			Idle:   35,
			Other:  5,
		},
		MemInfo: psutil.MemoryInfo{
			Total:     200,
			Available: 40,
			Used:      160,
		},
		Mounts: []string{"/", "/tmp"},
		DiskInfo: map[string]psutil.DiskInfo{
			"/":    {Path: "/", Total: 1000, Used: 250},
			"/tmp": {Path: "/tmp", Total: 100, Used: 10},
		},
		NetInfo: []psutil.NetworkInfo{
			{Name: "eth0", BytesSent: 1024, BytesRecv: 2048},
		},
	}
}

func (u *MockPSUtil) CPUCounts() (float64, error) {
	return 2, u.Err
}

func (u *MockPSUtil) CPUTimes() (*psutil.CPUTimes, error) {
	u.Lock.Lock()
	defer u.Lock.Unlock()

	if u.Err != nil {
		return nil, u.Err
	}

	u.ticks++

	return &psutil.CPUTimes{
		At:     time.Now(),
		Total:  100 * u.ticks,
		System: u.CPUInfo.System * u.ticks,
		User:   u.CPUInfo.User * u.ticks,
		Idle:   u.CPUInfo.Idle * u.ticks,
		Other:  u.CPUInfo.Other * u.ticks,
	}, nil
}

func (u *MockPSUtil) CPU(previous, current *psutil.CPUTimes) psutil.CPUInfo {
	u.Lock.Lock()
	defer u.Lock.Unlock()

	return u.CPUInfo
}

func (u *MockPSUtil) Memory() (*psutil.MemoryInfo, error) {
	u.Lock.Lock()
	defer u.Lock.Unlock()

	if u.Err != nil {
		return nil, u.Err
	}

	mem := u.MemInfo

	return &mem, nil
}

func (u *MockPSUtil) Disk(path string) (*psutil.DiskInfo, error) {
	u.Lock.Lock()
	defer u.Lock.Unlock()

	if u.Err != nil {
		return nil, u.Err
	}

	info := u.DiskInfo[path]
	info.Path = path

	return &info, nil
}

func (u *MockPSUtil) Partitions() ([]string, error) {
	u.Lock.Lock()
	defer u.Lock.Unlock()

	return append([]string{}, u.Mounts...), u.Err
}

func (u *MockPSUtil) Network() ([]psutil.NetworkInfo, error) {
	u.Lock.Lock()
	defer u.Lock.Unlock()

	if u.Err != nil {
		return nil, u.Err
	}

	return append([]psutil.NetworkInfo{}, u.NetInfo...), nil
}
