package stats

import (
	"errors"
	"testing"
	"time"

	mock "github.com/datarhei/shelllogger/internal/mock/psutil"
	"github.com/datarhei/shelllogger/log"
	"github.com/datarhei/shelllogger/psutil"

	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	s := Series{
		{Timestamp: 1, Value: 4},
		{Timestamp: 2, Value: 1},
		{Timestamp: 3, Value: 7},
	}

	summary := s.Summary()

	require.Equal(t, 3, summary.Count)
	require.Equal(t, float64(1), summary.Min)
	require.Equal(t, float64(7), summary.Max)
	require.Equal(t, float64(4), summary.Avg)

	require.Equal(t, Summary{}, Series{}.Summary())
}

func TestRegistryUnknownMetric(t *testing.T) {
	r := NewRegistry()

	_, err := r.Samplers([]string{"cpu", "gpu"}, mock.New(), nil)
	require.ErrorIs(t, err, ErrUnknownMetric)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()

	require.Equal(t, []string{"cpu", "disk", "memory", "network"}, r.Names())

	r.Register("load", func(u psutil.Util) Metric { return NewNopMetric("load") })
	require.Contains(t, r.Names(), "load")
}

func TestRegistryDuplicateNames(t *testing.T) {
	r := NewRegistry()

	samplers, err := r.Samplers([]string{"memory", "cpu", "memory"}, mock.New(), nil)
	require.NoError(t, err)
	require.Len(t, samplers, 2)
	require.Equal(t, "memory", samplers[0].Name())
	require.Equal(t, "cpu", samplers[1].Name())
}

func TestSamplerCount(t *testing.T) {
	r := NewRegistry()

	samplers, err := r.Samplers([]string{"memory"}, mock.New(), nil)
	require.NoError(t, err)

	s := samplers[0]

	err = s.Start(100 * time.Millisecond)
	require.NoError(t, err)

	time.Sleep(time.Second)

	stat := s.Finish()

	require.GreaterOrEqual(t, len(stat.Series), 8)
	require.LessOrEqual(t, len(stat.Series), 30)

	for i := 1; i < len(stat.Series); i++ {
		require.LessOrEqual(t, stat.Series[i-1].Timestamp, stat.Series[i].Timestamp)
	}

	require.Equal(t, float64(80), stat.Series[0].Value)
}

func TestSamplerStartTwice(t *testing.T) {
	s := NewSampler(NewMemory(mock.New()), nil)

	require.NoError(t, s.Start(time.Second))
	require.ErrorIs(t, s.Start(time.Second), ErrStarted)

	stat := s.Finish()
	require.Len(t, stat.Series, 1)

	again := s.Finish()
	require.Equal(t, stat, again)
}

func TestSamplerInvalidInterval(t *testing.T) {
	s := NewSampler(NewMemory(mock.New()), nil)

	require.Error(t, s.Start(0))
	require.True(t, s.Finish().IsEmpty())
}

func TestSamplerWithoutUtil(t *testing.T) {
	r := NewRegistry()

	samplers, err := r.Samplers([]string{"cpu", "memory", "disk", "network"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, samplers, 4)

	for _, s := range samplers {
		require.NoError(t, s.Start(10*time.Millisecond))
	}

	time.Sleep(50 * time.Millisecond)

	for _, s := range samplers {
		require.True(t, s.Finish().IsEmpty(), s.Name())
	}
}

func TestSamplerCollectError(t *testing.T) {
	u := mock.New()
	u.Err = errors.New("not available")

	buffer := log.NewBufferWriter(log.Lwarn, 10)
	logger := log.New("Sampler").WithOutput(buffer)

	s := NewSampler(NewMemory(u), logger)
	require.NoError(t, s.Start(10*time.Millisecond))

	time.Sleep(100 * time.Millisecond)

	stat := s.Finish()
	require.True(t, stat.IsEmpty())

	events := buffer.Events()
	require.Len(t, events, 1)
	require.Equal(t, "memory", events[0].Data["metric"])

	var derr *DiagnosticError
	require.ErrorAs(t, events[0].Data["error"].(error), &derr)
}

func TestCPUMetric(t *testing.T) {
	m := NewCPU(mock.New())

	require.NoError(t, m.Collect(time.UnixMilli(1000)))
	require.NoError(t, m.Collect(time.UnixMilli(2000)))

	stat := m.Stat()
	require.Equal(t, Series{
		{Timestamp: 1000, Value: 65},
		{Timestamp: 2000, Value: 65},
	}, stat.Series)
	require.Nil(t, stat.Groups)
}

func TestDiskMetric(t *testing.T) {
	m := NewDisk(mock.New(), []string{"/tmp", "/data"})

	require.NoError(t, m.Collect(time.UnixMilli(1000)))

	stat := m.Stat()
	require.Nil(t, stat.Series)
	require.Len(t, stat.Groups, 3)
	require.Equal(t, Series{{Timestamp: 1000, Value: 25}}, stat.Groups["/"])
	require.Equal(t, Series{{Timestamp: 1000, Value: 10}}, stat.Groups["/tmp"])
	require.Equal(t, Series{{Timestamp: 1000, Value: 0}}, stat.Groups["/data"])
}

func TestNetworkMetric(t *testing.T) {
	u := mock.New()
	m := NewNetwork(u)

	u.Lock.Lock()
	u.NetInfo[0].BytesRecv += 1000
	u.Lock.Unlock()

	now := time.Now().Add(time.Second)
	require.NoError(t, m.Collect(now))

	stat := m.Stat()
	require.Len(t, stat.Groups["eth0"], 1)
	require.Greater(t, stat.Groups["eth0"][0].Value, float64(0))
	require.Equal(t, now.UnixMilli(), stat.Groups["eth0"][0].Timestamp)
}

func TestStatIsolated(t *testing.T) {
	m := NewMemory(mock.New())
	require.NoError(t, m.Collect(time.UnixMilli(1)))

	stat := m.Stat()
	stat.Series[0].Value = -1

	require.Equal(t, float64(80), m.Stat().Series[0].Value)
}
