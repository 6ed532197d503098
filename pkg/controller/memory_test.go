package controller

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

func newTestMemory(t *testing.T, fs *kernelfs.Fake) *Memory {
	t.Helper()
	fs.SetDir("/sys/fs/cgroup/memory/x")
	return NewMemory("/x", "/sys/fs/cgroup/memory/x", true, fs, notify.NewFake())
}

func TestSetLimitMapsInfiniteToWireSentinel(t *testing.T) {
	fs := kernelfs.NewFake()
	m := newTestMemory(t, fs)
	fs.SetFile("/sys/fs/cgroup/memory/x/memory.limit_in_bytes", "0")

	require.Nil(t, m.SetLimit(1<<63-1))
	got, _ := fs.FileContents("/sys/fs/cgroup/memory/x/memory.limit_in_bytes")
	require.Equal(t, "-1", got)
}

func TestGetWorkingSetPrefersIdlePageStats(t *testing.T) {
	fs := kernelfs.NewFake()
	m := newTestMemory(t, fs)
	fs.SetFile("/sys/fs/cgroup/memory/x/memory.usage_in_bytes", "1024")
	fs.SetFile("/sys/fs/cgroup/memory/x/memory.idle_page_stats", "scans 1\nstale 100\n")

	got, err := m.GetWorkingSet()
	require.Nil(t, err)
	require.Equal(t, int64(924), got)
}

func TestGetWorkingSetFallsBackToMemoryStat(t *testing.T) {
	fs := kernelfs.NewFake()
	m := newTestMemory(t, fs)
	fs.SetFile("/sys/fs/cgroup/memory/x/memory.usage_in_bytes", "1024")
	fs.SetFile("/sys/fs/cgroup/memory/x/memory.stat",
		"total_inactive_anon 10\ntotal_inactive_file 14\ncache 30806016\n")

	got, err := m.GetWorkingSet()
	require.Nil(t, err)
	require.Equal(t, int64(1000), got)
}

func TestGetWorkingSetBubblesUpUsageNotFound(t *testing.T) {
	fs := kernelfs.NewFake()
	m := newTestMemory(t, fs)

	_, err := m.GetWorkingSet()
	require.NotNil(t, err)
	require.Equal(t, status.NotFound, err.Code())
}

func TestGetMemoryStatsSplitsContainerAndHierarchical(t *testing.T) {
	fs := kernelfs.NewFake()
	m := newTestMemory(t, fs)
	fs.SetFile("/sys/fs/cgroup/memory/x/memory.stat",
		"cache 100\nrss 200\ntotal_cache 300\ntotal_rss 400\nsome_unknown_key 1\n")

	stats, err := m.GetMemoryStats()
	require.Nil(t, err)
	require.Equal(t, int64(100), stats.ContainerData.Cache)
	require.Equal(t, int64(200), stats.ContainerData.Rss)
	require.Equal(t, int64(300), stats.HierarchicalData.Cache)
	require.Equal(t, int64(400), stats.HierarchicalData.Rss)
}

func TestGetNumaStatsParsesNodeBreakdown(t *testing.T) {
	fs := kernelfs.NewFake()
	m := newTestMemory(t, fs)
	fs.SetFile("/sys/fs/cgroup/memory/x/memory.numa_stat",
		"total=100 N0=60 N1=40\nhierarchical_total=200 N0=120 N1=80\n")

	stats, err := m.GetNumaStats()
	require.Nil(t, err)
	require.Equal(t, int64(100), stats.Container["total"].Total)
	require.Equal(t, int64(60), stats.Container["total"].Nodes[0])
	require.Equal(t, int64(200), stats.Hierarchical["total"].Total)
}

func TestGetNumaStatsRejectsDuplicateNode(t *testing.T) {
	fs := kernelfs.NewFake()
	m := newTestMemory(t, fs)
	fs.SetFile("/sys/fs/cgroup/memory/x/memory.numa_stat", "total=100 N0=60 N0=40\n")

	_, err := m.GetNumaStats()
	require.NotNil(t, err)
	require.Equal(t, status.FailedPrecondition, err.Code())
}

func TestRegisterUsageThresholdNotificationPassesThresholdAsArgument(t *testing.T) {
	fs := kernelfs.NewFake()
	m := newTestMemory(t, fs)
	fs.SetFile("/sys/fs/cgroup/memory/x/cgroup.event_control", "")
	fs.SetFile("/sys/fs/cgroup/memory/x/memory.usage_in_bytes", "0")
	fake := notify.NewFake()
	m.Base = NewBase(m.Kind(), m.HierarchyPath(), m.AbsolutePath(), true, fs, fake)

	_, err := m.RegisterUsageThresholdNotification(1048576, func(*status.Status) {})
	require.Nil(t, err)
	require.Len(t, fake.Registered, 1)
	require.Equal(t, "1048576", fake.Registered[0].Arguments)
}
