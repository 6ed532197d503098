package controller

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
)

func newTestCpu(t *testing.T, fs *kernelfs.Fake) *Cpu {
	t.Helper()
	fs.SetDir("/sys/fs/cgroup/cpu/x")
	return NewCpu("/x", "/sys/fs/cgroup/cpu/x", true, fs, notify.NewFake())
}

func TestSetMilliCpusClampsToKernelFloor(t *testing.T) {
	fs := kernelfs.NewFake()
	c := newTestCpu(t, fs)
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.shares", "1024")

	require.Nil(t, c.SetMilliCpus(1))

	got, ok := fs.FileContents("/sys/fs/cgroup/cpu/x/cpu.shares")
	require.True(t, ok)
	require.Equal(t, "2", got)
}

func TestSetMilliCpusTypical(t *testing.T) {
	fs := kernelfs.NewFake()
	c := newTestCpu(t, fs)
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.shares", "0")

	require.Nil(t, c.SetMilliCpus(1000))
	got, _ := fs.FileContents("/sys/fs/cgroup/cpu/x/cpu.shares")
	require.Equal(t, "1024", got)
}

func TestSetMaxMilliCpusWritesPeriodThenQuota(t *testing.T) {
	fs := kernelfs.NewFake()
	c := newTestCpu(t, fs)
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.cfs_period_us", "0")
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.cfs_quota_us", "0")

	require.Nil(t, c.SetMaxMilliCpus(500))

	period, _ := fs.FileContents("/sys/fs/cgroup/cpu/x/cpu.cfs_period_us")
	quota, _ := fs.FileContents("/sys/fs/cgroup/cpu/x/cpu.cfs_quota_us")
	require.Equal(t, "100000", period)
	require.Equal(t, "50000", quota)
}

func TestGetMaxMilliCpusReportsUncapped(t *testing.T) {
	fs := kernelfs.NewFake()
	c := newTestCpu(t, fs)
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.cfs_quota_us", "-1")

	got, err := c.GetMaxMilliCpus()
	require.Nil(t, err)
	require.Equal(t, int64(-1), got)
}

func TestSetLatencyMapsClassToValue(t *testing.T) {
	fs := kernelfs.NewFake()
	c := newTestCpu(t, fs)
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.lat", "0")

	require.Nil(t, c.SetLatency(LatencyPremier))
	got, _ := fs.FileContents("/sys/fs/cgroup/cpu/x/cpu.lat")
	require.Equal(t, "25", got)

	require.Nil(t, c.SetLatency(LatencyBestEffort))
	got, _ = fs.FileContents("/sys/fs/cgroup/cpu/x/cpu.lat")
	require.Equal(t, "-1", got)
}

func TestGetThrottlingStatsParsesCpuStat(t *testing.T) {
	fs := kernelfs.NewFake()
	c := newTestCpu(t, fs)
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.stat", "nr_periods 10\nnr_throttled 2\nthrottled_time 500\n")

	got, err := c.GetThrottlingStats()
	require.Nil(t, err)
	require.Equal(t, ThrottlingStats{NrPeriods: 10, NrThrottled: 2, ThrottledTime: 500}, got)
}

func TestGetThrottlingStatsFailsWhenKeyMissing(t *testing.T) {
	fs := kernelfs.NewFake()
	c := newTestCpu(t, fs)
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.stat", "nr_periods 10\n")

	_, err := c.GetThrottlingStats()
	require.NotNil(t, err)
}
