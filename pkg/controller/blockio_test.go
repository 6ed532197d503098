package controller

import (
	"testing"

	"github.com/stretchr/testify/require"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/status"
)

func newTestBlockIo(t *testing.T, fs *kernelfs.Fake) *BlockIo {
	t.Helper()
	fs.SetDir("/sys/fs/cgroup/blkio/x")
	return NewBlockIo("/x", "/sys/fs/cgroup/blkio/x", true, fs, notify.NewFake())
}

func TestUpdateDefaultLimitRejectsOutOfRange(t *testing.T) {
	fs := kernelfs.NewFake()
	b := newTestBlockIo(t, fs)
	fs.SetFile("/sys/fs/cgroup/blkio/x/blkio.weight", "0")

	err := b.UpdateDefaultLimit(0)
	require.NotNil(t, err)
	require.Equal(t, status.InvalidArgument, err.Code())

	require.Nil(t, b.UpdateDefaultLimit(50))
	got, _ := fs.FileContents("/sys/fs/cgroup/blkio/x/blkio.weight")
	require.Equal(t, "500", got)
}

func weight(w uint16) *uint16 { return &w }

func TestUpdatePerDeviceLimitWritesAllOnSuccess(t *testing.T) {
	fs := kernelfs.NewFake()
	b := newTestBlockIo(t, fs)
	fs.SetFile("/sys/fs/cgroup/blkio/x/blkio.weight_device", "")

	var d1, d2 specs.LinuxWeightDevice
	d1.Major, d1.Minor, d1.Weight = 8, 0, weight(50)
	d2.Major, d2.Minor, d2.Weight = 8, 16, weight(75)

	require.Nil(t, b.UpdatePerDeviceLimit([]specs.LinuxWeightDevice{d1, d2}))
	got, _ := fs.FileContents("/sys/fs/cgroup/blkio/x/blkio.weight_device")
	require.Equal(t, "8:16 750", got)
}

func TestUpdatePerDeviceLimitLeavesPriorWritesOnFailure(t *testing.T) {
	fs := kernelfs.NewFake()
	b := newTestBlockIo(t, fs)
	fs.SetFile("/sys/fs/cgroup/blkio/x/blkio.weight_device", "")

	var good, bad specs.LinuxWeightDevice
	good.Major, good.Minor, good.Weight = 8, 0, weight(50)
	bad.Major, bad.Minor, bad.Weight = 8, 16, weight(500)

	err := b.UpdatePerDeviceLimit([]specs.LinuxWeightDevice{good, bad})
	require.NotNil(t, err)
	got, _ := fs.FileContents("/sys/fs/cgroup/blkio/x/blkio.weight_device")
	require.Equal(t, "8:0 500", got)
}

func TestGetDeviceLimitsSkipsMalformedLines(t *testing.T) {
	fs := kernelfs.NewFake()
	b := newTestBlockIo(t, fs)
	fs.SetFile("/sys/fs/cgroup/blkio/x/blkio.weight_device", "8:0 500\nnonsense\n8:16 750\n")

	got, err := b.GetDeviceLimits()
	require.Nil(t, err)
	require.Len(t, got, 2)
}

func TestGetMaxLimitFailsWhenAnyFileMissing(t *testing.T) {
	fs := kernelfs.NewFake()
	b := newTestBlockIo(t, fs)
	fs.SetFile("/sys/fs/cgroup/blkio/x/blkio.throttle.read_bps_device", "")

	_, err := b.GetMaxLimit()
	require.NotNil(t, err)
	require.Equal(t, status.NotFound, err.Code())
}

func TestGetServiceBytesTotalSumsTotalLines(t *testing.T) {
	fs := kernelfs.NewFake()
	b := newTestBlockIo(t, fs)
	fs.SetFile("/sys/fs/cgroup/blkio/x/blkio.throttle.io_service_bytes",
		"8:0 Read 100\n8:0 Write 200\n8:0 Total 300\n8:16 Read 10\n8:16 Write 20\n8:16 Total 30\n")

	got, err := b.GetServiceBytesTotal()
	require.Nil(t, err)
	require.Equal(t, int64(330), got)
}

func TestUpdateMaxLimitSelectsCorrectFile(t *testing.T) {
	fs := kernelfs.NewFake()
	b := newTestBlockIo(t, fs)
	fs.SetFile("/sys/fs/cgroup/blkio/x/blkio.throttle.write_iops_device", "")

	var d specs.LinuxThrottleDevice
	d.Major, d.Minor, d.Rate = 8, 0, 1000

	require.Nil(t, b.UpdateMaxLimit(OpWrite, LimitIOPerSecond, []specs.LinuxThrottleDevice{d}))
	got, _ := fs.FileContents("/sys/fs/cgroup/blkio/x/blkio.throttle.write_iops_device")
	require.Equal(t, "8:0 1000", got)
}
