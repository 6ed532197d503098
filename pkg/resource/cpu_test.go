package resource

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/lmctfy-sub002/pkg/controller"
	"github.com/google/lmctfy-sub002/pkg/kernelfs"
	"github.com/google/lmctfy-sub002/pkg/notify"
	"github.com/google/lmctfy-sub002/pkg/spec"
	"github.com/google/lmctfy-sub002/pkg/status"
)

func newTestCpuHandler(t *testing.T, fs *kernelfs.Fake, withAcct bool) *Cpu {
	t.Helper()
	fs.SetDir("/sys/fs/cgroup/cpu/x")
	ctrl := controller.NewCpu("/x", "/sys/fs/cgroup/cpu/x", true, fs, notify.NewFake())
	var acct *controller.CpuAcct
	if withAcct {
		fs.SetDir("/sys/fs/cgroup/cpuacct/x")
		acct = controller.NewCpuAcct("/x", "/sys/fs/cgroup/cpuacct/x", true, fs, notify.NewFake())
	}
	return NewCpu(ctrl, acct)
}

func TestCpuUpdateWritesMilliCpus(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestCpuHandler(t, fs, false)
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.shares", "0")

	require.Nil(t, h.Update(spec.ContainerSpec{Cpu: &spec.CpuSpec{MilliCpus: int64p(1000)}}, spec.Merge))
	got, _ := fs.FileContents("/sys/fs/cgroup/cpu/x/cpu.shares")
	require.Equal(t, "1024", got)
}

func TestCpuUpdateNilSpecIsNoop(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestCpuHandler(t, fs, false)

	require.Nil(t, h.Update(spec.ContainerSpec{}, spec.Merge))
}

func TestCpuStatsOmitsAcctWhenNotMounted(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestCpuHandler(t, fs, false)
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.shares", "1024")

	out := &spec.ContainerStats{}
	require.Nil(t, h.Stats(out))
	require.NotNil(t, out.Cpu)
	require.Nil(t, out.CpuAcct)
}

func TestCpuStatsIncludesAcctWhenMounted(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestCpuHandler(t, fs, true)
	fs.SetFile("/sys/fs/cgroup/cpu/x/cpu.shares", "1024")
	fs.SetFile("/sys/fs/cgroup/cpuacct/x/cpuacct.usage", "5000")

	out := &spec.ContainerStats{}
	require.Nil(t, h.Stats(out))
	require.NotNil(t, out.CpuAcct)
	require.Equal(t, int64(5000), *out.CpuAcct.UsageNs)
}

func TestCpuRegisterNotificationIsNotFound(t *testing.T) {
	fs := kernelfs.NewFake()
	h := newTestCpuHandler(t, fs, false)

	_, err := h.RegisterNotification(spec.EventSpec{}, nil)
	require.NotNil(t, err)
	require.Equal(t, status.NotFound, err.Code())
}
